package server

import (
	"sync"
	"time"
)

// nonceStore tracks outstanding login state nonces. A nonce is valid
// for one callback within its TTL.
type nonceStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	issued map[string]time.Time
}

func newNonceStore(ttl time.Duration) *nonceStore {
	return &nonceStore{
		ttl:    ttl,
		now:    time.Now,
		issued: make(map[string]time.Time),
	}
}

func (n *nonceStore) add(nonce string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	for issued, at := range n.issued {
		if now.Sub(at) > n.ttl {
			delete(n.issued, issued)
		}
	}
	n.issued[nonce] = now
}

// consume validates and removes a nonce. Each nonce is single-use.
func (n *nonceStore) consume(nonce string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	at, ok := n.issued[nonce]
	if !ok {
		return false
	}
	delete(n.issued, nonce)
	return n.now().Sub(at) <= n.ttl
}
