package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of a session artifact. It is independent of
// the mailbox token's expiry.
const DefaultTTL = 24 * time.Hour

// Session is the immutable per-request session value handed to client code.
type Session struct {
	Email        string
	AccessToken  string
	RefreshToken string
}

// claims is the signed session payload. The access and refresh tokens are
// the only credential fields that cross the bridge.
type claims struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	jwt.RegisteredClaims
}

// ErrInvalidSession is returned when a session artifact fails verification
// or has expired.
var ErrInvalidSession = errors.New("invalid session token")

// Bridge signs and verifies session artifacts.
type Bridge struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewBridge creates a bridge signing with the given secret.
func NewBridge(secret []byte) (*Bridge, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret cannot be empty")
	}
	return &Bridge{secret: secret, ttl: DefaultTTL, now: time.Now}, nil
}

// NewBridgeWithTTL creates a bridge with a custom session lifetime.
func NewBridgeWithTTL(secret []byte, ttl time.Duration) (*Bridge, error) {
	b, err := NewBridge(secret)
	if err != nil {
		return nil, err
	}
	b.ttl = ttl
	return b, nil
}

// Issue projects the token pair into a signed session artifact for the
// given user.
func (b *Bridge) Issue(email, accessToken, refreshToken string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("session subject cannot be empty")
	}

	now := b.now()
	c := claims{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a session artifact and returns the session value.
func (b *Bridge) Parse(signed string) (Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(signed, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return b.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return b.now() }))
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidSession
	}

	return Session{
		Email:        c.Subject,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
	}, nil
}
