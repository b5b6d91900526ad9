package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mailbae/dashboard/internal/instrumentation"
	"github.com/mailbae/dashboard/internal/logging"
)

// Cache serves backend query results from memory once fetched. Entries
// never expire on their own; a fetched result is returned for every
// later identical query until Invalidate is called for the user. Only
// successful responses are cached.
type Cache struct {
	client *Client
	logger *slog.Logger

	mu       sync.Mutex
	replies  map[string]map[string]ReplyCandidate
	summary  map[string][]SummaryGroup
	received map[string]int
}

// NewCache wraps the client with an explicit-invalidation result cache.
func NewCache(client *Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client:   client,
		logger:   logging.WithComponent(logger, "backend-cache"),
		replies:  make(map[string]map[string]ReplyCandidate),
		summary:  make(map[string][]SummaryGroup),
		received: make(map[string]int),
	}
}

func queryKey(q Query) string {
	return fmt.Sprintf("%s|%s|%d", q.UserEmail, q.Timezone, q.SinceHour)
}

// startLookupSpan opens a span for a cached query and tags it with the
// lookup outcome once known.
func startLookupSpan(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return instrumentation.StartSpan(ctx, "cache."+endpoint)
}

func markLookup(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool(instrumentation.SpanAttrCacheHit, hit))
}

// Replies returns the cached candidate set for the query, fetching it
// once on a miss.
func (c *Cache) Replies(ctx context.Context, q Query) (map[string]ReplyCandidate, error) {
	ctx, span := startLookupSpan(ctx, instrumentation.EndpointAutoRespond)
	defer span.End()

	key := queryKey(q)

	c.mu.Lock()
	if cached, ok := c.replies[key]; ok {
		c.mu.Unlock()
		markLookup(span, true)
		return cached, nil
	}
	c.mu.Unlock()
	markLookup(span, false)

	result, err := c.client.Replies(ctx, q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.replies[key] = result
	c.mu.Unlock()
	return result, nil
}

// Summarize returns the cached summary for the query, fetching it once
// on a miss.
func (c *Cache) Summarize(ctx context.Context, q Query) ([]SummaryGroup, error) {
	ctx, span := startLookupSpan(ctx, instrumentation.EndpointSummarize)
	defer span.End()

	key := queryKey(q)

	c.mu.Lock()
	if cached, ok := c.summary[key]; ok {
		c.mu.Unlock()
		markLookup(span, true)
		return cached, nil
	}
	c.mu.Unlock()
	markLookup(span, false)

	result, err := c.client.Summarize(ctx, q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.summary[key] = result
	c.mu.Unlock()
	return result, nil
}

// ReceivedCount returns the cached received count for the query,
// fetching it once on a miss.
func (c *Cache) ReceivedCount(ctx context.Context, q Query) (int, error) {
	ctx, span := startLookupSpan(ctx, instrumentation.EndpointReceivedCount)
	defer span.End()

	key := queryKey(q)

	c.mu.Lock()
	if cached, ok := c.received[key]; ok {
		c.mu.Unlock()
		markLookup(span, true)
		return cached, nil
	}
	c.mu.Unlock()
	markLookup(span, false)

	result, err := c.client.ReceivedCount(ctx, q)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.received[key] = result
	c.mu.Unlock()
	return result, nil
}

// SendEmail passes through to the client. Sends are never cached.
func (c *Cache) SendEmail(ctx context.Context, req SendRequest) (string, error) {
	return c.client.SendEmail(ctx, req)
}

// Invalidate drops every cached result for the user, across all
// timezone and cutoff combinations. The next query refetches.
func (c *Cache) Invalidate(userEmail string) {
	prefix := userEmail + "|"

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.replies {
		if strings.HasPrefix(key, prefix) {
			delete(c.replies, key)
		}
	}
	for key := range c.summary {
		if strings.HasPrefix(key, prefix) {
			delete(c.summary, key)
		}
	}
	for key := range c.received {
		if strings.HasPrefix(key, prefix) {
			delete(c.received, key)
		}
	}

	c.logger.Debug("cache invalidated", logging.UserHash(userEmail))
}
