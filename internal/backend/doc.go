// Package backend is the HTTP client for the mail-processing service.
// It issues the windowed mailbox queries (auto-respond candidates, the
// daily summary, the received count) and the outbound send call, and
// caches query results until the caller explicitly invalidates them.
package backend
