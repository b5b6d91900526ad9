// Package server is the dashboard's HTTP layer. It serves the OAuth
// login and callback endpoints, the session projection, the windowed
// dashboard queries, the draft reply lifecycle and the settings
// surface, plus Kubernetes health probes. Prometheus metrics are served
// by a separate listener (MetricsServer) so operational data never
// shares a port with user traffic.
//
// All handlers read the caller's identity from the session cookie via
// the session middleware; an absent or invalid cookie degrades
// dashboard reads to an empty state instead of an error.
package server
