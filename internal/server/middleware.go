package server

import (
	"context"
	"net/http"
	"time"

	"github.com/mailbae/dashboard/internal/instrumentation"
	"github.com/mailbae/dashboard/internal/logging"
	"github.com/mailbae/dashboard/internal/session"
)

// SessionCookieName is the cookie carrying the signed session artifact.
const SessionCookieName = "mailbae_session"

type contextKey int

const sessionKey contextKey = iota

// SessionFromContext returns the request's session. ok is false for
// unauthenticated requests.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(session.Session)
	return sess, ok
}

// withSession parses the session cookie and, when it verifies, threads
// the immutable session value through the request context. Requests
// without a valid cookie pass through unauthenticated; each handler
// decides how to degrade.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.sc.bridge.Parse(cookie.Value)
		if err != nil {
			// Expired or tampered cookie. Treat as signed out.
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withInstrumentation logs every request and feeds the HTTP metrics. It
// must wrap the mux directly: the path label is the matched route pattern,
// which the mux populates during routing, so the {id} segment of the draft
// routes never mints a new metric series.
func (s *Server) withInstrumentation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route == "" {
			// No pattern matched; the mux's 404/405 fallback handled it.
			route = "unmatched"
		}

		duration := time.Since(start)
		s.sc.metrics.RecordHTTPRequest(r.Context(), r.Method, route, recorder.status, duration)
		s.sc.logger.Debug("request handled",
			logging.Endpoint(route),
			logging.TraceID(instrumentation.GetTraceID(r.Context())),
			logging.Duration(duration),
			logging.Status(http.StatusText(recorder.status)))
	})
}
