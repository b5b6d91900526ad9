package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthOK       = "ok"
	healthNotReady = "not ready"
	healthDraining = "shutting down"
)

// HealthChecker serves the liveness and readiness probes. Liveness only
// proves the process is up; readiness also reflects the ready flag and
// whether a shutdown has begun.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time
}

func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady flips the readiness flag; Shutdown sets it false before draining.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) draining() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime for /healthz/detailed.
type DetailedHealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// RegisterHealthEndpoints mounts the probe routes on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler always reports ok while the process can serve requests.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthOK})
	})
}

// ReadinessHandler reports per-check results and 503 when any check fails,
// so a load balancer stops routing to a draining or unready instance.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := map[string]string{
			"ready":    healthOK,
			"shutdown": healthOK,
		}
		status := healthOK
		code := http.StatusOK

		if !h.ready.Load() {
			checks["ready"] = healthNotReady
			status = healthNotReady
			code = http.StatusServiceUnavailable
		}
		if h.draining() {
			checks["shutdown"] = healthDraining
			status = healthNotReady
			code = http.StatusServiceUnavailable
		}

		writeHealth(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler reports overall status plus uptime.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response := DetailedHealthResponse{
			Status: healthOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		code := http.StatusOK

		switch {
		case !h.ready.Load():
			response.Status = healthNotReady
			code = http.StatusServiceUnavailable
		case h.draining():
			response.Status = healthDraining
			code = http.StatusServiceUnavailable
		}

		writeHealth(w, code, response)
	})
}

func writeHealth(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
