// Package health provides the health check endpoint for the API.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// checkTimeout bounds how long one health check may hold the request.
const checkTimeout = 5 * time.Second

// Checker reports whether one dependency is reachable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Handler serves the /healthz endpoint.
type Handler struct {
	mu       sync.RWMutex
	checkers []Checker
}

// NewHandler creates a health handler with no registered checkers.
func NewHandler() *Handler {
	return &Handler{}
}

// Register adds a dependency checker.
func (h *Handler) Register(c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, c)
}

// StatusResponse is the health check payload.
type StatusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz runs every registered checker and reports 200 only when all
// dependencies answer. With no checkers registered it degrades to a
// process-liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	h.mu.RLock()
	checkers := make([]Checker, len(h.checkers))
	copy(checkers, h.checkers)
	h.mu.RUnlock()

	resp := StatusResponse{Status: "ok"}
	if len(checkers) > 0 {
		resp.Checks = make(map[string]string, len(checkers))
	}

	status := http.StatusOK
	for _, c := range checkers {
		if err := c.Check(ctx); err != nil {
			resp.Checks[c.Name()] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name()] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
