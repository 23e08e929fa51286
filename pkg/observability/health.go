package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// writeJSON writes data as a JSON response with the given status code. It
// mirrors httputil.WriteJSON, inlined here so observability does not import
// httputil (which imports observability for its middleware).
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Checker reports the health of one dependency
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface
type CheckerFunc struct {
	CheckerName string
	Fn          func(ctx context.Context) error
}

// Name returns the checker name
func (c CheckerFunc) Name() string { return c.CheckerName }

// Check runs the check
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// Health aggregates dependency checks into liveness/readiness handlers
type Health struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

// NewHealth creates a health aggregator with a per-check timeout
func NewHealth(timeout time.Duration) *Health {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Health{timeout: timeout}
}

// Register adds a dependency checker
func (h *Health) Register(checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, checker)
}

// checkResult is the readiness report for one dependency
type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Check runs every registered checker and returns per-dependency results
func (h *Health) Check(ctx context.Context) (bool, map[string]checkResult) {
	h.mu.RLock()
	checkers := make([]Checker, len(h.checkers))
	copy(checkers, h.checkers)
	h.mu.RUnlock()

	healthy := true
	results := make(map[string]checkResult, len(checkers))
	for _, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := checker.Check(checkCtx)
		cancel()

		if err != nil {
			healthy = false
			results[checker.Name()] = checkResult{Status: "unhealthy", Error: err.Error()}
		} else {
			results[checker.Name()] = checkResult{Status: "healthy"}
		}
	}
	return healthy, results
}

// LivenessHandler always reports OK while the process is serving
func (h *Health) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}

// ReadinessHandler reports 200 when every dependency check passes and 503
// otherwise, with per-dependency detail
func (h *Health) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		healthy, results := h.Check(r.Context())

		status := http.StatusOK
		overall := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "not_ready"
		}
		writeJSON(w, status, map[string]interface{}{
			"status": overall,
			"checks": results,
		})
	})
}
