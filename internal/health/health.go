// Package health answers the question "may this process accept a streaming
// session right now?".
//
// voxsign loads its models once at startup (the recognizer's weights, the
// pose dictionary's connection pool), so readiness is a property of the
// process, not of a request. The same checker list backs three consumers:
//
//   - GET /healthz — liveness; a process that serves HTTP is alive.
//   - GET /readyz  — readiness; 200 only when every [Checker] passes, with
//     a JSON body naming each check's outcome.
//   - [Handler.Err] — the websocket accept gate: a session against a
//     missing collaborator is refused with one error event instead of
//     failing mid-utterance.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// checkTimeout bounds one checker probe. Readiness must answer quickly even
// when a backend hangs; a probe that cannot finish in this window counts as
// a failure.
const checkTimeout = 5 * time.Second

// Checker is one named readiness probe.
type Checker struct {
	// Name keys the check in the /readyz JSON body and in Err's error text
	// (e.g. "recognizer", "poses").
	Name string

	// Check probes the dependency and must respect ctx cancellation. nil
	// means ready.
	Check func(ctx context.Context) error
}

// result is the response body for both probe endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler evaluates a fixed checker list. Safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New copies the given checkers into a [Handler]. Evaluation order is the
// order given, so put the cheapest check first.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200; liveness never consults the checkers.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers 200 when every checker passes and 503 otherwise. The body
// carries a per-check verdict so an operator can see which collaborator is
// missing without reading logs.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Err runs the checkers and returns the first failure wrapped with its
// name, or nil when the process is ready. The websocket handler calls this
// before opening a session.
func (h *Handler) Err(ctx context.Context) error {
	for _, c := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(checkCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("health: %s: %w", c.Name, err)
		}
	}
	return nil
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
