/*
handlers.go - HTTP API handlers for the hours tracker

PURPOSE:
  Exposes the cycle engine's output to the widget frontend. Handlers
  serve the latest cycle result; only the explicit action endpoints reach
  upstream synchronously.

ENDPOINTS:
  GET  /api/summary?view=...     Current week's hours and earnings
  GET  /api/approvals            Pending approval queue (managers)
  POST /api/approvals/approve    Approve one item by key
  POST /api/approvals/reject     Reject one item by key, with reason
  POST /api/cycle/run            Force an immediate cycle
  GET  /api/health               Liveness and last-cycle status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (bad key, unknown view)
  - 401: Upstream rejected the stored credentials
  - 409: Setup incomplete
  - 502: Upstream unavailable and nothing cached
  - 500: Internal errors

SECURITY NOTE:
  The server binds for a local widget frontend. No authentication layer
  of its own; upstream credentials never transit these endpoints.

SEE ALSO:
  - dto.go: Response shapes
  - engine/runner.go: The result source
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jaime-alvarez-trilogy/hourglass/engine"
	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Runner *engine.Runner
}

// NewHandler creates a new handler over the running engine.
func NewHandler(eng *engine.Engine, runner *engine.Runner) *Handler {
	return &Handler{Engine: eng, Runner: runner}
}

// =============================================================================
// SUMMARY
// =============================================================================

// GetSummary serves the latest aggregate at the requested view level.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "standard"
	}
	if view != "compact" && view != "standard" && view != "expanded" {
		writeError(w, http.StatusBadRequest, "Unknown view level", nil)
		return
	}

	res, failed := h.latest(w)
	if res == nil {
		if failed {
			return
		}
		writeError(w, http.StatusServiceUnavailable, "No cycle has completed yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(res, view, time.Now()))
}

// =============================================================================
// APPROVALS
// =============================================================================

// GetApprovals serves the pending approval queue from the latest cycle.
func (h *Handler) GetApprovals(w http.ResponseWriter, r *http.Request) {
	res, failed := h.latest(w)
	if res == nil {
		if failed {
			return
		}
		writeError(w, http.StatusServiceUnavailable, "No cycle has completed yet", nil)
		return
	}

	items := res.Approvals
	if items == nil {
		items = []tracker.ApprovalItem{}
	}
	writeJSON(w, http.StatusOK, ApprovalsDTO{
		Items:    items,
		Count:    len(items),
		Deadline: weekly.Deadline(time.Now()),
		RanAt:    res.RanAt,
	})
}

// ApproveItem authorizes one pending item upstream, then refreshes.
func (h *Handler) ApproveItem(w http.ResponseWriter, r *http.Request) {
	key, ok := h.parseAction(w, r)
	if !ok {
		return
	}
	if err := h.Engine.Approve(r.Context(), key); err != nil {
		writeEngineError(w, err)
		return
	}
	// The queue changed; re-run so the next render is current
	h.Runner.RunNow()
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved", "key": key.String()})
}

// RejectItem declines one pending item upstream, then refreshes.
func (h *Handler) RejectItem(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	key, ok := tracker.ParseItemKey(req.Key)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid item key", nil)
		return
	}
	if err := h.Engine.Reject(r.Context(), key, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	h.Runner.RunNow()
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected", "key": key.String()})
}

func (h *Handler) parseAction(w http.ResponseWriter, r *http.Request) (tracker.ItemKey, bool) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return tracker.ItemKey{}, false
	}
	key, ok := tracker.ParseItemKey(req.Key)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid item key", nil)
		return tracker.ItemKey{}, false
	}
	return key, true
}

// =============================================================================
// CYCLE CONTROL
// =============================================================================

// RunCycle forces an immediate cycle and serves its result.
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	res := h.Runner.RunNow()
	if res == nil {
		_, lastErr := h.Runner.Latest()
		writeEngineError(w, lastErr)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(res, "standard", time.Now()))
}

// Health reports liveness and the last cycle outcome.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	res, lastErr := h.Runner.Latest()
	body := map[string]any{"status": "ok"}
	if res != nil {
		body["lastCycle"] = res.RanAt
		body["cached"] = res.Cached
	}
	if lastErr != nil {
		body["lastError"] = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// latest returns the freshest result. The bool reports whether an error
// response was already written.
func (h *Handler) latest(w http.ResponseWriter) (*engine.Result, bool) {
	res, lastErr := h.Runner.Latest()
	if res != nil {
		return res, false
	}
	if lastErr != nil {
		writeEngineError(w, lastErr)
		return nil, true
	}
	return nil, false
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeError(w, http.StatusInternalServerError, "Cycle produced no result", nil)
	case tracker.IsAuth(err):
		writeError(w, http.StatusUnauthorized, "Credentials rejected upstream", err)
	case errors.Is(err, tracker.ErrConfigIncomplete):
		writeError(w, http.StatusConflict, "Setup incomplete", err)
	case tracker.IsUnavailable(err):
		writeError(w, http.StatusBadGateway, "Upstream unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "Cycle failed", err)
	}
}
