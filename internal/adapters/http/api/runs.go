package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/laddersim/internal/report"
)

// ErrRunNotFound is reported when no finished run matches the requested policy.
var ErrRunNotFound = errors.New("run not found")

// RunsHandler lists finished runs.
type RunsHandler struct {
	results ResultsProvider
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(results ResultsProvider) *RunsHandler {
	return &RunsHandler{results: results}
}

// HandleRuns handles GET /runs[?policy=name] requests.
func (h *RunsHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	runs := h.results.Results()
	policy := strings.TrimSpace(r.URL.Query().Get("policy"))
	if policy == "" {
		if runs == nil {
			runs = []report.RunResult{}
		}
		writeJSON(w, http.StatusOK, runs)
		return
	}

	for _, run := range runs {
		if run.Policy == policy {
			writeJSON(w, http.StatusOK, run)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", ErrRunNotFound)
}
