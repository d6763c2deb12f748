package rest

import (
	"net/http"
	"strconv"

	"rental-ingest-service/internal/core/port"
)

const defaultRunsLimit = 10

// RunHandlers serves the read-only run endpoints from the in-memory run log.
type RunHandlers struct {
	runLog port.RunLogPort
}

func NewRunHandlers(runLog port.RunLogPort) *RunHandlers {
	return &RunHandlers{runLog: runLog}
}

func (h *RunHandlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListRuns returns recent run summaries, newest first. The optional
// limit query parameter caps the count.
func (h *RunHandlers) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	summaries := h.runLog.Recent(limit)
	dtos := make([]runSummaryDTO, 0, len(summaries))
	for _, summary := range summaries {
		dtos = append(dtos, toRunSummaryDTO(summary))
	}
	RespondWithJSON(w, http.StatusOK, dtos)
}

// HandleLatestRun returns the newest run summary, 404 before the first run.
func (h *RunHandlers) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.runLog.Latest()
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "no reconciliation run recorded yet")
		return
	}
	RespondWithJSON(w, http.StatusOK, toRunSummaryDTO(summary))
}
