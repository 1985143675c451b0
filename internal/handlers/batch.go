package handlers

import (
	"net/http"

	"face-gallery/internal/metrics"
	"face-gallery/internal/scheduler"
)

// GetBatchStatus reports the scheduler's run state.
func (h *Handlers) GetBatchStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.scheduler.Status())
}

// TriggerBatch starts a batch run, replacing one in progress.
func (h *Handlers) TriggerBatch(w http.ResponseWriter, _ *http.Request) {
	replaced := h.scheduler.Status().Running
	h.scheduler.Trigger()

	msg := "Batch run started"
	if replaced {
		msg = "Running batch cancelled and restarted"
	}
	writeJSONStatus(w, http.StatusAccepted, "started", msg)
}

// TriggerIndex starts a photo re-index unless one is already running.
func (h *Handlers) TriggerIndex(w http.ResponseWriter, _ *http.Request) {
	if h.indexer.IsIndexing() {
		writeJSONStatus(w, http.StatusOK, "already_running", "Indexing is already in progress")
		return
	}

	h.indexer.TriggerIndex(h.baseCtx)
	writeJSONStatus(w, http.StatusAccepted, "started", "Re-indexing started")
}

// StatsResponse combines library totals with the last batch outcome.
type StatsResponse struct {
	metrics.Stats
	Batch scheduler.Status `json:"batch"`
}

// GetStats returns library totals.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.LibraryStats(r.Context())
	if err != nil {
		logger.Error("Collecting stats failed: %v", err)
		writeJSONError(w, "failed to collect stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, StatsResponse{Stats: stats, Batch: h.scheduler.Status()})
}
