package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/streaming"
)

// SetBacklog wires the durable event store used by /stream/events. Without
// a sink the endpoint answers 404.
func (h *StreamHandler) SetBacklog(sink *streaming.RedisSink) {
	h.backlog = sink
}

// handleBacklog returns persisted events for one workflow as JSON.
// GET /stream/events?workflow_id=<id>[&after=<stream-id>][&count=N]
func (h *StreamHandler) handleBacklog(w http.ResponseWriter, r *http.Request) {
	if h.backlog == nil {
		http.Error(w, `{"error":"event history not configured"}`, http.StatusNotFound)
		return
	}
	wfID := r.URL.Query().Get("workflow_id")
	if wfID == "" {
		http.Error(w, `{"error":"workflow_id required"}`, http.StatusBadRequest)
		return
	}
	count := int64(100)
	if q := r.URL.Query().Get("count"); q != "" {
		if n, err := strconv.ParseInt(q, 10, 64); err == nil && n > 0 && n <= 1000 {
			count = n
		}
	}

	events, cursor, err := h.backlog.Read(r.Context(), wfID, r.URL.Query().Get("after"), count)
	if err != nil {
		h.logger.Warn("Failed to read event backlog",
			zap.String("workflow_id", wfID),
			zap.Error(err),
		)
		http.Error(w, `{"error":"event history unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"workflow_id": wfID,
		"events":      events,
		"cursor":      cursor,
	})
}
