// Package httpapi exposes the live event surface of the assessment engine:
// Server-Sent Events and WebSocket feeds of per-workflow progress.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlasforge/assessor/internal/streaming"
)

const sseHeartbeatInterval = 15 * time.Second

// StreamHandler serves the SSE and WebSocket feeds backed by the in-process
// streaming manager.
type StreamHandler struct {
	mgr     *streaming.Manager
	backlog *streaming.RedisSink
	logger  *zap.Logger
}

func NewStreamHandler(mgr *streaming.Manager, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{mgr: mgr, logger: logger}
}

// RegisterRoutes registers the event feed routes on the provided mux.
func (h *StreamHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stream/sse", h.handleSSE)
	mux.HandleFunc("/stream/ws", h.handleWS)
	mux.HandleFunc("/stream/events", h.handleBacklog)
}

// eventFilter narrows a feed to the requested event types; empty passes all.
type eventFilter map[string]struct{}

func parseEventFilter(raw string) eventFilter {
	f := eventFilter{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f[t] = struct{}{}
		}
	}
	return f
}

func (f eventFilter) allows(evtType string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[evtType]
	return ok
}

// lastEventID reads the resume position from the Last-Event-ID header (the
// EventSource reconnect convention) or the last_event_id query parameter.
func lastEventID(r *http.Request) uint64 {
	if lei := r.Header.Get("Last-Event-ID"); lei != "" {
		if n, err := strconv.ParseUint(lei, 10, 64); err == nil {
			return n
		}
	}
	if q := r.URL.Query().Get("last_event_id"); q != "" {
		if n, err := strconv.ParseUint(q, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// handleSSE streams assessment events for one workflow.
// GET /stream/sse?workflow_id=<id>[&types=AGENT_COMPLETED,...][&last_event_id=N]
func (h *StreamHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	wfID := r.URL.Query().Get("workflow_id")
	if wfID == "" {
		http.Error(w, `{"error":"workflow_id required"}`, http.StatusBadRequest)
		return
	}
	filter := parseEventFilter(r.URL.Query().Get("types"))
	resumeFrom := lastEventID(r)

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch := h.mgr.Subscribe(wfID, 256)
	defer h.mgr.Unsubscribe(wfID, ch)

	fmt.Fprintf(w, ": connected to workflow %s\n\n", wfID)
	flusher.Flush()

	if resumeFrom > 0 {
		for _, evt := range h.mgr.ReplaySince(wfID, resumeFrom) {
			if filter.allows(evt.Type) {
				writeSSE(w, evt)
			}
		}
		flusher.Flush()
	}

	hb := time.NewTicker(sseHeartbeatInterval)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("workflow_id", wfID))
			return
		case evt := <-ch:
			if !filter.allows(evt.Type) {
				continue
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-hb.C:
			// Keeps the connection alive through idle-sensitive proxies.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt streaming.Event) {
	if evt.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", evt.Seq)
	}
	if evt.Type != "" {
		fmt.Fprintf(w, "event: %s\n", evt.Type)
	}
	fmt.Fprintf(w, "data: %s\n\n", evt.Marshal())
}
