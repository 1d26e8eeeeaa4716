package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsReadDeadline  = 60 * time.Second
	wsPingInterval  = 20 * time.Second
	wsWriteDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are left to the fronting proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS streams assessment events for one workflow over a WebSocket.
// GET /stream/ws?workflow_id=<id>[&types=...][&last_event_id=N]
func (h *StreamHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	wfID := r.URL.Query().Get("workflow_id")
	if wfID == "" {
		http.Error(w, "workflow_id required", http.StatusBadRequest)
		return
	}
	filter := parseEventFilter(r.URL.Query().Get("types"))
	resumeFrom := lastEventID(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := h.mgr.Subscribe(wfID, 256)
	defer h.mgr.Unsubscribe(wfID, ch)

	if resumeFrom > 0 {
		for _, evt := range h.mgr.ReplaySince(wfID, resumeFrom) {
			if !filter.allows(evt.Type) {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	// Reader pump: clients send nothing meaningful; reading surfaces the
	// close frame or broken connection. The request context does not fire
	// on disconnect once the connection is hijacked, so the writer pump
	// keys off readerDone instead.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			h.logger.Debug("WebSocket client disconnected", zap.String("workflow_id", wfID))
			return
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if !filter.allows(evt.Type) {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteDeadline)); err != nil {
				return
			}
		}
	}
}
