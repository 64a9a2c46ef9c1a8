package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/metrics"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

const (
	streamBuffer = 16
	writeWait    = 10 * time.Second
)

// GET /v1/events/{event} — WebSocket stream of one event channel. The
// connection becomes the channel's only listener, replacing any other.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("event")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Warn("websocket upgrade failed", "event", name, "err", err)
		return
	}
	defer conn.Close()

	if h.Events.Listening(name) {
		slog.Warn("event stream replaces existing listener", "event", name, "remote", r.RemoteAddr)
	}
	events := make(chan *payload.Event, streamBuffer)
	detach := h.Events.Attach(name, func(ev *payload.Event) {
		select {
		case events <- ev:
		default:
			metrics.DeliveriesDropped.WithLabelValues("slow_consumer").Inc()
		}
	})
	defer detach()
	slog.Info("event stream attached", "event", name, "remote", r.RemoteAddr)

	// The read loop only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.PingEvery)
	defer ping.Stop()
	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				slog.Debug("event stream write failed", "event", name, "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("event stream closed", "event", name, "remote", r.RemoteAddr)
			return
		}
	}
}
