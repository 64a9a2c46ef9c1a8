package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/bridge"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/client"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/config"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/metrics"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/sender"
)

// readyThreshold is the dispatch queue utilization above which /readyz fails.
const readyThreshold = 0.8

// Deps are the collaborators the HTTP surface fronts.
type Deps struct {
	Bridge    *bridge.Module
	Registry  *receiver.Registry
	Events    EventChannel
	Sender    client.Broadcaster
	Platform  platform.Channel
	Queue     interface{ QueueUtilization() float64 }
	Loader    *config.Loader // optional; enables POST /v1/reload
	PingEvery time.Duration  // WebSocket keepalive, defaults to 30s
}

// EventChannel is the publisher side the stream endpoint attaches to.
type EventChannel interface {
	client.Attacher
	Listening(name string) bool
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Deps
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// New creates an HTTP handler and registers all routes.
func New(d Deps) http.Handler {
	if d.PingEvery == 0 {
		d.PingEvery = 30 * time.Second
	}
	h := &Handler{
		Deps: d,
		mux:  http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	h.mux.HandleFunc("POST /v1/receivers", h.registerReceiver)
	h.mux.HandleFunc("GET /v1/receivers", h.listReceivers)
	h.mux.HandleFunc("DELETE /v1/receivers/{handle}", h.unregisterReceiver)
	h.mux.HandleFunc("POST /v1/broadcasts", h.sendBroadcast)
	h.mux.HandleFunc("GET /v1/events/{event}", h.streamEvents)
	h.mux.HandleFunc("POST /v1/reload", h.reload)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

type registerRequest struct {
	Filter      string   `json:"filter"`
	Category    string   `json:"category"`
	Actions     []string `json:"actions"`
	ActionNames string   `json:"action_names"` // ";"-joined alternative to actions
	Event       string   `json:"event"`
	Where       string   `json:"where"`
}

// POST /v1/receivers — register a receiver.
func (h *Handler) registerReceiver(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	actions := req.ActionNames
	if len(req.Actions) > 0 {
		actions = payload.JoinActions(req.Actions)
	}

	opts := []bridge.RegisterOption{bridge.Source("api:" + r.RemoteAddr)}
	if req.Where != "" {
		opts = append(opts, bridge.Where(req.Where))
	}
	// Register is not cancellable once it has started, so wait for it even if
	// the client has gone away; the receiver then shows up in GET /v1/receivers.
	handle, err := h.Bridge.Register(r.Context(), req.Filter, actions, req.Event, req.Category, opts...).Await()
	if err != nil {
		h.writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"handle": handle})
}

// GET /v1/receivers — live receivers in registration order.
func (h *Handler) listReceivers(w http.ResponseWriter, r *http.Request) {
	list := h.Registry.List()
	infos := make([]receiver.Info, 0, len(list))
	for _, rcv := range list {
		infos = append(infos, rcv.Info())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(infos),
		"receivers": infos,
	})
}

// DELETE /v1/receivers/{handle} — unregister.
func (h *Handler) unregisterReceiver(w http.ResponseWriter, r *http.Request) {
	handle, err := receiver.ParseHandle(r.PathValue("handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.Bridge.Unregister(r.Context(), int(handle)).AwaitContext(r.Context()); err != nil {
		h.writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unregistered": true})
}

type broadcastRequest struct {
	Action   string `json:"action"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

// POST /v1/broadcasts — emit a broadcast.
func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	p, err := h.Sender.Send(r.Context(), req.Action, req.Key, req.Value, req.Category)
	if err != nil {
		h.writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"sent": true, "id": p.ID})
}

// POST /v1/reload — re-read the config file and reconcile preset receivers.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if h.Loader == nil {
		writeError(w, http.StatusNotFound, "no config file loaded")
		return
	}
	cfg, err := h.Loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":        true,
		"receivers_count": len(cfg.Receivers),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the dispatch queue is >80% full or the platform is down.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	var util float64
	if h.Queue != nil {
		util = h.Queue.QueueUtilization()
	}
	metrics.QueueUtilization.Set(util)

	resp := map[string]any{
		"status":            "ready",
		"queue_utilization": util,
		"receivers":         h.Registry.Len(),
	}
	status := http.StatusOK
	if util > readyThreshold {
		resp["status"] = "overloaded"
		status = http.StatusServiceUnavailable
	}
	if p, ok := h.Platform.(platform.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			resp["status"] = "platform_unavailable"
			resp["platform_error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	resp["platform"] = h.Platform.Name()
	writeJSON(w, status, resp)
}

func (h *Handler) writeBridgeError(w http.ResponseWriter, err error) {
	code := bridge.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case receiver.CodeRegister:
		status = http.StatusUnprocessableEntity
	case receiver.CodeUnregister:
		status = http.StatusNotFound
		if !errors.Is(err, receiver.ErrInvalidHandle) {
			status = http.StatusBadGateway
		}
	case sender.CodeSendBroadcast:
		status = http.StatusBadGateway
	}
	writeCodedError(w, status, code, err)
}
