package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/api"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/bridge"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/dispatch"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/platform/memory"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/publisher"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/sender"
)

type stack struct {
	srv *httptest.Server
	ch  *memory.Channel
	pub *publisher.Publisher
	reg *receiver.Registry
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ch := memory.New()
	pub := publisher.New()
	d := dispatch.New(context.Background(), pub, dispatch.Config{})
	reg := receiver.NewRegistry(ch, d)
	out := sender.New(ch)

	srv := httptest.NewServer(api.New(api.Deps{
		Bridge:   bridge.New(reg, pub, out),
		Registry: reg,
		Events:   pub,
		Sender:   out,
		Platform: ch,
		Queue:    d,
	}))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, ch: ch, pub: pub, reg: reg}
}

func (s *stack) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestReceiversLifecycle(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodPost, "/v1/receivers", map[string]any{
		"filter": "com.x.SCAN", "action_names": "CODE;TYPE", "event": "scan",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 0, body["handle"])

	status, body = s.do(t, http.MethodPost, "/v1/receivers", map[string]any{
		"filter": "com.x.BATTERY", "actions": []string{"level"}, "event": "battery", "category": "power",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 1, body["handle"])

	status, body = s.do(t, http.MethodGet, "/v1/receivers", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
	list := body["receivers"].([]any)
	first := list[0].(map[string]any)
	assert.Equal(t, "com.x.SCAN", first["filter"])
	assert.Equal(t, payload.DefaultCategory, first["category"])
	assert.Equal(t, []any{"CODE", "TYPE"}, first["actions"])

	status, _ = s.do(t, http.MethodDelete, "/v1/receivers/0", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodDelete, "/v1/receivers/0", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, receiver.CodeUnregister, body["code"])

	status, _ = s.do(t, http.MethodDelete, "/v1/receivers/zero", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, 1, s.reg.Len())
}

// gatedChannel holds every Arm until gate is closed.
type gatedChannel struct {
	*memory.Channel
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedChannel) Arm(ctx context.Context, id string, f payload.Filter, fn platform.DeliverFunc) error {
	g.entered <- struct{}{}
	<-g.gate
	return g.Channel.Arm(ctx, id, f, fn)
}

func TestRegister_ClientGoneStillReportsHandle(t *testing.T) {
	ch := &gatedChannel{Channel: memory.New(), entered: make(chan struct{}, 1), gate: make(chan struct{})}
	pub := publisher.New()
	reg := receiver.NewRegistry(ch, dispatch.New(context.Background(), pub, dispatch.Config{}))
	out := sender.New(ch)
	h := api.New(api.Deps{
		Bridge: bridge.New(reg, pub, out), Registry: reg, Events: pub, Sender: out, Platform: ch,
	})

	ctx, cancel := context.WithCancel(context.Background())
	body := strings.NewReader(`{"filter":"F","actions":["A"],"event":"E"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/receivers", body).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, req)
	}()

	<-ch.entered
	cancel()
	close(ch.gate)
	<-done

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"handle":0}`, rec.Body.String())
	assert.Equal(t, 1, reg.Len())
}

func TestRegisterErrors(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodPost, "/v1/receivers", map[string]any{"filter": "bad filter", "event": "e"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, receiver.CodeRegister, body["code"])
	assert.Contains(t, body["error"], "failed to register receiver")

	status, body = s.do(t, http.MethodPost, "/v1/receivers", map[string]any{"filter": "F", "event": "e", "where": "A =="})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, receiver.CodeRegister, body["code"])

	status, _ = s.do(t, http.MethodPost, "/v1/receivers", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 0, s.reg.Len())
}

func TestSendBroadcast(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodPost, "/v1/broadcasts", map[string]any{"action": "com.x.PING", "key": "MSG", "value": "hi"})
	require.Equal(t, http.StatusAccepted, status, body)
	assert.Equal(t, true, body["sent"])
	assert.NotEmpty(t, body["id"])

	status, _ = s.do(t, http.MethodPost, "/v1/broadcasts", map[string]any{"action": "com.x.PING"})
	assert.Equal(t, http.StatusBadRequest, status)

	require.NoError(t, s.ch.Close())
	status, body = s.do(t, http.MethodPost, "/v1/broadcasts", map[string]any{"action": "com.x.PING", "key": "MSG", "value": "hi"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, sender.CodeSendBroadcast, body["code"])
}

func TestHealthAndReadiness(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "memory", body["platform"])

	require.NoError(t, s.ch.Close())
	status, body = s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "platform_unavailable", body["status"])

	status, _ = s.do(t, http.MethodPost, "/v1/reload", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newStack(t)
	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodPost, "/v1/receivers", map[string]any{
		"filter": "F", "actions": []string{"A", "B"}, "event": "E",
	})
	require.Equal(t, http.StatusCreated, status, body)

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/v1/events/E"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return s.pub.Listening("E") }, 2*time.Second, 10*time.Millisecond)

	status, _ = s.do(t, http.MethodPost, "/v1/broadcasts", map[string]any{"action": "F", "key": "A", "value": "1"})
	require.Equal(t, http.StatusAccepted, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev payload.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "E", ev.Name)
	assert.Equal(t, map[string]string{"A": "1"}, ev.Fields)

	// Closing the socket detaches the listener.
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !s.pub.Listening("E") }, 2*time.Second, 10*time.Millisecond)
}
