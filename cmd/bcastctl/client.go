package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/receiver"
)

// apiError is a non-2xx response from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type registerRequest struct {
	Filter   string   `json:"filter"`
	Category string   `json:"category,omitempty"`
	Actions  []string `json:"actions"`
	Event    string   `json:"event"`
	Where    string   `json:"where,omitempty"`
}

func (c *apiClient) register(ctx context.Context, req registerRequest) (receiver.Handle, error) {
	var out struct {
		Handle receiver.Handle `json:"handle"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/receivers", req, &out); err != nil {
		return 0, err
	}
	return out.Handle, nil
}

func (c *apiClient) unregister(ctx context.Context, h receiver.Handle) error {
	return c.do(ctx, http.MethodDelete, "/v1/receivers/"+h.String(), nil, nil)
}

func (c *apiClient) list(ctx context.Context) ([]receiver.Info, error) {
	var out struct {
		Receivers []receiver.Info `json:"receivers"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/receivers", nil, &out); err != nil {
		return nil, err
	}
	return out.Receivers, nil
}

func (c *apiClient) send(ctx context.Context, action, key, value, category string) (string, error) {
	in := map[string]string{"action": action, "key": key, "value": value, "category": category}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/broadcasts", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// listen streams events on name until ctx ends or the server hangs up.
func (c *apiClient) listen(ctx context.Context, name string, fn func(*payload.Event)) error {
	u, err := url.Parse(c.base + "/v1/events/" + url.PathEscape(name))
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", u, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		var ev payload.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading event: %w", err)
		}
		fn(&ev)
	}
}
