package redis

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

// ErrMalformedMessage is returned when a pub/sub message is not a payload.
var ErrMalformedMessage = errors.New("malformed broadcast message")

// Encode renders p in the wire format:
//
//	{"id":"…","action":"…","category":"…","sent_at":"…","fields":{"KEY":"value"}}
func Encode(p *payload.Payload) ([]byte, error) {
	out := []byte(`{}`)
	sets := []struct {
		path string
		v    any
	}{
		{"id", p.ID},
		{"action", p.Action},
		{"category", payload.NormalizeCategory(p.Category)},
		{"sent_at", p.SentAt.UTC().Format(time.RFC3339Nano)},
	}
	var err error
	for _, s := range sets {
		if out, err = sjson.SetBytes(out, s.path, s.v); err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.path, err)
		}
	}
	// Keys go through gjson.Escape so dotted field names stay single keys.
	out, err = sjson.SetRawBytes(out, "fields", []byte(`{}`))
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	for k, v := range p.Fields {
		if out, err = sjson.SetBytes(out, "fields."+gjson.Escape(k), v); err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
	}
	return out, nil
}

// Decode parses the wire format. Field values keep their JSON type, so a
// numeric field decodes as float64 and is not extractable.
func Decode(data []byte) (*payload.Payload, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedMessage)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedMessage)
	}
	action := doc.Get("action")
	if action.Type != gjson.String || action.Str == "" {
		return nil, fmt.Errorf("%w: action is required", ErrMalformedMessage)
	}

	p := &payload.Payload{
		ID:       doc.Get("id").String(),
		Action:   action.Str,
		Category: payload.NormalizeCategory(doc.Get("category").String()),
		Fields:   make(map[string]any),
	}
	if ts := doc.Get("sent_at"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			p.SentAt = t
		}
	}
	if fields := doc.Get("fields"); fields.IsObject() {
		fields.ForEach(func(k, v gjson.Result) bool {
			p.Fields[k.String()] = v.Value()
			return true
		})
	}
	return p, nil
}
