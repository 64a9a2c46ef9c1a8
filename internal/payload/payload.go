package payload

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is applied whenever a caller supplies an empty category,
// on both inbound registration and outbound send.
const DefaultCategory = "default_category"

// ActionSeparator joins action names on the bridge surface.
const ActionSeparator = ";"

// Payload is the canonical broadcast as seen by the platform channel.
type Payload struct {
	ID       string         `json:"id"`
	Action   string         `json:"action"`
	Category string         `json:"category"`
	Fields   map[string]any `json:"fields"` // wire-typed; only strings are extractable
	SentAt   time.Time      `json:"sent_at"`
}

// New builds an outbound payload carrying a single field.
func New(action, category, key, value string) *Payload {
	return &Payload{
		ID:       uuid.NewString(),
		Action:   action,
		Category: NormalizeCategory(category),
		Fields:   map[string]any{key: value},
		SentAt:   time.Now().UTC(),
	}
}

// Filter returns the filter this payload is tagged with.
func (p *Payload) Filter() Filter {
	return Filter{Name: p.Action, Category: NormalizeCategory(p.Category)}
}

// Resolve walks a dot-separated path into the payload for match expressions.
// "action", "category" and "id" address the envelope, "fields.<name>" or a
// bare name addresses a field.
func (p *Payload) Resolve(path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	switch path[0] {
	case "action":
		if len(path) == 1 {
			return p.Action, true
		}
	case "category":
		if len(path) == 1 {
			return NormalizeCategory(p.Category), true
		}
	case "id":
		if len(path) == 1 {
			return p.ID, true
		}
	case "fields":
		if len(path) == 1 {
			return nil, false
		}
		return p.field(strings.Join(path[1:], "."))
	}
	return p.field(strings.Join(path, "."))
}

func (p *Payload) field(name string) (any, bool) {
	if p.Fields == nil {
		return nil, false
	}
	v, ok := p.Fields[name]
	return v, ok
}

// Event is the unit handed to the publisher: the fields extracted from one
// payload, addressed to one event channel.
type Event struct {
	ID        string            `json:"id"`
	Name      string            `json:"event"`
	Fields    map[string]string `json:"data"`
	PayloadID string            `json:"payload_id,omitempty"`
	At        time.Time         `json:"at"`
}

// NewEvent wraps extracted fields for the named event channel.
func NewEvent(name string, fields map[string]string, src *Payload) *Event {
	ev := &Event{
		ID:     uuid.NewString(),
		Name:   name,
		Fields: fields,
		At:     time.Now().UTC(),
	}
	if src != nil {
		ev.PayloadID = src.ID
	}
	return ev
}

// ParseActions splits a ";"-joined action list, dropping empty names.
func ParseActions(joined string) []string {
	parts := strings.Split(joined, ActionSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinActions is the inverse of ParseActions.
func JoinActions(actions []string) string {
	return strings.Join(actions, ActionSeparator)
}
