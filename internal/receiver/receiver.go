package receiver

import (
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/match"
	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

// Handle identifies a registered receiver. Handles are never reused and do
// not move when other receivers are removed.
type Handle int64

func (h Handle) String() string { return strconv.FormatInt(int64(h), 10) }

// ParseHandle parses the decimal form produced by String.
func ParseHandle(s string) (Handle, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse handle %q: %w", s, err)
	}
	return Handle(n), nil
}

// Spec describes a receiver to register.
type Spec struct {
	Filter   string   `json:"filter"`
	Category string   `json:"category"`
	Actions  []string `json:"actions"`
	Event    string   `json:"event"`
	Where    string   `json:"where,omitempty"`
	Source   string   `json:"source,omitempty"`
}

func (s Spec) equal(o Spec) bool {
	return s.Filter == o.Filter &&
		payload.NormalizeCategory(s.Category) == payload.NormalizeCategory(o.Category) &&
		slices.Equal(s.Actions, o.Actions) &&
		s.Event == o.Event &&
		s.Where == o.Where
}

// Receiver is one live registration.
type Receiver struct {
	handle    Handle
	filter    payload.Filter
	actions   []string
	event     string
	where     *match.Program
	source    string
	createdAt time.Time
	active    atomic.Bool
}

func (r *Receiver) Handle() Handle         { return r.handle }
func (r *Receiver) Filter() payload.Filter { return r.filter }
func (r *Receiver) Event() string          { return r.event }
func (r *Receiver) Actions() []string      { return slices.Clone(r.actions) }
func (r *Receiver) Where() *match.Program  { return r.where }
func (r *Receiver) Source() string         { return r.source }
func (r *Receiver) CreatedAt() time.Time   { return r.createdAt }

// Active is false once the receiver has been unregistered. Deliveries already
// in flight check it before publishing.
func (r *Receiver) Active() bool { return r.active.Load() }

// Accepts evaluates the receiver's where clause against p. A receiver
// without a clause accepts everything.
func (r *Receiver) Accepts(p *payload.Payload) (bool, error) {
	if r.where == nil {
		return true, nil
	}
	return r.where.Eval(p)
}

// Info is the serializable view of a receiver.
type Info struct {
	Handle    Handle    `json:"handle"`
	Filter    string    `json:"filter"`
	Category  string    `json:"category"`
	Actions   []string  `json:"actions"`
	Event     string    `json:"event"`
	Where     string    `json:"where,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Info snapshots r.
func (r *Receiver) Info() Info {
	info := Info{
		Handle:    r.handle,
		Filter:    r.filter.Name,
		Category:  r.filter.Category,
		Actions:   r.Actions(),
		Event:     r.event,
		Source:    r.source,
		CreatedAt: r.createdAt,
	}
	if r.where != nil {
		info.Where = r.where.String()
	}
	return info
}
