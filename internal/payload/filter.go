package payload

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrInvalidFilter is returned when a filter cannot be armed on any platform.
var ErrInvalidFilter = errors.New("invalid filter")

// keySeparator sits between name and category in Filter.Key.
const keySeparator = "#"

// Filter selects which payloads a receiver observes. It is the single
// canonical form every platform channel matches on.
type Filter struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// NewFilter returns a filter with its category normalized.
func NewFilter(name, category string) Filter {
	return Filter{Name: name, Category: NormalizeCategory(category)}
}

// NormalizeCategory maps the empty category to DefaultCategory.
func NormalizeCategory(category string) string {
	if category == "" {
		return DefaultCategory
	}
	return category
}

// Key is the channel key used by platform channels.
func (f Filter) Key() string {
	return f.Name + keySeparator + NormalizeCategory(f.Category)
}

func (f Filter) String() string { return f.Key() }

// Validate rejects filters no platform channel can arm.
func (f Filter) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFilter)
	}
	for _, part := range []string{f.Name, f.Category} {
		for i, r := range part {
			if unicode.IsSpace(r) || unicode.IsControl(r) {
				return fmt.Errorf("%w: %q has illegal character at position %d", ErrInvalidFilter, part, i)
			}
		}
	}
	return nil
}
