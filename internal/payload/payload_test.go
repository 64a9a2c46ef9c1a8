package payload_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gyaneshwarpardhi/broadcastevent/internal/payload"
)

func TestParseActions(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"A", []string{"A"}},
		{"A;B", []string{"A", "B"}},
		{"A;;B;", []string{"A", "B"}},
		{" A ; B ", []string{"A", "B"}},
		{"", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := payload.ParseActions(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseActions(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFilter_DefaultCategory(t *testing.T) {
	f := payload.NewFilter("com.scanner.ACTION", "")
	if f.Category != payload.DefaultCategory {
		t.Errorf("category = %q, want %q", f.Category, payload.DefaultCategory)
	}
	if f.Key() != payload.NewFilter("com.scanner.ACTION", payload.DefaultCategory).Key() {
		t.Errorf("empty and default category should produce the same key")
	}
	if f.Key() == payload.NewFilter("com.scanner.ACTION", "other").Key() {
		t.Errorf("different categories must produce different keys")
	}
}

func TestFilter_Validate(t *testing.T) {
	cases := []struct {
		name    string
		filter  payload.Filter
		wantErr bool
	}{
		{"ok", payload.NewFilter("com.x.ACTION", "cat"), false},
		{"empty name", payload.NewFilter("", "cat"), true},
		{"space in name", payload.NewFilter("com x", ""), true},
		{"newline in category", payload.NewFilter("com.x", "a\nb"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.filter.Validate()
			if tc.wantErr {
				if !errors.Is(err, payload.ErrInvalidFilter) {
					t.Fatalf("expected ErrInvalidFilter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNew_NormalizesCategory(t *testing.T) {
	p := payload.New("com.x.ACTION", "", "KEY", "value")
	if p.Category != payload.DefaultCategory {
		t.Errorf("category = %q, want default", p.Category)
	}
	if p.ID == "" {
		t.Error("payload id should be generated")
	}
	if got := p.Fields["KEY"]; got != "value" {
		t.Errorf("field KEY = %v, want value", got)
	}
}

func TestPayload_Resolve(t *testing.T) {
	p := &payload.Payload{
		ID:       "p1",
		Action:   "com.x.ACTION",
		Category: "",
		Fields:   map[string]any{"CODE": "123", "a.b": "dotted"},
	}
	cases := []struct {
		path []string
		want any
		ok   bool
	}{
		{[]string{"action"}, "com.x.ACTION", true},
		{[]string{"category"}, payload.DefaultCategory, true},
		{[]string{"id"}, "p1", true},
		{[]string{"fields", "CODE"}, "123", true},
		{[]string{"CODE"}, "123", true},
		{[]string{"fields", "a", "b"}, "dotted", true},
		{[]string{"fields"}, nil, false},
		{[]string{"missing"}, nil, false},
	}
	for _, tc := range cases {
		got, ok := p.Resolve(tc.path)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Resolve(%v) = (%v, %v), want (%v, %v)", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}
