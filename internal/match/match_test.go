package match

import (
	"errors"
	"testing"
)

// fields implements Resolver over a flat map; paths are joined with dots.
type fields map[string]any

func (f fields) Resolve(path []string) (any, bool) {
	key := path[0]
	for _, p := range path[1:] {
		key += "." + p
	}
	v, ok := f[key]
	return v, ok
}

func TestEval(t *testing.T) {
	cases := []struct {
		name    string
		expr    string
		data    fields
		want    bool
		wantErr error
	}{
		{name: "string eq", expr: `CODE == "1234"`, data: fields{"CODE": "1234"}, want: true},
		{name: "string neq", expr: `CODE != "1234"`, data: fields{"CODE": "99"}, want: true},
		{name: "numeric string gt", expr: `weight > 2.5`, data: fields{"weight": "3"}, want: true},
		{name: "numeric string lte", expr: `weight <= 2.5`, data: fields{"weight": "3"}, want: false},
		{name: "number eq numeric string", expr: `qty == 4`, data: fields{"qty": "4.0"}, want: true},
		{name: "quoted number stays string", expr: `qty == "4"`, data: fields{"qty": "4.0"}, want: false},
		{name: "bool", expr: `ok == true`, data: fields{"ok": true}, want: true},
		{name: "contains", expr: `TYPE contains "EAN"`, data: fields{"TYPE": "LABEL-TYPE-EAN13"}, want: true},
		{name: "matches", expr: `TYPE matches "^EAN[0-9]+$"`, data: fields{"TYPE": "EAN13"}, want: true},
		{name: "matches false", expr: `TYPE matches "^EAN"`, data: fields{"TYPE": "QR"}, want: false},
		{name: "dotted path", expr: `fields.CODE == "x"`, data: fields{"fields.CODE": "x"}, want: true},
		{name: "and", expr: `a == "1" AND b == "2"`, data: fields{"a": "1", "b": "2"}, want: true},
		{name: "and short-circuit", expr: `a == "0" AND missing == "2"`, data: fields{"a": "1"}, want: false},
		{name: "or short-circuit", expr: `a == "1" OR missing == "2"`, data: fields{"a": "1"}, want: true},
		{name: "not", expr: `NOT a == "1"`, data: fields{"a": "2"}, want: true},
		{name: "parens", expr: `(a == "1" OR a == "2") AND b == "x"`, data: fields{"a": "2", "b": "x"}, want: true},
		{name: "lowercase keywords", expr: `a == "1" and not b == "1"`, data: fields{"a": "1", "b": "2"}, want: true},
		{name: "escaped quote", expr: `a == "say \"hi\""`, data: fields{"a": `say "hi"`}, want: true},
		{name: "missing field", expr: `missing == "1"`, data: fields{}, wantErr: ErrFieldNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Compile(tc.expr)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tc.expr, err)
			}
			got, err := p.Eval(tc.data)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Eval error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Eval(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	cases := []string{
		``,
		`"unterminated`,
		`a 1`,
		`a == `,
		`(a == "1"`,
		`a == "1" b`,
		`a matches "["`,
		`a ~ "1"`,
		`a resembles "1"`,
	}
	for _, expr := range cases {
		t.Run(expr, func(t *testing.T) {
			if _, err := Compile(expr); err == nil {
				t.Errorf("expected compile error for %q", expr)
			}
		})
	}
}

func TestOrdered_NonNumeric(t *testing.T) {
	p := MustCompile(`a > 1`)
	if _, err := p.Eval(fields{"a": "abc"}); err == nil {
		t.Error("expected error comparing non-numeric value")
	}
}
