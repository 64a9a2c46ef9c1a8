package match

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type operator struct {
	sym   string
	apply func(l, r any) (bool, error)
}

// lookupOperator resolves sym. A "matches" against a literal pattern is
// compiled here so evaluation never recompiles it.
func lookupOperator(sym string, right operand) (*operator, error) {
	switch sym {
	case "==":
		return &operator{sym, func(l, r any) (bool, error) { return equal(l, r), nil }}, nil
	case "!=":
		return &operator{sym, func(l, r any) (bool, error) { return !equal(l, r), nil }}, nil
	case ">", ">=", "<", "<=":
		return &operator{sym, func(l, r any) (bool, error) { return ordered(sym, l, r) }}, nil
	case "contains":
		return &operator{sym, func(l, r any) (bool, error) {
			return strings.Contains(stringify(l), stringify(r)), nil
		}}, nil
	case "matches":
		if lit, ok := right.(literal); ok {
			pattern, ok := lit.v.(string)
			if !ok {
				return nil, fmt.Errorf("matches: pattern must be a string, got %T", lit.v)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("matches: invalid regex %q: %w", pattern, err)
			}
			return &operator{sym, func(l, _ any) (bool, error) { return re.MatchString(stringify(l)), nil }}, nil
		}
		return &operator{sym, func(l, r any) (bool, error) {
			re, err := regexp.Compile(stringify(r))
			if err != nil {
				return false, fmt.Errorf("matches: invalid regex %q: %w", r, err)
			}
			return re.MatchString(stringify(l)), nil
		}}, nil
	}
	return nil, fmt.Errorf("unknown operator %q", sym)
}

// number coerces numeric values and numeric strings; payload fields arrive
// as strings.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func equal(l, r any) bool {
	if _, isStr := r.(string); !isStr {
		if lf, ok := number(l); ok {
			if rf, ok := number(r); ok {
				return math.Abs(lf-rf) < 1e-9
			}
		}
	}
	if lb, ok := l.(bool); ok {
		rb, ok := r.(bool)
		return ok && lb == rb
	}
	return stringify(l) == stringify(r)
}

func ordered(sym string, l, r any) (bool, error) {
	lf, lok := number(l)
	rf, rok := number(r)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s requires numeric operands, got %v and %v", sym, l, r)
	}
	switch sym {
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	case "<":
		return lf < rf, nil
	default:
		return lf <= rf, nil
	}
}
