// Package match compiles the small predicate language used by receivers to
// narrow which payloads reach their event channel.
//
//	CODE == "1234" AND category != "test"
//	NOT fields.TYPE matches "^EAN" OR weight > 2.5
package match

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFieldNotFound is returned when an expression references a path the
// resolver does not know.
var ErrFieldNotFound = errors.New("field not found")

// Resolver supplies values for field paths.
type Resolver interface {
	Resolve(path []string) (any, bool)
}

// Program is a compiled expression. It is immutable and safe for concurrent use.
type Program struct {
	src  string
	root node
}

// Compile parses src once; evaluation never re-parses.
func Compile(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, fmt.Errorf("unexpected %q after expression", t.text)
	}
	return &Program{src: src, root: root}, nil
}

// MustCompile is Compile for expressions known at build time.
func MustCompile(src string) *Program {
	p, err := Compile(src)
	if err != nil {
		panic(fmt.Sprintf("match: compile %q: %v", src, err))
	}
	return p
}

// Eval reports whether r satisfies the program.
func (p *Program) Eval(r Resolver) (bool, error) {
	return p.root.eval(r)
}

func (p *Program) String() string { return p.src }

type node interface {
	eval(r Resolver) (bool, error)
}

type logical struct {
	and         bool
	left, right node
}

func (n *logical) eval(r Resolver) (bool, error) {
	l, err := n.left.eval(r)
	if err != nil {
		return false, err
	}
	if n.and && !l {
		return false, nil
	}
	if !n.and && l {
		return true, nil
	}
	return n.right.eval(r)
}

type negation struct{ inner node }

func (n *negation) eval(r Resolver) (bool, error) {
	v, err := n.inner.eval(r)
	return !v, err
}

type comparison struct {
	left, right operand
	op          *operator
}

func (n *comparison) eval(r Resolver) (bool, error) {
	l, err := n.left.value(r)
	if err != nil {
		return false, err
	}
	rv, err := n.right.value(r)
	if err != nil {
		return false, err
	}
	return n.op.apply(l, rv)
}

type operand interface {
	value(r Resolver) (any, error)
}

type literal struct{ v any }

func (o literal) value(Resolver) (any, error) { return o.v, nil }

type fieldRef struct{ path []string }

func (o fieldRef) value(r Resolver) (any, error) {
	v, ok := r.Resolve(o.path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, strings.Join(o.path, "."))
	}
	return v, nil
}
