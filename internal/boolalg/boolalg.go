// Package boolalg implements the small boolean expression algebra used
// by desequentialisation (and nowhere else) to reason about which paths
// from a Process's entry block reach a given Drive.
package boolalg

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Kind identifies which variant of the expression union an Expr is.
type Kind int

const (
	Const0 Kind = iota
	Const1
	Symbol
	And
	Or
	Negated
)

// Expr is an immutable boolean expression node. Symbol carries an opaque
// identity (Sym) rather than a string so callers can key symbols off
// whatever probe/signal identity is convenient (an *ir.Value, typically).
type Expr struct {
	kind     Kind
	sym      Sym
	children []*Expr // And, Or
	inner    *Expr   // Negated
}

// Sym is the opaque per-symbol identity; two Exprs with Kind == Symbol
// denote the same atom iff their Sym compares equal.
type Sym interface{}

// Zero and One are the two constant leaves.
func Zero() *Expr { return &Expr{kind: Const0} }
func One() *Expr  { return &Expr{kind: Const1} }

// NewSymbol wraps sym as a Symbol leaf.
func NewSymbol(sym Sym) *Expr { return &Expr{kind: Symbol, sym: sym} }

// NewAnd builds an And node over children (not yet normalised).
func NewAnd(children ...*Expr) *Expr { return &Expr{kind: And, children: children} }

// NewOr builds an Or node over children (not yet normalised).
func NewOr(children ...*Expr) *Expr { return &Expr{kind: Or, children: children} }

// Negate attaches or strips a negation: Negate(Negate(e)) returns e's
// inner expression directly rather than double-wrapping, one step ahead
// of what the normaliser would do anyway.
func Negate(e *Expr) *Expr {
	if e.kind == Negated {
		return e.inner
	}
	return &Expr{kind: Negated, inner: e}
}

// Kind reports e's variant tag.
func (e *Expr) Kind() Kind { return e.kind }

// SymbolValue returns the Sym carried by a Symbol leaf.
func (e *Expr) SymbolValue() Sym { return e.sym }

// Children returns the operands of an And/Or node.
func (e *Expr) Children() []*Expr { return e.children }

// Inner returns the operand of a Negated node.
func (e *Expr) Inner() *Expr { return e.inner }

// Copy deep-copies e.
func Copy(e *Expr) *Expr {
	switch e.kind {
	case And, Or:
		kids := make([]*Expr, len(e.children))
		for i, c := range e.children {
			kids[i] = Copy(c)
		}
		return &Expr{kind: e.kind, children: kids}
	case Negated:
		return &Expr{kind: Negated, inner: Copy(e.inner)}
	default:
		cp := *e
		return &cp
	}
}

func (e *Expr) String() string {
	switch e.kind {
	case Const0:
		return "0"
	case Const1:
		return "1"
	case Symbol:
		return fmt.Sprintf("%v", e.sym)
	case Negated:
		return "!" + e.inner.String()
	case And:
		return joinChildren(e.children, " & ")
	case Or:
		return joinChildren(e.children, " | ")
	default:
		return "?"
	}
}

func joinChildren(children []*Expr, sep string) string {
	s := "("
	for i, c := range children {
		if i > 0 {
			s += sep
		}
		s += c.String()
	}
	return s + ")"
}

// DisjunctiveCNF normalises e to a fixed point by repeatedly applying the
// nine rules: double-negation elimination, constant negation, De Morgan,
// associativity flattening, canonical child ordering, duplicate removal,
// constant masking/identity, complementation, and unary collapse.
func DisjunctiveCNF(e *Expr) *Expr {
	for {
		next := simplifyOnce(e)
		if exprEqual(next, e) {
			return next
		}
		e = next
	}
}

func simplifyOnce(e *Expr) *Expr {
	switch e.kind {
	case Const0, Const1, Symbol:
		return e
	case Negated:
		return simplifyNegated(e)
	case And:
		return simplifyAssoc(And, flatten(And, mapSimplify(e.children)))
	case Or:
		return simplifyAssoc(Or, flatten(Or, mapSimplify(e.children)))
	default:
		return e
	}
}

func mapSimplify(children []*Expr) []*Expr {
	out := make([]*Expr, len(children))
	for i, c := range children {
		out[i] = simplifyOnce(c)
	}
	return out
}

// simplifyNegated implements rules 1-3: double negation, constant
// negation, and De Morgan's laws.
func simplifyNegated(e *Expr) *Expr {
	inner := simplifyOnce(e.inner)
	switch inner.kind {
	case Negated:
		return inner.inner
	case Const0:
		return &Expr{kind: Const1}
	case Const1:
		return &Expr{kind: Const0}
	case And:
		negated := make([]*Expr, len(inner.children))
		for i, c := range inner.children {
			negated[i] = &Expr{kind: Negated, inner: c}
		}
		return &Expr{kind: Or, children: negated}
	case Or:
		negated := make([]*Expr, len(inner.children))
		for i, c := range inner.children {
			negated[i] = &Expr{kind: Negated, inner: c}
		}
		return &Expr{kind: And, children: negated}
	default:
		return &Expr{kind: Negated, inner: inner}
	}
}

// flatten implements rule 4: nested same-kind nodes are inlined.
func flatten(kind Kind, children []*Expr) []*Expr {
	var out []*Expr
	for _, c := range children {
		if c.kind == kind {
			out = append(out, flatten(kind, c.children)...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// simplifyAssoc implements rules 5-9 over an already-flattened child list:
// canonical ordering, duplicate removal, constant masking/identity,
// complementation, and unary collapse.
func simplifyAssoc(kind Kind, children []*Expr) *Expr {
	slices.SortFunc(children, less)

	absorbing, identity := Const0, Const1
	if kind == Or {
		absorbing, identity = Const1, Const0
	}
	var deduped []*Expr
	for i, c := range children {
		if c.kind == absorbing {
			return &Expr{kind: absorbing}
		}
		if c.kind == identity {
			continue
		}
		if i > 0 && exprEqual(c, children[i-1]) {
			continue
		}
		deduped = append(deduped, c)
	}
	for i, a := range deduped {
		for j, b := range deduped {
			if i == j {
				continue
			}
			if isComplementOf(a, b) {
				return &Expr{kind: absorbing}
			}
		}
	}
	switch len(deduped) {
	case 0:
		return &Expr{kind: identity}
	case 1:
		return deduped[0]
	default:
		return &Expr{kind: kind, children: deduped}
	}
}

func isComplementOf(a, b *Expr) bool {
	if a.kind == Negated && exprEqual(a.inner, b) {
		return true
	}
	if b.kind == Negated && exprEqual(b.inner, a) {
		return true
	}
	return false
}

// less implements the rule-5 tie-break: kind tag first (Const0 < Const1 <
// Symbol < And < Or; Negated sorts by its inner expression, one rank
// above its un-negated form so `a, !a` sort adjacently for rule 8/6 to
// find), then child count, then recursively on children or symbol
// identity.
func less(a, b *Expr) bool {
	ak, bk := rank(a), rank(b)
	if ak != bk {
		return ak < bk
	}
	if a.kind == Negated || b.kind == Negated {
		ai, bi := a, b
		if ai.kind == Negated {
			ai = ai.inner
		}
		if bi.kind == Negated {
			bi = bi.inner
		}
		if exprEqual(ai, bi) {
			return a.kind != Negated && b.kind == Negated
		}
		return less(ai, bi)
	}
	switch a.kind {
	case Symbol:
		return fmt.Sprintf("%v", a.sym) < fmt.Sprintf("%v", b.sym)
	case Negated:
		return less(a.inner, b.inner)
	case And, Or:
		if len(a.children) != len(b.children) {
			return len(a.children) < len(b.children)
		}
		for i := range a.children {
			if exprEqual(a.children[i], b.children[i]) {
				continue
			}
			return less(a.children[i], b.children[i])
		}
		return false
	default:
		return false
	}
}

func rank(e *Expr) int {
	switch e.kind {
	case Const0:
		return 0
	case Const1:
		return 1
	case Symbol:
		return 2
	case Negated:
		return 2 // ranks with its atom; less() recurses into .inner
	case And:
		return 3
	case Or:
		return 4
	default:
		return 5
	}
}

func exprEqual(a, b *Expr) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Const0, Const1:
		return true
	case Symbol:
		return a.sym == b.sym
	case Negated:
		return exprEqual(a.inner, b.inner)
	case And, Or:
		if len(a.children) != len(b.children) {
			return false
		}
		for i := range a.children {
			if !exprEqual(a.children[i], b.children[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
