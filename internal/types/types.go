// Package types implements the LHD type system: a Context-owned, uniqued
// table of type terms, plus the structural queries passes use to inspect
// them.
//
// Every Type handle returned by a Context constructor for equal structural
// content is the identical Go pointer; equality within one Context is
// therefore pointer equality (§4.C). Across Contexts equality is
// structural and must be computed with Equal.
package types

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Tag identifies which variant of the type-term union a Type is.
type Tag int

const (
	Void Tag = iota
	Label
	Time
	IntTy
	LogicTy
	Struct
	Array
	Ptr
	SignalTy
	Func
	Comp
)

func (t Tag) String() string {
	switch t {
	case Void:
		return "void"
	case Label:
		return "label"
	case Time:
		return "time"
	case IntTy:
		return "int"
	case LogicTy:
		return "logic"
	case Struct:
		return "struct"
	case Array:
		return "array"
	case Ptr:
		return "ptr"
	case SignalTy:
		return "signal"
	case Func:
		return "func"
	case Comp:
		return "comp"
	default:
		return "?"
	}
}

// Type is an immutable, uniqued type-term handle. Never construct one
// directly; always go through a Context.
type Type struct {
	ctx   *Context
	tag   Tag
	width uint32  // IntTy, LogicTy
	elem  *Type   // Array, Ptr, SignalTy
	n     uint32  // Array length
	field []*Type // Struct
	ins   []*Type // Func, Comp
	outs  []*Type // Func, Comp
}

// Context returns the owning Context.
func (t *Type) Context() *Context { return t.ctx }

// Tag reports which variant t is.
func (t *Type) Tag() Tag { return t.tag }

// Context is a process-wide arena owning the uniqued type table and
// constant pool (the constant pool lives in package ir; Context here
// only owns types, to keep the two components independently testable).
// Contexts do not share state and must be used from one goroutine at a
// time during construction (§5); once a Type is published it is
// immutable and safe to share.
type Context struct {
	table map[string]*Type
	void  *Type
	label *Type
	time  *Type
}

// NewContext creates a fresh, empty Context.
func NewContext() *Context {
	c := &Context{table: make(map[string]*Type)}
	c.void = c.intern(&Type{ctx: c, tag: Void})
	c.label = c.intern(&Type{ctx: c, tag: Label})
	c.time = c.intern(&Type{ctx: c, tag: Time})
	return c
}

func (c *Context) intern(t *Type) *Type {
	key := structuralKey(t)
	if existing, ok := c.table[key]; ok {
		return existing
	}
	c.table[key] = t
	return t
}

func structuralKey(t *Type) string {
	var sb strings.Builder
	writeKey(&sb, t)
	return sb.String()
}

func writeKey(sb *strings.Builder, t *Type) {
	fmt.Fprintf(sb, "%d(", t.tag)
	switch t.tag {
	case IntTy, LogicTy:
		fmt.Fprintf(sb, "%d", t.width)
	case Array:
		writeKey(sb, t.elem)
		fmt.Fprintf(sb, ",%d", t.n)
	case Ptr, SignalTy:
		writeKey(sb, t.elem)
	case Struct:
		for _, f := range t.field {
			writeKey(sb, f)
			sb.WriteByte(';')
		}
	case Func, Comp:
		sb.WriteString("in:")
		for _, in := range t.ins {
			writeKey(sb, in)
			sb.WriteByte(';')
		}
		sb.WriteString("out:")
		for _, out := range t.outs {
			writeKey(sb, out)
			sb.WriteByte(';')
		}
	}
	sb.WriteByte(')')
}

// Void returns the Void type of c.
func (c *Context) Void() *Type { return c.void }

// LabelTy returns the Label type of c.
func (c *Context) LabelTy() *Type { return c.label }

// TimeTy returns the Time type of c.
func (c *Context) TimeTy() *Type { return c.time }

// Int returns (uniquing) the Int(w) type, w >= 1.
func (c *Context) Int(w uint32) *Type {
	if w == 0 {
		panic("types: int width must be >= 1")
	}
	return c.intern(&Type{ctx: c, tag: IntTy, width: w})
}

// Logic returns (uniquing) the Logic(w) type, w >= 1.
func (c *Context) Logic(w uint32) *Type {
	if w == 0 {
		panic("types: logic width must be >= 1")
	}
	return c.intern(&Type{ctx: c, tag: LogicTy, width: w})
}

// NewStruct returns (uniquing) a Struct type with the given ordered field
// types. Every field type must belong to c.
func (c *Context) NewStruct(fields ...*Type) *Type {
	c.requireOwned(fields...)
	return c.intern(&Type{ctx: c, tag: Struct, field: append([]*Type(nil), fields...)})
}

// NewArray returns (uniquing) a fixed-length Array(elem, n) type.
func (c *Context) NewArray(elem *Type, n uint32) *Type {
	c.requireOwned(elem)
	return c.intern(&Type{ctx: c, tag: Array, elem: elem, n: n})
}

// NewPtr returns (uniquing) a Ptr(elem) type.
func (c *Context) NewPtr(elem *Type) *Type {
	c.requireOwned(elem)
	return c.intern(&Type{ctx: c, tag: Ptr, elem: elem})
}

// NewSignal returns (uniquing) a Signal(elem) type.
func (c *Context) NewSignal(elem *Type) *Type {
	c.requireOwned(elem)
	return c.intern(&Type{ctx: c, tag: SignalTy, elem: elem})
}

// NewFunc returns (uniquing) a Func(ins...->outs...) signature type.
func (c *Context) NewFunc(ins, outs []*Type) *Type {
	c.requireOwned(ins...)
	c.requireOwned(outs...)
	return c.intern(&Type{ctx: c, tag: Func, ins: append([]*Type(nil), ins...), outs: append([]*Type(nil), outs...)})
}

// NewComp returns (uniquing) a Comp(ins...->outs...) entity/process
// signature type. ins/outs list each port's element type, not a Signal
// wrapper: an input Argument carries that plain type directly (the
// caller samples or holds the signal; the callee only ever sees values),
// while an output Argument is constructed Signal(t)-typed so the unit's
// own Drive instructions can target it, and NewInst checks the external
// wire passed for it against Signal(outs[i]) (§3's Argument direction
// model).
func (c *Context) NewComp(ins, outs []*Type) *Type {
	c.requireOwned(ins...)
	c.requireOwned(outs...)
	return c.intern(&Type{ctx: c, tag: Comp, ins: append([]*Type(nil), ins...), outs: append([]*Type(nil), outs...)})
}

func (c *Context) requireOwned(ts ...*Type) {
	for _, t := range ts {
		if t != nil && t.ctx != c {
			panic("types: type does not belong to this Context")
		}
	}
}

// Equal reports structural equality of a and b. Within the same Context
// this degenerates to pointer equality (§4.C); across Contexts it walks
// structure.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.tag != b.tag {
		return false
	}
	switch a.tag {
	case IntTy, LogicTy:
		return a.width == b.width
	case Array:
		return a.n == b.n && Equal(a.elem, b.elem)
	case Ptr, SignalTy:
		return Equal(a.elem, b.elem)
	case Struct:
		if len(a.field) != len(b.field) {
			return false
		}
		for i := range a.field {
			if !Equal(a.field[i], b.field[i]) {
				return false
			}
		}
		return true
	case Func, Comp:
		return equalList(a.ins, b.ins) && equalList(a.outs, b.outs)
	default:
		return true
	}
}

func equalList(a, b []*Type) bool {
	return slices.EqualFunc(a, b, Equal)
}

// IsInt reports whether t is Int(w) and returns w.
func (t *Type) IsInt() (width uint32, ok bool) {
	if t.tag != IntTy {
		return 0, false
	}
	return t.width, true
}

// IsLogic reports whether t is Logic(w) and returns w.
func (t *Type) IsLogic() (width uint32, ok bool) {
	if t.tag != LogicTy {
		return 0, false
	}
	return t.width, true
}

// Elem returns the element type of Ptr, Signal, or Array types.
func (t *Type) Elem() (*Type, bool) {
	switch t.tag {
	case Ptr, SignalTy, Array:
		return t.elem, true
	default:
		return nil, false
	}
}

// ArrayLen returns the length of an Array type.
func (t *Type) ArrayLen() (uint32, bool) {
	if t.tag != Array {
		return 0, false
	}
	return t.n, true
}

// Fields returns the field types of a Struct type.
func (t *Type) Fields() ([]*Type, bool) {
	if t.tag != Struct {
		return nil, false
	}
	return t.field, true
}

// Signature returns the input/output types of a Func or Comp type.
func (t *Type) Signature() (ins, outs []*Type, ok bool) {
	if t.tag != Func && t.tag != Comp {
		return nil, nil, false
	}
	return t.ins, t.outs, true
}

// String renders a debug form of t, e.g. "i32", "l4", "ptr<i8>".
func (t *Type) String() string {
	switch t.tag {
	case Void:
		return "void"
	case Label:
		return "label"
	case Time:
		return "time"
	case IntTy:
		return fmt.Sprintf("i%d", t.width)
	case LogicTy:
		return fmt.Sprintf("l%d", t.width)
	case Array:
		return fmt.Sprintf("[%s x %d]", t.elem, t.n)
	case Ptr:
		return fmt.Sprintf("ptr<%s>", t.elem)
	case SignalTy:
		return fmt.Sprintf("sig<%s>", t.elem)
	case Struct:
		parts := make([]string, len(t.field))
		for i, f := range t.field {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Func, Comp:
		name := "func"
		if t.tag == Comp {
			name = "comp"
		}
		ins := make([]string, len(t.ins))
		for i, in := range t.ins {
			ins[i] = in.String()
		}
		outs := make([]string, len(t.outs))
		for i, out := range t.outs {
			outs[i] = out.String()
		}
		return fmt.Sprintf("%s(%s)->(%s)", name, strings.Join(ins, ", "), strings.Join(outs, ", "))
	default:
		return "?"
	}
}
