package ir

import (
	"fmt"
	"strings"

	"lhd/internal/apint"
	"lhd/internal/logicvec"
	"lhd/internal/types"
)

// ConstKind identifies which literal kind a Constant carries (§4.E).
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstLogic
	ConstTime
	// constAggregateZero represents the recursively-null value of a
	// Struct or Array type. §4.E defines Struct/Array nulls as
	// "field/element-wise null" without introducing an aggregate literal
	// kind of their own; LHD resolves this by uniquing one zero marker
	// per aggregate type rather than eagerly materializing every field.
	constAggregateZero
	// constAggregate represents a Struct/Array constant with at least one
	// non-null field/element, materialized on demand by the executor
	// (Insert, and multi-output Call results) rather than at construction
	// per §4.E's null table. Constant folding does not fold Insert.
	constAggregate
)

// TimeValue is a (real-time, delta-cycle) pair (§3 Time type, glossary).
type TimeValue struct {
	Picoseconds uint64
	Delta       uint64
}

// Constant is a typed literal value, uniqued per Context by (type, encoded
// bits).
type Constant struct {
	valueBase
	Kind     ConstKind
	IntVal   apint.Int
	LogicVal logicvec.Vector
	TimeVal  TimeValue
	Elements []*Constant // field/element values, constAggregate only
}

// Context is a process-wide arena owning the uniqued type table (via the
// embedded *types.Context) and the constant pool (§3 Context).
type Context struct {
	*types.Context
	constants map[string]*Constant
}

// NewContext creates a fresh, empty Context.
func NewContext() *Context {
	return &Context{Context: types.NewContext(), constants: make(map[string]*Constant)}
}

func (c *Context) intern(key string, build func() *Constant) *Constant {
	if existing, ok := c.constants[key]; ok {
		return existing
	}
	v := build()
	c.constants[key] = v
	return v
}

// ConstInt returns the uniqued Int(w)-typed constant for v (v's own width
// must equal w).
func (c *Context) ConstInt(w uint32, v apint.Int) *Constant {
	if v.Width() != w {
		panic("ir: ConstInt width mismatch")
	}
	key := fmt.Sprintf("int:%d:%s", w, v.String())
	return c.intern(key, func() *Constant {
		return &Constant{valueBase: valueBase{typ: c.Int(w)}, Kind: ConstInt, IntVal: v}
	})
}

// ConstLogic returns the uniqued Logic(w)-typed constant for v.
func (c *Context) ConstLogic(w uint32, v logicvec.Vector) *Constant {
	if v.Width() != w {
		panic("ir: ConstLogic width mismatch")
	}
	key := fmt.Sprintf("logic:%d:%s", w, v.String())
	return c.intern(key, func() *Constant {
		return &Constant{valueBase: valueBase{typ: c.Logic(w)}, Kind: ConstLogic, LogicVal: v}
	})
}

// ConstTime returns the uniqued Time-typed constant for v.
func (c *Context) ConstTime(v TimeValue) *Constant {
	key := fmt.Sprintf("time:%d:%d", v.Picoseconds, v.Delta)
	return c.intern(key, func() *Constant {
		return &Constant{valueBase: valueBase{typ: c.TimeTy()}, Kind: ConstTime, TimeVal: v}
	})
}

// NullOf returns the null constant of t per §4.E's table. Signal and Ptr
// types have no representable null and fail with ErrorUnrepresentable.
func (c *Context) NullOf(t *types.Type) (*Constant, error) {
	switch t.Tag() {
	case types.IntTy:
		w, _ := t.IsInt()
		return c.ConstInt(w, apint.New(w)), nil
	case types.LogicTy:
		w, _ := t.IsLogic()
		return c.ConstLogic(w, logicvec.New(w, logicvec.Zero)), nil
	case types.Time:
		return c.ConstTime(TimeValue{}), nil
	case types.Struct, types.Array:
		key := fmt.Sprintf("zero:%s", t.String())
		return c.intern(key, func() *Constant {
			return &Constant{valueBase: valueBase{typ: t}, Kind: constAggregateZero}
		}), nil
	default:
		return nil, ErrorUnrepresentable
	}
}

// IsAggregateZero reports whether c is the recursive-null marker of an
// aggregate type.
func (c *Constant) IsAggregateZero() bool { return c.Kind == constAggregateZero }

// IsAggregate reports whether c is a materialized Struct/Array constant
// carrying per-field/element values in Elements, as opposed to the
// all-zero marker IsAggregateZero reports.
func (c *Constant) IsAggregate() bool { return c.Kind == constAggregate }

// ConstAggregate returns the uniqued Struct/Array-typed constant of type t
// whose fields/elements are elements, in declaration order. Unlike
// ConstInt/ConstLogic/ConstTime this has no single-literal textual form at
// the assembly boundary; the executor uses it to bind the result of Insert
// (the dual of Extract on an aggregate) and of a multi-output Call.
// FoldConstants does not fold Insert.
func (c *Context) ConstAggregate(t *types.Type, elements []*Constant) *Constant {
	key := fmt.Sprintf("agg:%s:%s", t.String(), aggregateKey(elements))
	return c.intern(key, func() *Constant {
		return &Constant{
			valueBase: valueBase{typ: t},
			Kind:      constAggregate,
			Elements:  append([]*Constant(nil), elements...),
		}
	})
}

func aggregateKey(elements []*Constant) string {
	parts := make([]string, len(elements))
	for i, e := range elements {
		parts[i] = e.String()
	}
	return strings.Join(parts, ",")
}

func (c *Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return c.IntVal.String()
	case ConstLogic:
		return c.LogicVal.String()
	case ConstTime:
		return fmt.Sprintf("%dps+%dd", c.TimeVal.Picoseconds, c.TimeVal.Delta)
	case constAggregate:
		return "{" + aggregateKey(c.Elements) + "}"
	default:
		return "zeroinitializer"
	}
}
