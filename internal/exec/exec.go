// Package exec implements the discrete-event instruction executor of
// §4.J: given a Process and a value environment, it steps one instruction
// at a time, producing Drive events for an external scheduler to apply to
// its signal state and requesting suspension at Wait/Ret.
package exec

import (
	"lhd/internal/apint"
	"lhd/internal/ir"
	"lhd/internal/logicvec"
)

// Error is the exec package's slice of the §7 error taxonomy.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrorNotAProcess is returned by New when handed a Unit that is not
	// a Process.
	ErrorNotAProcess Error = "exec: executor target is not a process"

	// ErrorUnbound is raised when an instruction's SSA operand has
	// neither a Constant value nor a binding in the executor's
	// environment; a well-formed, fully-driven program never hits this
	// in Running state.
	ErrorUnbound Error = "exec: operand is not bound in the environment"

	// ErrorDivZero mirrors passes.ErrorDivZero at execution time: a
	// Div/Mod/Rem instruction's divisor operand evaluated to zero.
	ErrorDivZero Error = "exec: division by zero"

	// ErrorNoMatch is raised by a Switch with no matching case and no
	// default (§4.J, §7).
	ErrorNoMatch Error = "exec: switch has no matching case and no default"

	// ErrorUnsupportedOpcode is raised by an opcode the executor's
	// process-level interpreter does not know how to evaluate (Sig and
	// Inst, which are entity-only per §4.G, cannot reach a process
	// executor in a well-formed program).
	ErrorUnsupportedOpcode Error = "exec: opcode is not valid inside a process or function body"
)

// State is the executor's discrete-event state machine (§4.J).
type State int

const (
	Ready State = iota
	Running
	Suspended
	Stopped
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Stopped:
		return "stopped"
	default:
		return "?"
	}
}

// Event is one scheduled signal change a Drive instruction produces. The
// executor does not apply it to any signal state itself (§4.J); it only
// hands the record to the surrounding EventSink.
type Event struct {
	Time   ir.TimeValue
	Signal ir.Value
	Value  *ir.Constant
}

// EventSink receives Drive events as the executor produces them. The
// external scheduler of §6 ("Executor <-> scheduler") implements this;
// internal/simserver is one concrete implementation.
type EventSink interface {
	Emit(Event)
}

// SuspendReason classifies why Run returned with state Suspended.
type SuspendReason int

const (
	// SuspendNone is the zero value; only meaningful alongside Suspended.
	SuspendNone SuspendReason = iota
	// SuspendTime requests a wake-up at WakeAt (relative or absolute per
	// WakeAbsolute).
	SuspendTime
	// SuspendSignal requests a wake-up when WakeSignal's value changes.
	SuspendSignal
	// SuspendAny requests a wake-up when any of the process's input
	// signals changes.
	SuspendAny
)

// Executor interprets one Process against an environment of SSA/signal
// bindings, per §4.J.
type Executor struct {
	ctx  *ir.Context
	proc *ir.Unit
	sink EventSink

	state State
	cur   *ir.Instruction
	env   map[ir.Value]*ir.Constant

	Reason      SuspendReason
	WakeAt      ir.TimeValue
	WakeAbsolute bool
	WakeSignal  ir.Value

	err error
}

// New creates an Executor for proc, ready at its entry block's first
// instruction. sink receives every Drive event the process produces.
func New(ctx *ir.Context, proc *ir.Unit, sink EventSink) (*Executor, error) {
	if proc.Kind != ir.ProcessKind {
		return nil, ErrorNotAProcess
	}
	entry := proc.Entry()
	if entry == nil {
		return nil, ErrorNotAProcess
	}
	return &Executor{
		ctx:   ctx,
		proc:  proc,
		sink:  sink,
		state: Ready,
		cur:   entry.First(),
		env:   make(map[ir.Value]*ir.Constant),
	}, nil
}

// State reports the executor's current state.
func (e *Executor) State() State { return e.state }

// Err returns the error that moved the executor to Stopped, if any.
func (e *Executor) Err() error { return e.err }

// Bind sets v's value in the environment: an input Argument, a probed
// Signal's current value, or any other externally-supplied binding the
// scheduler wants the next Probe/arithmetic step to see.
func (e *Executor) Bind(v ir.Value, c *ir.Constant) {
	e.env[v] = c
}

// Lookup returns v's current environment binding, if any.
func (e *Executor) Lookup(v ir.Value) (*ir.Constant, bool) {
	c, ok := e.env[v]
	return c, ok
}

// Resume transitions a Suspended executor back to Running so Run can step
// past the Wait that suspended it. The scheduler calls this once its
// wake-up condition (time elapsed, signal changed) is satisfied.
func (e *Executor) Resume() {
	if e.state == Suspended {
		e.state = Running
		e.Reason = SuspendNone
	}
}

// Start transitions a Ready executor to Running so the next Run call
// steps its body.
func (e *Executor) Start() {
	if e.state == Ready {
		e.state = Running
	}
}

// Run steps the executor until it leaves Running (§4.J: "loop until state
// is not Running").
func (e *Executor) Run() error {
	for e.state == Running {
		if err := e.step(); err != nil {
			e.state = Stopped
			e.err = err
			return err
		}
	}
	return nil
}

func (e *Executor) resolve(v ir.Value) (*ir.Constant, error) {
	if c, ok := v.(*ir.Constant); ok {
		return c, nil
	}
	c, ok := e.env[v]
	if !ok {
		return nil, ErrorUnbound
	}
	return c, nil
}

func (e *Executor) bindResult(i *ir.Instruction, c *ir.Constant) {
	e.env[i] = c
}

func (e *Executor) step() error {
	i := e.cur
	if i == nil {
		e.state = Stopped
		return nil
	}
	switch i.Op {
	case ir.OpAlloc:
		var initial *ir.Constant
		if len(i.Operands()) > 0 {
			c, err := e.resolve(i.Operand(0))
			if err != nil {
				return err
			}
			initial = c
		} else {
			elem, _ := i.Type().Elem()
			c, err := e.ctx.NullOf(elem)
			if err != nil {
				return err
			}
			initial = c
		}
		e.bindResult(i, initial)
		e.cur = i.Next()
		return nil

	case ir.OpLoad:
		val, err := e.resolve(i.Operand(0))
		if err != nil {
			return err
		}
		e.bindResult(i, val)
		e.cur = i.Next()
		return nil

	case ir.OpStore:
		val, err := e.resolve(i.Operand(1))
		if err != nil {
			return err
		}
		e.env[i.Operand(0)] = val
		e.cur = i.Next()
		return nil

	case ir.OpProbe:
		val, err := e.resolve(i.Operand(0))
		if err != nil {
			return err
		}
		e.bindResult(i, val)
		e.cur = i.Next()
		return nil

	case ir.OpDrive:
		val, err := e.resolve(i.Operand(1))
		if err != nil {
			return err
		}
		var when ir.TimeValue
		if len(i.Operands()) > 2 {
			whenC, err := e.resolve(i.Operand(2))
			if err != nil {
				return err
			}
			when = whenC.TimeVal
		}
		if e.sink != nil {
			e.sink.Emit(Event{Time: when, Signal: i.Operand(0), Value: val})
		}
		e.cur = i.Next()
		return nil

	case ir.OpAdd, ir.OpSub, ir.OpMulUnsigned, ir.OpMulSigned,
		ir.OpDivUnsigned, ir.OpDivSigned, ir.OpModUnsigned, ir.OpModSigned, ir.OpRemSigned,
		ir.OpLsl, ir.OpLsr, ir.OpAsr:
		return e.stepIntBinary(i)

	case ir.OpAnd, ir.OpOr, ir.OpXor:
		return e.stepBitwiseBinary(i)

	case ir.OpNot:
		return e.stepUnary(i)

	case ir.OpCmp:
		return e.stepCmp(i)

	case ir.OpTrunc, ir.OpSExt, ir.OpZExt:
		return e.stepConvert(i)

	case ir.OpLmap:
		return e.stepLmap(i)

	case ir.OpExtract:
		return e.stepExtract(i)

	case ir.OpInsert:
		return e.stepInsert(i)

	case ir.OpCat:
		return e.stepCat(i)

	case ir.OpSel:
		return e.stepSel(i)

	case ir.OpBr:
		return e.stepBr(i)

	case ir.OpSwitch:
		return e.stepSwitch(i)

	case ir.OpRet:
		e.state = Ready
		entry := e.proc.Entry()
		e.cur = entry.First()
		return nil

	case ir.OpWait:
		return e.stepWait(i)

	case ir.OpCall:
		return e.stepCall(i)

	default:
		return ErrorUnsupportedOpcode
	}
}

func (e *Executor) stepIntBinary(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	b, err := e.resolve(i.Operand(1))
	if err != nil {
		return err
	}
	if a.Kind != ir.ConstInt || b.Kind != ir.ConstInt {
		return ErrorUnsupportedOpcode
	}
	w, _ := i.Type().IsInt()
	var result apint.Int
	switch i.Op {
	case ir.OpAdd:
		result, err = apint.Add(a.IntVal, b.IntVal)
	case ir.OpSub:
		result, err = apint.Sub(a.IntVal, b.IntVal)
	case ir.OpMulUnsigned:
		result, err = apint.MulUnsigned(a.IntVal, b.IntVal)
	case ir.OpMulSigned:
		result, err = apint.MulSigned(a.IntVal, b.IntVal)
	case ir.OpDivUnsigned:
		result, err = apint.DivUnsigned(a.IntVal, b.IntVal)
	case ir.OpDivSigned:
		result, err = apint.DivSigned(a.IntVal, b.IntVal)
	case ir.OpModUnsigned:
		result, err = apint.ModUnsigned(a.IntVal, b.IntVal)
	case ir.OpModSigned:
		result, err = apint.ModSigned(a.IntVal, b.IntVal)
	case ir.OpRemSigned:
		result, err = apint.RemSigned(a.IntVal, b.IntVal)
	case ir.OpLsl:
		result = apint.Lsl(a.IntVal, b.IntVal)
	case ir.OpLsr:
		result = apint.Lsr(a.IntVal, b.IntVal)
	case ir.OpAsr:
		result = apint.Asr(a.IntVal, b.IntVal)
	}
	if err == apint.ErrorDivZero {
		return ErrorDivZero
	}
	if err != nil {
		return err
	}
	e.bindResult(i, e.ctx.ConstInt(w, result))
	e.cur = i.Next()
	return nil
}

func (e *Executor) stepBitwiseBinary(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	b, err := e.resolve(i.Operand(1))
	if err != nil {
		return err
	}
	if a.Kind == ir.ConstInt && b.Kind == ir.ConstInt {
		w, _ := i.Type().IsInt()
		var result apint.Int
		switch i.Op {
		case ir.OpAnd:
			result, err = apint.And(a.IntVal, b.IntVal)
		case ir.OpOr:
			result, err = apint.Or(a.IntVal, b.IntVal)
		case ir.OpXor:
			result, err = apint.Xor(a.IntVal, b.IntVal)
		}
		if err != nil {
			return err
		}
		e.bindResult(i, e.ctx.ConstInt(w, result))
		e.cur = i.Next()
		return nil
	}
	if a.Kind == ir.ConstLogic && b.Kind == ir.ConstLogic {
		w, _ := i.Type().IsLogic()
		var result logicvec.Vector
		switch i.Op {
		case ir.OpAnd:
			result, err = logicvec.And(a.LogicVal, b.LogicVal)
		case ir.OpOr:
			result, err = logicvec.Or(a.LogicVal, b.LogicVal)
		case ir.OpXor:
			result, err = logicvec.Xor(a.LogicVal, b.LogicVal)
		}
		if err != nil {
			return err
		}
		e.bindResult(i, e.ctx.ConstLogic(w, result))
		e.cur = i.Next()
		return nil
	}
	return ErrorUnsupportedOpcode
}

func (e *Executor) stepUnary(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	switch a.Kind {
	case ir.ConstInt:
		w, _ := i.Type().IsInt()
		e.bindResult(i, e.ctx.ConstInt(w, apint.Not(a.IntVal)))
	case ir.ConstLogic:
		w, _ := i.Type().IsLogic()
		e.bindResult(i, e.ctx.ConstLogic(w, logicvec.Not(a.LogicVal)))
	default:
		return ErrorUnsupportedOpcode
	}
	e.cur = i.Next()
	return nil
}

func (e *Executor) stepCmp(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	b, err := e.resolve(i.Operand(1))
	if err != nil {
		return err
	}
	if a.Kind != ir.ConstInt || b.Kind != ir.ConstInt {
		return ErrorUnsupportedOpcode
	}
	var result bool
	switch i.Pred {
	case ir.CmpEq:
		result, _ = apint.Equal(a.IntVal, b.IntVal)
	case ir.CmpNe:
		eq, _ := apint.Equal(a.IntVal, b.IntVal)
		result = !eq
	case ir.CmpSgt:
		c, _ := apint.CompareSigned(a.IntVal, b.IntVal)
		result = c > 0
	case ir.CmpSlt:
		c, _ := apint.CompareSigned(a.IntVal, b.IntVal)
		result = c < 0
	case ir.CmpSge:
		c, _ := apint.CompareSigned(a.IntVal, b.IntVal)
		result = c >= 0
	case ir.CmpSle:
		c, _ := apint.CompareSigned(a.IntVal, b.IntVal)
		result = c <= 0
	case ir.CmpUgt:
		c, _ := apint.CompareUnsigned(a.IntVal, b.IntVal)
		result = c > 0
	case ir.CmpUlt:
		c, _ := apint.CompareUnsigned(a.IntVal, b.IntVal)
		result = c < 0
	case ir.CmpUge:
		c, _ := apint.CompareUnsigned(a.IntVal, b.IntVal)
		result = c >= 0
	case ir.CmpUle:
		c, _ := apint.CompareUnsigned(a.IntVal, b.IntVal)
		result = c <= 0
	}
	v := uint64(0)
	if result {
		v = 1
	}
	e.bindResult(i, e.ctx.ConstInt(1, apint.FromUint64(1, v)))
	e.cur = i.Next()
	return nil
}

func (e *Executor) stepConvert(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	if a.Kind != ir.ConstInt {
		return ErrorUnsupportedOpcode
	}
	w, _ := i.Type().IsInt()
	var result apint.Int
	switch i.Op {
	case ir.OpTrunc:
		result, err = apint.Trunc(a.IntVal, w)
	case ir.OpSExt:
		result, err = apint.SExt(a.IntVal, w)
	case ir.OpZExt:
		result, err = apint.ZExt(a.IntVal, w)
	}
	if err != nil {
		return err
	}
	e.bindResult(i, e.ctx.ConstInt(w, result))
	e.cur = i.Next()
	return nil
}

func (e *Executor) stepLmap(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	switch {
	case a.Kind == ir.ConstInt:
		w, _ := i.Type().IsLogic()
		v, err := a.IntVal.ToUint64()
		if err != nil {
			return err
		}
		vec := logicvec.New(w, logicvec.Zero)
		for b := uint32(0); b < w; b++ {
			bitVal := logicvec.Zero
			if (v>>b)&1 == 1 {
				bitVal = logicvec.One
			}
			vec.SetBit(b, bitVal)
		}
		e.bindResult(i, e.ctx.ConstLogic(w, vec))
	case a.Kind == ir.ConstLogic:
		w, _ := i.Type().IsInt()
		var v uint64
		for b := uint32(0); b < a.LogicVal.Width(); b++ {
			bit := a.LogicVal.Bit(b)
			one := bit == logicvec.One || bit == logicvec.H
			if one {
				v |= 1 << b
			}
		}
		e.bindResult(i, e.ctx.ConstInt(w, apint.FromUint64(w, v)))
	default:
		return ErrorUnsupportedOpcode
	}
	e.cur = i.Next()
	return nil
}

func (e *Executor) stepExtract(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	switch a.Kind {
	case ir.ConstInt:
		w, _ := i.Type().IsInt()
		shifted := apint.Lsr(a.IntVal, apint.FromUint64(32, uint64(i.Index)))
		truncated, err := apint.Trunc(shifted, w)
		if err != nil {
			return err
		}
		e.bindResult(i, e.ctx.ConstInt(w, truncated))
	case ir.ConstLogic:
		w, _ := i.Type().IsLogic()
		vec := logicvec.New(w, logicvec.Zero)
		for b := uint32(0); b < i.Length; b++ {
			vec.SetBit(b, a.LogicVal.Bit(i.Index+b))
		}
		e.bindResult(i, e.ctx.ConstLogic(w, vec))
	default:
		if a.IsAggregate() {
			if int(i.Index) >= len(a.Elements) {
				return ErrorUnsupportedOpcode
			}
			e.bindResult(i, a.Elements[i.Index])
			break
		}
		if a.IsAggregateZero() {
			null, err := e.ctx.NullOf(i.Type())
			if err != nil {
				return err
			}
			e.bindResult(i, null)
			break
		}
		return ErrorUnsupportedOpcode
	}
	e.cur = i.Next()
	return nil
}

// stepInsert evaluates Insert, the dual of a Struct/Array Extract: it
// materializes container's current per-field/element values (all-null if
// container is still the aggregate-zero marker), replaces the one at
// i.Index with val, and binds the result to the uniqued aggregate constant
// this produces, so a later Extract at the same index round-trips it back.
func (e *Executor) stepInsert(i *ir.Instruction) error {
	container, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	val, err := e.resolve(i.Operand(1))
	if err != nil {
		return err
	}
	elements, err := aggregateElements(e.ctx, container)
	if err != nil {
		return err
	}
	if int(i.Index) >= len(elements) {
		return ErrorUnsupportedOpcode
	}
	elements[i.Index] = val
	e.bindResult(i, e.ctx.ConstAggregate(i.Type(), elements))
	e.cur = i.Next()
	return nil
}

// aggregateElements returns the materialized per-field (Struct) or per-
// element (Array) values of a Struct/Array constant c: c.Elements directly
// if c is already a constAggregate, or one null-of-field-type per slot if
// c is still the recursive aggregate-zero marker.
func aggregateElements(ctx *ir.Context, c *ir.Constant) ([]*ir.Constant, error) {
	if c.IsAggregate() {
		return append([]*ir.Constant(nil), c.Elements...), nil
	}
	if !c.IsAggregateZero() {
		return nil, ErrorUnsupportedOpcode
	}
	t := c.Type()
	if fields, ok := t.Fields(); ok {
		out := make([]*ir.Constant, len(fields))
		for idx, ft := range fields {
			n, err := ctx.NullOf(ft)
			if err != nil {
				return nil, err
			}
			out[idx] = n
		}
		return out, nil
	}
	if elem, ok := t.Elem(); ok {
		n, ok := t.ArrayLen()
		if !ok {
			return nil, ErrorUnsupportedOpcode
		}
		elemNull, err := ctx.NullOf(elem)
		if err != nil {
			return nil, err
		}
		out := make([]*ir.Constant, n)
		for idx := range out {
			out[idx] = elemNull
		}
		return out, nil
	}
	return nil, ErrorUnsupportedOpcode
}

func (e *Executor) stepCat(i *ir.Instruction) error {
	total, _ := i.Type().IsLogic()
	result := logicvec.New(total, logicvec.Zero)
	offset := uint32(0)
	ops := i.Operands()
	for idx := len(ops) - 1; idx >= 0; idx-- {
		c, err := e.resolve(ops[idx])
		if err != nil {
			return err
		}
		if c.Kind != ir.ConstLogic {
			return ErrorUnsupportedOpcode
		}
		for b := uint32(0); b < c.LogicVal.Width(); b++ {
			result.SetBit(offset+b, c.LogicVal.Bit(b))
		}
		offset += c.LogicVal.Width()
	}
	e.bindResult(i, e.ctx.ConstLogic(total, result))
	e.cur = i.Next()
	return nil
}

func (e *Executor) stepSel(i *ir.Instruction) error {
	a, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	if a.Kind != ir.ConstLogic {
		return ErrorUnsupportedOpcode
	}
	total, _ := i.Type().IsLogic()
	result := logicvec.New(total, logicvec.Zero)
	offset := uint32(0)
	for r := len(i.Ranges) - 1; r >= 0; r-- {
		lo, hi := i.Ranges[r][0], i.Ranges[r][1]
		for b := lo; b <= hi; b++ {
			result.SetBit(offset, a.LogicVal.Bit(b))
			offset++
		}
	}
	e.bindResult(i, e.ctx.ConstLogic(total, result))
	e.cur = i.Next()
	return nil
}

func (e *Executor) stepBr(i *ir.Instruction) error {
	if i.IfTrue != nil || i.IfFalse != nil {
		cond, err := e.resolve(i.Operand(0))
		if err != nil {
			return err
		}
		one, _ := apint.Equal(cond.IntVal, apint.FromUint64(1, 1))
		if one {
			e.cur = i.IfTrue.First()
		} else {
			e.cur = i.IfFalse.First()
		}
		return nil
	}
	e.cur = i.Target.First()
	return nil
}

func (e *Executor) stepSwitch(i *ir.Instruction) error {
	key, err := e.resolve(i.Operand(0))
	if err != nil {
		return err
	}
	for _, c := range i.Cases {
		caseConst, ok := c.Value.(*ir.Constant)
		if !ok {
			continue
		}
		if matches(key, caseConst) {
			e.cur = c.Block.First()
			return nil
		}
	}
	if i.Default != nil {
		e.cur = i.Default.First()
		return nil
	}
	return ErrorNoMatch
}

func matches(a, b *ir.Constant) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.ConstInt:
		eq, _ := apint.Equal(a.IntVal, b.IntVal)
		return eq
	case ir.ConstLogic:
		eq, _ := logicvec.Equal(a.LogicVal, b.LogicVal)
		return eq
	default:
		return false
	}
}

func (e *Executor) stepWait(i *ir.Instruction) error {
	switch i.Kind {
	case ir.WaitOnTime:
		c, err := e.resolve(i.Operand(0))
		if err != nil {
			return err
		}
		e.Reason = SuspendTime
		e.WakeAt = c.TimeVal
		e.WakeAbsolute = i.WaitAbs
		e.cur = i.Target.First()
	case ir.WaitOnCond:
		e.Reason = SuspendSignal
		e.WakeSignal = i.Operand(0)
		e.cur = i.Target.First()
	case ir.WaitUnconditional:
		e.Reason = SuspendAny
		e.cur = i.Target.First()
	}
	e.state = Suspended
	return nil
}

// stepCall evaluates a pure Function callee in-line: Function bodies may
// not contain Sig/Drive/Wait/Probe (§4.G context rules restrict those to
// Entity/Process), so a Function reduces to straight-line
// arithmetic over its own blocks, which this walks with a throwaway
// Executor sharing ctx but no signal/event surface.
func (e *Executor) stepCall(i *ir.Instruction) error {
	callee := i.Callee
	args := i.Operands()
	sub := &Executor{ctx: e.ctx, proc: callee, state: Running, env: make(map[ir.Value]*ir.Constant)}
	for idx, p := range callee.Params {
		v, err := e.resolve(args[idx])
		if err != nil {
			return err
		}
		sub.env[p] = v
	}
	sub.cur = callee.Entry().First()
	// Ret must be intercepted before it reaches sub.step(): step()'s OpRet
	// case is written for a cyclic process body (rewind to entry, go
	// Ready) and would discard the very operands a Function call needs to
	// report back, so this loop peeks at the opcode and handles Ret itself
	// instead of delegating every instruction uniformly.
	for sub.cur != nil {
		if sub.cur.Op == ir.OpRet {
			retOps := sub.cur.Operands()
			results := make([]*ir.Constant, len(retOps))
			for idx, rv := range retOps {
				c, err := sub.resolve(rv)
				if err != nil {
					return err
				}
				results[idx] = c
			}
			switch len(results) {
			case 0:
				// Void function, nothing to bind.
			case 1:
				e.bindResult(i, results[0])
			default:
				// Multiple outputs are bound as one aggregate Constant of
				// the Struct type NewCall gives the call, so Extract can
				// read the individual results back out.
				e.bindResult(i, e.ctx.ConstAggregate(i.Type(), results))
			}
			e.cur = i.Next()
			return nil
		}
		if err := sub.step(); err != nil {
			return err
		}
	}
	return ErrorUnsupportedOpcode
}
