package ir

import "lhd/internal/types"

// Builders construct Instructions and validate the operand contracts of
// §4.G at construction time, returning ErrorTypeMismatch/ErrorWidthMismatch
// on violation rather than deferring to a separate verifier pass.
//
// Literal values (ConstInt/ConstLogic/ConstTime in the opcode table) are
// not reified as Instruction nodes: a uniqued *Constant from Context is
// itself a Value and can be used as any operand directly, matching §3's
// Value table (which lists Constant separately from Instruction, owned by
// Context rather than by a Block).

func sameType(a, b Value) bool { return types.Equal(a.Type(), b.Type()) }

// NewAlloc creates process-local storage of type t, with an optional
// initial value (must be nil or of type t).
func NewAlloc(ctx *Context, t *types.Type, initial Value) (*Instruction, error) {
	if initial != nil && !types.Equal(initial.Type(), t) {
		return nil, ErrorTypeMismatch
	}
	ops := []Value{}
	if initial != nil {
		ops = append(ops, initial)
	}
	return newInstruction(OpAlloc, ctx.NewPtr(t), ops), nil
}

// NewSig creates an entity-level signal of type t, with an optional
// initial value.
func NewSig(ctx *Context, t *types.Type, initial Value) (*Instruction, error) {
	if initial != nil && !types.Equal(initial.Type(), t) {
		return nil, ErrorTypeMismatch
	}
	ops := []Value{}
	if initial != nil {
		ops = append(ops, initial)
	}
	return newInstruction(OpSig, ctx.NewSignal(t), ops), nil
}

// NewLoad reads the value currently stored at ptr (a Ptr(t) value).
func NewLoad(ptr Value) (*Instruction, error) {
	elem, ok := ptr.Type().Elem()
	if !ok || ptr.Type().Tag() != types.Ptr {
		return nil, ErrorTypeMismatch
	}
	return newInstruction(OpLoad, elem, []Value{ptr}), nil
}

// NewStore writes val to ptr (a Ptr(t) value, val of type t).
func NewStore(ctx *Context, ptr, val Value) (*Instruction, error) {
	elem, ok := ptr.Type().Elem()
	if !ok || ptr.Type().Tag() != types.Ptr || !types.Equal(elem, val.Type()) {
		return nil, ErrorTypeMismatch
	}
	return newInstruction(OpStore, ctx.Void(), []Value{ptr, val}), nil
}

// NewProbe reads the current value of a Signal(t) value.
func NewProbe(sig Value) (*Instruction, error) {
	elem, ok := sig.Type().Elem()
	if !ok || sig.Type().Tag() != types.SignalTy {
		return nil, ErrorTypeMismatch
	}
	return newInstruction(OpProbe, elem, []Value{sig}), nil
}

// NewDrive schedules val onto sig (a Signal(t) value), optionally at a
// future time (a Time-typed value; nil means zero-delay).
func NewDrive(ctx *Context, sig, val Value, when Value) (*Instruction, error) {
	elem, ok := sig.Type().Elem()
	if !ok || sig.Type().Tag() != types.SignalTy || !types.Equal(elem, val.Type()) {
		return nil, ErrorTypeMismatch
	}
	ops := []Value{sig, val}
	if when != nil {
		if when.Type().Tag() != types.Time {
			return nil, ErrorTypeMismatch
		}
		ops = append(ops, when)
	}
	return newInstruction(OpDrive, ctx.Void(), ops), nil
}

func binaryArith(op Opcode, a, b Value) (*Instruction, error) {
	if !sameType(a, b) {
		return nil, ErrorTypeMismatch
	}
	switch a.Type().Tag() {
	case types.IntTy, types.LogicTy:
	default:
		return nil, ErrorTypeMismatch
	}
	return newInstruction(op, a.Type(), []Value{a, b}), nil
}

// NewAdd, NewSub, NewMulUnsigned, NewMulSigned, NewAnd, NewOr, NewXor build
// the like-typed binary Int/Logic arithmetic and logic opcodes.
func NewAdd(a, b Value) (*Instruction, error) { return binaryArith(OpAdd, a, b) }
func NewSub(a, b Value) (*Instruction, error) { return binaryArith(OpSub, a, b) }
func NewMulUnsigned(a, b Value) (*Instruction, error) {
	return binaryArith(OpMulUnsigned, a, b)
}
func NewMulSigned(a, b Value) (*Instruction, error) { return binaryArith(OpMulSigned, a, b) }
func NewAnd(a, b Value) (*Instruction, error)       { return binaryArith(OpAnd, a, b) }
func NewOr(a, b Value) (*Instruction, error)        { return binaryArith(OpOr, a, b) }
func NewXor(a, b Value) (*Instruction, error)        { return binaryArith(OpXor, a, b) }

// NewNot builds the unary Int/Logic complement.
func NewNot(a Value) (*Instruction, error) {
	switch a.Type().Tag() {
	case types.IntTy, types.LogicTy:
	default:
		return nil, ErrorTypeMismatch
	}
	return newInstruction(OpNot, a.Type(), []Value{a}), nil
}

func intOnlyBinary(op Opcode, a, b Value) (*Instruction, error) {
	if !sameType(a, b) {
		return nil, ErrorTypeMismatch
	}
	if _, ok := a.Type().IsInt(); !ok {
		return nil, ErrorTypeMismatch
	}
	return newInstruction(op, a.Type(), []Value{a, b}), nil
}

// NewDivUnsigned, NewDivSigned, NewModUnsigned, NewModSigned, NewRemSigned
// build the integer division family. Division/modulo by a constant zero
// is not rejected at construction; it is reported as ErrorDivZero at
// constant-fold time per §4.I.1.
func NewDivUnsigned(a, b Value) (*Instruction, error) { return intOnlyBinary(OpDivUnsigned, a, b) }
func NewDivSigned(a, b Value) (*Instruction, error)   { return intOnlyBinary(OpDivSigned, a, b) }
func NewModUnsigned(a, b Value) (*Instruction, error) { return intOnlyBinary(OpModUnsigned, a, b) }
func NewModSigned(a, b Value) (*Instruction, error)   { return intOnlyBinary(OpModSigned, a, b) }
func NewRemSigned(a, b Value) (*Instruction, error)   { return intOnlyBinary(OpRemSigned, a, b) }

func shiftOp(op Opcode, a, b Value) (*Instruction, error) {
	switch a.Type().Tag() {
	case types.IntTy, types.LogicTy:
	default:
		return nil, ErrorTypeMismatch
	}
	if _, ok := b.Type().IsInt(); !ok {
		return nil, ErrorTypeMismatch
	}
	return newInstruction(op, a.Type(), []Value{a, b}), nil
}

// NewLsl, NewLsr, NewAsr build the shift family; b is always an Int.
func NewLsl(a, b Value) (*Instruction, error) { return shiftOp(OpLsl, a, b) }
func NewLsr(a, b Value) (*Instruction, error) { return shiftOp(OpLsr, a, b) }
func NewAsr(a, b Value) (*Instruction, error) { return shiftOp(OpAsr, a, b) }

// NewCmp builds a comparison, always producing an Int(1) result.
func NewCmp(ctx *Context, pred CmpPred, a, b Value) (*Instruction, error) {
	if !sameType(a, b) {
		return nil, ErrorTypeMismatch
	}
	i := newInstruction(OpCmp, ctx.Int(1), []Value{a, b})
	i.Pred = pred
	return i, nil
}

// NewExtract slices len scalar bits/elements out of v starting at idx.
// The result type for Logic/Int operands is the same kind narrowed to
// len bits; for Array/Struct operands it is the element/field type.
func NewExtract(ctx *Context, v Value, idx, length uint32) (*Instruction, error) {
	var resultTy *types.Type
	switch v.Type().Tag() {
	case types.IntTy:
		resultTy = ctx.Int(length)
	case types.LogicTy:
		resultTy = ctx.Logic(length)
	case types.Array:
		elem, _ := v.Type().Elem()
		resultTy = elem
	case types.Struct:
		fields, _ := v.Type().Fields()
		if int(idx) >= len(fields) {
			return nil, ErrorTypeMismatch
		}
		resultTy = fields[idx]
	default:
		return nil, ErrorTypeMismatch
	}
	i := newInstruction(OpExtract, resultTy, []Value{v})
	i.Index, i.Length = idx, length
	return i, nil
}

// NewInsert returns a new aggregate equal to container with field/element
// idx replaced by val.
func NewInsert(container, val Value, idx uint32) (*Instruction, error) {
	switch container.Type().Tag() {
	case types.Array:
		elem, _ := container.Type().Elem()
		if !types.Equal(elem, val.Type()) {
			return nil, ErrorTypeMismatch
		}
	case types.Struct:
		fields, _ := container.Type().Fields()
		if int(idx) >= len(fields) || !types.Equal(fields[idx], val.Type()) {
			return nil, ErrorTypeMismatch
		}
	default:
		return nil, ErrorTypeMismatch
	}
	i := newInstruction(OpInsert, container.Type(), []Value{container, val})
	i.Index = idx
	return i, nil
}

// NewCat concatenates a list of Logic-typed operands into one wider Logic
// value, most-significant operand first.
func NewCat(ctx *Context, vs ...Value) (*Instruction, error) {
	var total uint32
	for _, v := range vs {
		w, ok := v.Type().IsLogic()
		if !ok {
			return nil, ErrorTypeMismatch
		}
		total += w
	}
	return newInstruction(OpCat, ctx.Logic(total), vs), nil
}

// NewSel selects the bits covered by ranges (each [lo,hi], inclusive) out
// of a Logic-typed operand, most-significant range first.
func NewSel(ctx *Context, v Value, ranges [][2]uint32) (*Instruction, error) {
	if _, ok := v.Type().IsLogic(); !ok {
		return nil, ErrorTypeMismatch
	}
	var total uint32
	for _, r := range ranges {
		if r[1] < r[0] {
			return nil, ErrorTypeMismatch
		}
		total += r[1] - r[0] + 1
	}
	i := newInstruction(OpSel, ctx.Logic(total), []Value{v})
	i.Ranges = append([][2]uint32(nil), ranges...)
	return i, nil
}

func widthConvert(op Opcode, v Value, target *types.Type) (*Instruction, error) {
	vw, vIsInt := v.Type().IsInt()
	vwl, vIsLogic := v.Type().IsLogic()
	tw, tIsInt := target.IsInt()
	twl, tIsLogic := target.IsLogic()
	switch {
	case vIsInt && tIsInt:
		if op == OpTrunc && vw <= tw {
			return nil, ErrorWidthMismatch
		}
		if op != OpTrunc && vw >= tw {
			return nil, ErrorWidthMismatch
		}
	case vIsLogic && tIsLogic:
		if op == OpTrunc && vwl <= twl {
			return nil, ErrorWidthMismatch
		}
		if op != OpTrunc && vwl >= twl {
			return nil, ErrorWidthMismatch
		}
	default:
		return nil, ErrorTypeMismatch
	}
	return newInstruction(op, target, []Value{v}), nil
}

// NewTrunc narrows v (Int or Logic) to a smaller width of the same kind.
func NewTrunc(v Value, target *types.Type) (*Instruction, error) {
	return widthConvert(OpTrunc, v, target)
}

// NewSExt sign-extends an Int value to a larger width.
func NewSExt(v Value, target *types.Type) (*Instruction, error) {
	if _, ok := v.Type().IsInt(); !ok {
		return nil, ErrorTypeMismatch
	}
	return widthConvert(OpSExt, v, target)
}

// NewZExt zero-extends an Int or Logic value to a larger width.
func NewZExt(v Value, target *types.Type) (*Instruction, error) {
	return widthConvert(OpZExt, v, target)
}

// NewLmap bit-maps between Int(w) and Logic(w) of equal width (the
// "literal map" width-preserving reinterpretation between the two scalar
// domains).
func NewLmap(v Value, target *types.Type) (*Instruction, error) {
	iw, isInt := v.Type().IsInt()
	lw, isLogic := v.Type().IsLogic()
	tiw, tIsInt := target.IsInt()
	tlw, tIsLogic := target.IsLogic()
	switch {
	case isInt && tIsLogic && iw == tlw:
	case isLogic && tIsInt && lw == tiw:
	default:
		return nil, ErrorTypeMismatch
	}
	return newInstruction(OpLmap, target, []Value{v}), nil
}

// NewBr builds an unconditional branch to target.
func NewBr(ctx *Context, target *Block) *Instruction {
	i := newInstruction(OpBr, ctx.Void(), nil)
	i.Target = target
	i.opUses = []*Use{addUseOn(i, 0, target)}
	return i
}

// NewCondBr builds a conditional branch: cond must be Int(1).
func NewCondBr(ctx *Context, cond Value, ifTrue, ifFalse *Block) (*Instruction, error) {
	if w, ok := cond.Type().IsInt(); !ok || w != 1 {
		return nil, ErrorTypeMismatch
	}
	i := newInstruction(OpBr, ctx.Void(), []Value{cond})
	i.IfTrue, i.IfFalse = ifTrue, ifFalse
	i.opUses = append(i.opUses, addUseOn(i, 1, ifTrue), addUseOn(i, 2, ifFalse))
	return i, nil
}

// NewSwitch builds a switch over key, falling back to def when no case
// matches (cases are evaluated in declaration order; first match wins,
// §4.J).
func NewSwitch(ctx *Context, key Value, def *Block, cases []SwitchCase) (*Instruction, error) {
	for _, c := range cases {
		if !types.Equal(c.Value.Type(), key.Type()) {
			return nil, ErrorTypeMismatch
		}
	}
	i := newInstruction(OpSwitch, ctx.Void(), []Value{key})
	i.Default = def
	i.Cases = append([]SwitchCase(nil), cases...)
	idx := 1
	i.opUses = append(i.opUses, addUseOn(i, idx, def))
	idx++
	for _, c := range cases {
		i.opUses = append(i.opUses, addUseOn(i, idx, c.Value))
		idx++
		i.opUses = append(i.opUses, addUseOn(i, idx, c.Block))
		idx++
	}
	return i, nil
}

// NewRet builds a return of the given values, which must match the
// enclosing Unit's declared outputs.
func NewRet(ctx *Context, unit *Unit, values []Value) (*Instruction, error) {
	_, outs, ok := unit.Type().Signature()
	if !ok || len(outs) != len(values) {
		return nil, ErrorTypeMismatch
	}
	for i, v := range values {
		if !types.Equal(v.Type(), outs[i]) {
			return nil, ErrorTypeMismatch
		}
	}
	return newInstruction(OpRet, ctx.Void(), values), nil
}

// NewWaitTime builds a Wait that suspends for dt (or until absolute time
// dt, when abs is true), resuming at dest once the scheduler's wake-up
// fires. Like WaitOnCond/WaitUnconditional, a timed Wait is a terminator
// and must carry its own resume destination: there is nowhere else for
// execution to continue once the instruction pointer has been parked on
// the Wait itself.
func NewWaitTime(ctx *Context, dt Value, abs bool, dest *Block) (*Instruction, error) {
	if dt.Type().Tag() != types.Time {
		return nil, ErrorTypeMismatch
	}
	i := newInstruction(OpWait, ctx.Void(), []Value{dt})
	i.Kind = WaitOnTime
	i.WaitAbs = abs
	i.Target = dest
	i.opUses = append(i.opUses, addUseOn(i, 1, dest))
	return i, nil
}

// NewWaitCond builds a Wait that suspends until cond's underlying signal
// changes, then transfers to dest.
func NewWaitCond(ctx *Context, cond Value, dest *Block) (*Instruction, error) {
	if w, ok := cond.Type().IsInt(); !ok || w != 1 {
		return nil, ErrorTypeMismatch
	}
	i := newInstruction(OpWait, ctx.Void(), []Value{cond})
	i.Kind = WaitOnCond
	i.Target = dest
	i.opUses = append(i.opUses, addUseOn(i, 1, dest))
	return i, nil
}

// NewWaitAny builds an unconditional Wait that suspends until any input
// changes, then transfers to dest.
func NewWaitAny(ctx *Context, dest *Block) *Instruction {
	i := newInstruction(OpWait, ctx.Void(), nil)
	i.Kind = WaitUnconditional
	i.Target = dest
	i.opUses = []*Use{addUseOn(i, 0, dest)}
	return i
}

// NewInst builds a structural instantiation of callee (an Entity or
// Process Unit) at entity level, wiring inputs and output signals.
func NewInst(ctx *Context, callee *Unit, inputs, outputSignals []Value) (*Instruction, error) {
	ins, outs, ok := callee.Type().Signature()
	if !ok || len(ins) != len(inputs) || len(outs) != len(outputSignals) {
		return nil, ErrorTypeMismatch
	}
	for i, v := range inputs {
		if !types.Equal(v.Type(), ins[i]) {
			return nil, ErrorTypeMismatch
		}
	}
	for i, v := range outputSignals {
		elem, ok := v.Type().Elem()
		if !ok || v.Type().Tag() != types.SignalTy || !types.Equal(elem, outs[i]) {
			return nil, ErrorTypeMismatch
		}
	}
	ops := append(append([]Value(nil), inputs...), outputSignals...)
	i := newInstruction(OpInst, ctx.Void(), ops)
	i.Callee = callee
	i.NumInputs = len(inputs)
	i.opUses = append(i.opUses, addUseOn(i, len(ops), callee))
	return i, nil
}

// NewCall builds a pure function call. A Function with multiple declared
// outputs returns a single Struct-typed result; pull individual results
// back out with Extract.
func NewCall(ctx *Context, callee *Unit, inputs []Value) (*Instruction, error) {
	ins, outs, ok := callee.Type().Signature()
	if !ok || len(ins) != len(inputs) {
		return nil, ErrorTypeMismatch
	}
	for i, v := range inputs {
		if !types.Equal(v.Type(), ins[i]) {
			return nil, ErrorTypeMismatch
		}
	}
	var resultTy *types.Type
	switch len(outs) {
	case 0:
		resultTy = ctx.Void()
	case 1:
		resultTy = outs[0]
	default:
		resultTy = ctx.NewStruct(outs...)
	}
	i := newInstruction(OpCall, resultTy, inputs)
	i.Callee = callee
	i.opUses = append(i.opUses, addUseOn(i, len(inputs), callee))
	return i, nil
}
