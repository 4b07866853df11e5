// Package passes implements the Module-level transformations of §4.I:
// constant folding, unreachable-block elimination, and
// desequentialisation.
package passes

import (
	"lhd/internal/apint"
	"lhd/internal/ir"
	"lhd/internal/logicvec"
)

// Error is the passes package's slice of the §7 error taxonomy.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrorDivZero is reported by FoldConstants when a Div/Mod/Rem
	// instruction's divisor operand is a constant zero; the instruction
	// is left untouched rather than folded.
	ErrorDivZero Error = "passes: division by a constant zero"

	// ErrorNotAProcess is reported by DesequentialiseProcess when handed a
	// Unit that is not a Process.
	ErrorNotAProcess Error = "passes: desequentialisation target is not a process"

	// ErrorUnsupportedDesequentialisation is reported when a drive's value
	// or guard expression reaches outside the fragment DesequentialiseProcess
	// knows how to rehome into a combinational Entity body: a value sourced
	// from process-local memory (Alloc/Load) or a pure function Call, or an
	// edge-tagged guard surviving into a combinational (never-suspended)
	// signal's mux.
	ErrorUnsupportedDesequentialisation Error = "passes: drive expression is not representable combinationally"
)

// FoldConstants walks every instruction reachable from unit and replaces
// any whose SSA-valued operands are all Constant with the computed result,
// per §4.I.1: every Block of a Process/Function, and the flat concurrent
// instruction list of an Entity's Body. It returns the folded count and
// the first ErrorDivZero encountered, if any (folding continues past a
// div-by-zero; it only leaves that one instruction unfolded).
func FoldConstants(ctx *ir.Context, unit *ir.Unit) (int, error) {
	folded := 0
	var firstErr error
	foldAll := func(instrs []*ir.Instruction) {
		for _, i := range instrs {
			did, err := foldOne(ctx, i)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			if did {
				folded++
			}
		}
	}
	for _, b := range unit.Blocks() {
		foldAll(b.Instructions())
	}
	if unit.Body != nil {
		foldAll(unit.Body.Instructions())
	}
	return folded, firstErr
}

func asConstants(i *ir.Instruction) ([]*ir.Constant, bool) {
	ops := i.Operands()
	out := make([]*ir.Constant, len(ops))
	for idx, v := range ops {
		c, ok := v.(*ir.Constant)
		if !ok {
			return nil, false
		}
		out[idx] = c
	}
	return out, true
}

func foldOne(ctx *ir.Context, i *ir.Instruction) (bool, error) {
	cs, ok := asConstants(i)
	if !ok {
		return false, nil
	}
	result, err := evalConst(ctx, i, cs)
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}
	ir.ReplaceAllUsesWith(i, result)
	return true, ir.Erase(i)
}

// evalConst computes the constant result of i given its already-verified
// constant operands cs, or returns (nil, nil) if the opcode is not one
// FoldConstants knows how to evaluate (Load/Store/Probe/Drive/control
// flow/Inst/Call never reach here since their operands are never all
// Constant in a well-formed program, but an explicit allow-list is
// clearer than relying on that).
func evalConst(ctx *ir.Context, i *ir.Instruction, cs []*ir.Constant) (*ir.Constant, error) {
	switch i.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMulUnsigned, ir.OpMulSigned,
		ir.OpDivUnsigned, ir.OpDivSigned, ir.OpModUnsigned, ir.OpModSigned, ir.OpRemSigned,
		ir.OpLsl, ir.OpLsr, ir.OpAsr:
		return evalIntBinary(ctx, i, cs)
	case ir.OpAnd, ir.OpOr, ir.OpXor:
		return evalBitwiseBinary(ctx, i, cs)
	case ir.OpNot:
		return evalUnary(ctx, i, cs)
	case ir.OpCmp:
		return evalCmp(ctx, i, cs)
	case ir.OpTrunc, ir.OpSExt, ir.OpZExt:
		return evalConvert(ctx, i, cs)
	default:
		return nil, nil
	}
}

func evalIntBinary(ctx *ir.Context, i *ir.Instruction, cs []*ir.Constant) (*ir.Constant, error) {
	if cs[0].Kind != ir.ConstInt || cs[1].Kind != ir.ConstInt {
		return nil, nil
	}
	a, b := cs[0].IntVal, cs[1].IntVal
	w, _ := i.Type().IsInt()
	var result apint.Int
	var err error
	switch i.Op {
	case ir.OpAdd:
		result, err = apint.Add(a, b)
	case ir.OpSub:
		result, err = apint.Sub(a, b)
	case ir.OpMulUnsigned:
		result, err = apint.MulUnsigned(a, b)
	case ir.OpMulSigned:
		result, err = apint.MulSigned(a, b)
	case ir.OpDivUnsigned:
		result, err = apint.DivUnsigned(a, b)
	case ir.OpDivSigned:
		result, err = apint.DivSigned(a, b)
	case ir.OpModUnsigned:
		result, err = apint.ModUnsigned(a, b)
	case ir.OpModSigned:
		result, err = apint.ModSigned(a, b)
	case ir.OpRemSigned:
		result, err = apint.RemSigned(a, b)
	case ir.OpLsl:
		result = apint.Lsl(a, b)
	case ir.OpLsr:
		result = apint.Lsr(a, b)
	case ir.OpAsr:
		result = apint.Asr(a, b)
	}
	if err == apint.ErrorDivZero {
		return nil, ErrorDivZero
	}
	if err != nil {
		return nil, nil
	}
	return ctx.ConstInt(w, result), nil
}

func evalBitwiseBinary(ctx *ir.Context, i *ir.Instruction, cs []*ir.Constant) (*ir.Constant, error) {
	if cs[0].Kind == ir.ConstInt && cs[1].Kind == ir.ConstInt {
		w, _ := i.Type().IsInt()
		a, b := cs[0].IntVal, cs[1].IntVal
		var result apint.Int
		var err error
		switch i.Op {
		case ir.OpAnd:
			result, err = apint.And(a, b)
		case ir.OpOr:
			result, err = apint.Or(a, b)
		case ir.OpXor:
			result, err = apint.Xor(a, b)
		}
		if err != nil {
			return nil, nil
		}
		return ctx.ConstInt(w, result), nil
	}
	if cs[0].Kind == ir.ConstLogic && cs[1].Kind == ir.ConstLogic {
		w, _ := i.Type().IsLogic()
		a, b := cs[0].LogicVal, cs[1].LogicVal
		var result logicvec.Vector
		var err error
		switch i.Op {
		case ir.OpAnd:
			result, err = logicvec.And(a, b)
		case ir.OpOr:
			result, err = logicvec.Or(a, b)
		case ir.OpXor:
			result, err = logicvec.Xor(a, b)
		}
		if err != nil {
			return nil, nil
		}
		return ctx.ConstLogic(w, result), nil
	}
	return nil, nil
}

func evalUnary(ctx *ir.Context, i *ir.Instruction, cs []*ir.Constant) (*ir.Constant, error) {
	switch cs[0].Kind {
	case ir.ConstInt:
		w, _ := i.Type().IsInt()
		return ctx.ConstInt(w, apint.Not(cs[0].IntVal)), nil
	case ir.ConstLogic:
		w, _ := i.Type().IsLogic()
		return ctx.ConstLogic(w, logicvec.Not(cs[0].LogicVal)), nil
	default:
		return nil, nil
	}
}

func evalCmp(ctx *ir.Context, i *ir.Instruction, cs []*ir.Constant) (*ir.Constant, error) {
	if cs[0].Kind != ir.ConstInt || cs[1].Kind != ir.ConstInt {
		return nil, nil
	}
	a, b := cs[0].IntVal, cs[1].IntVal
	var result bool
	switch i.Pred {
	case ir.CmpEq:
		result, _ = apint.Equal(a, b)
	case ir.CmpNe:
		eq, _ := apint.Equal(a, b)
		result = !eq
	case ir.CmpSgt:
		c, _ := apint.CompareSigned(a, b)
		result = c > 0
	case ir.CmpSlt:
		c, _ := apint.CompareSigned(a, b)
		result = c < 0
	case ir.CmpSge:
		c, _ := apint.CompareSigned(a, b)
		result = c >= 0
	case ir.CmpSle:
		c, _ := apint.CompareSigned(a, b)
		result = c <= 0
	case ir.CmpUgt:
		c, _ := apint.CompareUnsigned(a, b)
		result = c > 0
	case ir.CmpUlt:
		c, _ := apint.CompareUnsigned(a, b)
		result = c < 0
	case ir.CmpUge:
		c, _ := apint.CompareUnsigned(a, b)
		result = c >= 0
	case ir.CmpUle:
		c, _ := apint.CompareUnsigned(a, b)
		result = c <= 0
	}
	v := uint64(0)
	if result {
		v = 1
	}
	return ctx.ConstInt(1, apint.FromUint64(1, v)), nil
}

func evalConvert(ctx *ir.Context, i *ir.Instruction, cs []*ir.Constant) (*ir.Constant, error) {
	if cs[0].Kind != ir.ConstInt {
		return nil, nil
	}
	w, ok := i.Type().IsInt()
	if !ok {
		return nil, nil
	}
	var result apint.Int
	var err error
	switch i.Op {
	case ir.OpTrunc:
		result, err = apint.Trunc(cs[0].IntVal, w)
	case ir.OpSExt:
		result, err = apint.SExt(cs[0].IntVal, w)
	case ir.OpZExt:
		result, err = apint.ZExt(cs[0].IntVal, w)
	}
	if err != nil {
		return nil, nil
	}
	return ctx.ConstInt(w, result), nil
}
