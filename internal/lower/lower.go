// Package lower translates a pure LHD Function unit (§4.F: no signals, no
// control-flow side effects beyond its own blocks) into textual LLVM IR,
// building an llir/llvm/ir.Module from the instruction stream and
// rendering it with String(). This is downstream verification tooling: an
// LLVM-based checker can consume the output without understanding LHD's
// own assembly.
package lower

import (
	"fmt"

	lltypes "github.com/llir/llvm/ir/types"

	llir "github.com/llir/llvm/ir"
	llconstant "github.com/llir/llvm/ir/constant"
	llenum "github.com/llir/llvm/ir/enum"
	llvalue "github.com/llir/llvm/ir/value"

	"lhd/internal/ir"
)

// Error is the lowering package's slice of the §7 error taxonomy.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrorNotAFunction is returned when the given Unit is not a Function.
	ErrorNotAFunction Error = "lower: unit is not a Function"

	// ErrorUnsupportedType is returned for a Logic or Time operand; only
	// Int-typed values have a direct LLVM counterpart.
	ErrorUnsupportedType Error = "lower: only Int-typed values can be lowered to LLVM IR"

	// ErrorUnsupportedOpcode is returned for an opcode with no meaning in a
	// pure Function body (Sig/Drive/Probe/Wait/Alloc/Load/Store/Inst/Call).
	ErrorUnsupportedOpcode Error = "lower: opcode has no lowering to LLVM IR"

	// ErrorMultiValueRet is returned for a Ret carrying more than one
	// value; LLVM functions in this lowering return at most one scalar.
	ErrorMultiValueRet Error = "lower: only single-output Function units can be lowered"
)

// Function lowers a single pure Function unit to an llir/llvm/ir.Module
// containing one function of the same name. fn must be an ir.FunctionKind
// unit whose parameters and Ret values are all Int-typed, and whose body
// uses only arithmetic, bitwise, comparison, conversion and control-flow
// opcodes (no signals, memory, or calls).
func Function(fn *ir.Unit) (*llir.Module, error) {
	if fn.Kind != ir.FunctionKind {
		return nil, ErrorNotAFunction
	}
	_, outs, ok := fn.Type().Signature()
	if !ok {
		return nil, ErrorNotAFunction
	}
	if len(outs) > 1 {
		return nil, ErrorMultiValueRet
	}

	retTy := lltypes.Void
	if len(outs) == 1 {
		w, ok := outs[0].IsInt()
		if !ok {
			return nil, ErrorUnsupportedType
		}
		retTy = lltypes.NewInt(uint64(w))
	}

	params := make([]*llir.Param, len(fn.Params))
	for i, a := range fn.Params {
		w, ok := a.Type().IsInt()
		if !ok {
			return nil, ErrorUnsupportedType
		}
		name := a.Name()
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		params[i] = llir.NewParam(name, lltypes.NewInt(uint64(w)))
	}

	m := llir.NewModule()
	name := fn.Name()
	if name == "" {
		name = "fn"
	}
	llfn := m.NewFunc(name, retTy, params...)

	l := &lowerer{vals: make(map[ir.Value]llvalue.Value), blocks: make(map[*ir.Block]*llir.Block)}
	for i, a := range fn.Params {
		l.vals[a] = params[i]
	}

	for _, b := range fn.Blocks() {
		l.blocks[b] = llfn.NewBlock(blockName(b))
	}
	for _, b := range fn.Blocks() {
		if err := l.lowerBlock(b); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func blockName(b *ir.Block) string {
	if n := b.Name(); n != "" {
		return n
	}
	return fmt.Sprintf("bb%p", b)
}

type lowerer struct {
	vals   map[ir.Value]llvalue.Value
	blocks map[*ir.Block]*llir.Block
}

func (l *lowerer) operand(v ir.Value) (llvalue.Value, error) {
	if c, ok := v.(*ir.Constant); ok {
		switch c.Kind {
		case ir.ConstInt:
			w, _ := c.Type().IsInt()
			u, err := c.IntVal.ToUint64()
			if err != nil {
				return nil, err
			}
			return llconstant.NewInt(lltypes.NewInt(uint64(w)), int64(u)), nil
		default:
			return nil, ErrorUnsupportedType
		}
	}
	if lv, ok := l.vals[v]; ok {
		return lv, nil
	}
	return nil, fmt.Errorf("lower: value %q has no lowered operand", v.Name())
}

func (l *lowerer) lowerBlock(b *ir.Block) error {
	bb := l.blocks[b]
	for inst := b.First(); inst != nil; inst = inst.Next() {
		if err := l.lowerInst(bb, inst); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lowerInst(bb *llir.Block, inst *ir.Instruction) error {
	ops := inst.Operands()
	get := func(i int) (llvalue.Value, error) { return l.operand(ops[i]) }

	switch inst.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMulUnsigned, ir.OpMulSigned, ir.OpDivUnsigned, ir.OpDivSigned,
		ir.OpModUnsigned, ir.OpModSigned, ir.OpRemSigned, ir.OpAnd, ir.OpOr, ir.OpXor,
		ir.OpLsl, ir.OpLsr, ir.OpAsr:
		a, err := get(0)
		if err != nil {
			return err
		}
		b, err := get(1)
		if err != nil {
			return err
		}
		var res llvalue.Value
		switch inst.Op {
		case ir.OpAdd:
			res = bb.NewAdd(a, b)
		case ir.OpSub:
			res = bb.NewSub(a, b)
		case ir.OpMulUnsigned, ir.OpMulSigned:
			res = bb.NewMul(a, b)
		case ir.OpDivUnsigned:
			res = bb.NewUDiv(a, b)
		case ir.OpDivSigned:
			res = bb.NewSDiv(a, b)
		case ir.OpModUnsigned:
			res = bb.NewURem(a, b)
		case ir.OpModSigned, ir.OpRemSigned:
			res = bb.NewSRem(a, b)
		case ir.OpAnd:
			res = bb.NewAnd(a, b)
		case ir.OpOr:
			res = bb.NewOr(a, b)
		case ir.OpXor:
			res = bb.NewXor(a, b)
		case ir.OpLsl:
			res = bb.NewShl(a, b)
		case ir.OpLsr:
			res = bb.NewLShr(a, b)
		case ir.OpAsr:
			res = bb.NewAShr(a, b)
		}
		l.vals[inst] = res
		return nil

	case ir.OpNot:
		a, err := get(0)
		if err != nil {
			return err
		}
		w, _ := inst.Type().IsInt()
		allOnes := llconstant.NewInt(lltypes.NewInt(uint64(w)), -1)
		l.vals[inst] = bb.NewXor(a, allOnes)
		return nil

	case ir.OpCmp:
		a, err := get(0)
		if err != nil {
			return err
		}
		b, err := get(1)
		if err != nil {
			return err
		}
		l.vals[inst] = bb.NewICmp(cmpPred(inst.Pred), a, b)
		return nil

	case ir.OpTrunc, ir.OpSExt, ir.OpZExt:
		a, err := get(0)
		if err != nil {
			return err
		}
		w, _ := inst.Type().IsInt()
		to := lltypes.NewInt(uint64(w))
		switch inst.Op {
		case ir.OpTrunc:
			l.vals[inst] = bb.NewTrunc(a, to)
		case ir.OpSExt:
			l.vals[inst] = bb.NewSExt(a, to)
		case ir.OpZExt:
			l.vals[inst] = bb.NewZExt(a, to)
		}
		return nil

	case ir.OpBr:
		if inst.Target != nil {
			bb.NewBr(l.blocks[inst.Target])
			return nil
		}
		cond, err := get(0)
		if err != nil {
			return err
		}
		bb.NewCondBr(cond, l.blocks[inst.IfTrue], l.blocks[inst.IfFalse])
		return nil

	case ir.OpSwitch:
		key, err := get(0)
		if err != nil {
			return err
		}
		cases := make([]*llir.Case, 0, len(inst.Cases))
		for _, c := range inst.Cases {
			cv, err := l.operand(c.Value)
			if err != nil {
				return err
			}
			cc, ok := cv.(*llconstant.Int)
			if !ok {
				return ErrorUnsupportedType
			}
			cases = append(cases, llir.NewCase(cc, l.blocks[c.Block]))
		}
		bb.NewSwitch(key, l.blocks[inst.Default], cases...)
		return nil

	case ir.OpRet:
		if len(ops) == 0 {
			bb.NewRet(nil)
			return nil
		}
		v, err := get(0)
		if err != nil {
			return err
		}
		bb.NewRet(v)
		return nil

	default:
		return ErrorUnsupportedOpcode
	}
}

func cmpPred(p ir.CmpPred) llenum.IPred {
	switch p {
	case ir.CmpEq:
		return llenum.IPredEQ
	case ir.CmpNe:
		return llenum.IPredNE
	case ir.CmpSgt:
		return llenum.IPredSGT
	case ir.CmpSlt:
		return llenum.IPredSLT
	case ir.CmpSge:
		return llenum.IPredSGE
	case ir.CmpSle:
		return llenum.IPredSLE
	case ir.CmpUgt:
		return llenum.IPredUGT
	case ir.CmpUlt:
		return llenum.IPredULT
	case ir.CmpUge:
		return llenum.IPredUGE
	case ir.CmpUle:
		return llenum.IPredULE
	default:
		return llenum.IPredEQ
	}
}

// String renders m as textual LLVM IR.
func String(m *llir.Module) string { return m.String() }
