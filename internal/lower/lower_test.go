package lower

import (
	"strings"
	"testing"

	"lhd/internal/ir"
	"lhd/internal/types"
)

// buildMax builds a pure Function computing max(a, b) over i8 operands:
//
//	entry: cmp sgt a, b; condbr -> gt, le
//	gt:    ret a
//	le:    ret b
func buildMax(t *testing.T) *ir.Unit {
	t.Helper()
	ctx := ir.NewContext()
	i8 := ctx.Int(8)
	sig := ctx.NewFunc([]*types.Type{i8, i8}, []*types.Type{i8})
	fn := ir.NewUnit(sig, "max", ir.FunctionKind)

	a := ir.NewArgument(i8, "a", ir.In)
	b := ir.NewArgument(i8, "b", ir.In)
	fn.AddParam(a)
	fn.AddParam(b)

	entry := ir.NewBlock(ctx, "entry")
	gt := ir.NewBlock(ctx, "gt")
	le := ir.NewBlock(ctx, "le")
	fn.AppendBlock(entry)
	fn.AppendBlock(gt)
	fn.AppendBlock(le)

	cmp, err := ir.NewCmp(ctx, ir.CmpSgt, a, b)
	if err != nil {
		t.Fatalf("cmp: %v", err)
	}
	if err := entry.Append(cmp); err != nil {
		t.Fatalf("append cmp: %v", err)
	}
	br, err := ir.NewCondBr(ctx, cmp, gt, le)
	if err != nil {
		t.Fatalf("condbr: %v", err)
	}
	if err := entry.Append(br); err != nil {
		t.Fatalf("append condbr: %v", err)
	}

	retGt, err := ir.NewRet(ctx, fn, []ir.Value{a})
	if err != nil {
		t.Fatalf("ret gt: %v", err)
	}
	if err := gt.Append(retGt); err != nil {
		t.Fatalf("append ret gt: %v", err)
	}

	retLe, err := ir.NewRet(ctx, fn, []ir.Value{b})
	if err != nil {
		t.Fatalf("ret le: %v", err)
	}
	if err := le.Append(retLe); err != nil {
		t.Fatalf("append ret le: %v", err)
	}

	return fn
}

func TestLowerFunctionProducesValidModule(t *testing.T) {
	fn := buildMax(t)
	m, err := Function(fn)
	if err != nil {
		t.Fatalf("Function: %v", err)
	}
	text := String(m)
	if !strings.Contains(text, "define i8 @max") {
		t.Fatalf("expected a define for @max, got:\n%s", text)
	}
	if !strings.Contains(text, "icmp sgt") {
		t.Fatalf("expected an icmp sgt, got:\n%s", text)
	}
	if strings.Count(text, "ret i8") != 2 {
		t.Fatalf("expected two ret i8 terminators, got:\n%s", text)
	}
}

func TestLowerRejectsNonFunction(t *testing.T) {
	ctx := ir.NewContext()
	sig := ctx.NewComp(nil, nil)
	proc := ir.NewUnit(sig, "p", ir.ProcessKind)
	if _, err := Function(proc); err != ErrorNotAFunction {
		t.Fatalf("expected ErrorNotAFunction, got %v", err)
	}
}

func TestLowerRejectsMultiValueRet(t *testing.T) {
	ctx := ir.NewContext()
	i8 := ctx.Int(8)
	sig := ctx.NewFunc([]*types.Type{i8}, []*types.Type{i8, i8})
	fn := ir.NewUnit(sig, "pair", ir.FunctionKind)
	if _, err := Function(fn); err != ErrorMultiValueRet {
		t.Fatalf("expected ErrorMultiValueRet, got %v", err)
	}
}
