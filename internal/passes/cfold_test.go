package passes

import (
	"testing"

	"lhd/internal/apint"
	"lhd/internal/ir"
	"lhd/internal/types"
)

// buildCfoldScenario builds the S3 seed scenario: a process that computes
// add i32 123, 42; sub i32 165, 42, then drives out with the sub's result.
// Both operands of each op are constants, so FoldConstants should collapse
// the whole chain down to a single Drive of the constant 123.
func buildCfoldScenario(t *testing.T) (*ir.Context, *ir.Unit) {
	t.Helper()
	ctx := ir.NewContext()
	i32 := ctx.Int(32)
	sig := ctx.NewComp([]*types.Type{i32}, nil)
	proc := ir.NewUnit(sig, "cfold", ir.ProcessKind)

	outArg := ir.NewArgument(ctx.NewSignal(i32), "out", ir.Out)
	proc.AddParam(outArg)

	entry := ir.NewBlock(ctx, "entry")
	proc.AppendBlock(entry)

	c123 := ctx.ConstInt(32, apint.FromUint64(32, 123))
	c42 := ctx.ConstInt(32, apint.FromUint64(32, 42))

	add, err := ir.NewAdd(c123, c42)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := entry.Append(add); err != nil {
		t.Fatalf("append add: %v", err)
	}

	sub, err := ir.NewSub(add, c42)
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	if err := entry.Append(sub); err != nil {
		t.Fatalf("append sub: %v", err)
	}

	drv, err := ir.NewDrive(ctx, outArg, sub, nil)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if err := entry.Append(drv); err != nil {
		t.Fatalf("append drive: %v", err)
	}
	ret, err := ir.NewRet(ctx, proc, nil)
	if err != nil {
		t.Fatalf("ret: %v", err)
	}
	if err := entry.Append(ret); err != nil {
		t.Fatalf("append ret: %v", err)
	}
	return ctx, proc
}

func TestFoldConstantsCollapsesChainToSingleDrive(t *testing.T) {
	ctx, proc := buildCfoldScenario(t)
	folded, err := FoldConstants(ctx, proc)
	if err != nil {
		t.Fatalf("FoldConstants: %v", err)
	}
	if folded != 2 {
		t.Fatalf("expected 2 folds (add, sub), got %d", folded)
	}

	entry := proc.Entry()
	insts := entry.Instructions()
	if len(insts) != 2 {
		t.Fatalf("expected entry to contain exactly Drive, Ret after folding, got %d instructions", len(insts))
	}
	drv := insts[0]
	if drv.Op != ir.OpDrive {
		t.Fatalf("expected first remaining instruction to be Drive, got %s", drv.Op)
	}
	c, ok := drv.Operand(1).(*ir.Constant)
	if !ok {
		t.Fatalf("expected Drive's value operand to be a folded Constant")
	}
	got, err := c.IntVal.ToUint64()
	if err != nil {
		t.Fatalf("ToUint64: %v", err)
	}
	if got != 123 {
		t.Fatalf("expected folded value 123, got %d", got)
	}
}

func TestFoldConstantsIsIdempotent(t *testing.T) {
	ctx, proc := buildCfoldScenario(t)
	if _, err := FoldConstants(ctx, proc); err != nil {
		t.Fatalf("first fold: %v", err)
	}
	before := proc.Entry().Instructions()
	beforeStr := make([]string, len(before))
	for i, ins := range before {
		beforeStr[i] = ins.Op.String()
	}

	second, err := FoldConstants(ctx, proc)
	if err != nil {
		t.Fatalf("second fold: %v", err)
	}
	if second != 0 {
		t.Fatalf("expected no further folds on an already-folded process, got %d", second)
	}

	after := proc.Entry().Instructions()
	if len(after) != len(before) {
		t.Fatalf("instruction count changed across idempotent fold: %d vs %d", len(before), len(after))
	}
	for i, ins := range after {
		if ins.Op.String() != beforeStr[i] {
			t.Fatalf("opcode at index %d changed across idempotent fold", i)
		}
	}
}

func TestFoldConstantsReportsDivByZero(t *testing.T) {
	ctx := ir.NewContext()
	i8 := ctx.Int(8)
	sig := ctx.NewComp([]*types.Type{i8}, nil)
	proc := ir.NewUnit(sig, "divzero", ir.ProcessKind)
	outArg := ir.NewArgument(ctx.NewSignal(i8), "out", ir.Out)
	proc.AddParam(outArg)

	entry := ir.NewBlock(ctx, "entry")
	proc.AppendBlock(entry)

	c10 := ctx.ConstInt(8, apint.FromUint64(8, 10))
	zero := ctx.ConstInt(8, apint.New(8))
	div, err := ir.NewDivUnsigned(c10, zero)
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	if err := entry.Append(div); err != nil {
		t.Fatalf("append div: %v", err)
	}
	drv, err := ir.NewDrive(ctx, outArg, div, nil)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if err := entry.Append(drv); err != nil {
		t.Fatalf("append drive: %v", err)
	}
	ret, err := ir.NewRet(ctx, proc, nil)
	if err != nil {
		t.Fatalf("ret: %v", err)
	}
	if err := entry.Append(ret); err != nil {
		t.Fatalf("append ret: %v", err)
	}

	_, err = FoldConstants(ctx, proc)
	if err != ErrorDivZero {
		t.Fatalf("expected ErrorDivZero, got %v", err)
	}
}
