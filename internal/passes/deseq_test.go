package passes

import (
	"testing"

	"lhd/internal/apint"
	"lhd/internal/ir"
	"lhd/internal/types"
)

// buildCombinationalDrive builds a process whose entry block unconditionally
// drives signal y; PlanDesequentialisation should classify y Combinational.
func buildCombinationalDrive(t *testing.T) (*ir.Context, *ir.Unit, ir.Value) {
	t.Helper()
	ctx := ir.NewContext()
	i8 := ctx.Int(8)
	sig := ctx.NewComp([]*types.Type{i8}, nil)
	proc := ir.NewUnit(sig, "comb", ir.ProcessKind)

	yArg := ir.NewArgument(ctx.NewSignal(i8), "y", ir.Out)
	proc.AddParam(yArg)

	entry := ir.NewBlock(ctx, "entry")
	proc.AppendBlock(entry)

	val := ctx.ConstInt(8, apint.FromUint64(8, 7))
	drv, err := ir.NewDrive(ctx, yArg, val, nil)
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
	return ctx, proc, yArg
}

func TestPlanDesequentialisationCombinational(t *testing.T) {
	_, proc, y := buildCombinationalDrive(t)
	plans := PlanDesequentialisation(proc)
	found := false
	for _, p := range plans {
		if p.Signal == y {
			found = true
			if p.Class != Combinational {
				t.Fatalf("expected Combinational, got %s", p.Class)
			}
		}
	}
	if !found {
		t.Fatalf("expected a plan for signal y")
	}
}

// buildLatchedDrive builds a process where y is driven only inside a block
// reached via a plain conditional branch on a level (non-edge) input,
// classifying as Latched.
func buildLatchedDrive(t *testing.T) (*ir.Context, *ir.Unit, ir.Value) {
	t.Helper()
	ctx := ir.NewContext()
	i1 := ctx.Int(1)
	i8 := ctx.Int(8)
	sig := ctx.NewComp([]*types.Type{i1, i8}, nil)
	proc := ir.NewUnit(sig, "latch", ir.ProcessKind)

	enArg := ir.NewArgument(i1, "en", ir.In)
	proc.AddParam(enArg)
	yArg := ir.NewArgument(ctx.NewSignal(i8), "y", ir.Out)
	proc.AddParam(yArg)

	entry := ir.NewBlock(ctx, "entry")
	driveBlk := ir.NewBlock(ctx, "drive")
	doneBlk := ir.NewBlock(ctx, "done")
	proc.AppendBlock(entry)
	proc.AppendBlock(driveBlk)
	proc.AppendBlock(doneBlk)

	br, err := ir.NewCondBr(ctx, enArg, driveBlk, doneBlk)
	if err != nil {
		t.Fatalf("condbr: %v", err)
	}
	if err := entry.Append(br); err != nil {
		t.Fatalf("append condbr: %v", err)
	}

	val := ctx.ConstInt(8, apint.FromUint64(8, 9))
	drv, err := ir.NewDrive(ctx, yArg, val, nil)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if err := driveBlk.Append(drv); err != nil {
		t.Fatalf("append drive: %v", err)
	}
	brDone := ir.NewBr(ctx, doneBlk)
	if err := driveBlk.Append(brDone); err != nil {
		t.Fatalf("append br: %v", err)
	}

	ret, err := ir.NewRet(ctx, proc, nil)
	if err != nil {
		t.Fatalf("ret: %v", err)
	}
	if err := doneBlk.Append(ret); err != nil {
		t.Fatalf("append ret: %v", err)
	}
	return ctx, proc, yArg
}

func TestPlanDesequentialisationLatched(t *testing.T) {
	_, proc, y := buildLatchedDrive(t)
	plans := PlanDesequentialisation(proc)
	for _, p := range plans {
		if p.Signal == y {
			if p.Class != Latched {
				t.Fatalf("expected Latched, got %s", p.Class)
			}
			if p.Enable == nil {
				t.Fatalf("expected a non-nil enable expression")
			}
			return
		}
	}
	t.Fatalf("expected a plan for signal y")
}

// buildFlopBackedDrive builds a process where y is driven only in a block
// reached via WaitCond, so its reaching condition mentions an edgeSymbol and
// classifies as FlopBacked.
func buildFlopBackedDrive(t *testing.T) (*ir.Context, *ir.Unit, ir.Value) {
	t.Helper()
	ctx := ir.NewContext()
	i1 := ctx.Int(1)
	i8 := ctx.Int(8)
	sig := ctx.NewComp([]*types.Type{i1, i8}, nil)
	proc := ir.NewUnit(sig, "flop", ir.ProcessKind)

	ckArg := ir.NewArgument(i1, "ck", ir.In)
	proc.AddParam(ckArg)
	yArg := ir.NewArgument(ctx.NewSignal(i8), "y", ir.Out)
	proc.AddParam(yArg)

	entry := ir.NewBlock(ctx, "entry")
	captureBlk := ir.NewBlock(ctx, "capture")
	proc.AppendBlock(entry)
	proc.AppendBlock(captureBlk)

	wait, err := ir.NewWaitCond(ctx, ckArg, captureBlk)
	if err != nil {
		t.Fatalf("waitcond: %v", err)
	}
	if err := entry.Append(wait); err != nil {
		t.Fatalf("append wait: %v", err)
	}

	val := ctx.ConstInt(8, apint.FromUint64(8, 3))
	drv, err := ir.NewDrive(ctx, yArg, val, nil)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	if err := captureBlk.Append(drv); err != nil {
		t.Fatalf("append drive: %v", err)
	}
	br := ir.NewBr(ctx, entry)
	if err := captureBlk.Append(br); err != nil {
		t.Fatalf("append br: %v", err)
	}
	return ctx, proc, yArg
}

func TestPlanDesequentialisationFlopBacked(t *testing.T) {
	_, proc, y := buildFlopBackedDrive(t)
	plans := PlanDesequentialisation(proc)
	for _, p := range plans {
		if p.Signal == y {
			if p.Class != FlopBacked {
				t.Fatalf("expected FlopBacked, got %s", p.Class)
			}
			if p.Enable == nil {
				t.Fatalf("expected a non-nil enable expression")
			}
			return
		}
	}
	t.Fatalf("expected a plan for signal y")
}

func TestDesequentialiseProcessPreservesSignature(t *testing.T) {
	ctx, proc, _ := buildCombinationalDrive(t)
	entity, err := DesequentialiseProcess(ctx, proc)
	if err != nil {
		t.Fatalf("DesequentialiseProcess: %v", err)
	}
	origIns, origOuts, ok := proc.Type().Signature()
	if !ok {
		t.Fatalf("expected process signature")
	}
	newIns, newOuts, ok := entity.Type().Signature()
	if !ok {
		t.Fatalf("expected entity signature")
	}
	if len(origIns) != len(newIns) || len(origOuts) != len(newOuts) {
		t.Fatalf("signature mismatch: orig ins=%d outs=%d, new ins=%d outs=%d",
			len(origIns), len(origOuts), len(newIns), len(newOuts))
	}
}

// buildOneBitMuxDrive builds a process whose output y (Int(1)) is driven to
// complementary constants in the two arms of an if/en/else that rejoin at a
// shared Ret, so y's combined reaching condition is Const1 and foldMux must
// route through muxValue with a 1-bit datapath whose mask needs no SExt
// broadcast.
func buildOneBitMuxDrive(t *testing.T) (*ir.Context, *ir.Unit, ir.Value) {
	t.Helper()
	ctx := ir.NewContext()
	i1 := ctx.Int(1)
	sig := ctx.NewComp([]*types.Type{i1}, []*types.Type{i1})
	proc := ir.NewUnit(sig, "onebit", ir.ProcessKind)

	enArg := ir.NewArgument(i1, "en", ir.In)
	proc.AddParam(enArg)
	yArg := ir.NewArgument(ctx.NewSignal(i1), "y", ir.Out)
	proc.AddParam(yArg)

	entry := ir.NewBlock(ctx, "entry")
	trueBlk := ir.NewBlock(ctx, "true")
	falseBlk := ir.NewBlock(ctx, "false")
	doneBlk := ir.NewBlock(ctx, "done")
	proc.AppendBlock(entry)
	proc.AppendBlock(trueBlk)
	proc.AppendBlock(falseBlk)
	proc.AppendBlock(doneBlk)

	br, err := ir.NewCondBr(ctx, enArg, trueBlk, falseBlk)
	if err != nil {
		t.Fatalf("condbr: %v", err)
	}
	if err := entry.Append(br); err != nil {
		t.Fatalf("append condbr: %v", err)
	}

	one := ctx.ConstInt(1, apint.FromUint64(1, 1))
	drvTrue, err := ir.NewDrive(ctx, yArg, one, nil)
	if err != nil {
		t.Fatalf("drive true: %v", err)
	}
	if err := trueBlk.Append(drvTrue); err != nil {
		t.Fatalf("append drive true: %v", err)
	}
	brTrue := ir.NewBr(ctx, doneBlk)
	if err := trueBlk.Append(brTrue); err != nil {
		t.Fatalf("append br true: %v", err)
	}

	zero := ctx.ConstInt(1, apint.FromUint64(1, 0))
	drvFalse, err := ir.NewDrive(ctx, yArg, zero, nil)
	if err != nil {
		t.Fatalf("drive false: %v", err)
	}
	if err := falseBlk.Append(drvFalse); err != nil {
		t.Fatalf("append drive false: %v", err)
	}
	brFalse := ir.NewBr(ctx, doneBlk)
	if err := falseBlk.Append(brFalse); err != nil {
		t.Fatalf("append br false: %v", err)
	}

	ret, err := ir.NewRet(ctx, proc, nil)
	if err != nil {
		t.Fatalf("ret: %v", err)
	}
	if err := doneBlk.Append(ret); err != nil {
		t.Fatalf("append ret: %v", err)
	}
	return ctx, proc, yArg
}

// TestDesequentialiseProcessOneBitMux is a regression test for muxValue's
// handling of a 1-bit datapath: before, the mask broadcast unconditionally
// called NewSExt(cond, ctx.Int(1)), which widthConvert rejects as a same-
// width conversion, so any Int(1) signal driven from two complementary
// branches failed to desequentialise at all.
func TestDesequentialiseProcessOneBitMux(t *testing.T) {
	ctx, proc, y := buildOneBitMuxDrive(t)
	entity, err := DesequentialiseProcess(ctx, proc)
	if err != nil {
		t.Fatalf("DesequentialiseProcess: %v", err)
	}
	_ = ctx
	found := false
	for _, i := range entity.Body.Instructions() {
		if i.Op == ir.OpDrive && i.Operand(0) == ir.Value(portOf(entity, y)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Drive of y's corresponding entity port in the combinational body")
	}
}

// portOf returns the entity parameter with the same name as the process
// argument orig, mirroring the portMap DesequentialiseProcess builds
// internally (which is not exported).
func portOf(entity *ir.Unit, orig ir.Value) *ir.Argument {
	origArg, ok := orig.(*ir.Argument)
	if !ok {
		return nil
	}
	for _, p := range entity.Params {
		if p.Name() == origArg.Name() {
			return p
		}
	}
	return nil
}
