package ir

import (
	"testing"

	"lhd/internal/apint"
)

func TestBlockRejectsAppendAfterTerminator(t *testing.T) {
	ctx := NewContext()
	b := NewBlock(ctx, "entry")
	target := NewBlock(ctx, "next")
	br := NewBr(ctx, target)
	if err := b.Append(br); err != nil {
		t.Fatalf("append terminator: %v", err)
	}
	eight := ctx.ConstInt(8, apint.FromUint64(8, 1))
	extra, err := NewAdd(eight, eight)
	if err != nil {
		t.Fatalf("NewAdd: %v", err)
	}
	if err := b.Append(extra); err != ErrorMalformedBlock {
		t.Fatalf("expected ErrorMalformedBlock after terminator, got %v", err)
	}
}

func TestEntityRejectsSequentialOps(t *testing.T) {
	ctx := NewContext()
	u := NewUnit(ctx.NewComp(nil, nil), "top", EntityKind)
	i8 := ctx.Int(8)
	alloc, err := NewAlloc(ctx, i8, nil)
	if err != nil {
		t.Fatalf("NewAlloc: %v", err)
	}
	if err := u.Body.Append(alloc); err != ErrorTypeMismatch {
		t.Fatalf("expected ErrorTypeMismatch for Alloc in Entity, got %v", err)
	}
	sig, err := NewSig(ctx, i8, nil)
	if err != nil {
		t.Fatalf("NewSig: %v", err)
	}
	if err := u.Body.Append(sig); err != nil {
		t.Fatalf("Sig should be legal in an Entity: %v", err)
	}
}

func TestReplaceAllUsesWithRetargetsOperands(t *testing.T) {
	ctx := NewContext()
	a := ctx.ConstInt(8, apint.FromUint64(8, 3))
	b := ctx.ConstInt(8, apint.FromUint64(8, 4))
	c := ctx.ConstInt(8, apint.FromUint64(8, 7))
	add, err := NewAdd(a, b)
	if err != nil {
		t.Fatalf("NewAdd: %v", err)
	}
	if len(a.Users()) != 1 {
		t.Fatalf("expected 1 user of a before replace, got %d", len(a.Users()))
	}
	ReplaceAllUsesWith(a, c)
	if len(a.Users()) != 0 {
		t.Fatalf("expected 0 users of a after replace, got %d", len(a.Users()))
	}
	if len(c.Users()) != 1 {
		t.Fatalf("expected 1 user of c after replace, got %d", len(c.Users()))
	}
	if add.Operand(0) != Value(c) {
		t.Fatalf("expected add's operand 0 to be retargeted to c")
	}
}

func TestReplaceAllUsesWithRetargetsBranchTargets(t *testing.T) {
	ctx := NewContext()
	oldTarget := NewBlock(ctx, "old")
	newTarget := NewBlock(ctx, "new")
	br := NewBr(ctx, oldTarget)
	if len(oldTarget.Users()) != 1 {
		t.Fatalf("expected 1 user of oldTarget, got %d", len(oldTarget.Users()))
	}
	ReplaceAllUsesWith(oldTarget, newTarget)
	if br.Target != newTarget {
		t.Fatalf("expected br.Target retargeted to newTarget")
	}
	if len(oldTarget.Users()) != 0 {
		t.Fatalf("expected 0 users of oldTarget after retarget, got %d", len(oldTarget.Users()))
	}
	if len(newTarget.Users()) != 1 {
		t.Fatalf("expected 1 user of newTarget after retarget, got %d", len(newTarget.Users()))
	}
}

func TestUnlinkThenEraseSucceedsOnDanglingInstruction(t *testing.T) {
	ctx := NewContext()
	a := ctx.ConstInt(8, apint.FromUint64(8, 1))
	b := ctx.ConstInt(8, apint.FromUint64(8, 2))
	add, err := NewAdd(a, b)
	if err != nil {
		t.Fatalf("NewAdd: %v", err)
	}
	block := NewBlock(ctx, "entry")
	if err := block.Append(add); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := Erase(add); err != nil {
		t.Fatalf("expected Erase to succeed on an instruction with no users, got %v", err)
	}
	if len(a.Users()) != 0 {
		t.Fatalf("expected a to lose its user once add is erased, got %d", len(a.Users()))
	}
	if block.First() != nil {
		t.Fatalf("expected block to be empty after erasing its only instruction")
	}
}

func TestEraseFailsWithOutstandingUsers(t *testing.T) {
	ctx := NewContext()
	a := ctx.ConstInt(8, apint.FromUint64(8, 1))
	b := ctx.ConstInt(8, apint.FromUint64(8, 2))
	add, err := NewAdd(a, b)
	if err != nil {
		t.Fatalf("NewAdd: %v", err)
	}
	block := NewBlock(ctx, "entry")
	if err := block.Append(add); err != nil {
		t.Fatalf("append: %v", err)
	}
	sub, err := NewSub(add, b)
	if err != nil {
		t.Fatalf("NewSub: %v", err)
	}
	if err := block.Append(sub); err != nil {
		t.Fatalf("append sub: %v", err)
	}
	if err := Erase(add); err != ErrorHasUsers {
		t.Fatalf("expected ErrorHasUsers since sub still consumes add's result, got %v", err)
	}
}

func TestModuleMergeDetectsNameCollisionAndLeavesReceiverUnchanged(t *testing.T) {
	ctx := NewContext()
	m1 := NewModule(ctx)
	m2 := NewModule(ctx)
	voidFn := ctx.NewFunc(nil, nil)
	u1 := NewUnit(voidFn, "shared", FunctionKind)
	u2 := NewUnit(voidFn, "shared", FunctionKind)
	if err := m1.AppendUnit(u1); err != nil {
		t.Fatalf("append u1: %v", err)
	}
	if err := m2.AppendUnit(u2); err != nil {
		t.Fatalf("append u2: %v", err)
	}
	if err := m1.Merge(m2); err != ErrorNameCollision {
		t.Fatalf("expected ErrorNameCollision, got %v", err)
	}
	if len(m1.Units()) != 1 {
		t.Fatalf("expected m1 untouched by the failed merge, got %d units", len(m1.Units()))
	}
}

func TestModuleMergeMovesUnits(t *testing.T) {
	ctx := NewContext()
	m1 := NewModule(ctx)
	m2 := NewModule(ctx)
	voidFn := ctx.NewFunc(nil, nil)
	u := NewUnit(voidFn, "helper", FunctionKind)
	if err := m2.AppendUnit(u); err != nil {
		t.Fatalf("append u: %v", err)
	}
	if err := m1.Merge(m2); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := m1.Lookup("helper"); !ok {
		t.Fatalf("expected m1 to contain the merged unit")
	}
	if len(m2.Units()) != 0 {
		t.Fatalf("expected m2 drained after merge, got %d units", len(m2.Units()))
	}
}

func TestInstUseGraphRetargetsOnDesequentialisationStyleSwap(t *testing.T) {
	ctx := NewContext()
	comp := ctx.NewComp(nil, nil)
	proc := NewUnit(comp, "proc", ProcessKind)
	top := NewUnit(ctx.NewComp(nil, nil), "top", EntityKind)
	inst, err := NewInst(ctx, proc, nil, nil)
	if err != nil {
		t.Fatalf("NewInst: %v", err)
	}
	if err := top.Body.Append(inst); err != nil {
		t.Fatalf("append inst: %v", err)
	}
	if len(proc.Users()) != 1 {
		t.Fatalf("expected 1 user of proc before retarget, got %d", len(proc.Users()))
	}
	entity := NewUnit(comp, "proc_comb", EntityKind)
	ReplaceAllUsesWith(proc, entity)
	if inst.Callee != entity {
		t.Fatalf("expected inst.Callee retargeted to entity")
	}
	if len(proc.Users()) != 0 {
		t.Fatalf("expected 0 users of proc after retarget, got %d", len(proc.Users()))
	}
	if len(entity.Users()) != 1 {
		t.Fatalf("expected 1 user of entity after retarget, got %d", len(entity.Users()))
	}
}
