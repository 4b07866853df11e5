package passes

import (
	"fmt"

	"lhd/internal/apint"
	"lhd/internal/boolalg"
	"lhd/internal/ir"
	"lhd/internal/types"
)

// probeSymbol keys a boolalg Symbol to the Value (always a process Argument
// or a pure expression rooted at one) a Br condition was computed from.
type probeSymbol struct{ value ir.Value }

// caseSymbol keys a boolalg Symbol to one Switch case's (key, value) pair,
// standing in for the Cmp(Eq, key, value) test that reaching that case's
// block actually requires.
type caseSymbol struct{ key, val ir.Value }

// edgeSymbol keys a boolalg Symbol to the Wait instruction whose resumption
// transition reaching a block depends on. A block conditioned on an
// edgeSymbol is reachable only through suspend/resume, never through a
// straight-line evaluation of input levels, so a drive guarded by one
// becomes a flip-flop rather than a latch.
type edgeSymbol struct{ wait *ir.Instruction }

// blockConditions computes bc(B) for every block of unit per §4.I.3 step 1:
// the disjunction, over every edge into B, of that edge's branch condition
// ANDed with the condition of reaching its source block, normalised with
// DisjunctiveCNF. The entry block's condition is the constant 1.
func blockConditions(unit *ir.Unit) map[*ir.Block]*boolalg.Expr {
	blocks := unit.Blocks()
	entry := unit.Entry()
	bc := make(map[*ir.Block]*boolalg.Expr, len(blocks))
	for _, b := range blocks {
		if b == entry {
			bc[b] = boolalg.One()
		} else {
			bc[b] = boolalg.Zero()
		}
	}
	for changed := true; changed; {
		changed = false
		for _, b := range blocks {
			if b == entry {
				continue
			}
			contrib := contributionsTo(b, bc)
			if len(contrib) == 0 {
				continue
			}
			next := boolalg.DisjunctiveCNF(boolalg.NewOr(contrib...))
			if next.String() != bc[b].String() {
				bc[b] = next
				changed = true
			}
		}
	}
	return bc
}

func contributionsTo(b *ir.Block, bc map[*ir.Block]*boolalg.Expr) []*boolalg.Expr {
	var out []*boolalg.Expr
	for _, u := range b.Users() {
		pred := u.User.Parent()
		if pred == nil {
			continue
		}
		parentBC, ok := bc[pred]
		if !ok {
			continue
		}
		out = append(out, boolalg.NewAnd(branchCond(u.User, b), parentBC))
	}
	return out
}

// branchCond returns the guard under which term transfers control to
// target, given term is target's predecessor's terminator.
func branchCond(term *ir.Instruction, target *ir.Block) *boolalg.Expr {
	switch term.Op {
	case ir.OpBr:
		if term.IfTrue == nil && term.IfFalse == nil {
			return boolalg.One()
		}
		cond := boolalg.NewSymbol(probeSymbol{term.Operand(0)})
		if term.IfTrue == target {
			return cond
		}
		return boolalg.Negate(cond)
	case ir.OpSwitch:
		key := term.Operand(0)
		var matching []*boolalg.Expr
		for _, c := range term.Cases {
			if c.Block == target {
				matching = append(matching, boolalg.NewSymbol(caseSymbol{key, c.Value}))
			}
		}
		if len(matching) > 0 {
			return boolalg.NewOr(matching...)
		}
		var negations []*boolalg.Expr
		for _, c := range term.Cases {
			negations = append(negations, boolalg.Negate(boolalg.NewSymbol(caseSymbol{key, c.Value})))
		}
		if len(negations) == 0 {
			return boolalg.One()
		}
		return boolalg.NewAnd(negations...)
	case ir.OpWait:
		return boolalg.NewSymbol(edgeSymbol{term})
	default:
		return boolalg.One()
	}
}

// driveRecord pairs a single Drive instruction with the block condition
// under which it executes.
type driveRecord struct {
	signal ir.Value
	instr  *ir.Instruction
	cond   *boolalg.Expr
}

func collectDrives(unit *ir.Unit, bc map[*ir.Block]*boolalg.Expr) []driveRecord {
	var out []driveRecord
	for _, b := range unit.Blocks() {
		cond := bc[b]
		for i := b.First(); i != nil; i = i.Next() {
			if i.Op == ir.OpDrive {
				out = append(out, driveRecord{signal: i.Operand(0), instr: i, cond: cond})
			}
		}
	}
	return out
}

// groupBySignal buckets records by driven signal, preserving each signal's
// first-seen order.
func groupBySignal(records []driveRecord) ([]ir.Value, map[ir.Value][]driveRecord) {
	var order []ir.Value
	groups := make(map[ir.Value][]driveRecord)
	for _, r := range records {
		if _, ok := groups[r.signal]; !ok {
			order = append(order, r.signal)
		}
		groups[r.signal] = append(groups[r.signal], r)
	}
	return order, groups
}

// DriveClass is the outcome of classifying a driven signal's combined
// reachability condition per §4.I.3 step 2: always-driven signals stay
// combinational; partially-driven signals need storage to hold their value
// between drives, split into level-sensitive (Latched) and edge-triggered
// (FlopBacked) per the Wait-transition test.
type DriveClass int

const (
	Combinational DriveClass = iota
	Latched
	FlopBacked
)

func (c DriveClass) String() string {
	switch c {
	case Combinational:
		return "combinational"
	case Latched:
		return "latched"
	case FlopBacked:
		return "flop"
	default:
		return "?"
	}
}

// SignalPlan is the per-signal classification result of
// PlanDesequentialisation.
type SignalPlan struct {
	Signal ir.Value
	Class  DriveClass
	Enable *boolalg.Expr // set for Latched/FlopBacked
}

// PlanDesequentialisation runs §4.I.3 steps 1-2 (block-condition analysis,
// drive grouping, and CNF-simplified enable factoring) without touching the
// IR, so the classification driving DesequentialiseProcess's storage-vs-
// combinational decision can be inspected or tested on its own.
func PlanDesequentialisation(proc *ir.Unit) []SignalPlan {
	bc := blockConditions(proc)
	records := collectDrives(proc, bc)
	order, groups := groupBySignal(records)
	plans := make([]SignalPlan, 0, len(order))
	for _, sig := range order {
		recs := groups[sig]
		conds := make([]*boolalg.Expr, len(recs))
		for i, r := range recs {
			conds[i] = r.cond
		}
		combined := boolalg.DisjunctiveCNF(boolalg.NewOr(conds...))
		plan := SignalPlan{Signal: sig}
		switch {
		case combined.Kind() == boolalg.Const1 && !mentionsEdge(combined):
			plan.Class = Combinational
		case mentionsEdge(combined):
			plan.Class = FlopBacked
			plan.Enable = combined
		default:
			plan.Class = Latched
			plan.Enable = combined
		}
		plans = append(plans, plan)
	}
	return plans
}

func mentionsEdge(e *boolalg.Expr) bool {
	switch e.Kind() {
	case boolalg.Symbol:
		_, ok := e.SymbolValue().(edgeSymbol)
		return ok
	case boolalg.Negated:
		return mentionsEdge(e.Inner())
	case boolalg.And, boolalg.Or:
		for _, c := range e.Children() {
			if mentionsEdge(c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// instrAppender is satisfied by both *ir.Block and *ir.Entity: the two
// containers a cloned pure-value instruction can be rehomed into.
type instrAppender interface {
	Append(*ir.Instruction) error
}

// storagePrimitives caches the latch/ff Process Units built on demand by
// DesequentialiseProcess, one per (kind, element type) pair, so repeated
// signals of the same shape share a single definition.
type storagePrimitives struct {
	units map[string]*ir.Unit
}

func newStoragePrimitives() *storagePrimitives {
	return &storagePrimitives{units: make(map[string]*ir.Unit)}
}

// get returns (building once per key) a small Process implementing a
// level-sensitive latch (kind == Latched) or an edge-captured register
// (kind == FlopBacked) over an elemTy-shaped datapath: inputs (en Int(1),
// d elemTy), one Signal(elemTy) output q.
//
// Shape, both kinds:
//
//	wait:   Wait <trigger> -> decide
//	decide: br en, drive, loop
//	drive:  drive q, d; br wait
//	loop:   br wait
//
// The trigger differs: Latched re-evaluates on any input change (Wait
// unconditional), so q tracks d continuously while en holds; FlopBacked
// suspends specifically until en itself changes (WaitCond(en)), the
// closest primitive the taxonomy offers to "capture on the enable's
// edge" given there is no dedicated clock-edge opcode.
func (sp *storagePrimitives) get(ctx *ir.Context, kind DriveClass, elemTy *types.Type) (*ir.Unit, error) {
	name := "latch"
	if kind == FlopBacked {
		name = "ff"
	}
	key := fmt.Sprintf("%s:%s", name, elemTy)
	if u, ok := sp.units[key]; ok {
		return u, nil
	}

	sigTy := ctx.NewComp([]*types.Type{ctx.Int(1), elemTy}, []*types.Type{elemTy})
	u := ir.NewUnit(sigTy, fmt.Sprintf("__%s_%s", name, elemTy), ir.ProcessKind)
	enableArg := ir.NewArgument(ctx.Int(1), "en", ir.In)
	dataArg := ir.NewArgument(elemTy, "d", ir.In)
	outArg := ir.NewArgument(ctx.NewSignal(elemTy), "q", ir.Out)
	u.AddParam(enableArg)
	u.AddParam(dataArg)
	u.AddParam(outArg)

	waitBlk := ir.NewBlock(ctx, "wait")
	decideBlk := ir.NewBlock(ctx, "decide")
	driveBlk := ir.NewBlock(ctx, "drive")
	loopBlk := ir.NewBlock(ctx, "loop")
	u.AppendBlock(waitBlk)
	u.AppendBlock(decideBlk)
	u.AppendBlock(driveBlk)
	u.AppendBlock(loopBlk)

	var waitInstr *ir.Instruction
	if kind == FlopBacked {
		var err error
		waitInstr, err = ir.NewWaitCond(ctx, enableArg, decideBlk)
		if err != nil {
			return nil, err
		}
	} else {
		waitInstr = ir.NewWaitAny(ctx, decideBlk)
	}
	if err := waitBlk.Append(waitInstr); err != nil {
		return nil, err
	}

	condBr, err := ir.NewCondBr(ctx, enableArg, driveBlk, loopBlk)
	if err != nil {
		return nil, err
	}
	if err := decideBlk.Append(condBr); err != nil {
		return nil, err
	}

	driveInstr, err := ir.NewDrive(ctx, outArg, dataArg, nil)
	if err != nil {
		return nil, err
	}
	if err := driveBlk.Append(driveInstr); err != nil {
		return nil, err
	}
	if err := driveBlk.Append(ir.NewBr(ctx, waitBlk)); err != nil {
		return nil, err
	}

	if err := loopBlk.Append(ir.NewBr(ctx, waitBlk)); err != nil {
		return nil, err
	}

	sp.units[key] = u
	return u, nil
}

// cloneValueInto rehomes v into dst: a Constant is reused as-is (constants
// are Context-global, not container-owned); an Argument must already be in
// portMap (the new container's corresponding port); an Instruction is
// recursively cloned operand-first via ir.CloneWithOperands. Load, Call,
// Alloc, and Probe dependencies fail with ErrorUnsupportedDesequentialisation:
// rehoming a value that reads process-local mutable storage or an external
// pure function would need a full SSA reconstruction (effectively a
// mem2reg pass) this transformation does not perform.
func cloneValueInto(v ir.Value, dst instrAppender, portMap map[*ir.Argument]*ir.Argument, memo map[ir.Value]ir.Value) (ir.Value, error) {
	if mapped, ok := memo[v]; ok {
		return mapped, nil
	}
	switch t := v.(type) {
	case *ir.Constant:
		return v, nil
	case *ir.Argument:
		mapped, ok := portMap[t]
		if !ok {
			return nil, ErrorUnsupportedDesequentialisation
		}
		memo[v] = mapped
		return mapped, nil
	case *ir.Instruction:
		switch t.Op {
		case ir.OpLoad, ir.OpCall, ir.OpAlloc, ir.OpProbe:
			return nil, ErrorUnsupportedDesequentialisation
		}
		operands := t.Operands()
		newOperands := make([]ir.Value, len(operands))
		for i, o := range operands {
			cloned, err := cloneValueInto(o, dst, portMap, memo)
			if err != nil {
				return nil, err
			}
			newOperands[i] = cloned
		}
		clone := ir.CloneWithOperands(t, newOperands)
		if err := dst.Append(clone); err != nil {
			return nil, err
		}
		memo[v] = clone
		return clone, nil
	default:
		return nil, ErrorUnsupportedDesequentialisation
	}
}

// compileCondition lowers a boolalg.Expr built by blockConditions/branchCond
// into actual Int(1) IR, rehoming any probed/compared value through
// cloneValueInto.
func compileCondition(ctx *ir.Context, dst instrAppender, e *boolalg.Expr, portMap map[*ir.Argument]*ir.Argument, memo map[ir.Value]ir.Value) (ir.Value, error) {
	switch e.Kind() {
	case boolalg.Const0:
		return ctx.ConstInt(1, apint.New(1)), nil
	case boolalg.Const1:
		return ctx.ConstInt(1, apint.FromUint64(1, 1)), nil
	case boolalg.Symbol:
		switch s := e.SymbolValue().(type) {
		case probeSymbol:
			return cloneValueInto(s.value, dst, portMap, memo)
		case caseSymbol:
			key, err := cloneValueInto(s.key, dst, portMap, memo)
			if err != nil {
				return nil, err
			}
			val, err := cloneValueInto(s.val, dst, portMap, memo)
			if err != nil {
				return nil, err
			}
			cmp, err := ir.NewCmp(ctx, ir.CmpEq, key, val)
			if err != nil {
				return nil, err
			}
			if err := dst.Append(cmp); err != nil {
				return nil, err
			}
			return cmp, nil
		default:
			// edgeSymbol reaching a combinational mux means an edge-gated
			// arm survived CNF simplification into a signal classified as
			// always-driven; that combination is not representable
			// combinationally.
			return nil, ErrorUnsupportedDesequentialisation
		}
	case boolalg.Negated:
		inner, err := compileCondition(ctx, dst, e.Inner(), portMap, memo)
		if err != nil {
			return nil, err
		}
		notI, err := ir.NewNot(inner)
		if err != nil {
			return nil, err
		}
		if err := dst.Append(notI); err != nil {
			return nil, err
		}
		return notI, nil
	case boolalg.And:
		return foldBoolChain(ctx, dst, e.Children(), ir.NewAnd, portMap, memo)
	case boolalg.Or:
		return foldBoolChain(ctx, dst, e.Children(), ir.NewOr, portMap, memo)
	default:
		return nil, ErrorUnsupportedDesequentialisation
	}
}

func foldBoolChain(ctx *ir.Context, dst instrAppender, children []*boolalg.Expr, build func(a, b ir.Value) (*ir.Instruction, error), portMap map[*ir.Argument]*ir.Argument, memo map[ir.Value]ir.Value) (ir.Value, error) {
	acc, err := compileCondition(ctx, dst, children[0], portMap, memo)
	if err != nil {
		return nil, err
	}
	for _, c := range children[1:] {
		rhs, err := compileCondition(ctx, dst, c, portMap, memo)
		if err != nil {
			return nil, err
		}
		next, err := build(acc, rhs)
		if err != nil {
			return nil, err
		}
		if err := dst.Append(next); err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

// muxValue synthesises select(cond, whenTrue, whenFalse) out of the
// existing Int/Logic opcode set, since the taxonomy has no dedicated
// select instruction: SExt replicates the single Int(1) condition bit
// across the full operand width (bit 0 of an Int(1) is its own sign bit,
// so SExt naturally broadcasts it to an all-1s or all-0s mask), then
// Or(And(mask, whenTrue), And(Not(mask), whenFalse)) picks one side. Logic-
// typed operands go through Lmap to reinterpret the Int mask bit-for-bit.
// A 1-bit datapath needs no broadcast at all: cond is already exactly the
// mask width, and NewSExt rejects a same-width "extension" as a no-op
// width mismatch, so that case skips straight to cond itself (Lmap'd to
// Logic(1) when the datapath is logic-typed).
func muxValue(ctx *ir.Context, dst instrAppender, cond, whenTrue, whenFalse ir.Value) (ir.Value, error) {
	ty := whenTrue.Type()
	intW, isInt := ty.IsInt()
	logicW, isLogic := ty.IsLogic()
	if !isInt && !isLogic {
		return nil, ErrorUnsupportedDesequentialisation
	}

	maskW := intW
	if isLogic {
		maskW = logicW
	}
	var maskIntI ir.Value = cond
	if maskW != 1 {
		sextI, err := ir.NewSExt(cond, ctx.Int(maskW))
		if err != nil {
			return nil, err
		}
		if err := dst.Append(sextI); err != nil {
			return nil, err
		}
		maskIntI = sextI
	}
	var mask ir.Value = maskIntI
	if isLogic {
		lmapI, err := ir.NewLmap(maskIntI, ctx.Logic(logicW))
		if err != nil {
			return nil, err
		}
		if err := dst.Append(lmapI); err != nil {
			return nil, err
		}
		mask = lmapI
	}

	notMaskI, err := ir.NewNot(mask)
	if err != nil {
		return nil, err
	}
	if err := dst.Append(notMaskI); err != nil {
		return nil, err
	}

	andTrueI, err := ir.NewAnd(mask, whenTrue)
	if err != nil {
		return nil, err
	}
	if err := dst.Append(andTrueI); err != nil {
		return nil, err
	}
	andFalseI, err := ir.NewAnd(notMaskI, whenFalse)
	if err != nil {
		return nil, err
	}
	if err := dst.Append(andFalseI); err != nil {
		return nil, err
	}

	orI, err := ir.NewOr(andTrueI, andFalseI)
	if err != nil {
		return nil, err
	}
	if err := dst.Append(orI); err != nil {
		return nil, err
	}
	return orI, nil
}

// foldMux rebuilds the single value driven onto a signal across every one
// of its drive records, last-record-wins when more than one guard can hold
// simultaneously (matching the simulator's last-write-in-visitation-order
// rule for overlapping drives): the first record's value seeds the
// accumulator, and every subsequent record wraps it in
// mux(cond_i, value_i, acc), so a later true guard always overrides an
// earlier one.
func foldMux(ctx *ir.Context, dst instrAppender, recs []driveRecord, portMap map[*ir.Argument]*ir.Argument, memo map[ir.Value]ir.Value) (ir.Value, error) {
	if len(recs) == 0 {
		return nil, ErrorUnsupportedDesequentialisation
	}
	acc, err := cloneValueInto(recs[0].instr.Operand(1), dst, portMap, memo)
	if err != nil {
		return nil, err
	}
	for _, r := range recs[1:] {
		val, err := cloneValueInto(r.instr.Operand(1), dst, portMap, memo)
		if err != nil {
			return nil, err
		}
		cond, err := compileCondition(ctx, dst, r.cond, portMap, memo)
		if err != nil {
			return nil, err
		}
		acc, err = muxValue(ctx, dst, cond, val, acc)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// DesequentialiseProcess implements §4.I.3: it builds proc's replacement
// Entity, classifying each of proc's driven output signals as
// combinational (folded into a direct drive from a mux of its guarded
// values) or storage-backed (a latch or flip-flop primitive Unit, wired by
// Inst, fed by the same mux as its data input and the signal's combined
// reachability condition as its enable), then retargets every Inst of proc
// to the new Entity via ReplaceAllUsesWith and returns it. It does not
// remove proc itself: the caller decides whether and when to erase it once
// satisfied nothing still requires its Process form (§4.I.3 step 6 leaves
// unlinking to the pass driver).
func DesequentialiseProcess(ctx *ir.Context, proc *ir.Unit) (*ir.Unit, error) {
	if proc.Kind != ir.ProcessKind {
		return nil, ErrorNotAProcess
	}

	bc := blockConditions(proc)
	records := collectDrives(proc, bc)
	order, groups := groupBySignal(records)

	entity := ir.NewUnit(proc.Type(), proc.Name()+"_comb", ir.EntityKind)
	portMap := make(map[*ir.Argument]*ir.Argument, len(proc.Params))
	for _, p := range proc.Params {
		np := ir.NewArgument(p.Type(), p.Name(), p.Dir)
		entity.AddParam(np)
		portMap[p] = np
	}

	memo := make(map[ir.Value]ir.Value)
	primitives := newStoragePrimitives()

	for _, sig := range order {
		recs := groups[sig]
		argSig, ok := sig.(*ir.Argument)
		if !ok {
			return nil, ErrorUnsupportedDesequentialisation
		}
		outSig, ok := portMap[argSig]
		if !ok {
			return nil, ErrorUnsupportedDesequentialisation
		}

		conds := make([]*boolalg.Expr, len(recs))
		for i, r := range recs {
			conds[i] = r.cond
		}
		combined := boolalg.DisjunctiveCNF(boolalg.NewOr(conds...))

		if combined.Kind() == boolalg.Const1 && !mentionsEdge(combined) {
			val, err := foldMux(ctx, entity.Body, recs, portMap, memo)
			if err != nil {
				return nil, err
			}
			driveI, err := ir.NewDrive(ctx, outSig, val, nil)
			if err != nil {
				return nil, err
			}
			if err := entity.Body.Append(driveI); err != nil {
				return nil, err
			}
			continue
		}

		kind := Latched
		if mentionsEdge(combined) {
			kind = FlopBacked
		}
		elemTy, _ := outSig.Type().Elem()
		prim, err := primitives.get(ctx, kind, elemTy)
		if err != nil {
			return nil, err
		}

		enableVal, err := compileCondition(ctx, entity.Body, combined, portMap, memo)
		if err != nil {
			return nil, err
		}
		dataVal, err := foldMux(ctx, entity.Body, recs, portMap, memo)
		if err != nil {
			return nil, err
		}

		instI, err := ir.NewInst(ctx, prim, []ir.Value{enableVal, dataVal}, []ir.Value{outSig})
		if err != nil {
			return nil, err
		}
		if err := entity.Body.Append(instI); err != nil {
			return nil, err
		}
	}

	ir.ReplaceAllUsesWith(proc, entity)
	return entity, nil
}
