package ir

import "lhd/internal/types"

// instrHost is whatever currently owns an Instruction's position: a Block
// (sequential, Process/Function) or an Entity (concurrent, flat list).
type instrHost interface {
	firstInstr() *Instruction
	lastInstr() *Instruction
	setFirstInstr(*Instruction)
	setLastInstr(*Instruction)
}

// SwitchCase pairs a case constant with its destination block.
type SwitchCase struct {
	Value Value
	Block *Block
}

// Instruction is one node of the instruction taxonomy of §4.G. Opcode-
// specific shape (branch targets, immediates, callee) is carried in the
// fields below rather than a deep per-opcode type hierarchy, matching the
// "tagged variant plus a match on the opcode" design noted in §9.
type Instruction struct {
	valueBase

	Op       Opcode
	operands []Value
	opUses   []*Use

	// Br: [target] (unconditional) or [trueBlock, falseBlock] (conditional,
	// operand 0 is the Int(1) condition).
	// Switch: Default is the fallback block; Cases pairs each remaining
	// target with its matching constant, evaluated in declaration order.
	Target  *Block
	IfTrue  *Block
	IfFalse *Block
	Default *Block
	Cases   []SwitchCase

	// Extract(idx,len) / Insert(idx) / Sel(ranges).
	Index  uint32
	Length uint32
	Ranges [][2]uint32

	// Cmp predicate.
	Pred CmpPred

	// Wait.
	Kind    WaitKind
	WaitAbs bool // absolute vs. relative time, only meaningful for WaitOnTime

	// Inst / Call callee and the input/output split of operands (Inst's
	// operands are inputs followed by output signals; NumInputs marks the
	// boundary).
	Callee    *Unit
	NumInputs int

	host instrHost
	prev *Instruction
	next *Instruction
}

func newInstruction(op Opcode, resultType *types.Type, operands []Value) *Instruction {
	i := &Instruction{valueBase: valueBase{typ: resultType}, Op: op}
	i.setOperands(operands)
	return i
}

func (i *Instruction) setOperands(operands []Value) {
	i.operands = append([]Value(nil), operands...)
	i.opUses = make([]*Use, len(operands))
	for idx, v := range operands {
		if v == nil {
			continue
		}
		i.opUses[idx] = addUseOn(i, idx, v)
	}
}

// Operands returns the instruction's SSA-valued operand list.
func (i *Instruction) Operands() []Value { return append([]Value(nil), i.operands...) }

// Operand returns operand idx.
func (i *Instruction) Operand(idx int) Value { return i.operands[idx] }

// Parent returns the Block currently containing i, or nil if i lives in an
// Entity or is detached.
func (i *Instruction) Parent() *Block {
	if b, ok := i.host.(*Block); ok {
		return b
	}
	return nil
}

// ParentEntity returns the Entity currently containing i, or nil.
func (i *Instruction) ParentEntity() *Entity {
	if e, ok := i.host.(*Entity); ok {
		return e
	}
	return nil
}

// Prev/Next expose the intrusive instruction list for forward/backward
// iteration (§9: forward-only lazy sequence; Next suffices for passes,
// Prev is offered for symmetry with the doubly linked invariant of §4.F).
func (i *Instruction) Prev() *Instruction { return i.prev }
func (i *Instruction) Next() *Instruction { return i.next }

// Substitute implements the operand-level half of replace_all_uses_with:
// every operand slot, and every block-target/case/callee slot tracked as
// an extra Use beyond the SSA operand array, equal to old is replaced by
// repl. Every Use that referenced old is retargeted to repl so the
// use-graph stays consistent with the display fields (§3/§4.D).
func (i *Instruction) Substitute(old, repl Value) {
	for idx, v := range i.operands {
		if v == old {
			if i.opUses[idx] != nil {
				removeUseFrom(i.opUses[idx])
			}
			i.operands[idx] = repl
			i.opUses[idx] = addUseOn(i, idx, repl)
		}
	}
	// Extra uses (block targets, switch cases, callees) are appended to
	// opUses beyond the operand-aligned prefix by the New* builders; their
	// usee must be retargeted the same way, or the use-graph would still
	// list i as a user of old after this call returns.
	for _, u := range i.opUses {
		if u != nil && u.usee == old {
			retargetUse(u, repl)
		}
	}
	if oldBlk, ok := old.(*Block); ok {
		newBlk, _ := repl.(*Block)
		if i.Target == oldBlk {
			i.Target = newBlk
		}
		if i.IfTrue == oldBlk {
			i.IfTrue = newBlk
		}
		if i.IfFalse == oldBlk {
			i.IfFalse = newBlk
		}
		if i.Default == oldBlk {
			i.Default = newBlk
		}
		for idx := range i.Cases {
			if i.Cases[idx].Block == oldBlk {
				i.Cases[idx].Block = newBlk
			}
		}
	}
	if oldUnit, ok := old.(*Unit); ok {
		if i.Callee == oldUnit {
			i.Callee, _ = repl.(*Unit)
		}
	}
}

// retargetUse moves u from its current usee to repl without changing its
// User/Index, so a single Use object can back a long-lived field (Target,
// Callee, a SwitchCase) across repeated substitutions.
func retargetUse(u *Use, repl Value) {
	usersOf(u.usee).removeUse(u)
	u.usee = repl
	usersOf(repl).addUse(u)
}

// unlinkSelf detaches i from its container (if any) and drops the uses it
// holds on its own operands (§3/§4.D unlink semantics).
func (i *Instruction) unlinkSelf() {
	if i.host != nil {
		removeFromHost(i)
	}
	for _, u := range i.opUses {
		if u != nil {
			removeUseFrom(u)
		}
	}
	i.opUses = nil
}

// --- container primitives shared by Block and Entity ---

func appendInstr(host instrHost, i *Instruction) {
	if last := host.lastInstr(); last != nil {
		last.next = i
		i.prev = last
	} else {
		host.setFirstInstr(i)
	}
	host.setLastInstr(i)
	i.host = host
}

func prependInstr(host instrHost, i *Instruction) {
	if first := host.firstInstr(); first != nil {
		first.prev = i
		i.next = first
	} else {
		host.setLastInstr(i)
	}
	host.setFirstInstr(i)
	i.host = host
}

func insertBeforeInstr(mark, i *Instruction) {
	host := mark.host
	i.prev = mark.prev
	i.next = mark
	if mark.prev != nil {
		mark.prev.next = i
	} else {
		host.setFirstInstr(i)
	}
	mark.prev = i
	i.host = host
}

func insertAfterInstr(mark, i *Instruction) {
	host := mark.host
	i.next = mark.next
	i.prev = mark
	if mark.next != nil {
		mark.next.prev = i
	} else {
		host.setLastInstr(i)
	}
	mark.next = i
	i.host = host
}

func removeFromHost(i *Instruction) {
	host := i.host
	if i.prev != nil {
		i.prev.next = i.next
	} else {
		host.setFirstInstr(i.next)
	}
	if i.next != nil {
		i.next.prev = i.prev
	} else {
		host.setLastInstr(i.prev)
	}
	i.prev, i.next, i.host = nil, nil, nil
}

// RemoveFromParent detaches i from its current container without
// destroying it; i may be reinserted elsewhere.
func (i *Instruction) RemoveFromParent() {
	if i.host != nil {
		removeFromHost(i)
	}
}

// CloneWithOperands builds a fresh, detached Instruction with the same
// opcode, result type, comparison predicate, and aggregate index/length/
// range metadata as i, but with operands replaced by newOperands. Passes
// that rehome a pure value expression into a different container (desequ-
// entialisation, rebuilding a combinational drive expression inside a new
// Entity) use this instead of re-deriving each opcode's builder call. i
// must not be a terminator, Inst, or Call: those carry block/unit
// identity a generic clone cannot repopulate, so CloneWithOperands panics
// if asked to clone one.
func CloneWithOperands(i *Instruction, newOperands []Value) *Instruction {
	if i.Op.IsTerminator() || i.Op == OpInst || i.Op == OpCall {
		panic("ir: CloneWithOperands does not support terminators, Inst, or Call")
	}
	clone := newInstruction(i.Op, i.Type(), newOperands)
	clone.Pred = i.Pred
	clone.Index, clone.Length = i.Index, i.Length
	clone.Ranges = append([][2]uint32(nil), i.Ranges...)
	return clone
}
