package ir

// Block is a basic block: a name, a parent Unit, and an ordered,
// doubly-linked instruction list whose final instruction must be a
// terminator (§3, §4.F).
type Block struct {
	valueBase
	Parent *Unit
	first  *Instruction
	last   *Instruction
	prev   *Block
	next   *Block
}

// NewBlock creates a detached block of the given name. Its Type is Label
// (blocks are first-class Values so they can appear as Br/Switch
// operands).
func NewBlock(ctx *Context, name string) *Block {
	return &Block{valueBase: valueBase{typ: ctx.LabelTy(), name: name}}
}

func (b *Block) firstInstr() *Instruction        { return b.first }
func (b *Block) lastInstr() *Instruction         { return b.last }
func (b *Block) setFirstInstr(i *Instruction)    { b.first = i }
func (b *Block) setLastInstr(i *Instruction)     { b.last = i }

// First returns the block's first instruction, or nil if empty.
func (b *Block) First() *Instruction { return b.first }

// Last returns the block's last instruction (the terminator, for a
// well-formed block), or nil if empty.
func (b *Block) Last() *Instruction { return b.last }

// Terminator returns the block's terminator instruction, or nil if the
// block has none yet (transiently, during construction).
func (b *Block) Terminator() *Instruction {
	if b.last != nil && b.last.Op.IsTerminator() {
		return b.last
	}
	return nil
}

func (b *Block) hasTerminator() bool {
	return b.last != nil && b.last.Op.IsTerminator()
}

// Append adds i as the block's new last instruction. Appending after an
// existing terminator fails with ErrorMalformedBlock (§4.F).
func (b *Block) Append(i *Instruction) error {
	if b.hasTerminator() {
		return ErrorMalformedBlock
	}
	appendInstr(b, i)
	return nil
}

// Prepend adds i as the block's new first instruction. Prepending into a
// block whose only instruction is its terminator is allowed (the
// terminator remains last); prepending is rejected only if it would ever
// place something after the terminator, which structurally cannot happen
// since prepend always targets the front.
func (b *Block) Prepend(i *Instruction) error {
	prependInstr(b, i)
	return nil
}

// InsertBefore inserts i immediately before mark, which must already be
// in b.
func (b *Block) InsertBefore(mark, i *Instruction) {
	insertBeforeInstr(mark, i)
}

// InsertAfter inserts i immediately after mark. Inserting after the
// terminator is rejected.
func (b *Block) InsertAfter(mark, i *Instruction) error {
	if mark == b.last && mark.Op.IsTerminator() {
		return ErrorMalformedBlock
	}
	insertAfterInstr(mark, i)
	return nil
}

// Instructions returns the block's instructions in order. Prefer walking
// First()/Next() for large blocks; this is a convenience for tests and
// passes that want a slice.
func (b *Block) Instructions() []*Instruction {
	var out []*Instruction
	for i := b.first; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

func (b *Block) unlinkSelf() {
	for i := b.first; i != nil; {
		next := i.next
		i.unlinkSelf()
		i = next
	}
	if b.Parent != nil {
		b.Parent.removeBlock(b)
	}
}

// Entity is a concurrent structural container: a flat, doubly-linked list
// of concurrent instructions (Sig, Drive, Inst, and combinationally-driven
// arithmetic/logic) with no control flow (§3).
type Entity struct {
	Parent *Unit
	first  *Instruction
	last   *Instruction
}

func (e *Entity) firstInstr() *Instruction     { return e.first }
func (e *Entity) lastInstr() *Instruction      { return e.last }
func (e *Entity) setFirstInstr(i *Instruction) { e.first = i }
func (e *Entity) setLastInstr(i *Instruction)  { e.last = i }

// Append adds i to the end of the entity's concurrent instruction list.
// i must be a concurrent opcode (Sig, Drive, Probe, Inst, or a pure
// combinational op); Load/Store/Alloc are rejected per §3's container
// invariant since process-local memory has no meaning outside sequential
// control flow.
func (e *Entity) Append(i *Instruction) error {
	if !isConcurrentOp(i.Op) {
		return ErrorTypeMismatch
	}
	appendInstr(e, i)
	return nil
}

// Instructions returns the entity's instructions in order.
func (e *Entity) Instructions() []*Instruction {
	var out []*Instruction
	for i := e.first; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// isConcurrentOp reports whether op may appear in an Entity's flat
// instruction list. Process-local memory (Alloc/Load/Store) and control
// flow (Wait/Br/Switch/Ret) have no meaning in a container with no
// sequencing; Probe is legal here (and in Process/Function bodies) since
// reading a signal's current value is how continuous assignment is
// expressed.
func isConcurrentOp(op Opcode) bool {
	switch op {
	case OpAlloc, OpLoad, OpStore, OpWait, OpBr, OpSwitch, OpRet:
		return false
	default:
		return true
	}
}
