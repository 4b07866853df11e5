package ir

import "lhd/internal/types"

// UnitKind distinguishes the three Unit flavors of §3: Entity (concurrent,
// no control flow), Process (sequential, may drive signals and wait), and
// Function (pure computation, no signals).
type UnitKind int

const (
	EntityKind UnitKind = iota
	ProcessKind
	FunctionKind
)

// Unit is an Entity, Process, or Function, in definition or declaration
// form, owned by a Module. A Unit is itself a Value so Inst/Call operands
// referencing it as a callee participate in the use graph (this is what
// lets desequentialisation retarget every Inst of a Process to its
// replacement Entity via ReplaceAllUsesWith).
type Unit struct {
	valueBase
	Kind   UnitKind
	Module *Module
	IsDecl bool

	Params []*Argument

	// Process/Function body.
	firstBlock *Block
	lastBlock  *Block

	// Entity body.
	Body *Entity

	prevUnit *Unit
	nextUnit *Unit
}

// NewUnit creates a detached Unit of the given kind, name and signature
// type (a Func or Comp type from the owning Context).
func NewUnit(sig *types.Type, name string, kind UnitKind) *Unit {
	u := &Unit{valueBase: valueBase{typ: sig, name: name}, Kind: kind}
	if kind == EntityKind {
		u.Body = &Entity{Parent: u}
	}
	return u
}

// AddParam appends a formal parameter to the Unit and sets its parent.
func (u *Unit) AddParam(a *Argument) {
	a.Parent = u
	u.Params = append(u.Params, a)
}

// Entry returns the Unit's entry block: the first block in declaration
// order. It is never removed by unreachable-block elimination even if it
// gains zero predecessors (§3, §4.I.2).
func (u *Unit) Entry() *Block { return u.firstBlock }

// Blocks returns the Unit's blocks in declaration order.
func (u *Unit) Blocks() []*Block {
	var out []*Block
	for b := u.firstBlock; b != nil; b = b.next {
		out = append(out, b)
	}
	return out
}

// AppendBlock adds b as the Unit's new last block.
func (u *Unit) AppendBlock(b *Block) {
	b.Parent = u
	if u.lastBlock != nil {
		u.lastBlock.next = b
		b.prev = u.lastBlock
	} else {
		u.firstBlock = b
	}
	u.lastBlock = b
}

// InsertBlockAfter inserts b immediately after mark in declaration order.
func (u *Unit) InsertBlockAfter(mark, b *Block) {
	b.Parent = u
	b.prev = mark
	b.next = mark.next
	if mark.next != nil {
		mark.next.prev = b
	} else {
		u.lastBlock = b
	}
	mark.next = b
}

func (u *Unit) removeBlock(b *Block) {
	if b.prev != nil {
		b.prev.next = b.next
	} else {
		u.firstBlock = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	} else {
		u.lastBlock = b.prev
	}
	b.prev, b.next, b.Parent = nil, nil, nil
}

func (u *Unit) unlinkSelf() {
	for b := u.firstBlock; b != nil; {
		next := b.next
		b.unlinkSelf()
		b = next
	}
	if u.Body != nil {
		for i := u.Body.first; i != nil; {
			next := i.next
			i.unlinkSelf()
			i = next
		}
	}
	if u.Module != nil {
		u.Module.removeUnit(u)
	}
}

// Module owns an ordered, doubly-linked list of Units (§3).
type Module struct {
	Ctx       *Context
	firstUnit *Unit
	lastUnit  *Unit
	names     map[string]*Unit
}

// NewModule creates an empty Module over ctx.
func NewModule(ctx *Context) *Module {
	return &Module{Ctx: ctx, names: make(map[string]*Unit)}
}

// Units returns the module's units in insertion order.
func (m *Module) Units() []*Unit {
	var out []*Unit
	for u := m.firstUnit; u != nil; u = u.nextUnit {
		out = append(out, u)
	}
	return out
}

// Lookup returns the unit with the given global name, if any.
func (m *Module) Lookup(name string) (*Unit, bool) {
	u, ok := m.names[name]
	return u, ok
}

// AppendUnit adds u to the end of the module's unit list. Two units
// sharing a non-empty name fail with ErrorNameCollision (§7); anonymous
// units (empty name) are never collision-checked.
func (m *Module) AppendUnit(u *Unit) error {
	if u.Name() != "" {
		if _, exists := m.names[u.Name()]; exists {
			return ErrorNameCollision
		}
		m.names[u.Name()] = u
	}
	u.Module = m
	if m.lastUnit != nil {
		m.lastUnit.nextUnit = u
		u.prevUnit = m.lastUnit
	} else {
		m.firstUnit = u
	}
	m.lastUnit = u
	return nil
}

func (m *Module) removeUnit(u *Unit) {
	if u.prevUnit != nil {
		u.prevUnit.nextUnit = u.nextUnit
	} else {
		m.firstUnit = u.nextUnit
	}
	if u.nextUnit != nil {
		u.nextUnit.prevUnit = u.prevUnit
	} else {
		m.lastUnit = u.prevUnit
	}
	if u.Name() != "" {
		delete(m.names, u.Name())
	}
	u.prevUnit, u.nextUnit, u.Module = nil, nil, nil
}

// Merge appends every unit of other into m, failing with
// ErrorNameCollision at the first colliding global name and leaving m
// unchanged by the units processed so far on failure (link-style merging,
// §7). other and m must share a Context.
func (m *Module) Merge(other *Module) error {
	if other.Ctx != m.Ctx {
		return ErrorWrongContext
	}
	for _, name := range namesOf(other) {
		if _, exists := m.names[name]; exists {
			return ErrorNameCollision
		}
	}
	for _, u := range other.Units() {
		u.Module = nil
		u.prevUnit, u.nextUnit = nil, nil
		if err := m.AppendUnit(u); err != nil {
			return err
		}
	}
	other.firstUnit, other.lastUnit = nil, nil
	other.names = make(map[string]*Unit)
	return nil
}

func namesOf(m *Module) []string {
	names := make([]string, 0, len(m.names))
	for n := range m.names {
		names = append(names, n)
	}
	return names
}
