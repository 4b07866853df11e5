// Package ir implements the LHD value/use graph, its typed constants, the
// Module/Unit/Block/Instruction container hierarchy, and the instruction
// taxonomy.
package ir

import "lhd/internal/types"

// Value is the universe of IR nodes: Constant, Argument, Block, Instruction,
// and Unit all implement it (Unit participates so that Inst/Call operands
// referencing a callee can be retargeted by ReplaceAllUsesWith, e.g. when
// desequentialisation replaces a Process with its Entity).
type Value interface {
	Type() *types.Type
	Name() string
	SetName(name string)
	Users() []*Use
}

// Use is one def-use edge: User holds usee as its operand at Index.
type Use struct {
	User  *Instruction
	Index int
	usee  Value
}

// Usee returns the value this use refers to.
func (u *Use) Usee() Value { return u.usee }

// valueBase implements the common Value capabilities shared by every
// concrete IR node (§3's "polymorphic over the capability set" model).
type valueBase struct {
	typ   *types.Type
	name  string
	users []*Use
}

func (v *valueBase) Type() *types.Type { return v.typ }
func (v *valueBase) Name() string      { return v.name }
func (v *valueBase) SetName(n string)  { v.name = n }
func (v *valueBase) Users() []*Use     { return v.users }

func (v *valueBase) addUse(u *Use) {
	v.users = append(v.users, u)
}

func (v *valueBase) removeUse(u *Use) {
	for i, existing := range v.users {
		if existing == u {
			v.users = append(v.users[:i], v.users[i+1:]...)
			return
		}
	}
}

func usersOf(v Value) *valueBase {
	switch t := v.(type) {
	case *Constant:
		return &t.valueBase
	case *Argument:
		return &t.valueBase
	case *Block:
		return &t.valueBase
	case *Instruction:
		return &t.valueBase
	case *Unit:
		return &t.valueBase
	default:
		panic("ir: unknown Value implementation")
	}
}

// addUseOn records that user holds usee as operand index, validating the
// no-self-use invariant from §3.
func addUseOn(user *Instruction, index int, usee Value) *Use {
	if Value(user) == usee {
		panic("ir: instruction may not use itself as an operand")
	}
	u := &Use{User: user, Index: index, usee: usee}
	usersOf(usee).addUse(u)
	return u
}

func removeUseFrom(u *Use) {
	usersOf(u.usee).removeUse(u)
}

// ReplaceAllUsesWith walks old's user list and asks each user to
// substitute operand old with repl (§3's universal `replace_all_uses_with`
// operation, also used by constant folding and desequentialisation).
func ReplaceAllUsesWith(old, repl Value) {
	// Copy first: Substitute mutates old's user list as it detaches uses.
	users := append([]*Use(nil), usersOf(old).users...)
	for _, u := range users {
		u.User.Substitute(old, repl)
	}
}

// Unlink detaches v from its parent container (if any) and drops the uses
// it holds on its own operands. It does not touch v's own user list: the
// caller must already have emptied it (or be calling Unlink precisely to
// reduce it to zero before disposal, per §4.D's ownership rule).
func Unlink(v Value) {
	switch t := v.(type) {
	case *Instruction:
		t.unlinkSelf()
	case *Block:
		t.unlinkSelf()
	case *Unit:
		t.unlinkSelf()
	default:
		// Constants and Arguments are owned by their Context/Unit and are
		// never individually unlinked.
	}
}

// Erase unlinks v and then asserts it has no outstanding users, matching
// the destruction-time invariant of §3/§4.D.
func Erase(v Value) error {
	Unlink(v)
	if len(v.Users()) != 0 {
		return ErrorHasUsers
	}
	return nil
}
