package passes

import "lhd/internal/ir"

// EliminateUnreachableBlocks removes every non-entry block of unit whose
// predecessor count reaches zero, following §4.I.2's work-list algorithm.
// It returns the number of blocks removed.
func EliminateUnreachableBlocks(unit *ir.Unit) int {
	blocks := unit.Blocks()
	entry := unit.Entry()
	preds := make(map[*ir.Block]int, len(blocks))
	for _, b := range blocks {
		preds[b] = 0
	}
	for _, b := range blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		for _, s := range successorsOf(term) {
			preds[s]++
		}
	}

	var worklist []*ir.Block
	for _, b := range blocks {
		if b != entry && preds[b] == 0 {
			worklist = append(worklist, b)
		}
	}

	removed := 0
	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		if term := b.Terminator(); term != nil {
			for _, s := range successorsOf(term) {
				preds[s]--
				if preds[s] == 0 && s != entry {
					worklist = append(worklist, s)
				}
			}
		}
		_ = ir.Erase(b)
		removed++
	}
	return removed
}

// successorsOf returns the blocks a terminator instruction may transfer
// control to. Every Wait variant (timed, conditional, or unconditional)
// resumes at its Target.
func successorsOf(term *ir.Instruction) []*ir.Block {
	var out []*ir.Block
	switch term.Op {
	case ir.OpBr:
		if term.Target != nil {
			out = append(out, term.Target)
		}
		if term.IfTrue != nil {
			out = append(out, term.IfTrue)
		}
		if term.IfFalse != nil {
			out = append(out, term.IfFalse)
		}
	case ir.OpSwitch:
		if term.Default != nil {
			out = append(out, term.Default)
		}
		for _, c := range term.Cases {
			out = append(out, c.Block)
		}
	case ir.OpWait:
		if term.Target != nil {
			out = append(out, term.Target)
		}
	}
	return out
}
