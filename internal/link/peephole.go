package link

import "github.com/jewelscript-go/jilc/internal/types"

// peepholeFunction runs the linker's local bytecode cleanup pass over
// fn (spec.md §4.12: "a final peephole optimization pass over the
// linked image"). It eliminates self-moves, dead moveh/copyh loads
// immediately overwritten before use, and collapses runs of adjacent
// pop into a single popm, then remaps every branch target and literal
// code offset through the index shift the elimination caused.
//
// Ordering matters: dead-load and self-move elimination only ever
// drop individual instructions (never merge), so they run in the same
// left-to-right pass; pop-run collapsing replaces a run with one
// instruction and is easiest to reason about as its own pass over
// the already-shrunk code.
func peepholeFunction(fn *types.Function) (movesEliminated, popRunsCollapsed, deadLoadsRemoved int) {
	code, offsetMap, moves, dead := eliminateDeadAndSelf(fn.Bytecode)
	code, offsetMap2, pops := collapsePopRuns(code)

	combined := make([]int, len(fn.Bytecode))
	for old, mid := range offsetMap {
		if mid < 0 {
			combined[old] = -1
			continue
		}
		combined[old] = offsetMap2[mid]
	}

	remapBranches(code, combined, len(fn.Bytecode))
	remapLiterals(fn.Literals, combined)

	fn.Bytecode = code
	return moves, pops, dead
}

// eliminateDeadAndSelf drops self-moves (move/copy whose destination
// and source operand are identical) and a moveh/copyh whose loaded
// register is overwritten by the very next instruction's destination
// before ever being read, returning the rewritten code and an
// old-index -> new-index map (-1 for a dropped instruction).
func eliminateDeadAndSelf(in []types.Instr) (out []types.Instr, offsetMap []int, moves, dead int) {
	offsetMap = make([]int, len(in))
	out = make([]types.Instr, 0, len(in))

	drop := make([]bool, len(in))
	for i, instr := range in {
		if drop[i] {
			continue
		}
		switch instr.Op {
		case types.OpMove, types.OpCopy:
			if len(instr.Operands) == 2 && instr.Operands[0] == instr.Operands[1] {
				drop[i] = true
				moves++
				continue
			}
		case types.OpMoveH, types.OpCopyH:
			if i+1 < len(in) && isDeadLoad(instr, in[i+1]) {
				drop[i] = true
				dead++
				continue
			}
		}
	}

	for i, instr := range in {
		if drop[i] {
			offsetMap[i] = -1
			continue
		}
		offsetMap[i] = len(out)
		out = append(out, instr)
	}
	return out, offsetMap, moves, dead
}

// isDeadLoad reports whether load's single destination operand is
// unconditionally clobbered by next before anything could have read
// it: next is itself a load/move whose own destination is the exact
// same operand, and next does not also read it as a source.
func isDeadLoad(load, next types.Instr) bool {
	if len(load.Operands) == 0 {
		return false
	}
	dst := load.Operands[0]
	switch next.Op {
	case types.OpMoveH, types.OpCopyH:
		return len(next.Operands) > 0 && next.Operands[0] == dst
	case types.OpMove, types.OpCopy:
		if len(next.Operands) != 2 {
			return false
		}
		return next.Operands[0] == dst && next.Operands[1] != dst
	default:
		return false
	}
}

// collapsePopRuns replaces every maximal run of 2+ consecutive OpPop
// with a single OpPopM carrying the run length as Imm.
func collapsePopRuns(in []types.Instr) (out []types.Instr, offsetMap []int, runs int) {
	offsetMap = make([]int, len(in))
	out = make([]types.Instr, 0, len(in))

	i := 0
	for i < len(in) {
		if in[i].Op != types.OpPop {
			offsetMap[i] = len(out)
			out = append(out, in[i])
			i++
			continue
		}
		j := i
		for j < len(in) && in[j].Op == types.OpPop {
			j++
		}
		n := j - i
		if n == 1 {
			offsetMap[i] = len(out)
			out = append(out, in[i])
			i++
			continue
		}
		runs++
		target := len(out)
		out = append(out, types.Instr{Op: types.OpPopM, Imm: int64(n)})
		for k := i; k < j; k++ {
			offsetMap[k] = target
		}
		i = j
	}
	return out, offsetMap, runs
}

// remapBranches rewrites every branch instruction's absolute target
// through offsetMap, special-casing a target equal to oldLen (a
// branch to the function's end) as newLen since no real instruction
// occupies that slot in either version.
func remapBranches(code []types.Instr, offsetMap []int, oldLen int) {
	newLen := len(code)
	for i := range code {
		switch code[i].Op {
		case types.OpBra, types.OpBrz, types.OpBrnz:
			code[i].Imm = int64(remapOffset(int(code[i].Imm), offsetMap, oldLen, newLen))
		}
	}
}

func remapOffset(old int, offsetMap []int, oldLen, newLen int) int {
	if old == oldLen {
		return newLen
	}
	if old < 0 || old >= len(offsetMap) {
		return old
	}
	for cur := old; cur < len(offsetMap); cur++ {
		if offsetMap[cur] >= 0 {
			return offsetMap[cur]
		}
	}
	return newLen
}

// remapLiterals rewrites every literal's CodeOffset through the same
// map, since it indexes the bytecode the peephole pass just reshaped.
func remapLiterals(lits []types.Literal, offsetMap []int) {
	for i := range lits {
		lits[i].CodeOffset = remapOffset(lits[i].CodeOffset, offsetMap, len(offsetMap), len(offsetMap))
	}
}
