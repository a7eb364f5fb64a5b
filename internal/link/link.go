// Package link implements the Linker (C12): it assigns every function
// its final code offset/handle, resolves every pre-link packed
// (owner,index) function reference left behind by the parser/code
// generator into that handle, allocates constant-table handles for the
// literal pool, verifies hybrid interface-dispatch wiring, and runs a
// peephole pass over the finished bytecode (spec.md §4.12).
package link

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/types"
)

// Stats reports what one Link pass did, the linker-side analogue of
// the parser's diag.Sink counters.
type Stats struct {
	FunctionsLinked   int
	CallSitesPatched  int
	LiteralsPatched   int
	HybridsVerified   int
	MovesEliminated   int
	PopRunsCollapsed  int
	DeadLoadsRemoved  int
}

// Linker walks a session's whole type registry once its two-pass
// driver has finished compiling every unit (spec.md §4.12: "after
// parsing, the linker consumes all per-function buffers and produces
// the final image").
type Linker struct {
	Reg *types.Registry

	// nextHandle hands out final function handles in visitation order
	// (Global pseudo-class first, then every class by TypeId, methods
	// in declaration index order) -- deterministic given a fixed
	// registry, but not meaningful as an absolute number beyond that.
	nextHandle int
	// nextConst hands out VM constant-table handles for literal pool
	// entries, one shared counter across every function (spec.md
	// §4.12 "allocate constant-table handles").
	nextConst int

	byRef map[int64]*types.Function
}

// New creates a Linker over reg. reg must already have every unit's
// pass 1 and pass 2 complete (spec.md §4.12's "declared -> defined ->
// linked" state machine assumes no function is still mid-compile).
func New(reg *types.Registry) *Linker {
	return &Linker{Reg: reg, byRef: map[int64]*types.Function{}}
}

// Link runs the full five-step algorithm and returns what it did.
// Failure is reported as the returned error for a consistency error
// that should never occur from well-formed input (spec.md §4.12
// "Failure semantics"); a resolvable call/literal ref that doesn't
// exist is such an error, since the parser/driver is the only thing
// that ever manufactures one.
func (l *Linker) Link() (Stats, error) {
	var st Stats

	classes := l.Reg.Classes()
	for _, c := range classes {
		if c == nil {
			continue
		}
		for _, fn := range c.Functions {
			l.assignHandle(c.ID, fn)
			st.FunctionsLinked++
		}
	}

	for _, c := range classes {
		if c == nil {
			continue
		}
		for _, fn := range c.Functions {
			callsPatched, err := l.patchCallSites(fn)
			if err != nil {
				return st, err
			}
			st.CallSitesPatched += callsPatched

			litsPatched, err := l.patchLiterals(fn)
			if err != nil {
				return st, err
			}
			st.LiteralsPatched += litsPatched
		}
	}

	for _, c := range classes {
		if c == nil {
			continue
		}
		for _, fn := range c.Functions {
			if fn.HybridDelegateLink >= 0 {
				if err := verifyHybridDispatch(c, fn); err != nil {
					return st, err
				}
				st.HybridsVerified++
			}
		}
	}

	for _, c := range classes {
		if c == nil {
			continue
		}
		for _, fn := range c.Functions {
			moves, pops, dead := peepholeFunction(fn)
			st.MovesEliminated += moves
			st.PopRunsCollapsed += pops
			st.DeadLoadsRemoved += dead
		}
	}

	return st, nil
}

// assignHandle gives fn its final linker-assigned identity (spec.md
// §3: "final handle assigned by the linker, -1 until then") and
// indexes it by its pre-link packed ref so later passes can resolve a
// call/literal/delegate-construction site in O(1).
func (l *Linker) assignHandle(owner types.TypeId, fn *types.Function) {
	fn.Handle = l.nextHandle
	l.nextHandle++
	l.byRef[types.PackFuncRef(owner, fn.Index)] = fn
}

// resolveRef looks up the function a pre-link packed ref denotes,
// failing only if the parser/driver produced a ref to a function that
// was never registered -- an internal consistency error, not a
// user-facing diagnostic.
func (l *Linker) resolveRef(ref int64) (*types.Function, error) {
	fn, ok := l.byRef[ref]
	if !ok {
		owner, idx := types.UnpackFuncRef(ref)
		return nil, fmt.Errorf("link: unresolved function ref (owner=%d, index=%d)", owner, idx)
	}
	return fn, nil
}

// patchCallSites resolves every pre-link packed function ref left in
// fn's bytecode to the target's final handle. Only the opcodes that
// carry such a ref before linking are touched: calls (direct global/
// static dispatch) and newdg/newdgm (first-class delegate
// construction, spec.md §4.8's funcValueRef path) -- callm/calli/calln
// address their target by (owner,index) at runtime and are never
// rewritten here (spec.md §4.12 names "calls", the owner/index-keyed
// forms are a VM runtime-dispatch contract, not a link-time one).
func (l *Linker) patchCallSites(fn *types.Function) (int, error) {
	n := 0
	for i := range fn.Bytecode {
		instr := &fn.Bytecode[i]
		switch instr.Op {
		case types.OpCallS, types.OpNewDG, types.OpNewDGM:
			target, err := l.resolveRef(instr.Imm)
			if err != nil {
				return n, fmt.Errorf("link: %s in %s::%s: %w", instr.Op, l.Reg.TypeName(fn.Owner), fn.Name, err)
			}
			instr.Imm = int64(target.Handle)
			n++
		}
	}
	return n, nil
}

// patchLiterals allocates a constant-table handle for every literal in
// fn's pool and patches the moveh/copyh that loads it. A delegate
// literal's Handle field holds a pre-link packed function ref instead
// of raw literal data (literal.Resolver.Resolve writes it from the
// driver-supplied CompileAnonFunc callback), so it is resolved through
// the same function table as a call site rather than given a fresh
// constant slot.
func (l *Linker) patchLiterals(fn *types.Function) (int, error) {
	n := 0
	for i := range fn.Literals {
		lit := &fn.Literals[i]
		var handle int
		if lit.Kind == types.LitDelegate {
			target, err := l.resolveRef(int64(lit.Handle))
			if err != nil {
				return n, fmt.Errorf("link: delegate literal in %s::%s: %w", l.Reg.TypeName(fn.Owner), fn.Name, err)
			}
			handle = target.Handle
		} else {
			handle = l.nextConst
			l.nextConst++
		}
		lit.Handle = handle
		if lit.CodeOffset < 0 || lit.CodeOffset >= len(fn.Bytecode) {
			return n, fmt.Errorf("link: literal %d in %s::%s has out-of-range code offset %d", i, l.Reg.TypeName(fn.Owner), fn.Name, lit.CodeOffset)
		}
		fn.Bytecode[lit.CodeOffset].Imm = int64(handle)
		n++
	}
	return n, nil
}

// verifyHybridDispatch checks that a hybrid forwarder's own bytecode
// already addresses the delegate member slot class.wireHybrid recorded
// when the class was parsed (class.go's synthesizeForwarder bakes the
// dispatch directly into the method body at parse time). The linker
// therefore never rewrites this bytecode -- it only confirms the
// invariant holds, surfacing a fatal consistency error if parse-time
// wiring and the function's own HybridDelegateLink ever disagree.
func verifyHybridDispatch(owner *types.Class, fn *types.Function) error {
	for _, instr := range fn.Bytecode {
		for _, op := range instr.Operands {
			if op.Mode == types.AddrMember && op.Slot == fn.HybridDelegateLink {
				return nil
			}
		}
	}
	return fmt.Errorf("link: hybrid forwarder %s::%s never addresses its recorded delegate slot %d", owner.Name, fn.Name, fn.HybridDelegateLink)
}
