// Package clause implements the Clause/Goto Engine (C10): it tracks
// named blocks within a `clause` statement and back-patches the
// stack-unwind and branch targets each `goto` leaves behind.
//
// Grounded on original_source/jilruntime/src/jclclause.{c,h}: a clause
// tracks its unroll stack position, its parameter variable, the set
// of named blocks (label + code position) and gotos (label, pop-patch
// position, branch-patch position, stack position at the goto, source
// position), plus a pointer to the lexically enclosing clause. This
// repo keeps all five fields, using a parent pointer and arena-backed
// slices instead of the original's linked lists (spec.md §9 design
// note: "Pointer-chained linked lists ... become arena-allocated
// vectors of records").
package clause

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/types"
)

// Block is a named sub-block of a clause statement.
type Block struct {
	Label    string
	CodePos  int // -1 until the block has been emitted
}

// Goto is one `goto Label(expr)` occurrence awaiting resolution.
type Goto struct {
	Label      string
	PopPos     int // code offset of the popm placeholder to patch
	BranchPos  int // code offset of the branch placeholder to patch
	StackPos   int // simulated-stack depth when the goto was encountered
	Line, Col  int // source position, for the "unresolved label" error
}

// Clause holds the bookkeeping for one `clause(T x) { ... }` statement
// (spec.md §4.10).
type Clause struct {
	StackPos  int // stack depth to unroll to for a goto into this clause
	Parameter *types.Variable
	Blocks    []Block
	Gotos     []Goto
	Parent    *Clause // lexically enclosing clause, for nested clauses
}

// New creates a Clause nested inside parent (nil at the top level).
func New(parameter *types.Variable, stackPos int, parent *Clause) *Clause {
	return &Clause{StackPos: stackPos, Parameter: parameter, Parent: parent}
}

// GetBlock returns the block named label, or nil.
func (c *Clause) GetBlock(label string) *Block {
	for i := range c.Blocks {
		if c.Blocks[i].Label == label {
			return &c.Blocks[i]
		}
	}
	return nil
}

// AddBlock registers a new named block at parse time, before its code
// position is known.
func (c *Clause) AddBlock(label string) error {
	if c.GetBlock(label) != nil {
		return fmt.Errorf("clause: block %q already declared", label)
	}
	c.Blocks = append(c.Blocks, Block{Label: label, CodePos: -1})
	return nil
}

// SetBlock records the code position of a previously-added block,
// once the parser reaches it.
func (c *Clause) SetBlock(label string, codePos int) error {
	b := c.GetBlock(label)
	if b == nil {
		return fmt.Errorf("clause: SetBlock: unknown block %q", label)
	}
	b.CodePos = codePos
	return nil
}

// AddGoto records a `goto Label(expr)` occurrence's patch sites for
// later resolution.
func (c *Clause) AddGoto(label string, popPos, branchPos, stackPos, line, col int) {
	c.Gotos = append(c.Gotos, Goto{
		Label: label, PopPos: popPos, BranchPos: branchPos,
		StackPos: stackPos, Line: line, Col: col,
	})
}

// UnresolvedLabelError reports a goto whose target label was never
// declared as a block within the clause (spec.md §4.10: "an unresolved
// label is a compile-time error at the goto's source position").
type UnresolvedLabelError struct {
	Label     string
	Line, Col int
}

func (e *UnresolvedLabelError) Error() string {
	return fmt.Sprintf("clause: goto target %q is not a declared block (%d,%d)", e.Label, e.Col, e.Line)
}

// PatchFunc applies a resolved popm-count and branch-target to the
// instructions at the given code offsets; package codegen supplies
// the real implementation against a *types.Function's bytecode.
type PatchFunc func(popPos int, unwindCount int, branchPos int, targetPos int)

// FixBranches resolves every block offset and goto record after the
// full clause has been parsed: each popm placeholder is patched with
// the precise unwind count (the goto's StackPos minus the clause's
// StackPos, clamped at zero, computed here and handed to patch), each
// branch with the block-entry offset (spec.md §4.10).
// Returns the first goto whose label was never resolved, or nil.
func (c *Clause) FixBranches(patch PatchFunc) *Goto {
	for i := range c.Gotos {
		g := &c.Gotos[i]
		b := c.GetBlock(g.Label)
		if b == nil || b.CodePos < 0 {
			return g
		}
		unwind := g.StackPos - c.StackPos
		if unwind < 0 {
			unwind = 0
		}
		patch(g.PopPos, unwind, g.BranchPos, b.CodePos)
	}
	return nil
}
