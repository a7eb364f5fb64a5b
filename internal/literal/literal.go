// Package literal implements the Literal Pool & Anon-Function
// Resolver (C9): each function's literal buffer records integer,
// float, string, and delegate literals with their patch offsets, and
// anonymous function bodies parse lazily, compiling only after the
// enclosing function's main body (spec.md §4.9).
package literal

import (
	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// Pool manages one function's literal buffer and the moveh/copyh
// instructions that reference it.
type Pool struct {
	fn *types.Function
	gen *codegen.Gen
}

// NewPool wraps fn's literal buffer for emission via gen.
func NewPool(fn *types.Function, gen *codegen.Gen) *Pool {
	return &Pool{fn: fn, gen: gen}
}

func (p *Pool) add(lit types.Literal, dst *types.Variable) int {
	idx := len(p.fn.Literals)
	lit.Handle = -1
	lit.CodeOffset = p.gen.EmitLiteralLoad(false, dst)
	p.fn.Literals = append(p.fn.Literals, lit)
	return idx
}

// AddInt records an integer literal and emits its moveh.
func (p *Pool) AddInt(v int64, dst *types.Variable, pos token.Pos) int {
	return p.add(types.Literal{Kind: types.LitInt, IVal: v, SourceLine: pos.Line, SourceCol: pos.Col}, dst)
}

// AddFloat records a float literal and emits its moveh.
func (p *Pool) AddFloat(v float64, dst *types.Variable, pos token.Pos) int {
	return p.add(types.Literal{Kind: types.LitFloat, FVal: v, SourceLine: pos.Line, SourceCol: pos.Col}, dst)
}

// AddString records a string literal and emits its moveh.
func (p *Pool) AddString(v string, dst *types.Variable, pos token.Pos) int {
	return p.add(types.Literal{Kind: types.LitString, SVal: v, SourceLine: pos.Line, SourceCol: pos.Col}, dst)
}

// PendingAnon is a deferred anonymous function-literal body: the
// parser records only its source locator and argument-name-list
// option at the point the literal is encountered (spec.md §4.9:
// "Function literals parse lazily").
type PendingAnon struct {
	LiteralIndex int
	Locator      token.Locator
	ArgNames     []string
	IsMethod     bool

	// Resolved is filled in by Resolve once the body has been compiled.
	Resolved bool
	Handle   int
}

// AddDelegateLiteral records a not-yet-compiled function literal and
// returns its literal index plus a PendingAnon the caller must keep
// until Resolve runs.
func (p *Pool) AddDelegateLiteral(dst *types.Variable, isMethod bool, loc token.Locator, argNames []string, pos token.Pos) (int, *PendingAnon) {
	idx := p.add(types.Literal{Kind: types.LitDelegate, IsMethod: isMethod, SourceLine: pos.Line, SourceCol: pos.Col}, dst)
	return idx, &PendingAnon{LiteralIndex: idx, Locator: loc, ArgNames: argNames, IsMethod: isMethod}
}

// CompileAnonFunc is the callback the resolver invokes to compile one
// deferred anonymous body; package parser supplies the real
// implementation (it re-enters the statement parser at the recorded
// locator, creates a new anonymous Function record, and compiles its
// body). It returns the new function's pre-link packed reference
// (types.PackFuncRef), which the linker replaces with the final
// function handle; bound-method literals get a function handle too,
// not a method index.
type CompileAnonFunc func(pending *PendingAnon) (handle int, err error)

// Resolver walks the deferred literal buffer of one function after
// its main body has been compiled, compiling each pending anonymous
// body into a newly-created anonymous function and writing the
// resulting handle back into the literal record (spec.md §4.9).
type Resolver struct {
	pending []*PendingAnon
}

func (r *Resolver) Defer(p *PendingAnon) { r.pending = append(r.pending, p) }

// Resolve compiles every deferred anonymous body via compile and
// writes the resulting handle into fn.Literals[p.LiteralIndex].Handle.
func (r *Resolver) Resolve(fn *types.Function, compile CompileAnonFunc) error {
	for _, p := range r.pending {
		handle, err := compile(p)
		if err != nil {
			return err
		}
		p.Resolved = true
		p.Handle = handle
		fn.Literals[p.LiteralIndex].Handle = handle
	}
	return nil
}

// Pending returns every deferred anonymous body, resolved or not;
// each entry's Resolved field tells which.
func (r *Resolver) Pending() []*PendingAnon { return r.pending }
