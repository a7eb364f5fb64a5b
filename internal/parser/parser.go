// Package parser implements the Statement & Declaration Parser (C6):
// class/interface/function declarations, member-variable declarations,
// control flow, variable declarations, the clause/goto facility, and
// the debug hooks __brk/__selftest (spec.md §4.6). It drives the
// Expression Engine (C5) for expressions and the Overload Resolver
// (C7), Literal Pool (C9), Clause Engine (C10), Simulated Stack (C4)
// and Code Generator (C8) to compile one function body at a time.
package parser

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/clause"
	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/expr"
	"github.com/jewelscript-go/jilc/internal/literal"
	"github.com/jewelscript-go/jilc/internal/session"
	"github.com/jewelscript-go/jilc/internal/simstack"
	"github.com/jewelscript-go/jilc/internal/symtab"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// FunctionRegisterBudget is the per-function register pool size
// handed to simstack.NewRegisterMap (spec.md §4.4): registers
// 0..2 are reserved (this/result/global), so the pool spans
// [FirstVarReg..FunctionRegisterBudget).
const FunctionRegisterBudget = 64

// StackCapacity bounds the simulated stack (spec.md §4.4 "a
// fixed-capacity array").
const StackCapacity = 256

// Importer resolves `import a.b.C;` / the implicit native class
// lookups of spec.md §6 without package parser importing the Two-Pass
// Driver (C11) that owns the native class registry and import-path
// search, mirroring the narrow expr.Scope pattern used to avoid the
// opposite import cycle.
type Importer interface {
	// ImportClass declares the native or script class named by a
	// dotted path (spec.md §6 `import-class`), registering its
	// prototypes without opening its body for pass-2 compilation.
	ImportClass(dotted string) error
	// ForwardClass forward-declares a class by name only, deferring
	// member/method resolution (spec.md §6 `forward-class`).
	ForwardClass(name string) error
}

// PendingBody is a declared-but-not-yet-compiled function body,
// recorded during precompile (pass 1) for pass 2 to re-enter via the
// lexer's save/restore locator (spec.md §4.1, §4.11).
type PendingBody struct {
	Fn      *types.Function
	Class   types.TypeId
	Loc     token.Locator
	IsInit  bool             // true for a global/const-member initializer appended to __init
	InitVar *types.Variable  // assignment target when IsInit is true; Fn is nil in that case
}

// Parser holds all state for one translation unit's declaration and
// statement parsing, shared across the precompile/compile passes of
// the Two-Pass Driver (C11).
type Parser struct {
	Reg    *types.Registry
	Global *symtab.Global
	Sink   *diag.Sink
	Opts   session.Options

	// Importer resolves `import` declarations (decl.go's parseImport);
	// nil is valid and makes every import a no-op beyond the "all"
	// special case already handled inline.
	Importer Importer

	file *symtab.FileScope
	unit string

	// unitStack saves the enclosing unit's (unit, file) pair across a
	// nested BeginUnit, so the Two-Pass Driver (C11) can recurse into an
	// import's own precompile/compile pass without losing the importing
	// unit's using-set and diagnostic unit name once the import returns
	// (spec.md §4.11: "imports are resolved recursively").
	unitStack []unitFrame

	// PendingBodies accumulates function bodies discovered during
	// precompile; the driver drains this after each unit's pass 1.
	PendingBodies []PendingBody

	// current compile-time (pass 2) context.
	curClass *types.Class
	curFunc  *types.Function
	gen      *codegen.Gen
	regs     *simstack.RegisterMap
	stack    *simstack.Stack
	pool     *literal.Pool
	resolver *literal.Resolver
	thisVar  *types.Variable
	eng      *expr.Engine

	scopes      []map[string]*types.Variable
	loopLabels  []loopCtx
	clauseStack []*clause.Clause

	// memberInit tracks, by member slot, whether the constructor body
	// currently being compiled has initialized that member on `this`
	// along every path reaching the current program point (spec.md
	// §4.6 "Init-state tracking"). nil outside a constructor body.
	memberInit map[int]bool

	// baseStackDepth is the simulated-stack depth at function entry
	// (after argument spill), the unwind target for return/throw
	// (spec.md §4.6: every path out of a function unrolls the whole
	// stack, not just the innermost scope).
	baseStackDepth int

	// initFn is the shared __init global-pseudo-class function that
	// global/const-member initializers are appended into (spec.md §4.11).
	initFn *types.Function

	// memberDefaultInits holds, per owning class, the deferred default-
	// value initializers of its non-const member variables in
	// declaration order (parseMemberVarDecl). Unlike a const member's
	// initializer, which runs once into a global slot, each of these
	// runs per-instance as a constructor prologue (compileFunctionBody).
	memberDefaultInits map[types.TypeId][]memberDefaultInit
}

// memberDefaultInit is one non-const member's `= expr` default value,
// deferred to pass 2 the same way a function body is (spec.md §4.11).
type memberDefaultInit struct {
	MemberIdx int
	Loc       token.Locator
}

// loopCtx tracks one enclosing loop's deferred break/continue branch
// patches and the stack depth to unwind to before taking either
// (spec.md §4.6: "break/continue emits a deferred branch fix-up").
type loopCtx struct {
	breakPatches     []int
	continuePatches  []int
	stackDepthAtLoop int

	// isSwitch marks a switch's loopCtx: it accepts break like a loop
	// but must never catch a continue meant for an enclosing loop
	// (spec.md §4.6 names break/continue together, but a switch only
	// ever owns break).
	isSwitch bool
}

func (p *Parser) pushLoop(isSwitch bool) {
	p.loopLabels = append(p.loopLabels, loopCtx{stackDepthAtLoop: p.stack.Depth(), isSwitch: isSwitch})
}

func (p *Parser) popLoop() loopCtx {
	lc := p.loopLabels[len(p.loopLabels)-1]
	p.loopLabels = p.loopLabels[:len(p.loopLabels)-1]
	return lc
}

// curLoop resolves `break`'s target: the innermost enclosing loop or
// switch, whichever comes first.
func (p *Parser) curLoop() (*loopCtx, error) {
	if len(p.loopLabels) == 0 {
		return nil, fmt.Errorf("parser: break used outside a loop or switch")
	}
	return &p.loopLabels[len(p.loopLabels)-1], nil
}

// curEnclosingLoop resolves `continue`'s target: the innermost
// enclosing *loop*, skipping over any switch frames in between.
func (p *Parser) curEnclosingLoop() (*loopCtx, error) {
	for i := len(p.loopLabels) - 1; i >= 0; i-- {
		if !p.loopLabels[i].isSwitch {
			return &p.loopLabels[i], nil
		}
	}
	return nil, fmt.Errorf("parser: continue used outside a loop")
}

// unwindTo emits the popm needed to bring the simulated stack from its
// current depth back to target, used by break/continue/return/throw
// which unroll across scope boundaries rather than just one.
func (p *Parser) unwindTo(target int) error {
	n, err := p.stack.UnrollTo(target)
	if err != nil {
		return fmt.Errorf("parser: %w", err)
	}
	if n > 0 {
		p.gen.EmitPopM(n)
	}
	return nil
}

// patchBranchList patches every recorded branch offset to land at the
// current code position.
func (p *Parser) patchBranchList(offsets []int) {
	for _, off := range offsets {
		p.gen.PatchBranchTarget(off)
	}
}

// patchBranchListTo patches every recorded branch offset to an
// explicit target (used for continue, whose landing point is already
// known at the time the branch list is resolved).
func (p *Parser) patchBranchListTo(offsets []int, target int) {
	for _, off := range offsets {
		p.gen.PatchBranchTo(off, target)
	}
}

// ImportClass delegates to the driver-supplied Importer, a no-op when
// none is wired (e.g. unit tests compiling a single self-contained
// source string with no native classes).
func (p *Parser) ImportClass(dotted string) error {
	if p.Importer == nil {
		return nil
	}
	return p.Importer.ImportClass(dotted)
}

// ForwardClass delegates to the driver-supplied Importer.
func (p *Parser) ForwardClass(name string) error {
	if p.Importer == nil {
		return nil
	}
	return p.Importer.ForwardClass(name)
}

// New creates a Parser over a shared Registry/Global/Sink for one
// compile session (spec.md §5 "the global type registry and global-
// object layout are process-wide within a compile session").
func New(reg *types.Registry, global *symtab.Global, sink *diag.Sink, opts session.Options) *Parser {
	return &Parser{Reg: reg, Global: global, Sink: sink, Opts: opts}
}

// unitFrame is one saved (unit, file) pair on the Parser's unitStack.
type unitFrame struct {
	unit string
	file *symtab.FileScope
}

// BeginUnit resets per-file state (the `using` set) for a new
// translation unit (spec.md §4.3), saving the caller's own unit/file
// pair so EndUnit can restore it once this unit's pass completes. This
// makes BeginUnit/EndUnit nestable, which the Two-Pass Driver relies on
// when an `import` pulls in another unit mid-precompile.
func (p *Parser) BeginUnit(unit string) {
	p.unitStack = append(p.unitStack, unitFrame{unit: p.unit, file: p.file})
	p.unit = unit
	p.file = symtab.NewFileScope(p.Reg)
}

// EndUnit restores the enclosing unit's (unit, file) pair pushed by the
// matching BeginUnit. A call with no matching BeginUnit is a no-op,
// since the outermost unit has nothing to restore to.
func (p *Parser) EndUnit() {
	if len(p.unitStack) == 0 {
		return
	}
	top := p.unitStack[len(p.unitStack)-1]
	p.unitStack = p.unitStack[:len(p.unitStack)-1]
	p.unit = top.unit
	p.file = top.file
}

// --- expr.Scope implementation -------------------------------------------

func (p *Parser) ResolveLocal(name string) (*types.Variable, bool) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if v, ok := p.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (p *Parser) CurrentClass() types.TypeId {
	if p.curClass == nil {
		return types.Null
	}
	return p.curClass.ID
}

func (p *Parser) ThisVar() *types.Variable { return p.thisVar }

func (p *Parser) LookupFunctions(name string) ([]*types.Function, error) {
	cur := types.Null
	if p.curClass != nil {
		cur = p.curClass.ID
	}
	return symtab.Lookup(p.Reg, p.Global, cur, p.file, name)
}

func (p *Parser) ResolveGlobal(name string) (*types.Variable, bool) {
	return p.Global.Variable(name)
}

func (p *Parser) RegisterPendingAnon(pa *literal.PendingAnon) {
	if p.resolver != nil {
		p.resolver.Defer(pa)
	}
}

// --- scope/local management -----------------------------------------------

func (p *Parser) pushScope() { p.scopes = append(p.scopes, map[string]*types.Variable{}) }

// popScope emits the scope-exit stack unroll (spec.md §3 Lifecycles:
// "the scope-exit sequence emits the paired stack pops") for every
// local declared in the innermost scope that ended up on the
// simulated stack, then discards the scope.
func (p *Parser) popScope() error {
	n, err := p.stack.UnrollTo(p.stack.Depth() - p.scopeStackCount())
	if err != nil {
		return fmt.Errorf("parser: %w", err)
	}
	if n > 0 {
		// popm is always valid for n>=1; below PopmThreshold a real
		// compiler would emit individual pops, which needs a live
		// Variable per slot, but the parser doesn't retain back-
		// pointers for already-unrolled locals here, so popm covers
		// both cases (spec.md §4.4 names popm as the >=threshold form).
		p.gen.EmitPopM(n)
	}
	for r := range p.scopes[len(p.scopes)-1] {
		v := p.scopes[len(p.scopes)-1][r]
		if v.Role == types.RoleRegister {
			p.regs.Free(v)
		}
	}
	p.scopes = p.scopes[:len(p.scopes)-1]
	return nil
}

// scopeStackCount reports how many resident stack entries belong to
// the innermost scope (a simplification: it assumes stack locals are
// only ever pushed by the innermost active scope at popScope time,
// true for this parser's own variable-declaration code path).
func (p *Parser) scopeStackCount() int {
	n := 0
	for _, v := range p.scopes[len(p.scopes)-1] {
		if v.Role == types.RoleStack {
			n++
		}
	}
	return n
}

func (p *Parser) declareLocal(name string, v *types.Variable) error {
	top := p.scopes[len(p.scopes)-1]
	if _, exists := top[name]; exists {
		return fmt.Errorf("parser: %q already declared in this scope", name)
	}
	top[name] = v
	return nil
}

// allocLocal creates a Variable of type t and gives it storage per
// spec.md §4.4 (register pool with stack fallback) and the session's
// local-var-mode option (spec.md §6).
func (p *Parser) allocLocal(name string, t types.TypeId) (*types.Variable, error) {
	v := types.NewVariable(name, t)
	v.Usage = types.UsageVar
	switch p.Opts.LocalVarMode {
	case session.LocalVarStack:
		if err := p.stack.Push(&v); err != nil {
			return nil, fmt.Errorf("parser: %w", err)
		}
	case session.LocalVarRegister:
		if _, ok := p.regs.Alloc(&v); !ok {
			return nil, fmt.Errorf("parser: register pool exhausted for %q", name)
		}
	default:
		if _, ok := p.regs.Alloc(&v); !ok {
			if err := p.stack.Push(&v); err != nil {
				return nil, fmt.Errorf("parser: %w", err)
			}
		}
	}
	if err := p.declareLocal(name, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// parseTypeName resolves a type-name token sequence (identifier,
// `var`, or a class name) to a TypeId, consuming exactly the type
// tokens (not any trailing identifier).
func (p *Parser) parseTypeName(lex *token.Lexer) (types.TypeId, error) {
	tok, err := lex.Get()
	if err != nil {
		return types.Null, err
	}
	switch tok.Kind {
	case token.KwVar:
		return types.Var, nil
	case token.Ident:
		id, ok := p.Reg.FindByName(tok.Lexeme)
		if !ok {
			return types.Null, fmt.Errorf("parser: unknown type %q at %s", tok.Lexeme, tok.Pos)
		}
		return id, nil
	default:
		return types.Null, fmt.Errorf("parser: expected a type name at %s, got %q", tok.Pos, tok.String())
	}
}

// newFunctionScope prepares the Parser's pass-2 emission targets
// (register map, simulated stack, code generator, literal pool and
// resolver) for compiling fn's body.
func (p *Parser) newFunctionScope(owner *types.Class, fn *types.Function) {
	p.curClass = owner
	p.curFunc = fn
	p.gen = codegen.New(fn)
	p.regs = simstack.NewRegisterMap(FunctionRegisterBudget)
	p.stack = simstack.NewStack(StackCapacity)
	p.pool = literal.NewPool(fn, p.gen)
	p.resolver = &literal.Resolver{}
	p.scopes = nil
	p.clauseStack = nil
	p.thisVar = nil
	if owner != nil && fn.Flags.Has(types.FuncMethod|types.FuncConstructor|types.FuncConvertor) {
		this := types.NewVariable("this", owner.ID)
		this.Role = types.RoleRegister
		this.RegisterIndex = simstack.RegThis
		this.Initialized = true
		this.Unique = true
		p.thisVar = &this
	}
	p.eng = expr.New(p.Reg, p.gen, p.regs, p.stack, p.pool, p.Sink, p, p.Opts, p.unit)
	p.memberInit = nil
	if owner != nil && fn.Flags.Has(types.FuncConstructor) {
		p.memberInit = make(map[int]bool, len(owner.Members))
	}
	p.pushScope()
	for i := range fn.Args {
		a := &fn.Args[i]
		a.Initialized = true
		if _, ok := p.regs.Alloc(a); ok {
			p.declareLocal(a.Name, a)
		} else {
			p.stack.Push(a)
			p.declareLocal(a.Name, a)
		}
	}
	p.baseStackDepth = p.stack.Depth()
}

// Engine exposes the expression engine bound to the current function
// scope, for statement-parsing code in this package's other files.
func (p *Parser) Engine() *expr.Engine { return p.eng }

// markMemberInit records that v (the l-value of a just-completed
// assignment) initializes a member slot on `this`, if it is one
// (spec.md §4.6 "Init-state tracking").
func (p *Parser) markMemberInit(v *types.Variable) {
	if p.memberInit == nil || p.thisVar == nil {
		return
	}
	if v.Role == types.RoleMember && v.ObjectReg == p.thisVar.RegisterIndex {
		p.memberInit[v.MemberSlot] = true
	}
}

// snapshotMemberInit captures the current initialized-member set so a
// branch can be explored and later joined back with its siblings.
func (p *Parser) snapshotMemberInit() map[int]bool {
	if p.memberInit == nil {
		return nil
	}
	cp := make(map[int]bool, len(p.memberInit))
	for k, v := range p.memberInit {
		cp[k] = v
	}
	return cp
}

// mergeMemberInitAnd joins a set of branch-exit snapshots by boolean-
// AND: a member is considered initialized after the construct only if
// every path initializes it (spec.md §4.6).
func (p *Parser) mergeMemberInitAnd(branches ...map[int]bool) {
	if p.memberInit == nil {
		return
	}
	merged := map[int]bool{}
	if len(branches) > 0 {
		for k := range branches[0] {
			all := true
			for _, b := range branches {
				if !b[k] {
					all = false
					break
				}
			}
			if all {
				merged[k] = true
			}
		}
	}
	p.memberInit = merged
}

// checkMembersInitialized implements spec.md §4.6's constructor exit
// rule: "Constructors error out if any member remains uninitialized at
// return." Members with their own default-value initializer are
// exempt, since those run before the constructor body (parseMemberVarDecl).
func (p *Parser) checkMembersInitialized() error {
	if p.memberInit == nil || p.curClass == nil {
		return nil
	}
	for i, m := range p.curClass.Members {
		if m.Initialized {
			continue
		}
		if !p.memberInit[i] {
			return fmt.Errorf("parser: constructor %s::%s does not initialize member %q on every path", p.curClass.Name, p.curFunc.Name, m.Name)
		}
	}
	return nil
}
