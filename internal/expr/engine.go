// Package expr implements the Expression Engine (C5): a recursive-
// descent, operator-precedence parser that emits bytecode directly as
// it parses (no intermediate AST, matching the original JewelScript
// compiler's single-pass style), allocating temporary registers and
// driving the automatic-conversion and const/ref ownership rules of
// spec.md §4.5.
package expr

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/literal"
	"github.com/jewelscript-go/jilc/internal/overload"
	"github.com/jewelscript-go/jilc/internal/session"
	"github.com/jewelscript-go/jilc/internal/simstack"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// Scope is the narrow contract the statement/declaration parser (C6)
// implements to let the expression engine resolve identifiers without
// importing package parser (which imports package expr): locals,
// the implicit `this` scope, and the three-fan-out function lookup of
// spec.md §4.3.
type Scope interface {
	ResolveLocal(name string) (*types.Variable, bool)
	CurrentClass() types.TypeId
	ThisVar() *types.Variable
	LookupFunctions(name string) ([]*types.Function, error)

	// ResolveGlobal looks up a plain global variable or (via
	// symtab.MangledKey) a class-qualified constant, spec.md §4.3.
	ResolveGlobal(name string) (*types.Variable, bool)

	// RegisterPendingAnon hands a deferred anonymous function/method
	// literal (spec.md §4.9: "Function literals parse lazily") to the
	// literal.Resolver the enclosing Two-Pass Driver owns, so it is
	// compiled after the current function body finishes.
	RegisterPendingAnon(p *literal.PendingAnon)
}

// Engine drives expression parsing and code generation for one
// function body.
type Engine struct {
	Reg   *types.Registry
	Gen   *codegen.Gen
	Regs  *simstack.RegisterMap
	Stack *simstack.Stack
	Pool  *literal.Pool
	Sink  *diag.Sink
	Scope Scope
	Opts  session.Options
	Unit  string
}

// New creates an Engine bound to one function body's emission targets.
func New(reg *types.Registry, gen *codegen.Gen, regs *simstack.RegisterMap, stack *simstack.Stack, pool *literal.Pool, sink *diag.Sink, scope Scope, opts session.Options, unit string) *Engine {
	return &Engine{Reg: reg, Gen: gen, Regs: regs, Stack: stack, Pool: pool, Sink: sink, Scope: scope, Opts: opts, Unit: unit}
}

// newTemp allocates a fresh register temporary of type t, spilling to
// the simulated stack when the register pool is exhausted (spec.md
// §4.4).
func (e *Engine) newTemp(t types.TypeId) (*types.Variable, error) {
	v := types.NewVariable("", t)
	v.Usage = types.UsageTemp
	if _, ok := e.Regs.Alloc(&v); ok {
		return &v, nil
	}
	if err := e.Stack.Push(&v); err != nil {
		return nil, fmt.Errorf("expr: %w", err)
	}
	return &v, nil
}

// NewTemp exposes newTemp to the statement parser, which needs fresh
// comparison-result temporaries for switch-statement dispatch tests
// that have no enclosing expression to allocate them.
func (e *Engine) NewTemp(t types.TypeId) (*types.Variable, error) { return e.newTemp(t) }

// freeTemp releases v's storage if it is a temporary; named variables
// are left alone (spec.md §3 "Lifecycles": "Temporaries ... destroyed
// when the sub-expression that produced them completes").
func (e *Engine) freeTemp(v *types.Variable) {
	if v == nil || v.Usage != types.UsageTemp {
		return
	}
	switch v.Role {
	case types.RoleRegister:
		e.Regs.Free(v)
	case types.RoleStack:
		// Stack temporaries are released by the enclosing statement's
		// scope-exit unroll (C4), not here: popping out of order would
		// desync every other resident variable's StackOffset.
	}
}

// precLevel enumerates the binary-operator precedence layers of
// spec.md §4.5, low to high.
type precLevel int

const (
	precOr precLevel = iota
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEq
	precRel
	precShift
	precAdd
	precMul
)

var levelOps = map[precLevel]map[token.Kind]string{
	precOr:    {token.OrOr: "||"},
	precAnd:   {token.AndAnd: "&&"},
	precBitOr: {token.Pipe: "|"},
	precBitXor: {token.Caret: "^"},
	precBitAnd: {token.Amp: "&"},
	precEq:    {token.Eq: "==", token.Ne: "!="},
	precRel:   {token.Lt: "<", token.Le: "<=", token.Gt: ">", token.Ge: ">="},
	precShift: {token.Shl: "<<", token.Shr: ">>"},
	precAdd:   {token.Plus: "+", token.Minus: "-"},
	precMul:   {token.Star: "*", token.Slash: "/", token.Percent: "%"},
}

// ParseExpr is the entry point of the precedence chain (spec.md
// §4.5). lhint, when non-nil, is the l-value the caller will assign
// the result into (used to bias conversion, e.g. array initializers);
// it may always be nil.
func (e *Engine) ParseExpr(lex *token.Lexer, lhint *types.Variable) (*types.Variable, types.TypeInfo, error) {
	return e.parseLevel(lex, precOr, lhint)
}

func (e *Engine) parseLevel(lex *token.Lexer, lvl precLevel, lhint *types.Variable) (*types.Variable, types.TypeInfo, error) {
	if lvl > precMul {
		return e.parseUnary(lex, lhint)
	}
	left, leftInfo, err := e.parseLevel(lex, lvl+1, lhint)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	ops := levelOps[lvl]
	for {
		tok, err := lex.Peek()
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		opText, ok := ops[tok.Kind]
		if !ok {
			return left, leftInfo, nil
		}
		lex.Get()

		if lvl == precOr || lvl == precAnd {
			left, leftInfo, err = e.combineShortCircuit(lvl == precAnd, left, lex)
			if err != nil {
				return nil, types.TypeInfo{}, err
			}
			continue
		}

		right, rightInfo, err := e.parseLevel(lex, lvl+1, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		left, leftInfo, err = e.combineBinary(opText, left, leftInfo, right, rightInfo)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
	}
}

// combineShortCircuit implements spec.md §4.5.3: && and || coerce
// both operands to int; a mid-expression conditional skip to the end
// guarantees the right operand is never evaluated once the left side
// already determines the result.
func (e *Engine) combineShortCircuit(isAnd bool, left *types.Variable, lex *token.Lexer) (*types.Variable, types.TypeInfo, error) {
	leftInt, err := e.AutoConvert(left, types.Int, false)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	skipOff := e.Gen.EmitShortCircuitSkip(isAnd, leftInt)

	right, _, err := e.parseLevel(lex, precAnd, nil)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	rightInt, err := e.AutoConvert(right, types.Int, false)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}

	dst, err := e.newTemp(types.Int)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	op := "&&"
	if !isAnd {
		op = "||"
	}
	e.Gen.EmitBinary(op, codegen.ArithInt, dst, leftInt, rightInt)
	e.Gen.Patch(skipOff, types.Instr{Op: e.Gen.F.Bytecode[skipOff].Op, Operands: e.Gen.F.Bytecode[skipOff].Operands, Imm: int64(len(e.Gen.F.Bytecode))})
	e.freeTemp(leftInt)
	e.freeTemp(rightInt)
	return dst, types.InfoFromVar(dst), nil
}

// combineBinary applies the conversion policy to unify both operands'
// types, selects an ArithKind/CompareRelation, emits the instruction,
// and returns a fresh temp holding the result (spec.md §4.5).
func (e *Engine) combineBinary(op string, left *types.Variable, leftInfo types.TypeInfo, right *types.Variable, rightInfo types.TypeInfo) (*types.Variable, types.TypeInfo, error) {
	common := e.commonType(left.Type, right.Type)
	lc, err := e.AutoConvert(left, common, false)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	rc, err := e.AutoConvert(right, common, false)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	kind := codegen.ArithInt
	if common == types.Float {
		kind = codegen.ArithFloat
	} else if common == types.String {
		kind = codegen.ArithStringConcat
	} else if common == types.Var {
		kind = codegen.ArithGeneric
	}

	resultType := common
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		resultType = types.Int
	}
	dst, err := e.newTemp(resultType)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}

	switch op {
	case "==":
		e.Gen.EmitCompare(codegen.CmpEq, dst, lc, rc)
	case "!=":
		e.Gen.EmitCompare(codegen.CmpNe, dst, lc, rc)
	case "<":
		e.Gen.EmitCompare(codegen.CmpLt, dst, lc, rc)
	case "<=":
		e.Gen.EmitCompare(codegen.CmpLe, dst, lc, rc)
	case ">":
		e.Gen.EmitCompare(codegen.CmpGt, dst, lc, rc)
	case ">=":
		e.Gen.EmitCompare(codegen.CmpGe, dst, lc, rc)
	default:
		if _, err := e.Gen.EmitBinary(op, kind, dst, lc, rc); err != nil {
			return nil, types.TypeInfo{}, err
		}
	}
	e.freeTemp(lc)
	e.freeTemp(rc)
	return dst, types.InfoFromVar(dst), nil
}

// CombineBinary exposes combineBinary to the statement parser's
// compound-assignment statements (`a += b` etc.): C6 evaluates the new
// value through the same arithmetic/comparison generator an ordinary
// binary expression uses, then assigns it back through Assign.
func (e *Engine) CombineBinary(op string, left, right *types.Variable) (*types.Variable, error) {
	v, _, err := e.combineBinary(op, left, types.TypeInfo{}, right, types.TypeInfo{})
	return v, err
}

// commonType picks the binary-op result type for two operand types:
// float dominates int, string participates only in concatenation,
// var dominates any concrete type (spec.md §4.5.1).
func (e *Engine) commonType(a, b types.TypeId) types.TypeId {
	if a == types.Var || b == types.Var {
		return types.Var
	}
	if a == types.String || b == types.String {
		return types.String
	}
	if a == types.Float || b == types.Float {
		return types.Float
	}
	return types.Int
}

// checkerAdapter lets Engine satisfy overload.Checker without
// exposing AutoConvert's side-effecting signature to package overload.
type checkerAdapter struct{ e *Engine }

func (c checkerAdapter) Convertibility(arg, param types.TypeId) overload.Convertibility {
	if arg == param || arg == types.Var || param == types.Var {
		return overload.Implicit
	}
	if c.e.Reg.IsSubclass(arg, param) {
		return overload.Implicit
	}
	if (arg == types.Int && param == types.Float) || (arg == types.Float && param == types.Int) {
		return overload.NonTrivial
	}
	if param == types.String && arg == types.Var {
		return overload.NonTrivial
	}
	if cls := c.e.Reg.Class(arg); cls != nil {
		for _, f := range cls.Functions {
			if f.Flags.Has(types.FuncConvertor) && f.Result.Type == param && !f.Flags.Has(types.FuncExplicit) {
				return overload.NonTrivial
			}
		}
	}
	if cls := c.e.Reg.Class(param); cls != nil {
		for _, f := range cls.Functions {
			if f.Flags.Has(types.FuncConstructor) && len(f.Args) == 1 && f.Args[0].Type == arg && !f.Flags.Has(types.FuncExplicit) {
				return overload.NonTrivial
			}
		}
	}
	return overload.NotConvertible
}

// Checker exposes Engine's conversion classification to package
// overload's Resolve (C7 consults C5's conversion policy, per spec.md
// §4.7's reference to "dynamically convertible").
func (e *Engine) Checker() overload.Checker { return checkerAdapter{e} }
