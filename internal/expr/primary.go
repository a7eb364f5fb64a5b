package expr

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/overload"
	"github.com/jewelscript-go/jilc/internal/simstack"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// ParseLValue parses an atomic l-value (identifier/member/index
// chain, no prefix or binary operators) for the statement parser's
// assignment and compound-assign statement forms (spec.md §4.5:
// "Assignment is not an expression at parse level; it is a
// statement-tail on an atomic l-value").
func (e *Engine) ParseLValue(lex *token.Lexer) (*types.Variable, types.TypeInfo, error) {
	atom, info, err := e.parsePrimary(lex, nil)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	return e.parsePostfix(lex, atom, info)
}

func expect(lex *token.Lexer, k token.Kind) (token.Token, error) {
	tok, err := lex.Get()
	if err != nil {
		return tok, err
	}
	if tok.Kind != k {
		return tok, fmt.Errorf("expr: expected token %d, got %q at %s", k, tok.String(), tok.Pos)
	}
	return tok, nil
}

// parseUnary handles the prefix layer of spec.md §4.5: -expr, !expr,
// ~expr, ++/--expr, __rtchk expr, then falls through to postfix/atomic
// forms.
func (e *Engine) parseUnary(lex *token.Lexer, lhint *types.Variable) (*types.Variable, types.TypeInfo, error) {
	tok, err := lex.Peek()
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	switch tok.Kind {
	case token.Minus:
		lex.Get()
		v, _, err := e.parseUnary(lex, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		dst, err := e.newTemp(v.Type)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Gen.EmitUnary(types.OpNeg, dst, v)
		e.freeTemp(v)
		return dst, types.InfoFromVar(dst), nil
	case token.Not:
		lex.Get()
		v, _, err := e.parseUnary(lex, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		vi, err := e.AutoConvert(v, types.Int, false)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		dst, err := e.newTemp(types.Int)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Gen.EmitUnary(types.OpNot, dst, vi)
		e.freeTemp(vi)
		return dst, types.InfoFromVar(dst), nil
	case token.Tilde:
		lex.Get()
		v, _, err := e.parseUnary(lex, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		dst, err := e.newTemp(types.Int)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Gen.EmitUnary(types.OpBNot, dst, v)
		e.freeTemp(v)
		return dst, types.InfoFromVar(dst), nil
	case token.Inc, token.Dec:
		lex.Get()
		v, _, err := e.parseUnary(lex, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		if err := e.CheckMove(v, v); err != nil {
			return nil, types.TypeInfo{}, err
		}
		op := types.OpInc
		if tok.Kind == token.Dec {
			op = types.OpDec
		}
		e.Gen.EmitUnary(op, v, v)
		return v, types.InfoFromVar(v), nil
	case token.KwRtchk:
		lex.Get()
		v, _, err := e.parseUnary(lex, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Gen.EmitRtchk(v, v.Type)
		return v, types.InfoFromVar(v), nil
	default:
		atom, info, err := e.parsePrimary(lex, lhint)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		return e.parsePostfix(lex, atom, info)
	}
}

// tryCast attempts to read a `(type)` cast prefix at the current
// position, returning (typeId, true) and consuming the tokens if this
// looks like a cast rather than a parenthesized sub-expression. It
// uses a save/restore probe, per spec.md §4.1's idempotent
// locator-based backtracking.
func (e *Engine) tryCast(lex *token.Lexer) (types.TypeId, bool) {
	loc := lex.Save()
	tok, err := lex.Get()
	if err != nil || tok.Kind != token.LParen {
		lex.Restore(loc)
		return types.Null, false
	}
	nameTok, err := lex.Get()
	if err != nil || nameTok.Kind != token.Ident {
		lex.Restore(loc)
		return types.Null, false
	}
	id, ok := e.Reg.FindByName(nameTok.Lexeme)
	if !ok {
		lex.Restore(loc)
		return types.Null, false
	}
	closeTok, err := lex.Get()
	if err != nil || closeTok.Kind != token.RParen {
		lex.Restore(loc)
		return types.Null, false
	}
	return id, true
}

// parsePrimary parses one atomic form of spec.md §4.5 (before any
// postfix is applied).
func (e *Engine) parsePrimary(lex *token.Lexer, lhint *types.Variable) (*types.Variable, types.TypeInfo, error) {
	if dst, ok := e.tryCast(lex); ok {
		operand, _, err := e.parseUnary(lex, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		out, err := e.Cast(operand, dst)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		return out, types.InfoFromVar(out), nil
	}

	tok, err := lex.Get()
	if err != nil {
		return nil, types.TypeInfo{}, err
	}

	switch tok.Kind {
	case token.IntLit:
		dst, err := e.newTemp(types.Int)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Pool.AddInt(tok.IVal, dst, tok.Pos)
		return dst, types.InfoFromVar(dst), nil
	case token.CharLit:
		dst, err := e.newTemp(types.Int)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Pool.AddInt(tok.IVal, dst, tok.Pos)
		return dst, types.InfoFromVar(dst), nil
	case token.FloatLit:
		dst, err := e.newTemp(types.Float)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Pool.AddFloat(tok.FVal, dst, tok.Pos)
		return dst, types.InfoFromVar(dst), nil
	case token.StringLit:
		dst, err := e.newTemp(types.String)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Pool.AddString(tok.Lexeme, dst, tok.Pos)
		return dst, types.InfoFromVar(dst), nil
	case token.KwTrue, token.KwFalse:
		dst, err := e.newTemp(types.Int)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		v := int64(0)
		if tok.Kind == token.KwTrue {
			v = 1
		}
		e.Pool.AddInt(v, dst, tok.Pos)
		return dst, types.InfoFromVar(dst), nil
	case token.KwNull:
		dst, err := e.newTemp(types.Null)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Pool.AddInt(0, dst, tok.Pos)
		return dst, types.InfoFromVar(dst), nil
	case token.LParen:
		v, info, err := e.ParseExpr(lex, lhint)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		if _, err := expect(lex, token.RParen); err != nil {
			return nil, types.TypeInfo{}, err
		}
		return v, info, nil
	case token.LBrace:
		return e.parseArrayInitializer(lex, tok.Pos)
	case token.KwNew:
		return e.parseNew(lex, tok.Pos)
	case token.KwTypeof:
		return e.parseTypeof(lex, tok.Pos)
	case token.KwSameref:
		return e.parseSameref(lex, tok.Pos)
	case token.KwFunction, token.KwMethod:
		return e.parseAnonLiteral(lex, tok.Kind == token.KwMethod, tok.Pos)
	case token.KwThis:
		this := e.Scope.ThisVar()
		if this == nil {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: 'this' used outside a method at %s", tok.Pos)
		}
		return this, types.InfoFromVar(this), nil
	case token.Ident:
		return e.parseIdentAtom(lex, tok)
	default:
		return nil, types.TypeInfo{}, fmt.Errorf("expr: unexpected token %q at %s", tok.String(), tok.Pos)
	}
}

// parseArrayInitializer implements `{ e1,…,en }` (spec.md §4.5): each
// element is compiled and appended into a freshly allocated array.
func (e *Engine) parseArrayInitializer(lex *token.Lexer, pos token.Pos) (*types.Variable, types.TypeInfo, error) {
	dst, err := e.newTemp(types.Array)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	dst.ElemType = types.Var
	e.Gen.EmitAlloc(codegen.AllocArray, dst, types.Array)

	tok, err := lex.Peek()
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if tok.Kind != token.RBrace {
		for {
			elem, _, err := e.ParseExpr(lex, nil)
			if err != nil {
				return nil, types.TypeInfo{}, err
			}
			if dst.ElemType == types.Var {
				dst.ElemType = elem.Type
			}
			if _, err := e.Gen.EmitBinary("+", codegen.ArithArrayAppend, dst, dst, elem); err != nil {
				return nil, types.TypeInfo{}, err
			}
			e.freeTemp(elem)
			tok, err = lex.Peek()
			if err != nil {
				return nil, types.TypeInfo{}, err
			}
			if tok.Kind != token.Comma {
				break
			}
			lex.Get()
		}
	}
	if _, err := expect(lex, token.RBrace); err != nil {
		return nil, types.TypeInfo{}, err
	}
	dst.Initialized = true
	dst.Unique = true
	return dst, types.InfoFromVar(dst), nil
}

// parseNew implements `new Name(args)` and `new array(n)` (spec.md
// §4.5, §8 boundary behavior: "new array(0) yields an empty array;
// new array(n) with n>0 yields a zero-initialized array").
func (e *Engine) parseNew(lex *token.Lexer, pos token.Pos) (*types.Variable, types.TypeInfo, error) {
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if nameTok.Lexeme == "array" {
		if _, err := expect(lex, token.LParen); err != nil {
			return nil, types.TypeInfo{}, err
		}
		size, _, err := e.ParseExpr(lex, nil)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		if _, err := expect(lex, token.RParen); err != nil {
			return nil, types.TypeInfo{}, err
		}
		dst, err := e.newTemp(types.Array)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Gen.EmitAlloc(codegen.AllocArray, dst, types.Array)
		if err := e.Stack.Push(size); err != nil {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: %w", err)
		}
		e.Gen.EmitPush(size)
		if _, err := e.Stack.Pop(); err != nil {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: %w", err)
		}
		dst.Initialized = true
		dst.Unique = true
		return dst, types.InfoFromVar(dst), nil
	}

	classID, ok := e.Reg.FindByName(nameTok.Lexeme)
	if !ok {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: unknown class %q at %s", nameTok.Lexeme, pos)
	}
	cls := e.Reg.Class(classID)
	if cls == nil || (cls.Family != types.FamilyClass && cls.Family != types.FamilyThread) {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: %q is not a constructible class at %s", nameTok.Lexeme, pos)
	}

	args, err := e.parseArgList(lex)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	argTypes := make([]types.TypeId, len(args))
	for i, a := range args {
		argTypes[i] = a.Type
	}

	dst, err := e.newTemp(classID)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	kind := codegen.AllocScript
	if cls.Native {
		kind = codegen.AllocNative
	}
	e.Gen.EmitAlloc(kind, dst, classID)
	dst.Initialized = true
	dst.Unique = true

	var ctors []*types.Function
	for i, f := range cls.Functions {
		if f.Flags.Has(types.FuncConstructor) {
			_ = i
			ctors = append(ctors, f)
		}
	}
	if len(ctors) == 0 {
		if len(args) != 0 {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: class %q has no constructor accepting %d argument(s)", cls.Name, len(args))
		}
		return dst, types.InfoFromVar(dst), nil
	}
	ctor, err := overload.Resolve(cls.Name, ctors, argTypes, e.Checker(), false)
	if err != nil {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: constructor resolution for %q: %w", cls.Name, err)
	}
	if err := e.emitCallArgs(dst, ctor, args); err != nil {
		return nil, types.TypeInfo{}, err
	}
	return dst, types.InfoFromVar(dst), nil
}

// parseTypeof implements `typeof(expr)`: since every type id is known
// at compile time, this resolves to the static TypeId of its operand
// as a compile-time int constant rather than a runtime reflection
// call.
func (e *Engine) parseTypeof(lex *token.Lexer, pos token.Pos) (*types.Variable, types.TypeInfo, error) {
	if _, err := expect(lex, token.LParen); err != nil {
		return nil, types.TypeInfo{}, err
	}
	v, _, err := e.ParseExpr(lex, nil)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return nil, types.TypeInfo{}, err
	}
	dst, err := e.newTemp(types.Int)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	e.Pool.AddInt(int64(v.Type), dst, pos)
	e.freeTemp(v)
	return dst, types.InfoFromVar(dst), nil
}

// parseSameref implements `sameref(a,b)`: reference-identity
// comparison, emitted as an equality compare over the two operands'
// raw storage rather than a value comparison.
func (e *Engine) parseSameref(lex *token.Lexer, pos token.Pos) (*types.Variable, types.TypeInfo, error) {
	if _, err := expect(lex, token.LParen); err != nil {
		return nil, types.TypeInfo{}, err
	}
	a, _, err := e.ParseExpr(lex, nil)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if _, err := expect(lex, token.Comma); err != nil {
		return nil, types.TypeInfo{}, err
	}
	b, _, err := e.ParseExpr(lex, nil)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return nil, types.TypeInfo{}, err
	}
	dst, err := e.newTemp(types.Int)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	e.Gen.EmitCompare(codegen.CmpEq, dst, a, b)
	e.freeTemp(a)
	e.freeTemp(b)
	return dst, types.InfoFromVar(dst), nil
}

// parseAnonLiteral implements the lazily-parsed anonymous function/
// method literal of spec.md §4.9: the parser records only the source
// locator and an argument-name list; the body is compiled after the
// enclosing function by package literal's Resolver.
func (e *Engine) parseAnonLiteral(lex *token.Lexer, isMethod bool, pos token.Pos) (*types.Variable, types.TypeInfo, error) {
	loc := lex.Save()

	tok, err := lex.Peek()
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if tok.Kind == token.Ident || tok.Kind == token.KwVar {
		lex.Get()
	}
	if _, err := expect(lex, token.LParen); err != nil {
		return nil, types.TypeInfo{}, err
	}
	var argNames []string
	for {
		tok, err = lex.Peek()
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		if tok.Kind == token.RParen {
			break
		}
		for tok.Kind == token.KwConst || tok.Kind == token.KwRef || tok.Kind == token.KwWeak {
			lex.Get()
			tok, err = lex.Peek()
			if err != nil {
				return nil, types.TypeInfo{}, err
			}
		}
		if tok.Kind != token.Ident && tok.Kind != token.KwVar {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: expected parameter type at %s", tok.Pos)
		}
		lex.Get()
		nameTok, err := expect(lex, token.Ident)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		argNames = append(argNames, nameTok.Lexeme)
		tok, err = lex.Peek()
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		if tok.Kind != token.Comma {
			break
		}
		lex.Get()
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return nil, types.TypeInfo{}, err
	}
	if _, err := expect(lex, token.LBrace); err != nil {
		return nil, types.TypeInfo{}, err
	}
	depth := 1
	for depth > 0 {
		t, err := lex.Get()
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		switch t.Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
		case token.EOF:
			return nil, types.TypeInfo{}, fmt.Errorf("expr: unterminated anonymous function body starting at %s", pos)
		}
	}

	dst, err := e.newTemp(types.Delegate)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	_, pending := e.Pool.AddDelegateLiteral(dst, isMethod, loc, argNames, pos)
	e.Scope.RegisterPendingAnon(pending)
	return dst, types.InfoFromVar(dst), nil
}

// parseArgList parses a parenthesized, comma-separated argument list,
// compiling each argument expression eagerly. Package overload's
// Resolve then scores the resulting static types against the
// candidate set. Each argument is compiled only once: there is no
// probe-then-recompile pass, and emitCallArgs converts the already
// compiled value to the chosen candidate's parameter type.
func (e *Engine) parseArgList(lex *token.Lexer) ([]*types.Variable, error) {
	if _, err := expect(lex, token.LParen); err != nil {
		return nil, err
	}
	var args []*types.Variable
	tok, err := lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.RParen {
		lex.Get()
		return args, nil
	}
	for {
		arg, _, err := e.ParseExpr(lex, nil)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		tok, err = lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind != token.Comma {
			break
		}
		lex.Get()
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return nil, err
	}
	return args, nil
}

// emitCallArgs converts each argument to its resolved parameter type,
// pushes it, invokes f on receiver (which may be nil for a free
// function), and pops the arguments back off the simulated stack.
func (e *Engine) emitCallArgs(receiver *types.Variable, f *types.Function, args []*types.Variable) error {
	converted := make([]*types.Variable, len(args))
	for i, a := range args {
		c, err := e.AutoConvert(a, f.Args[i].Type, false)
		if err != nil {
			return err
		}
		converted[i] = c
	}
	for _, c := range converted {
		if err := e.Stack.Push(c); err != nil {
			return fmt.Errorf("expr: %w", err)
		}
		e.Gen.EmitPush(c)
	}
	if receiver != nil {
		this := types.NewVariable("", f.Owner)
		this.Role = types.RoleRegister
		this.RegisterIndex = 0
		e.Gen.EmitMove(codegen.MoveOwnership, &this, receiver)
		e.Gen.EmitCall(codegen.CallVirtual, types.PackFuncRef(f.Owner, f.Index))
	} else if f.Flags.Has(types.FuncCofunction) {
		e.Gen.EmitNewCtx(receiver, f.Owner)
	} else {
		e.Gen.EmitCall(codegen.CallStatic, types.PackFuncRef(f.Owner, f.Index))
	}
	for range converted {
		if _, err := e.Stack.Pop(); err != nil {
			return fmt.Errorf("expr: %w", err)
		}
	}
	for _, c := range converted {
		e.freeTemp(c)
	}
	return nil
}

// parseIdentAtom resolves a bare identifier: local, member (implicit
// this), global variable, function reference (wrapped as a delegate),
// or a `Class::member` / `Class::func(...)` static access if followed
// by `::` (spec.md §4.3, §4.5).
func (e *Engine) parseIdentAtom(lex *token.Lexer, tok token.Token) (*types.Variable, types.TypeInfo, error) {
	next, err := lex.Peek()
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if next.Kind == token.ColonColon {
		lex.Get()
		return e.parseStaticAccess(lex, tok)
	}

	if v, ok := e.Scope.ResolveLocal(tok.Lexeme); ok {
		return v, types.InfoFromVar(v), nil
	}

	if this := e.Scope.ThisVar(); this != nil {
		if cls := e.Reg.Class(e.Scope.CurrentClass()); cls != nil {
			if idx := cls.MemberIndex(tok.Lexeme); idx >= 0 {
				return e.memberVar(this, cls, idx), types.InfoFromVar(&cls.Members[idx]), nil
			}
		}
	}

	if v, ok := e.Scope.ResolveGlobal(tok.Lexeme); ok {
		return v, types.InfoFromVar(v), nil
	}

	funcs, err := e.Scope.LookupFunctions(tok.Lexeme)
	if err != nil {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: undefined identifier %q at %s", tok.Lexeme, tok.Pos)
	}

	if peek, err := lex.Peek(); err == nil && peek.Kind == token.LParen {
		return e.parseDirectCall(lex, tok.Lexeme, funcs, e.Scope.ThisVar())
	}
	return e.funcValueRef(funcs[0], nil)
}

// parseDirectCall resolves and emits a direct call `name(args)` to the
// best-matching overload in funcs (spec.md §4.7), bypassing the
// delegate-wrapping path used when a function is referenced as a
// first-class value. this is non-nil when the call resolves through
// the implicit `this` scope (an unqualified call to a method of the
// current class).
func (e *Engine) parseDirectCall(lex *token.Lexer, name string, funcs []*types.Function, this *types.Variable) (*types.Variable, types.TypeInfo, error) {
	args, err := e.parseArgList(lex)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	argTypes := make([]types.TypeId, len(args))
	for i, a := range args {
		argTypes[i] = a.Type
	}
	f, err := overload.Resolve(name, funcs, argTypes, e.Checker(), false)
	if err != nil {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: call to %q: %w", name, err)
	}

	if f.Flags.Has(types.FuncCofunction) {
		sig := types.FuncSig{Result: f.Result, Args: f.Args}
		threadType, err := e.Reg.CreateDelegateType(sig, types.FamilyThread)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		dst, err := e.newTemp(threadType)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Gen.EmitNewCtx(dst, threadType)
		for i, a := range args {
			c, err := e.AutoConvert(a, f.Args[i].Type, false)
			if err != nil {
				return nil, types.TypeInfo{}, err
			}
			if err := e.Stack.Push(c); err != nil {
				return nil, types.TypeInfo{}, fmt.Errorf("expr: %w", err)
			}
			e.Gen.EmitPush(c)
		}
		for range args {
			if _, err := e.Stack.Pop(); err != nil {
				return nil, types.TypeInfo{}, fmt.Errorf("expr: %w", err)
			}
		}
		dst.Initialized = true
		return dst, types.InfoFromVar(dst), nil
	}

	var receiver *types.Variable
	if f.Flags.Has(types.FuncMethod) && this != nil {
		receiver = this
	}
	dst, err := e.newTemp(f.Result.Type)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if err := e.emitCallArgs(receiver, f, args); err != nil {
		return nil, types.TypeInfo{}, err
	}
	e.Gen.EmitMove(codegen.MoveOwnership, dst, &types.Variable{Role: types.RoleRegister, RegisterIndex: simstack.RegResult})
	dst.Initialized = true
	return dst, types.InfoFromVar(dst), nil
}

// memberVar builds a Variable payload describing access to member
// idx of cls through object register objVar (spec.md §3 Role: member,
// payload: owning-object register + member slot).
func (e *Engine) memberVar(objVar *types.Variable, cls *types.Class, idx int) *types.Variable {
	m := cls.Members[idx]
	m.Role = types.RoleMember
	m.ObjectReg = objVar.RegisterIndex
	m.MemberSlot = idx
	m.Initialized = true
	m.ConstParent = objVar.Const
	if objVar.Const {
		m.Const = true
	}
	return &m
}

// funcValueRef wraps a bare function reference (not called) as a
// first-class delegate value, emitting newdg/newdgm (spec.md §4.8).
func (e *Engine) funcValueRef(f *types.Function, this *types.Variable) (*types.Variable, types.TypeInfo, error) {
	sig := types.FuncSig{Result: f.Result, Args: f.Args}
	family := types.FamilyDelegate
	if f.Flags.Has(types.FuncCofunction) {
		family = types.FamilyThread
	}
	dgType, err := e.Reg.CreateDelegateType(sig, family)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	dst, err := e.newTemp(dgType)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	e.Gen.EmitNewDelegate(dst, this, int(types.PackFuncRef(f.Owner, f.Index)))
	return dst, types.InfoFromVar(dst), nil
}

// parseStaticAccess implements `Class::member` (spec.md §4.3, §4.6:
// class-qualified constants stored under a mangled "Class::name"
// global key).
func (e *Engine) parseStaticAccess(lex *token.Lexer, classTok token.Token) (*types.Variable, types.TypeInfo, error) {
	memberTok, err := expect(lex, token.Ident)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	classID, ok := e.Reg.FindByName(classTok.Lexeme)
	if !ok {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: unknown class %q at %s", classTok.Lexeme, classTok.Pos)
	}
	mangled := classTok.Lexeme + "::" + memberTok.Lexeme
	if v, ok := e.Scope.ResolveGlobal(mangled); ok {
		return v, types.InfoFromVar(v), nil
	}
	if cls := e.Reg.Class(classID); cls != nil {
		if funcs := cls.FindFunction(memberTok.Lexeme); funcs >= 0 {
			return e.funcValueRef(cls.Functions[funcs], nil)
		}
	}
	return nil, types.TypeInfo{}, fmt.Errorf("expr: unknown class-qualified name %q at %s", mangled, memberTok.Pos)
}
