package expr

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/overload"
	"github.com/jewelscript-go/jilc/internal/simstack"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// parsePostfix applies the postfix chain `[] . () ++ --` to an
// already-parsed atom (spec.md §4.5: "Postfix [] loads the current
// temp from an array ... Postfix . dereferences a member or invokes
// an accessor/method. Postfix () invokes the current value as a
// first-class function (delegate) or resumes a cofunction").
func (e *Engine) parsePostfix(lex *token.Lexer, base *types.Variable, info types.TypeInfo) (*types.Variable, types.TypeInfo, error) {
	for {
		tok, err := lex.Peek()
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		switch tok.Kind {
		case token.LBracket:
			lex.Get()
			base, info, err = e.postfixIndex(lex, base)
		case token.Dot:
			lex.Get()
			base, info, err = e.postfixMember(lex, base)
		case token.LParen:
			base, info, err = e.postfixCall(lex, base)
		case token.Inc, token.Dec:
			lex.Get()
			if cerr := e.CheckMove(base, base); cerr != nil {
				return nil, types.TypeInfo{}, cerr
			}
			old, nerr := e.newTemp(base.Type)
			if nerr != nil {
				return nil, types.TypeInfo{}, nerr
			}
			e.Gen.EmitMove(codegen.MoveCopy, old, base)
			op := types.OpInc
			if tok.Kind == token.Dec {
				op = types.OpDec
			}
			e.Gen.EmitUnary(op, base, base)
			base, info = old, types.InfoFromVar(old)
			err = nil
		default:
			return base, info, nil
		}
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
	}
}

// postfixIndex implements `arr[idx]`: loads the element through a
// fresh index temp (spec.md §4.5 "a fresh index temp").
func (e *Engine) postfixIndex(lex *token.Lexer, base *types.Variable) (*types.Variable, types.TypeInfo, error) {
	idxExpr, _, err := e.ParseExpr(lex, nil)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if _, err := expect(lex, token.RBracket); err != nil {
		return nil, types.TypeInfo{}, err
	}
	idxInt, err := e.AutoConvert(idxExpr, types.Int, false)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	idxVar := types.NewVariable("", types.Int)
	if _, ok := e.Regs.Alloc(&idxVar); ok {
		e.Gen.EmitMove(codegen.MoveOwnership, &idxVar, idxInt)
	} else {
		idxVar = *idxInt
	}

	elem := types.NewVariable("", base.ElemType)
	elem.Role = types.RoleArrayElement
	elem.ArrayReg = base.RegisterIndex
	elem.Index = &idxVar
	elem.Initialized = true
	if base.Const {
		elem.Const = true
	}
	return &elem, types.InfoFromVar(&elem), nil
}

// postfixMember implements `.name`: a member variable access, or (if
// followed by `(`) a method/accessor call resolved by overload
// against the object's class (spec.md §4.3, §4.5, §4.7).
func (e *Engine) postfixMember(lex *token.Lexer, base *types.Variable) (*types.Variable, types.TypeInfo, error) {
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	cls := e.Reg.Class(base.Type)
	if cls == nil {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: %q has no members at %s", e.Reg.TypeName(base.Type), nameTok.Pos)
	}

	if peek, err := lex.Peek(); err == nil && peek.Kind == token.LParen {
		var candidates []*types.Function
		for cur := cls; cur != nil; {
			for _, f := range cur.Functions {
				if f.Name == nameTok.Lexeme {
					candidates = append(candidates, f)
				}
			}
			if cur.HybridBase == types.Null {
				break
			}
			cur = e.Reg.Class(cur.HybridBase)
		}
		if len(candidates) == 0 {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: %s has no method %q at %s", cls.Name, nameTok.Lexeme, nameTok.Pos)
		}
		return e.parseMemberCall(lex, base, candidates)
	}

	if idx := cls.MemberIndex(nameTok.Lexeme); idx >= 0 {
		return e.memberVar(base, cls, idx), types.InfoFromVar(&cls.Members[idx]), nil
	}
	return nil, types.TypeInfo{}, fmt.Errorf("expr: %s has no member %q at %s", cls.Name, nameTok.Lexeme, nameTok.Pos)
}

// parseMemberCall resolves and emits `base.method(args)` as a virtual
// call (spec.md §4.8 callm: "virtual via type + index").
func (e *Engine) parseMemberCall(lex *token.Lexer, base *types.Variable, candidates []*types.Function) (*types.Variable, types.TypeInfo, error) {
	args, err := e.parseArgList(lex)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	argTypes := make([]types.TypeId, len(args))
	for i, a := range args {
		argTypes[i] = a.Type
	}
	f, err := overload.Resolve("", candidates, argTypes, e.Checker(), false)
	if err != nil {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: method call: %w", err)
	}
	dst, err := e.newTemp(f.Result.Type)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if err := e.emitCallArgs(base, f, args); err != nil {
		return nil, types.TypeInfo{}, err
	}
	if f.Result.Type != types.Null {
		e.Gen.EmitMove(codegen.MoveOwnership, dst, &types.Variable{Role: types.RoleRegister, RegisterIndex: simstack.RegResult})
		dst.Initialized = true
	}
	return dst, types.InfoFromVar(dst), nil
}

// postfixCall implements invoking the current value as a first-class
// delegate, or resuming a cofunction context, dispatching on the
// value's type family (spec.md §4.5, §4.8).
func (e *Engine) postfixCall(lex *token.Lexer, base *types.Variable) (*types.Variable, types.TypeInfo, error) {
	args, err := e.parseArgList(lex)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	cls := e.Reg.Class(base.Type)
	if cls == nil || cls.Sig == nil {
		return nil, types.TypeInfo{}, fmt.Errorf("expr: value of type %s is not callable", e.Reg.TypeName(base.Type))
	}
	sig := cls.Sig

	if cls.Family == types.FamilyThread {
		dst, err := e.newTemp(sig.Result.Type)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		e.Gen.EmitResume(base)
		if sig.Result.Type != types.Null {
			e.Gen.EmitMove(codegen.MoveOwnership, dst, &types.Variable{Role: types.RoleRegister, RegisterIndex: simstack.RegResult})
			dst.Initialized = true
		}
		return dst, types.InfoFromVar(dst), nil
	}

	converted := make([]*types.Variable, len(args))
	for i, a := range args {
		pt := types.Var
		if i < len(sig.Args) {
			pt = sig.Args[i].Type
		}
		c, err := e.AutoConvert(a, pt, false)
		if err != nil {
			return nil, types.TypeInfo{}, err
		}
		converted[i] = c
	}
	for _, c := range converted {
		if err := e.Stack.Push(c); err != nil {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: %w", err)
		}
		e.Gen.EmitPush(c)
	}
	e.Gen.EmitCallDelegate(base)
	for range converted {
		if _, err := e.Stack.Pop(); err != nil {
			return nil, types.TypeInfo{}, fmt.Errorf("expr: %w", err)
		}
	}
	for _, c := range converted {
		e.freeTemp(c)
	}
	dst, err := e.newTemp(sig.Result.Type)
	if err != nil {
		return nil, types.TypeInfo{}, err
	}
	if sig.Result.Type != types.Null {
		e.Gen.EmitMove(codegen.MoveOwnership, dst, &types.Variable{Role: types.RoleRegister, RegisterIndex: simstack.RegResult})
		dst.Initialized = true
	}
	return dst, types.InfoFromVar(dst), nil
}
