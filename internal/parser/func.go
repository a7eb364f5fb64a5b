package parser

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/literal"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// parseFreeFunctionDecl parses a top-level `function`/`cofunction`
// declaration: `[cofunction] ResultType name(args) { body }` (spec.md
// §4.6). The Function is owned by the Global pseudo-class so it gets
// the same (owner,index) addressing scheme as a method (spec.md §4.8
// calls/callm share the packed-ref convention).
func (p *Parser) parseFreeFunctionDecl(lex *token.Lexer, isCofunction bool) error {
	lex.Get() // function | cofunction
	resultType, err := p.parseTypeName(lex)
	if err != nil {
		return err
	}
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	args, err := p.parseParamList(lex)
	if err != nil {
		return err
	}
	flags := types.FuncFlags(0)
	if isCofunction {
		flags |= types.FuncCofunction
	}
	global := p.Reg.Class(types.Global)
	fn := types.NewFunction(types.Global, nameTok.Lexeme, types.NewVariable("", resultType), args, flags)
	fn.Index = len(global.Functions)
	global.Functions = append(global.Functions, fn)
	p.Global.AddFunction(fn)
	return p.deferOrInlineBody(lex, global, fn)
}

// parseGlobalVarDecl parses a top-level variable declaration:
// `[const] [weak] [ref] Type name [= expr];` (spec.md §4.3). Unlike a
// class member constant, a free global is stored under its own plain
// name rather than a mangled key.
func (p *Parser) parseGlobalVarDecl(lex *token.Lexer) error {
	var isConst, isWeak, isRef bool
	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case token.KwConst:
			isConst = true
			lex.Get()
			continue
		case token.KwWeak:
			isWeak = true
			isRef = true
			lex.Get()
			continue
		case token.KwRef:
			isRef = true
			lex.Get()
			continue
		}
		break
	}
	t, err := p.parseTypeName(lex)
	if err != nil {
		return err
	}
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	if tok, _ := lex.Peek(); tok.Kind == token.LBracket {
		lex.Get()
		if _, err := expect(lex, token.RBracket); err != nil {
			return err
		}
	}

	v := types.NewVariable(nameTok.Lexeme, t)
	v.Const, v.Ref, v.Weak = isConst, isRef, isWeak

	var hasInit bool
	var initLoc token.Locator
	if tok, _ := lex.Peek(); tok.Kind == token.Assign {
		hasInit = true
		lex.Get()
		initLoc = lex.Save()
		if err := skipExprUntilSemi(lex); err != nil {
			return err
		}
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}

	if err := p.Global.AddVariable(&v); err != nil {
		return fmt.Errorf("parser: %w", err)
	}
	if hasInit {
		stored, _ := p.Global.Variable(nameTok.Lexeme)
		p.PendingBodies = append(p.PendingBodies, PendingBody{
			Class: types.Global, Loc: initLoc, IsInit: true, InitVar: stored,
		})
	}
	return nil
}

// ensureInitFunc lazily creates (or returns) the shared `__init`
// global-pseudo-class function that every global/const-member
// initializer is appended into, in declaration order (spec.md §4.11,
// §5: "Global initializers run in declaration order"). Reopening it
// for a later initializer rewinds past the previous trailing ret
// (types.Function.RewindReturn), mirroring the Two-Pass Driver's
// "generates and can reopen __init" responsibility.
func (p *Parser) ensureInitFunc() *types.Function {
	if p.initFn != nil {
		return p.initFn
	}
	global := p.Reg.Class(types.Global)
	fn := types.NewFunction(types.Global, "__init", types.NewVariable("", types.Null), nil, 0)
	fn.Index = len(global.Functions)
	global.Functions = append(global.Functions, fn)
	p.Global.AddFunction(fn)
	p.initFn = fn
	return fn
}

// compileInitializer compiles one deferred global/const-member
// initializer expression and appends its assignment to __init.
func (p *Parser) compileInitializer(lex *token.Lexer, src string, target *types.Variable) error {
	fn := p.ensureInitFunc()
	if fn.State == types.FuncLinked {
		fn.RewindReturn(1)
	}
	p.newFunctionScope(nil, fn)
	val, _, err := p.eng.ParseExpr(lex, target)
	if err != nil {
		return err
	}
	if err := p.eng.Assign(target, val); err != nil {
		return err
	}
	if err := p.popScope(); err != nil {
		return err
	}
	if err := p.resolver.Resolve(fn, p.makeCompileAnon(nil, src)); err != nil {
		return err
	}
	p.gen.EmitRet()
	fn.State = types.FuncLinked
	return nil
}

// compileFunctionBody is pass 2's entry point for one ordinary
// function/method/constructor/convertor/cofunction/anonymous body: it
// wires a fresh function scope, parses the `{ statements }` block,
// always emits a trailing ret, then resolves any anonymous-function
// literals deferred during parsing (spec.md §4.9, §4.11).
func (p *Parser) compileFunctionBody(lex *token.Lexer, owner *types.Class, fn *types.Function, src string) error {
	p.newFunctionScope(owner, fn)
	if owner != nil && fn.Flags.Has(types.FuncConstructor) {
		if err := p.emitMemberDefaultInits(owner, src); err != nil {
			return err
		}
	}
	if _, err := expect(lex, token.LBrace); err != nil {
		return err
	}
	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		if tok.Kind == token.RBrace {
			lex.Get()
			break
		}
		if err := p.parseStatement(lex); err != nil {
			return err
		}
	}
	if err := p.popScope(); err != nil {
		return err
	}
	if owner != nil && fn.Flags.Has(types.FuncConstructor) && !fn.ReturnSeen {
		if err := p.checkMembersInitialized(); err != nil {
			p.Sink.Errorf(diag.ClassControlFlow, p.unit, 0, 0, 1102, "%v", err)
		}
	}
	p.gen.EmitRet()
	fn.State = types.FuncDefined
	if err := p.resolver.Resolve(fn, p.makeCompileAnon(owner, src)); err != nil {
		return err
	}
	fn.State = types.FuncLinked
	return nil
}

// emitMemberDefaultInits runs owner's non-const member default-value
// initializers as a constructor prologue, each re-entered at its
// deferred locator exactly the way any other deferred body is
// (spec.md §4.11), assigned into the member slot on `this` before the
// constructor's own statements run.
func (p *Parser) emitMemberDefaultInits(owner *types.Class, src string) error {
	for _, mi := range p.memberDefaultInits[owner.ID] {
		m := &owner.Members[mi.MemberIdx]
		dst := &types.Variable{
			Type: m.Type, ElemType: m.ElemType, ElemRef: m.ElemRef,
			Role: types.RoleMember, ObjectReg: p.thisVar.RegisterIndex, MemberSlot: mi.MemberIdx,
		}
		subLex := token.New(p.unit, src)
		subLex.Restore(mi.Loc)
		val, _, err := p.eng.ParseExpr(subLex, dst)
		if err != nil {
			return err
		}
		if err := p.eng.Assign(dst, val); err != nil {
			return err
		}
		p.markMemberInit(dst)
	}
	return nil
}

// makeCompileAnon builds the literal.CompileAnonFunc callback for one
// enclosing function body: a deferred anonymous literal becomes a new
// Function appended to owner's class (the enclosing class for a
// method literal, the Global pseudo-class for a free one), compiled
// immediately, and addressed the same way any other method/free
// function is (spec.md §4.9, §4.8 packed (owner,index) refs).
func (p *Parser) makeCompileAnon(owner *types.Class, src string) literal.CompileAnonFunc {
	return func(pending *literal.PendingAnon) (int, error) {
		var target *types.Class
		ownerID := types.Global
		flags := types.FuncAnonymous
		if pending.IsMethod && owner != nil {
			target = owner
			ownerID = owner.ID
			flags |= types.FuncMethod
		} else {
			target = p.Reg.Class(types.Global)
		}
		args := make([]types.Variable, len(pending.ArgNames))
		for i, n := range pending.ArgNames {
			args[i] = types.NewVariable(n, types.Var)
		}
		anonFn := types.NewFunction(ownerID, fmt.Sprintf("$anon%d", len(target.Functions)), types.NewVariable("", types.Var), args, flags)
		anonFn.Index = len(target.Functions)
		target.Functions = append(target.Functions, anonFn)

		bodyLex := token.New(p.unit, src)
		bodyLex.Restore(pending.Locator)
		if err := p.compileFunctionBody(bodyLex, target, anonFn, src); err != nil {
			return 0, err
		}
		return int(types.PackFuncRef(ownerID, anonFn.Index)), nil
	}
}
