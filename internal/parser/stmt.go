package parser

import (
	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// parseStatement dispatches one statement of a function body (spec.md
// §4.6): blocks, control flow, variable declarations, the
// assignment/expression-statement tail, clause/goto, and the debug
// hooks __brk/__selftest.
func (p *Parser) parseStatement(lex *token.Lexer) error {
	tok, err := lex.Peek()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case token.LBrace:
		return p.parseBlock(lex)
	case token.Semi:
		lex.Get()
		return nil
	case token.KwIf:
		return p.parseIf(lex)
	case token.KwFor:
		return p.parseFor(lex)
	case token.KwWhile:
		return p.parseWhile(lex)
	case token.KwDo:
		return p.parseDoWhile(lex)
	case token.KwSwitch:
		return p.parseSwitch(lex)
	case token.KwBreak:
		return p.parseBreak(lex)
	case token.KwContinue:
		return p.parseContinue(lex)
	case token.KwReturn:
		return p.parseReturn(lex)
	case token.KwThrow:
		return p.parseThrow(lex)
	case token.KwYield:
		return p.parseYield(lex)
	case token.KwClause:
		return p.parseClauseStmt(lex)
	case token.KwGoto:
		return p.parseGoto(lex)
	case token.KwBrk:
		lex.Get()
		if _, err := expect(lex, token.Semi); err != nil {
			return err
		}
		return nil // debugger breakpoint hook: no code is generated for it here
	case token.KwSelftest:
		return p.parseSelftest(lex)
	default:
		return p.parseSimpleStatement(lex)
	}
}

// parseBlock parses a braced `{ stmt... }`, introducing a new scope
// whose locals are unrolled on exit (spec.md §4.4).
func (p *Parser) parseBlock(lex *token.Lexer) error {
	if _, err := expect(lex, token.LBrace); err != nil {
		return err
	}
	p.pushScope()
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
	return p.popScope()
}

// parseSimpleStatement dispatches between a local variable declaration
// and an assignment/expression-statement, both terminated by `;`.
func (p *Parser) parseSimpleStatement(lex *token.Lexer) error {
	if p.looksLikeVarDecl(lex) {
		return p.parseLocalVarDecl(lex)
	}
	return p.parseExprStatement(lex)
}

// looksLikeVarDecl probes, via save/restore, whether the upcoming
// tokens form `[const] [ref|weak] TypeName Ident` (spec.md §4.1's
// idempotent locator backtracking is exactly what this needs: a
// modifier/type-name prefix is ambiguous with a bare expression
// statement until the identifier after the type name is seen).
func (p *Parser) looksLikeVarDecl(lex *token.Lexer) bool {
	loc := lex.Save()
	defer lex.Restore(loc)
	for {
		tok, err := lex.Get()
		if err != nil {
			return false
		}
		switch tok.Kind {
		case token.KwConst, token.KwRef, token.KwWeak:
			continue
		case token.KwVar:
			nt, err := lex.Peek()
			return err == nil && nt.Kind == token.Ident
		case token.Ident:
			if _, ok := p.Reg.FindByName(tok.Lexeme); !ok {
				return false
			}
			nt, err := lex.Peek()
			return err == nil && nt.Kind == token.Ident
		default:
			return false
		}
	}
}

// parseLocalVarDecl parses `[const] [ref|weak] Type name[[]] [= expr];`
// (spec.md §4.6, §4.3), allocating storage per session.LocalVarMode and
// compiling its optional initializer through the expression engine's
// full assignment policy.
func (p *Parser) parseLocalVarDecl(lex *token.Lexer) error {
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
	isArray := false
	if tok, _ := lex.Peek(); tok.Kind == token.LBracket {
		lex.Get()
		if _, err := expect(lex, token.RBracket); err != nil {
			return err
		}
		isArray = true
	}

	v, err := p.allocLocal(nameTok.Lexeme, t)
	if err != nil {
		return err
	}
	if isArray {
		v.ElemType = t
		v.Type = types.Array
	}
	v.Const, v.Ref, v.Weak = isConst, isRef, isWeak

	if tok, _ := lex.Peek(); tok.Kind == token.Assign {
		lex.Get()
		val, _, err := p.eng.ParseExpr(lex, v)
		if err != nil {
			return err
		}
		if err := p.eng.Assign(v, val); err != nil {
			return err
		}
	}
	_, err = expect(lex, token.Semi)
	return err
}

var compoundOps = map[token.Kind]string{
	token.PlusAssign: "+", token.MinusAssign: "-", token.StarAssign: "*",
	token.SlashAssign: "/", token.PercentAssign: "%",
	token.AndAssign: "&", token.OrAssign: "|", token.XorAssign: "^",
	token.ShlAssign: "<<", token.ShrAssign: ">>",
}

// parseAssignOrExpr implements the l-value statement tail of spec.md
// §4.5 ("Assignment is not an expression at parse level; it is a
// statement-tail on an atomic l-value"): plain assignment, compound
// assignment, or a bare postfix expression evaluated for its side
// effect (a call, or ++/--). It stops short of the terminating token
// so it can serve both ordinary expression statements and a for-loop's
// semicolon-less init/post clauses.
func (p *Parser) parseAssignOrExpr(lex *token.Lexer) error {
	target, _, err := p.eng.ParseLValue(lex)
	if err != nil {
		return err
	}
	tok, err := lex.Peek()
	if err != nil {
		return err
	}
	switch {
	case tok.Kind == token.Assign:
		lex.Get()
		val, _, err := p.eng.ParseExpr(lex, target)
		if err != nil {
			return err
		}
		if err := p.eng.Assign(target, val); err != nil {
			return err
		}
		p.markMemberInit(target)
	case compoundOps[tok.Kind] != "":
		op := compoundOps[tok.Kind]
		lex.Get()
		rhs, _, err := p.eng.ParseExpr(lex, nil)
		if err != nil {
			return err
		}
		newVal, err := p.eng.CombineBinary(op, target, rhs)
		if err != nil {
			return err
		}
		if err := p.eng.Assign(target, newVal); err != nil {
			return err
		}
		p.markMemberInit(target)
	default:
		// bare expression statement: a call or ++/-- already emitted
		// its side effect while being parsed; the result is discarded.
	}
	return nil
}

// parseExprStatement is parseAssignOrExpr terminated by `;`.
func (p *Parser) parseExprStatement(lex *token.Lexer) error {
	if err := p.parseAssignOrExpr(lex); err != nil {
		return err
	}
	_, err := expect(lex, token.Semi)
	return err
}

// parseCondParen parses `(expr)` and coerces it to int, the common
// condition form of if, while and do-while (spec.md §4.5.1); parseFor
// parses its own condition.
func (p *Parser) parseCondParen(lex *token.Lexer) (*types.Variable, error) {
	if _, err := expect(lex, token.LParen); err != nil {
		return nil, err
	}
	v, _, err := p.eng.ParseExpr(lex, nil)
	if err != nil {
		return nil, err
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return nil, err
	}
	return p.eng.AutoConvert(v, types.Int, false)
}

// parseIf implements if/else with the init-state snapshot/AND-merge of
// spec.md §4.6: a class member is considered initialized after the
// construct only if every path through it initializes it.
func (p *Parser) parseIf(lex *token.Lexer) error {
	lex.Get() // if
	cond, err := p.parseCondParen(lex)
	if err != nil {
		return err
	}
	before := p.snapshotMemberInit()
	elseBr := p.gen.EmitBranchIfZero(cond)
	if err := p.parseStatement(lex); err != nil {
		return err
	}
	thenState := p.snapshotMemberInit()

	if tok, _ := lex.Peek(); tok.Kind == token.KwElse {
		lex.Get()
		endBr := p.gen.EmitBranch()
		p.gen.PatchBranchTarget(elseBr)
		p.memberInit = before
		if err := p.parseStatement(lex); err != nil {
			return err
		}
		elseState := p.snapshotMemberInit()
		p.gen.PatchBranchTarget(endBr)
		p.mergeMemberInitAnd(thenState, elseState)
	} else {
		p.gen.PatchBranchTarget(elseBr)
		p.mergeMemberInitAnd(thenState, before)
	}
	return nil
}

// parseReturn implements `return [expr];` (spec.md §4.6): the result
// (if any) is moved into the reserved result register, the whole
// simulated stack is unwound back to function entry depth, and ret is
// emitted directly at the return site (there is no shared epilogue to
// branch to).
func (p *Parser) parseReturn(lex *token.Lexer) error {
	pos := lex.Pos()
	lex.Get() // return
	if p.curFunc != nil && p.curFunc.Flags.Has(types.FuncCofunction) {
		p.Sink.Errorf(diag.ClassControlFlow, p.unit, pos.Line, pos.Col, 1100, "return is not allowed in a cofunction; use yield")
	}
	if next, _ := lex.Peek(); next.Kind != token.Semi {
		val, _, err := p.eng.ParseExpr(lex, nil)
		if err != nil {
			return err
		}
		if p.curFunc != nil && p.curFunc.Result.Type != types.Null {
			conv, err := p.eng.AutoConvert(val, p.curFunc.Result.Type, false)
			if err != nil {
				return err
			}
			result := &types.Variable{Role: types.RoleRegister, RegisterIndex: 1}
			p.gen.EmitMove(codegen.MoveOwnership, result, conv)
		}
	} else if p.curFunc != nil && p.curFunc.Result.Type != types.Null && !p.curFunc.Flags.Has(types.FuncCofunction) {
		p.Sink.Errorf(diag.ClassControlFlow, p.unit, pos.Line, pos.Col, 1101, "missing return value in function returning %s", p.Reg.TypeName(p.curFunc.Result.Type))
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	if p.curClass != nil && p.curFunc != nil && p.curFunc.Flags.Has(types.FuncConstructor) {
		if err := p.checkMembersInitialized(); err != nil {
			p.Sink.Errorf(diag.ClassControlFlow, p.unit, pos.Line, pos.Col, 1102, "%v", err)
		}
	}
	if err := p.unwindTo(p.baseStackDepth); err != nil {
		return err
	}
	if p.curFunc != nil {
		p.curFunc.ReturnSeen = true
	}
	p.gen.EmitRet()
	return nil
}

// parseThrow implements `throw expr;` (spec.md §4.6): the thrown value
// is evaluated, the stack is unwound to function entry (the VM's
// exception propagation takes over from there), and a throw
// instruction is emitted.
func (p *Parser) parseThrow(lex *token.Lexer) error {
	lex.Get() // throw
	val, _, err := p.eng.ParseExpr(lex, nil)
	if err != nil {
		return err
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	if err := p.unwindTo(p.baseStackDepth); err != nil {
		return err
	}
	p.gen.EmitThrow(val)
	return nil
}

// parseYield implements `yield [expr];` (spec.md §5: "cofunctions ...
// yields between activations preserve local state and the instruction
// pointer"): unlike return/throw, the simulated stack is left intact
// since the activation resumes later at this exact point.
func (p *Parser) parseYield(lex *token.Lexer) error {
	pos := lex.Pos()
	lex.Get() // yield
	if p.curFunc == nil || !p.curFunc.Flags.Has(types.FuncCofunction) {
		p.Sink.Errorf(diag.ClassControlFlow, p.unit, pos.Line, pos.Col, 1103, "yield used outside a cofunction")
	}
	var val *types.Variable
	if next, _ := lex.Peek(); next.Kind != token.Semi {
		v, _, err := p.eng.ParseExpr(lex, nil)
		if err != nil {
			return err
		}
		val = v
	} else {
		val = &types.Variable{Role: types.RoleRegister, RegisterIndex: -1}
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	if p.curFunc != nil {
		p.curFunc.YieldSeen = true
	}
	p.gen.EmitYield(val)
	return nil
}

// parseSelftest implements the `__selftest { ... }` debug hook: its
// body compiles like an ordinary block, gated at the VM side on a
// self-test build flag (spec.md §4.6 names it alongside __brk as a
// debug hook; no special bytecode is needed here beyond the block's
// own).
func (p *Parser) parseSelftest(lex *token.Lexer) error {
	lex.Get() // __selftest
	return p.parseBlock(lex)
}
