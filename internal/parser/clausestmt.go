package parser

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/clause"
	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// curClause reports the innermost enclosing clause, or nil.
func (p *Parser) curClause() *clause.Clause {
	if len(p.clauseStack) == 0 {
		return nil
	}
	return p.clauseStack[len(p.clauseStack)-1]
}

// parseClauseStmt implements `clause(T x) { ... } (clause Label: { ... })*`
// (spec.md §4.10): an entry block with a typed parameter, followed by
// zero or more labeled sub-blocks, each reachable from any `goto`
// inside the whole construct.
func (p *Parser) parseClauseStmt(lex *token.Lexer) error {
	lex.Get() // clause
	if _, err := expect(lex, token.LParen); err != nil {
		return err
	}
	t, err := p.parseTypeName(lex)
	if err != nil {
		return err
	}
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return err
	}

	p.pushScope()
	param, err := p.allocLocal(nameTok.Lexeme, t)
	if err != nil {
		return err
	}

	c := clause.New(param, p.stack.Depth(), p.curClause())
	p.clauseStack = append(p.clauseStack, c)

	if err := p.parseBlock(lex); err != nil {
		return err
	}

	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		if tok.Kind != token.KwClause {
			break
		}
		lex.Get()
		labelTok, err := expect(lex, token.Ident)
		if err != nil {
			return err
		}
		if _, err := expect(lex, token.Colon); err != nil {
			return err
		}
		if err := c.AddBlock(labelTok.Lexeme); err != nil {
			return fmt.Errorf("parser: %w", err)
		}
		if err := c.SetBlock(labelTok.Lexeme, p.gen.Here()); err != nil {
			return fmt.Errorf("parser: %w", err)
		}
		if err := p.parseBlock(lex); err != nil {
			return err
		}
	}

	p.clauseStack = p.clauseStack[:len(p.clauseStack)-1]
	if unresolved := c.FixBranches(func(popPos, unwindCount, branchPos, targetPos int) {
		p.gen.PatchPopM(popPos, unwindCount)
		p.gen.PatchBranchTo(branchPos, targetPos)
	}); unresolved != nil {
		p.Sink.Errorf(diag.ClassControlFlow, p.unit, unresolved.Line, unresolved.Col, 1104, "%v",
			(&clause.UnresolvedLabelError{Label: unresolved.Label, Line: unresolved.Line, Col: unresolved.Col}))
	}
	return p.popScope()
}

// parseGoto implements `goto Label(expr);` (spec.md §4.10): expr is
// assigned into the enclosing clause's parameter slot, then a popm
// placeholder and a branch placeholder are recorded for the clause's
// FixBranches pass to resolve once every block's code position is
// known.
func (p *Parser) parseGoto(lex *token.Lexer) error {
	pos := lex.Pos()
	lex.Get() // goto
	c := p.curClause()
	if c == nil {
		p.Sink.Errorf(diag.ClassControlFlow, p.unit, pos.Line, pos.Col, 1105, "goto used outside a clause")
	}
	labelTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	if _, err := expect(lex, token.LParen); err != nil {
		return err
	}
	var val *types.Variable
	if tok, _ := lex.Peek(); tok.Kind != token.RParen {
		v, _, err := p.eng.ParseExpr(lex, nil)
		if err != nil {
			return err
		}
		val = v
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return err
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if val != nil {
		if err := p.eng.Assign(c.Parameter, val); err != nil {
			return err
		}
	}
	popPos := p.gen.EmitPopMPlaceholder()
	branchPos := p.gen.EmitBranch()
	c.AddGoto(labelTok.Lexeme, popPos, branchPos, p.stack.Depth(), pos.Line, pos.Col)
	return nil
}
