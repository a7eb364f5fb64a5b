package parser

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// parseWhile implements `while (cond) body` (spec.md §4.6): the
// condition is re-tested at the top of each iteration, so continue and
// the loop-back branch share the same target.
func (p *Parser) parseWhile(lex *token.Lexer) error {
	lex.Get() // while
	top := p.gen.Here()
	cond, err := p.parseCondParen(lex)
	if err != nil {
		return err
	}
	exitBr := p.gen.EmitBranchIfZero(cond)
	p.pushLoop(false)
	if err := p.parseStatement(lex); err != nil {
		return err
	}
	lc := p.popLoop()
	p.patchBranchListTo(lc.continuePatches, top)
	p.gen.PatchBranchTo(p.gen.EmitBranch(), top)
	p.gen.PatchBranchTarget(exitBr)
	p.patchBranchList(lc.breakPatches)
	return nil
}

// parseDoWhile implements `do body while (cond);` (spec.md §4.6): the
// body runs once unconditionally before the first test, and continue
// must land on the condition re-check, not the top of the body.
func (p *Parser) parseDoWhile(lex *token.Lexer) error {
	lex.Get() // do
	top := p.gen.Here()
	p.pushLoop(false)
	if err := p.parseStatement(lex); err != nil {
		return err
	}
	if _, err := expect(lex, token.KwWhile); err != nil {
		return err
	}
	lc := p.popLoop()
	p.patchBranchList(lc.continuePatches) // continue lands on the condition re-check, here
	cond, err := p.parseCondParen(lex)
	if err != nil {
		return err
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	p.gen.PatchBranchTo(p.gen.EmitBranchIfNonZero(cond), top)
	p.patchBranchList(lc.breakPatches)
	return nil
}

// parseFor implements `for (init; cond; post) body` (spec.md §4.6).
// The post-expression textually precedes the body but must execute
// after it on every iteration including a continue. Its tokens are
// first skipped to reach the body; then, via the save/restore locator
// idiom, the post-expression is compiled once ahead of the body's
// bytecode, with a branch over it into the body and the body's end
// (and every continue) branching back to it.
func (p *Parser) parseFor(lex *token.Lexer) error {
	lex.Get() // for
	if _, err := expect(lex, token.LParen); err != nil {
		return err
	}
	p.pushScope()
	defer p.popScope()

	if tok, _ := lex.Peek(); tok.Kind != token.Semi {
		if p.looksLikeVarDecl(lex) {
			if err := p.parseLocalVarDecl(lex); err != nil {
				return err
			}
		} else {
			if err := p.parseAssignOrExpr(lex); err != nil {
				return err
			}
			if _, err := expect(lex, token.Semi); err != nil {
				return err
			}
		}
	} else {
		lex.Get()
	}

	testTop := p.gen.Here()
	var exitBr = -1
	if tok, _ := lex.Peek(); tok.Kind != token.Semi {
		raw, _, err := p.eng.ParseExpr(lex, nil)
		if err != nil {
			return err
		}
		cond, err := p.eng.AutoConvert(raw, types.Int, false)
		if err != nil {
			return err
		}
		exitBr = p.gen.EmitBranchIfZero(cond)
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}

	postLoc := lex.Save()
	if err := skipBalancedUntil(lex, token.RParen); err != nil {
		return err
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return err
	}

	bodyBr := p.gen.EmitBranch()
	postTarget := p.gen.Here()
	resumeAfterPost := lex.Save()
	lex.Restore(postLoc)
	if tok, _ := lex.Peek(); tok.Kind != token.RParen {
		if err := p.parseAssignOrExpr(lex); err != nil {
			return err
		}
	}
	lex.Restore(resumeAfterPost)
	p.gen.PatchBranchTo(p.gen.EmitBranch(), testTop)
	p.gen.PatchBranchTarget(bodyBr)

	p.pushLoop(false)
	if err := p.parseStatement(lex); err != nil {
		return err
	}
	lc := p.popLoop()
	p.patchBranchListTo(lc.continuePatches, postTarget)
	p.gen.PatchBranchTo(p.gen.EmitBranch(), postTarget)
	if exitBr >= 0 {
		p.gen.PatchBranchTarget(exitBr)
	}
	p.patchBranchList(lc.breakPatches)
	return nil
}

// skipBalancedUntil advances lex past tokens up to (not including) the
// next occurrence of stop at the current nesting depth, tracking
// parens/brackets/braces so a nested `(...)` in the post-expression
// doesn't end the skip early.
func skipBalancedUntil(lex *token.Lexer, stop token.Kind) error {
	depth := 0
	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		if depth == 0 && tok.Kind == stop {
			return nil
		}
		switch tok.Kind {
		case token.LParen, token.LBracket, token.LBrace:
			depth++
		case token.RParen, token.RBracket, token.RBrace:
			depth--
		}
		lex.Get()
	}
}

// switchLabel is one case/default label discovered by the
// label-discovery scan of parseSwitch.
type switchLabel struct {
	isDefault bool
	tok       token.Token
}

// scanSwitchLabels performs a token-kind-only first pass over a
// switch body (spec.md §4.6 "true C-style fallthrough"): it finds the
// ordered sequence of case/default labels without evaluating or
// compiling anything, so the second, real pass can emit every
// cascading dispatch test up front before any case body, letting
// fallthrough fall out naturally from contiguous instruction layout.
func scanSwitchLabels(lex *token.Lexer) ([]switchLabel, error) {
	var labels []switchLabel
	depth := 0
	for {
		tok, err := lex.Get()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			if depth == 0 {
				return labels, nil
			}
			depth--
		case token.KwCase:
			if depth == 0 {
				lit, err := lex.Get()
				if err != nil {
					return nil, err
				}
				labels = append(labels, switchLabel{tok: lit})
				if _, err := expect(lex, token.Colon); err != nil {
					return nil, err
				}
			}
		case token.KwDefault:
			if depth == 0 {
				labels = append(labels, switchLabel{isDefault: true})
				if _, err := expect(lex, token.Colon); err != nil {
					return nil, err
				}
			}
		}
	}
}

// switchCaseConst materializes a case label's literal token as a fresh
// comparison operand of the discriminator's type.
func (p *Parser) switchCaseConst(lit token.Token, discType types.TypeId) (*types.Variable, error) {
	v, err := p.eng.NewTemp(discType)
	if err != nil {
		return nil, err
	}
	switch lit.Kind {
	case token.IntLit, token.CharLit:
		p.pool.AddInt(lit.IVal, v, lit.Pos)
	case token.FloatLit:
		p.pool.AddFloat(lit.FVal, v, lit.Pos)
	case token.StringLit:
		p.pool.AddString(lit.Lexeme, v, lit.Pos)
	default:
		return nil, fmt.Errorf("parser: case label at %s is not a constant", lit.Pos)
	}
	v.Initialized = true
	return v, nil
}

// parseSwitch implements `switch (expr) { case c: ... default: ... }`
// with true fallthrough (spec.md §4.6): the discriminator is always
// materialized on the simulated stack, never a register, per that same
// section.
func (p *Parser) parseSwitch(lex *token.Lexer) error {
	lex.Get() // switch
	if _, err := expect(lex, token.LParen); err != nil {
		return err
	}
	discExpr, _, err := p.eng.ParseExpr(lex, nil)
	if err != nil {
		return err
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return err
	}
	disc := types.NewVariable("", discExpr.Type)
	disc.Usage = types.UsageTemp
	if err := p.stack.Push(&disc); err != nil {
		return fmt.Errorf("parser: %w", err)
	}
	p.gen.EmitMove(codegen.MoveOwnership, &disc, discExpr)
	disc.Initialized = true

	if _, err := expect(lex, token.LBrace); err != nil {
		return err
	}
	scanLoc := lex.Save()
	labels, err := scanSwitchLabels(lex)
	if err != nil {
		return err
	}
	lex.Restore(scanLoc)

	testBranches := make([]int, len(labels))
	defaultIdx := -1
	for i, lbl := range labels {
		if lbl.isDefault {
			defaultIdx = i
			continue
		}
		cv, err := p.switchCaseConst(lbl.tok, disc.Type)
		if err != nil {
			return err
		}
		cmp, err := p.eng.NewTemp(types.Int)
		if err != nil {
			return err
		}
		p.gen.EmitCompare(codegen.CmpEq, cmp, &disc, cv)
		testBranches[i] = p.gen.EmitBranchIfNonZero(cmp)
	}
	fallBr := p.gen.EmitBranch() // no case matched: default, or skip the whole body

	p.pushLoop(true)
	labelIdx := 0
	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		if tok.Kind == token.RBrace {
			lex.Get()
			break
		}
		if tok.Kind == token.KwCase || tok.Kind == token.KwDefault {
			here := p.gen.Here()
			if tok.Kind == token.KwDefault {
				lex.Get()
			} else {
				lex.Get()
				lex.Get() // literal
			}
			if _, err := expect(lex, token.Colon); err != nil {
				return err
			}
			if labelIdx == defaultIdx {
				p.gen.PatchBranchTarget(fallBr)
			} else {
				p.gen.PatchBranchTo(testBranches[labelIdx], here)
			}
			labelIdx++
			continue
		}
		if err := p.parseStatement(lex); err != nil {
			return err
		}
	}
	if defaultIdx == -1 {
		p.gen.PatchBranchTarget(fallBr)
	}
	lc := p.popLoop()
	p.patchBranchList(lc.breakPatches)

	if n, err := p.stack.UnrollTo(p.stack.Depth() - 1); err != nil {
		return fmt.Errorf("parser: %w", err)
	} else if n > 0 {
		p.gen.EmitPopM(n)
	}
	return nil
}

// parseBreak implements `break;`: it targets the innermost loop or
// switch (spec.md §4.6).
func (p *Parser) parseBreak(lex *token.Lexer) error {
	lex.Get()
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	lc, err := p.curLoop()
	if err != nil {
		return err
	}
	if err := p.unwindTo(lc.stackDepthAtLoop); err != nil {
		return err
	}
	lc.breakPatches = append(lc.breakPatches, p.gen.EmitBranch())
	return nil
}

// parseContinue implements `continue;`: it targets the innermost true
// loop, skipping over any enclosing switch frames (spec.md §4.6).
func (p *Parser) parseContinue(lex *token.Lexer) error {
	lex.Get()
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	lc, err := p.curEnclosingLoop()
	if err != nil {
		return err
	}
	if err := p.unwindTo(lc.stackDepthAtLoop); err != nil {
		return err
	}
	lc.continuePatches = append(lc.continuePatches, p.gen.EmitBranch())
	return nil
}
