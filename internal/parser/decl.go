package parser

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// Precompile implements pass 1 of the Two-Pass Driver (spec.md §4.11):
// it walks the unit creating types, forward-declarations, member
// variables, function prototypes, aliases, delegates and interface/
// hybrid links. Function bodies are skipped brace-balanced and
// recorded into p.PendingBodies for pass 2.
func (p *Parser) Precompile(lex *token.Lexer) error {
	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		if tok.Kind == token.EOF {
			return nil
		}
		if err := p.topLevelDecl(lex, true); err != nil {
			p.Sink.Errorf(diag.ClassSyntactic, p.unit, tok.Pos.Line, tok.Pos.Col, 1000, "%v", err)
			if rerr := p.resyncTopLevel(lex); rerr != nil {
				return rerr
			}
		}
	}
}

// Compile implements pass 2: every body recorded by pass 1 is
// compiled by restoring a fresh lexer at its saved locator (spec.md
// §4.1 idempotent save/restore) rather than re-walking the whole unit.
func (p *Parser) Compile(src string) error {
	for _, pb := range p.PendingBodies {
		bodyLex := token.New(p.unit, src)
		bodyLex.Restore(pb.Loc)
		if pb.IsInit {
			if err := p.compileInitializer(bodyLex, src, pb.InitVar); err != nil {
				p.Sink.Errorf(diag.ClassType, p.unit, 0, 0, 1001, "%v", err)
			}
			continue
		}
		owner := (*types.Class)(nil)
		if pb.Class != types.Null {
			owner = p.Reg.Class(pb.Class)
		}
		if err := p.compileFunctionBody(bodyLex, owner, pb.Fn, src); err != nil {
			p.Sink.Errorf(diag.ClassType, p.unit, 0, 0, 1001, "%v", err)
		}
	}
	p.PendingBodies = nil
	return nil
}

// resyncTopLevel implements spec.md §4.12 "Failure semantics": after
// a semantic/syntax error the parser resynchronizes at the next
// top-level declaration boundary (approximated here as the next `;`
// or matching `}` at brace depth 0).
func (p *Parser) resyncTopLevel(lex *token.Lexer) error {
	depth := 0
	for {
		tok, err := lex.Get()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case token.EOF:
			return nil
		case token.LBrace:
			depth++
		case token.RBrace:
			if depth == 0 {
				return nil
			}
			depth--
			if depth == 0 {
				return nil
			}
		case token.Semi:
			if depth == 0 {
				return nil
			}
		}
	}
}

func (p *Parser) topLevelDecl(lex *token.Lexer, precompile bool) error {
	tok, err := lex.Peek()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case token.KwImport:
		return p.parseImport(lex)
	case token.KwUsing:
		return p.parseUsing(lex)
	case token.KwAlias:
		return p.parseAliasDecl(lex)
	case token.KwDelegate:
		return p.parseDelegateTypeDecl(lex)
	case token.KwClass:
		return p.parseClassDecl(lex, false)
	case token.KwInterface:
		return p.parseClassDecl(lex, true)
	case token.KwCofunction:
		return p.parseFreeFunctionDecl(lex, true)
	case token.KwFunction:
		return p.parseFreeFunctionDecl(lex, false)
	default:
		return p.parseGlobalVarDecl(lex)
	}
}

func (p *Parser) parseImport(lex *token.Lexer) error {
	lex.Get() // import
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	dotted := nameTok.Lexeme
	for {
		t, err := lex.Peek()
		if err != nil {
			return err
		}
		if t.Kind != token.Dot {
			break
		}
		lex.Get()
		part, err := expect(lex, token.Ident)
		if err != nil {
			return err
		}
		dotted += "." + part.Lexeme
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	if dotted == "all" {
		return nil // spec.md §6: "imports every registered native class" -- native registry is out of core scope
	}
	return p.ImportClass(dotted)
}

func (p *Parser) parseUsing(lex *token.Lexer) error {
	lex.Get()
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	return p.file.AddUsing(nameTok.Lexeme)
}

func (p *Parser) parseAliasDecl(lex *token.Lexer) error {
	lex.Get()
	typeTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	aliasTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	id, ok := p.Reg.FindByName(typeTok.Lexeme)
	if !ok {
		return fmt.Errorf("parser: alias: unknown type %q", typeTok.Lexeme)
	}
	return p.Reg.AddAlias(aliasTok.Lexeme, id)
}

// parseDelegateTypeDecl parses `delegate ResultType Name(ArgTypes);`,
// a named delegate type declaration. Its underlying TypeId is the
// same content-addressed signature type package types.CreateDelegateType
// produces; Name is registered as an alias onto it.
func (p *Parser) parseDelegateTypeDecl(lex *token.Lexer) error {
	lex.Get()
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
	if _, err := expect(lex, token.Semi); err != nil {
		return err
	}
	sig := types.FuncSig{Result: types.NewVariable("", resultType), Args: args}
	id, err := p.Reg.CreateDelegateType(sig, types.FamilyDelegate)
	if err != nil {
		return err
	}
	return p.Reg.AddAlias(nameTok.Lexeme, id)
}

// parseParamList parses `(Type name, Type name, ...)` into Variable
// argument records (used by both delegate-type and function
// declarations).
func (p *Parser) parseParamList(lex *token.Lexer) ([]types.Variable, error) {
	if _, err := expect(lex, token.LParen); err != nil {
		return nil, err
	}
	var out []types.Variable
	tok, err := lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.RParen {
		lex.Get()
		return out, nil
	}
	for {
		v, err := p.parseOneParam(lex)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
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
	return out, nil
}

func (p *Parser) parseOneParam(lex *token.Lexer) (types.Variable, error) {
	var isConst, isRef, isWeak bool
	for {
		tok, err := lex.Peek()
		if err != nil {
			return types.Variable{}, err
		}
		switch tok.Kind {
		case token.KwConst:
			isConst = true
			lex.Get()
			continue
		case token.KwRef:
			isRef = true
			lex.Get()
			continue
		case token.KwWeak:
			isWeak = true
			isRef = true
			lex.Get()
			continue
		}
		break
	}
	t, err := p.parseTypeName(lex)
	if err != nil {
		return types.Variable{}, err
	}
	v := types.NewVariable("", t)
	v.Const, v.Ref, v.Weak = isConst, isRef, isWeak
	if tok, _ := lex.Peek(); tok.Kind == token.LBracket {
		lex.Get()
		if _, err := expect(lex, token.RBracket); err != nil {
			return types.Variable{}, err
		}
		v.ElemType = t
		t = types.Array
		v.Type = t
	}
	if tok, _ := lex.Peek(); tok.Kind == token.Ident {
		nameTok, _ := lex.Get()
		v.Name = nameTok.Lexeme
	}
	return v, nil
}
