// Package token implements the lexer and token stream (C1) of the
// compiler: a forward cursor over source text that produces a closed
// set of token kinds, with peek/get, locator save/restore, and
// line/column tracking.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	Ident
	KwClass
	KwInterface
	KwDelegate
	KwCofunction
	KwHybrid
	KwMethod
	KwFunction
	KwConstructor
	KwConvertor
	KwExplicit
	KwStrict
	KwNative
	KwConst
	KwRef
	KwWeak
	KwVar
	KwThis
	KwNew
	KwTypeof
	KwSameref
	KwIf
	KwElse
	KwFor
	KwWhile
	KwDo
	KwSwitch
	KwCase
	KwDefault
	KwBreak
	KwContinue
	KwReturn
	KwThrow
	KwYield
	KwClause
	KwGoto
	KwImport
	KwUsing
	KwAlias
	KwRtchk
	KwBrk
	KwSelftest
	KwTrue
	KwFalse
	KwNull

	IntLit
	FloatLit
	StringLit
	CharLit

	// operators / punctuation
	Plus
	Minus
	Star
	Slash
	Percent
	Assign
	PlusAssign
	MinusAssign
	StarAssign
	SlashAssign
	PercentAssign
	AndAssign
	OrAssign
	XorAssign
	ShlAssign
	ShrAssign
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	AndAnd
	OrOr
	Not
	Amp
	Pipe
	Caret
	Tilde
	Shl
	Shr
	Inc
	Dec
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Dot
	Colon
	ColonColon
	Question
)

var keywords = map[string]Kind{
	"class": KwClass, "interface": KwInterface, "delegate": KwDelegate,
	"cofunction": KwCofunction, "hybrid": KwHybrid, "method": KwMethod,
	"function": KwFunction, "constructor": KwConstructor, "convertor": KwConvertor,
	"explicit": KwExplicit, "strict": KwStrict, "native": KwNative,
	"const": KwConst, "ref": KwRef, "weak": KwWeak, "var": KwVar,
	"this": KwThis, "new": KwNew, "typeof": KwTypeof, "sameref": KwSameref,
	"if": KwIf, "else": KwElse, "for": KwFor, "while": KwWhile, "do": KwDo,
	"switch": KwSwitch, "case": KwCase, "default": KwDefault,
	"break": KwBreak, "continue": KwContinue, "return": KwReturn,
	"throw": KwThrow, "yield": KwYield, "clause": KwClause, "goto": KwGoto,
	"import": KwImport, "using": KwUsing, "alias": KwAlias,
	"__rtchk": KwRtchk, "__brk": KwBrk, "__selftest": KwSelftest,
	"true": KwTrue, "false": KwFalse, "null": KwNull,
}

// Pos is a 1-based line/column source position.
type Pos struct {
	Line, Col int
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.Col, p.Line) }

// Token is a single lexical unit.
type Token struct {
	Kind   Kind
	Lexeme string
	IVal   int64   // populated for IntLit and CharLit
	FVal   float64 // populated for FloatLit
	Pos    Pos
}

func (t Token) String() string {
	if t.Lexeme != "" {
		return t.Lexeme
	}
	return fmt.Sprintf("<kind %d>", t.Kind)
}
