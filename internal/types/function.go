package types

import (
	"fmt"
	"strings"
)

// FuncFlags are the kind modifiers of a Function record (spec.md §3).
type FuncFlags int

const (
	FuncMethod FuncFlags = 1 << iota
	FuncAccessor
	FuncConstructor
	FuncConvertor
	FuncCofunction
	FuncExplicit
	FuncStrict
	FuncAnonymous
)

func (f FuncFlags) Has(bit FuncFlags) bool { return f&bit != 0 }

// FuncState is the lifecycle of a Function record (spec.md §4.12:
// declared -> defined -> linked).
type FuncState int

const (
	FuncDeclared FuncState = iota
	FuncDefined
	FuncLinked
)

// Literal is one entry of a function's literal pool (C9), kept here
// (not in package literal) since it is part of the Function record's
// data and the linker (C12) patches it directly.
type Literal struct {
	Kind       LiteralKind
	IVal       int64
	FVal       float64
	SVal       string
	CodeOffset int  // bytecode offset of the moveh/copyh to patch
	SourceLine int  // [source-locator], optional
	SourceCol  int
	IsMethod   bool // delegate literal: bound method vs free function
	Handle     int  // VM constant-table handle, -1 until linked
}

// LiteralKind enumerates the literal pool's value kinds.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitDelegate
)

// Function is the record for every declared function, method,
// constructor, convertor, or cofunction (spec.md §3 "Function
// record").
type Function struct {
	Owner TypeId
	Index int // in-class index, method slot when owner is interface/class

	Name   string
	Result Variable
	Args   []Variable

	Flags FuncFlags
	State FuncState

	Bytecode      []Instr
	Literals      []Literal
	RegisterUsage map[int]bool
	Handle        int // final handle assigned by the linker, -1 until then

	ReturnSeen        bool
	YieldSeen         bool
	HybridDelegateLink int // -1 if not a hybrid-woven delegate method
	OptimizeLevel     int
}

// NewFunction creates a declared-state Function.
func NewFunction(owner TypeId, name string, result Variable, args []Variable, flags FuncFlags) *Function {
	return &Function{
		Owner: owner, Name: name, Result: result, Args: args, Flags: flags,
		State: FuncDeclared, RegisterUsage: map[int]bool{},
		Handle: -1, HybridDelegateLink: -1,
	}
}

// MatchesPrototype reports whether a pass-2 definition's argument
// count and result type (up to implicit convertibility, approximated
// here as identical TypeId since the conversion table lives in
// package expr) matches this declared prototype, per spec.md §8's
// invariant on the declared->defined transition.
func (f *Function) MatchesPrototype(resultType TypeId, argTypes []TypeId) bool {
	if f.Result.Type != resultType {
		return false
	}
	if len(f.Args) != len(argTypes) {
		return false
	}
	for i, a := range f.Args {
		if a.Type != argTypes[i] {
			return false
		}
	}
	return true
}

// Signature renders the function's declaration, modulated by a
// SignatureFormat bitset (original_source jclvar.h formatting flags,
// see SPEC_FULL.md "Formatting flag bits").
func (f *Function) Signature(reg *Registry, opt SignatureFormat) string {
	var b strings.Builder
	if opt&FmtFullDecl != 0 {
		switch {
		case f.Flags.Has(FuncConstructor):
			b.WriteString("method ")
		case f.Flags.Has(FuncConvertor):
			b.WriteString("convertor ")
		case f.Flags.Has(FuncCofunction):
			b.WriteString("cofunction ")
		case f.Flags.Has(FuncMethod):
			b.WriteString("method ")
		default:
			b.WriteString("function ")
		}
		if f.Flags.Has(FuncExplicit) {
			b.WriteString("explicit ")
		}
		if f.Flags.Has(FuncStrict) {
			b.WriteString("strict ")
		}
	}
	if reg != nil {
		b.WriteString(reg.TypeName(f.Result.Type))
	} else {
		b.WriteString(fmt.Sprintf("type#%d", f.Result.Type))
	}
	b.WriteByte(' ')
	if opt&FmtNoClassName == 0 && opt&FmtCurrentScope != 0 && reg != nil && f.Owner != Global {
		b.WriteString(reg.TypeName(f.Owner))
		b.WriteString("::")
	}
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		if reg != nil {
			b.WriteString(reg.TypeName(a.Type))
		}
		if opt&FmtIdentNames != 0 && a.Name != "" {
			b.WriteByte(' ')
			b.WriteString(a.Name)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// RewindReturn truncates a function's bytecode back to before its
// final `ret`, used by the two-pass driver (C11) to reopen `__init`
// for appended global initializers (spec.md §4.11).
func (f *Function) RewindReturn(retInstrCount int) {
	if len(f.Bytecode) >= retInstrCount {
		f.Bytecode = f.Bytecode[:len(f.Bytecode)-retInstrCount]
	}
	f.State = FuncDefined
}
