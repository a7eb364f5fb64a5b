package parser

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/simstack"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// expect consumes the next token and fails unless it matches kind,
// the single helper every declaration-parsing file in this package
// builds on.
func expect(lex *token.Lexer, kind token.Kind) (token.Token, error) {
	tok, err := lex.Get()
	if err != nil {
		return token.Token{}, err
	}
	if tok.Kind != kind {
		return token.Token{}, fmt.Errorf("parser: unexpected %q at %s", tok.String(), tok.Pos)
	}
	return tok, nil
}

// parseClassDecl parses a class or interface declaration (spec.md
// §4.6): `class Name [: Iface[, Iface...]] [hybrid Base] { members }`
// or `interface Name { prototypes }`. Only pass 1 (precompile) ever
// reaches this: class bodies are walked once, member variables and
// function prototypes are registered, and every method body is
// recorded into p.PendingBodies brace-balanced for pass 2 (spec.md
// §4.11).
func (p *Parser) parseClassDecl(lex *token.Lexer, isInterface bool) error {
	lex.Get() // class | interface
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}

	family := types.FamilyClass
	if isInterface {
		family = types.FamilyInterface
	}

	id, existing := p.Reg.FindByName(nameTok.Lexeme)
	var cls *types.Class
	if existing {
		cls = p.Reg.Class(id)
		if cls == nil || cls.State == types.StateBodyClosed {
			return fmt.Errorf("parser: %q already fully declared", nameTok.Lexeme)
		}
	} else {
		id, err = p.Reg.CreateType(nameTok.Lexeme, types.Global, family, false)
		if err != nil {
			return err
		}
		cls = p.Reg.Class(id)
	}
	cls.State = types.StateBodyOpen

	// [: Iface[, Iface...]]
	if tok, _ := lex.Peek(); tok.Kind == token.Colon {
		lex.Get()
		for {
			ifTok, err := expect(lex, token.Ident)
			if err != nil {
				return err
			}
			ifID, ok := p.Reg.FindByName(ifTok.Lexeme)
			if !ok {
				return fmt.Errorf("parser: unknown interface %q at %s", ifTok.Lexeme, ifTok.Pos)
			}
			if cls.Base == types.Null {
				cls.Base = ifID
			}
			tok, _ := lex.Peek()
			if tok.Kind != token.Comma {
				break
			}
			lex.Get()
		}
	}

	// [hybrid Base]
	if tok, _ := lex.Peek(); tok.Kind == token.KwHybrid {
		lex.Get()
		baseTok, err := expect(lex, token.Ident)
		if err != nil {
			return err
		}
		baseID, ok := p.Reg.FindByName(baseTok.Lexeme)
		if !ok {
			return fmt.Errorf("parser: unknown hybrid base %q at %s", baseTok.Lexeme, baseTok.Pos)
		}
		if err := p.wireHybrid(cls, baseID); err != nil {
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
		if err := p.parseClassMember(lex, cls, isInterface); err != nil {
			return err
		}
	}
	cls.BodyDefined = true
	cls.State = types.StateBodyClosed
	if !isInterface && !cls.Native && cls.DefaultCtor < 0 && !p.hasExplicitCtor(cls) && p.classHasMethods(cls) {
		p.Sink.Errorf(diag.ClassControlFlow, p.unit, nameTok.Pos.Line, nameTok.Pos.Col, 2001,
			"class %q declares methods but no constructor", cls.Name)
	}
	return nil
}

func (p *Parser) classHasMethods(cls *types.Class) bool {
	for _, f := range cls.Functions {
		if f.Flags.Has(types.FuncMethod) && !f.Flags.Has(types.FuncConstructor) {
			return true
		}
	}
	return false
}

func (p *Parser) hasExplicitCtor(cls *types.Class) bool {
	for _, f := range cls.Functions {
		if f.Flags.Has(types.FuncConstructor) {
			return true
		}
	}
	return false
}

// wireHybrid implements spec.md §4.6 hybrid composition: a hidden
// `base` member of baseID's type is created, plus a hidden delegate
// member per public function of baseID. Where a delegate member's
// name collides with an interface method cls must implement, a thin
// forwarding Function is synthesized in cls whose HybridDelegateLink
// points at the delegate member's slot (v-table patching, spec.md
// §4.12 step 3).
func (p *Parser) wireHybrid(cls *types.Class, baseID types.TypeId) error {
	base := p.Reg.Class(baseID)
	if base == nil || base.Family != types.FamilyClass {
		return fmt.Errorf("parser: hybrid base %q is not a class", p.Reg.TypeName(baseID))
	}
	cls.HybridBase = baseID

	baseMember := types.NewVariable("base", baseID)
	baseMember.Role = types.RoleMember
	baseMember.Hidden = true
	cls.Members = append(cls.Members, baseMember)

	for _, f := range base.Functions {
		if f.Flags.Has(types.FuncConstructor) {
			continue
		}
		sig := types.FuncSig{Result: f.Result, Args: f.Args}
		dgType, err := p.Reg.CreateDelegateType(sig, types.FamilyDelegate)
		if err != nil {
			return err
		}
		dgMember := types.NewVariable(f.Name, dgType)
		dgMember.Role = types.RoleMember
		dgMember.Hidden = true
		slot := len(cls.Members)
		cls.Members = append(cls.Members, dgMember)

		if cls.Base != types.Null {
			if ifc := p.Reg.Class(cls.Base); ifc != nil && ifc.FindFunction(f.Name) >= 0 {
				fwd := types.NewFunction(cls.ID, f.Name, f.Result, append([]types.Variable(nil), f.Args...), types.FuncMethod)
				fwd.HybridDelegateLink = slot
				fwd.Index = len(cls.Functions)
				synthesizeForwarder(fwd, slot)
				cls.Functions = append(cls.Functions, fwd)
			}
		}
	}
	return nil
}

// synthesizeForwarder writes the mechanical body of a hybrid
// forwarding method: call the woven-in delegate member at dgSlot and
// return its result (spec.md §4.12 "hybrid v-table patching" relies
// on HybridDelegateLink to find this slot again at link time; the
// bytecode itself never changes after linking).
func synthesizeForwarder(fwd *types.Function, dgSlot int) {
	gen := codegen.New(fwd)
	for i := range fwd.Args {
		fwd.Args[i].Role = types.RoleRegister
		fwd.Args[i].RegisterIndex = simstack.FirstVarReg + i
	}
	dg := types.Variable{Role: types.RoleMember, ObjectReg: simstack.RegThis, MemberSlot: dgSlot}
	gen.EmitCallDelegate(&dg)
	fwd.State = types.FuncDefined
	gen.EmitRet()
	fwd.State = types.FuncLinked
}

// parseClassMember parses one member-variable or member-function
// declaration inside a class/interface body (spec.md §4.6).
func (p *Parser) parseClassMember(lex *token.Lexer, cls *types.Class, isInterface bool) error {
	var explicit, strict, native bool
	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case token.KwExplicit:
			explicit = true
			lex.Get()
			continue
		case token.KwStrict:
			strict = true
			lex.Get()
			continue
		case token.KwNative:
			native = true
			lex.Get()
			continue
		}
		break
	}
	if native {
		cls.Native = true
		cls.NativeBinding = true
	}

	tok, err := lex.Peek()
	if err != nil {
		return err
	}
	switch tok.Kind {
	case token.KwMethod:
		return p.parseMethodDecl(lex, cls, isInterface, explicit, strict)
	case token.KwConstructor:
		return p.parseConstructorKeywordDecl(lex, cls, explicit, strict)
	case token.KwConvertor:
		return p.parseConvertorDecl(lex, cls, explicit, strict)
	case token.KwCofunction:
		return p.parseClassCofunctionDecl(lex, cls, strict)
	default:
		return p.parseMemberVarDecl(lex, cls)
	}
}

// parseMethodDecl handles `method ...`: either a constructor (the
// leading identifier equals the class name and is immediately
// followed by `(`) or an ordinary `method ResultType name(args) {
// ... }` (spec.md §8 scenario 2, §4.6).
func (p *Parser) parseMethodDecl(lex *token.Lexer, cls *types.Class, isInterface, explicit, strict bool) error {
	lex.Get() // method
	firstTok, err := lex.Get()
	if err != nil {
		return err
	}
	if firstTok.Kind != token.Ident && firstTok.Kind != token.KwVar {
		return fmt.Errorf("parser: expected a type or constructor name at %s", firstTok.Pos)
	}

	if firstTok.Lexeme == cls.Name {
		if peek, _ := lex.Peek(); peek.Kind == token.LParen {
			return p.finishConstructor(lex, cls, explicit, strict)
		}
	}

	var resultType types.TypeId
	if firstTok.Kind == token.KwVar {
		resultType = types.Var
	} else {
		id, ok := p.Reg.FindByName(firstTok.Lexeme)
		if !ok {
			return fmt.Errorf("parser: unknown type %q at %s", firstTok.Lexeme, firstTok.Pos)
		}
		resultType = id
	}
	nameTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	args, err := p.parseParamList(lex)
	if err != nil {
		return err
	}
	flags := types.FuncMethod
	if explicit {
		flags |= types.FuncExplicit
	}
	if strict {
		flags |= types.FuncStrict
	}
	fn := types.NewFunction(cls.ID, nameTok.Lexeme, types.NewVariable("", resultType), args, flags)
	fn.Index = len(cls.Functions)
	cls.Functions = append(cls.Functions, fn)

	if isInterface {
		if _, err := expect(lex, token.Semi); err != nil {
			return err
		}
		return nil // prototype only; never reaches defined/linked state
	}
	return p.deferOrInlineBody(lex, cls, fn)
}

// finishConstructor parses `(args) { body }` for a constructor whose
// name token (either the class name via `method`, or the bare
// `constructor` keyword) has already been consumed.
func (p *Parser) finishConstructor(lex *token.Lexer, cls *types.Class, explicit, strict bool) error {
	args, err := p.parseParamList(lex)
	if err != nil {
		return err
	}
	flags := types.FuncMethod | types.FuncConstructor
	if explicit {
		flags |= types.FuncExplicit
	}
	if strict {
		flags |= types.FuncStrict
	}
	fn := types.NewFunction(cls.ID, cls.Name, types.NewVariable("", cls.ID), args, flags)
	fn.Index = len(cls.Functions)
	cls.Functions = append(cls.Functions, fn)
	if len(args) == 0 && cls.DefaultCtor < 0 {
		cls.DefaultCtor = fn.Index
	}
	if len(args) == 1 && args[0].Type == cls.ID && cls.CopyCtor < 0 {
		cls.CopyCtor = fn.Index
	}
	return p.deferOrInlineBody(lex, cls, fn)
}

// parseConstructorKeywordDecl handles the alternate explicit-keyword
// constructor spelling `constructor(args) { ... }`.
func (p *Parser) parseConstructorKeywordDecl(lex *token.Lexer, cls *types.Class, explicit, strict bool) error {
	lex.Get() // constructor
	return p.finishConstructor(lex, cls, explicit, strict)
}

// parseConvertorDecl handles `convertor ResultType() { ... }` (spec.md
// §4.5.1 step 4: "search S for a convertor method returning D").
func (p *Parser) parseConvertorDecl(lex *token.Lexer, cls *types.Class, explicit, strict bool) error {
	lex.Get() // convertor
	typeTok, err := expect(lex, token.Ident)
	if err != nil {
		return err
	}
	resultType, ok := p.Reg.FindByName(typeTok.Lexeme)
	if !ok {
		return fmt.Errorf("parser: unknown convertor result type %q at %s", typeTok.Lexeme, typeTok.Pos)
	}
	if _, err := expect(lex, token.LParen); err != nil {
		return err
	}
	if _, err := expect(lex, token.RParen); err != nil {
		return err
	}
	flags := types.FuncMethod | types.FuncConvertor
	if explicit {
		flags |= types.FuncExplicit
	}
	if strict {
		flags |= types.FuncStrict
	}
	fn := types.NewFunction(cls.ID, "$convert_"+typeTok.Lexeme, types.NewVariable("", resultType), nil, flags)
	fn.Index = len(cls.Functions)
	cls.Functions = append(cls.Functions, fn)
	if resultType == types.String && cls.ToStringConv < 0 {
		cls.ToStringConv = fn.Index
	}
	return p.deferOrInlineBody(lex, cls, fn)
}

// parseClassCofunctionDecl handles a class-scoped cofunction method:
// `cofunction ResultType name(args) { ... }`, auto-generating the
// thread-family class the spec requires (spec.md §4.6 "Cofunctions").
func (p *Parser) parseClassCofunctionDecl(lex *token.Lexer, cls *types.Class, strict bool) error {
	lex.Get() // cofunction
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
	flags := types.FuncMethod | types.FuncCofunction
	if strict {
		flags |= types.FuncStrict
	}
	fn := types.NewFunction(cls.ID, nameTok.Lexeme, types.NewVariable("", resultType), args, flags)
	fn.Index = len(cls.Functions)
	cls.Functions = append(cls.Functions, fn)
	return p.deferOrInlineBody(lex, cls, fn)
}

// parseMemberVarDecl parses a plain member-variable declaration:
// `[const] [weak] [ref] Type name [[]] [= expr];`. A const member is
// a class-qualified constant stored under the mangled "Class::name"
// global key (spec.md §4.6, §4.3) rather than an instance slot; its
// initializer (if any) is compiled into `__init` by the driver.
func (p *Parser) parseMemberVarDecl(lex *token.Lexer, cls *types.Class) error {
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

	if isConst {
		mangled := cls.Name + "::" + nameTok.Lexeme
		v.Name = mangled
		if err := p.Global.AddVariable(&v); err != nil {
			return fmt.Errorf("parser: %w", err)
		}
		if hasInit {
			stored, _ := p.Global.Variable(mangled)
			p.PendingBodies = append(p.PendingBodies, PendingBody{
				Class: types.Global, Loc: initLoc, IsInit: true, InitVar: stored,
			})
		}
		return nil
	}

	cls.Members = append(cls.Members, v)
	if hasInit {
		if p.memberDefaultInits == nil {
			p.memberDefaultInits = map[types.TypeId][]memberDefaultInit{}
		}
		idx := len(cls.Members) - 1
		p.memberDefaultInits[cls.ID] = append(p.memberDefaultInits[cls.ID], memberDefaultInit{MemberIdx: idx, Loc: initLoc})
	}
	return nil
}

// skipExprUntilSemi brace/paren/bracket-balanced skips tokens up to
// (not including) the statement-terminating top-level `;`, used by
// member-variable initializers deferred to pass 2 the same way
// function bodies are (spec.md §4.11 "Function bodies are skipped
// brace-balanced").
func skipExprUntilSemi(lex *token.Lexer) error {
	depth := 0
	for {
		tok, err := lex.Peek()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case token.EOF:
			return fmt.Errorf("parser: unterminated initializer")
		case token.LParen, token.LBracket, token.LBrace:
			depth++
		case token.RParen, token.RBracket, token.RBrace:
			depth--
		case token.Semi:
			if depth == 0 {
				return nil
			}
		}
		lex.Get()
	}
}

// deferOrInlineBody records fn's body as a PendingBody for pass 2,
// skipping it brace-balanced now (spec.md §4.11).
func (p *Parser) deferOrInlineBody(lex *token.Lexer, cls *types.Class, fn *types.Function) error {
	loc := lex.Save()
	if err := skipBraceBalanced(lex); err != nil {
		return err
	}
	p.PendingBodies = append(p.PendingBodies, PendingBody{Fn: fn, Class: cls.ID, Loc: loc})
	return nil
}

func skipBraceBalanced(lex *token.Lexer) error {
	if _, err := expect(lex, token.LBrace); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok, err := lex.Get()
		if err != nil {
			return err
		}
		switch tok.Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
		case token.EOF:
			return fmt.Errorf("parser: unterminated body")
		}
	}
	return nil
}
