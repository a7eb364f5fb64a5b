package types

// Role is the storage mode of a Variable (spec.md §3 "Role";
// original_source jclvar.h miMode: kModeUnused, kModeRegister,
// kModeStack, kModeMember, kModeArray).
type Role int

const (
	RoleUnused Role = iota
	RoleRegister
	RoleStack
	RoleMember
	RoleArrayElement
)

func (r Role) String() string {
	switch r {
	case RoleRegister:
		return "register"
	case RoleStack:
		return "stack"
	case RoleMember:
		return "member"
	case RoleArrayElement:
		return "array-element"
	default:
		return "unused"
	}
}

// Usage distinguishes an ordinary named variable from a compiler
// temporary or a function result (original_source jclvar.h miUsage:
// kUsageVar, kUsageTemp, kUsageResult). SPEC_FULL.md keeps this as a
// second axis alongside Role because the original keeps the two
// orthogonal: a temporary can live in a register or on the stack.
type Usage int

const (
	UsageVar Usage = iota
	UsageTemp
	UsageResult
)

// Variable is used for locals, arguments, results, members, and
// temporaries (spec.md §3 "Variable record").
type Variable struct {
	Type     TypeId
	Const    bool
	Ref      bool
	Weak     bool // requires Ref == true
	ElemType TypeId
	ElemRef  bool

	Name string
	Role Role
	// Usage carried alongside Role (see type comment).
	Usage Usage

	// Role-specific payload. Only the field(s) matching Role are live.
	RegisterIndex int // RoleRegister
	StackOffset   int // RoleStack
	ObjectReg     int // RoleMember: owning-object register
	MemberSlot    int // RoleMember: member slot
	ArrayReg      int // RoleArrayElement: owning-array register
	Index         *Variable // RoleArrayElement: owned index variable

	IniType     TypeId // declared type at creation, immutable thereafter
	Initialized bool
	Unique      bool // true => safe to mutate in place
	ConstParent bool // member access through a const object
	OnStack     bool
	TypeCast    bool // explicit (T)expr cast was applied
	Hidden      bool // delegate members invoked only via v-table lookup
}

// NewVariable creates a variable of the given declared type with its
// IniType pinned to the same value (spec.md §3: "Init-type ... is
// immutable post-creation").
func NewVariable(name string, t TypeId) Variable {
	return Variable{Name: name, Type: t, IniType: t}
}

// TypeInfo describes the static type/const/ref qualifiers of an
// expression result, kept as a lightweight value distinct from
// Variable (original_source jclvar.h "struct TypeInfo", documented as
// a SUPPLEMENTED FEATURE in SPEC_FULL.md: the expression engine
// threads this instead of allocating a full Variable merely to
// describe a type).
type TypeInfo struct {
	Type     TypeId
	Const    bool
	Ref      bool
	Weak     bool
	ElemType TypeId
	ElemRef  bool
}

// InfoFromVar mirrors original_source's JCLTypeInfoFromVar.
func InfoFromVar(v *Variable) TypeInfo {
	return TypeInfo{
		Type: v.Type, Const: v.Const, Ref: v.Ref, Weak: v.Weak,
		ElemType: v.ElemType, ElemRef: v.ElemRef,
	}
}

// ToVar writes a TypeInfo's fields back onto a Variable, mirroring
// original_source's JCLTypeInfoToVar.
func (ti TypeInfo) ToVar(v *Variable) {
	v.Type, v.Const, v.Ref, v.Weak = ti.Type, ti.Const, ti.Ref, ti.Weak
	v.ElemType, v.ElemRef = ti.ElemType, ti.ElemRef
}

// InfoSrcDst combines a source and destination Variable's type info
// into the result type of a binary operation, mirroring
// original_source's JCLTypeInfoSrcDst: the result takes the
// destination's type identity but is never const/ref/weak (a
// computed value, not an lvalue).
func InfoSrcDst(src, dst *Variable) TypeInfo {
	return TypeInfo{Type: dst.Type, ElemType: dst.ElemType}
}

// SignatureFormat is a bitset controlling how a Function or Variable
// renders itself to text, mirroring original_source jclvar.h's
// formatting flags (kIdentNames, kFullDecl, kCompact, kCurrentScope,
// kClearFirst, kNoClassName). Consumed by Function.Signature; neither
// error formatting nor export-type-info calls it.
type SignatureFormat int

const (
	FmtIdentNames SignatureFormat = 1 << iota
	FmtFullDecl
	FmtCompact
	FmtCurrentScope
	FmtClearFirst
	FmtNoClassName
)
