// Package types implements the Type Registry (C2): TypeId assignment,
// class/interface/delegate/cofunction/alias records, family tags,
// inheritance links, and method tables. It also carries the Variable
// and TypeInfo descriptors from spec.md §3, kept as two separate
// structs per the original JCLVar/TypeInfo split documented in
// SPEC_FULL.md.
package types

import "fmt"

// TypeId is a non-negative integer assigned at creation; it indexes
// into the Type Registry. A class's TypeId and its compiler-side
// class-table index are always equal (spec.md §3 invariant).
type TypeId int

// Predefined type ids, fixed by the VM contract (spec.md §3).
const (
	Null TypeId = iota
	Var         // dynamic
	Int
	Float
	String
	Array
	Global // module-wide pseudo-class
	Delegate
	Exception // interface
	Thread    // cofunction context

	firstUserType
)

// Family is the broad category of a type.
type Family int

const (
	FamilyUndefined Family = iota
	FamilyIntegral
	FamilyClass
	FamilyInterface
	FamilyThread
	FamilyDelegate
)

func (f Family) String() string {
	switch f {
	case FamilyIntegral:
		return "integral"
	case FamilyClass:
		return "class"
	case FamilyInterface:
		return "interface"
	case FamilyThread:
		return "thread"
	case FamilyDelegate:
		return "delegate"
	default:
		return "undefined"
	}
}

// ClassState is the lifecycle of a Class record (spec.md §4.12 state
// machine: forwarded -> body-open -> body-closed).
type ClassState int

const (
	StateForwarded ClassState = iota
	StateBodyOpen
	StateBodyClosed
)

// FuncSig describes the result/argument shape of a delegate or
// cofunction type, used to derive its content-addressed signature.
type FuncSig struct {
	Result Variable
	Args   []Variable
}

// Class is the record every type has, including primitives (spec.md
// §3 "Class record").
type Class struct {
	ID     TypeId
	Name   string
	Alias  []string
	Family Family

	Native         bool
	Strict         bool
	NativeBinding  bool
	NativeInterface bool
	Extern         bool

	Parent     TypeId // lexical owner
	Base       TypeId // interface inherited
	HybridBase TypeId // class whose members are woven in

	Members   []Variable
	Functions []*Function

	DefaultCtor  int // -1 if absent
	CopyCtor     int
	ToStringConv int

	VTable      bool
	BodyDefined bool
	State       ClassState

	Doc string

	// For delegate/thread families only.
	Sig *FuncSig
}

func newClass(id TypeId, name string, family Family) *Class {
	return &Class{
		ID:           id,
		Name:         name,
		Family:       family,
		DefaultCtor:  -1,
		CopyCtor:     -1,
		ToStringConv: -1,
	}
}

// FindFunction returns the in-class index of the first function
// matching name, or -1.
func (c *Class) FindFunction(name string) int {
	for i, f := range c.Functions {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// MemberIndex returns the member slot for name, or -1.
func (c *Class) MemberIndex(name string) int {
	for i, m := range c.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

func (c *Class) String() string {
	return fmt.Sprintf("%s(%d,%s)", c.Name, c.ID, c.Family)
}
