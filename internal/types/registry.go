// Package types implements the Type Registry (C2): TypeId assignment,
// class/interface/delegate/cofunction/alias records, family tags,
// inheritance links, and method tables. It also carries the Variable,
// TypeInfo, and Function descriptors from spec.md §3.
package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fatalf is the registered fatal-consistency handler (spec.md §4.11
// "Failure semantics": a fatal consistency error invokes a registered
// fatal handler and aborts). It is a replaceable function variable,
// mirroring the teacher's types.Fatalf pattern
// (cmd_local/compile/internal/types/utils.go); no package in this
// module replaces it, so the default below panics with the message.
var Fatalf = func(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// Allocator is the narrow external contract into the VM's type-record
// allocator (spec.md §1, out of scope: "the VM instruction interpreter
// and its object/handle allocator"). Type creation is a synchronized
// two-step (spec.md §4.2): the VM reserves a type record and returns
// its TypeId, then the compiler-side Class record is created at
// exactly that slot.
type Allocator interface {
	ReserveType(name string) (TypeId, error)
}

// localAllocator is the default in-process stand-in used when no VM
// is attached (e.g. for export-type-info or offline analysis): it
// simply hands out the next sequential TypeId, the same numbering the
// Registry itself would use.
type localAllocator struct{ next TypeId }

func (a *localAllocator) ReserveType(name string) (TypeId, error) {
	id := a.next
	a.next++
	return id, nil
}

// Registry owns type identifiers and the class/interface/delegate/
// cofunction/alias records for one compile session (C2).
type Registry struct {
	alloc   Allocator
	classes []*Class
	byName  map[string]TypeId
	byAlias map[string]TypeId
	bySig   map[string]TypeId // content-addressed delegate/cofunction lookup
}

// NewRegistry creates a Registry with the predefined types installed
// (spec.md §3: null, var, int, float, string, array, global, delegate,
// exception, thread).
func NewRegistry(alloc Allocator) *Registry {
	if alloc == nil {
		alloc = &localAllocator{}
	}
	r := &Registry{
		alloc:   alloc,
		byName:  map[string]TypeId{},
		byAlias: map[string]TypeId{},
		bySig:   map[string]TypeId{},
	}
	predefined := []struct {
		name   string
		family Family
	}{
		{"null", FamilyUndefined},
		{"var", FamilyUndefined},
		{"int", FamilyIntegral},
		{"float", FamilyIntegral},
		{"string", FamilyClass},
		{"array", FamilyClass},
		{"global", FamilyClass},
		{"delegate", FamilyDelegate},
		{"exception", FamilyInterface},
		{"thread", FamilyThread},
	}
	for _, p := range predefined {
		id, err := r.CreateType(p.name, Null, p.family, false)
		if err != nil {
			Fatalf("types: failed to install predefined type %q: %v", p.name, err)
		}
		_ = id
	}
	return r
}

// CreateType reserves a VM-side type record and creates the matching
// compiler-side Class at exactly that slot (spec.md §4.2). A mismatch
// between the reserved id and the next compiler-side slot is a fatal
// consistency error (spec.md §3 invariant: "Type ids of a class and
// its compiler-side class-table index are equal").
func (r *Registry) CreateType(name string, parent TypeId, family Family, native bool) (TypeId, error) {
	if _, exists := r.byName[name]; exists {
		return Null, fmt.Errorf("types: %q already declared", name)
	}
	id, err := r.alloc.ReserveType(name)
	if err != nil {
		return Null, fmt.Errorf("types: VM rejected type reservation for %q: %w", name, err)
	}
	if int(id) != len(r.classes) {
		Fatalf("types: type-id desync for %q: VM reserved %d, compiler slot is %d", name, id, len(r.classes))
	}
	c := newClass(id, name, family)
	c.Native = native
	c.Parent = parent
	r.classes = append(r.classes, c)
	r.byName[name] = id
	return id, nil
}

// FindByName resolves a canonical name or alias to a TypeId.
func (r *Registry) FindByName(name string) (TypeId, bool) {
	if id, ok := r.byName[name]; ok {
		return id, true
	}
	if id, ok := r.byAlias[name]; ok {
		return id, true
	}
	return Null, false
}

// AddAlias registers name as an alternate spelling for t. Fails if
// name collides with any visible identifier (spec.md §4.2).
func (r *Registry) AddAlias(name string, t TypeId) error {
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("types: alias %q collides with an existing type name", name)
	}
	if _, exists := r.byAlias[name]; exists {
		return fmt.Errorf("types: alias %q already registered", name)
	}
	r.byAlias[name] = t
	c := r.Class(t)
	if c != nil {
		c.Alias = append(c.Alias, name)
	}
	return nil
}

// Class returns the class record for id, or nil if out of range.
func (r *Registry) Class(id TypeId) *Class {
	if int(id) < 0 || int(id) >= len(r.classes) {
		return nil
	}
	return r.classes[id]
}

// Classes returns every class/interface/delegate/cofunction/alias
// record in the registry, indexed by TypeId (spec.md §4.12: the Linker
// walks every function in every class to assign final handles). The
// returned slice is the registry's own backing array and must not be
// mutated structurally by the caller.
func (r *Registry) Classes() []*Class {
	return r.classes
}

// TypeName returns the canonical name of id, or a placeholder.
func (r *Registry) TypeName(id TypeId) string {
	if c := r.Class(id); c != nil {
		return c.Name
	}
	return fmt.Sprintf("type#%d", id)
}

func (r *Registry) Family(id TypeId) Family {
	if c := r.Class(id); c != nil {
		return c.Family
	}
	return FamilyUndefined
}

func (r *Registry) Base(id TypeId) TypeId {
	if c := r.Class(id); c != nil {
		return c.Base
	}
	return Null
}

// IsSubclass reports whether a descends from b through Base links
// (interface inheritance), also matching each visited class's
// HybridBase; Parent links are not followed.
func (r *Registry) IsSubclass(a, b TypeId) bool {
	if a == b {
		return true
	}
	seen := map[TypeId]bool{}
	for cur := a; cur != Null && !seen[cur]; {
		seen[cur] = true
		c := r.Class(cur)
		if c == nil {
			return false
		}
		if c.Base == b || c.HybridBase == b {
			return true
		}
		cur = c.Base
	}
	return false
}

func (r *Registry) IsInterface(t TypeId) bool { return r.Family(t) == FamilyInterface }
func (r *Registry) IsClass(t TypeId) bool     { return r.Family(t) == FamilyClass }
func (r *Registry) IsValue(t TypeId) bool     { return t == Int || t == Float }

// IsCopyable reports whether a value of type t can be duplicated by a
// plain copy (spec.md §4.5.2: "copy ... requires the type be
// copyable, else error"). A class is copyable when it is not marked
// extern and has a copy constructor or belongs to the integral family.
func (r *Registry) IsCopyable(t TypeId) bool {
	if r.IsValue(t) || t == String {
		return true
	}
	c := r.Class(t)
	if c == nil {
		return false
	}
	if c.Extern {
		return false
	}
	return c.CopyCtor >= 0 || c.Family == FamilyIntegral
}

// signatureString builds the structural signature of a delegate/
// cofunction type: its result and argument types with modifiers,
// per spec.md §4.2 ("their canonical name is derived from a
// structural signature string over the result and argument types (and
// modifiers const/ref/weak)").
func signatureString(sig FuncSig) string {
	var b strings.Builder
	writeVar := func(v Variable) {
		fmt.Fprintf(&b, "%d", v.Type)
		if v.Const {
			b.WriteString("c")
		}
		if v.Ref {
			b.WriteString("r")
		}
		if v.Weak {
			b.WriteString("w")
		}
	}
	writeVar(sig.Result)
	b.WriteByte('(')
	for i, a := range sig.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		writeVar(a)
	}
	b.WriteByte(')')
	return b.String()
}

// sigHashName derives a stable synthetic type name from a structural
// signature by hashing it with blake2b. The hash only forms the
// type's name; the registry finds an existing delegate type through
// its bySig map, keyed by the signature string itself.
func sigHashName(prefix, sig string) string {
	sum := blake2b.Sum256([]byte(sig))
	return fmt.Sprintf("%s$%s", prefix, hex.EncodeToString(sum[:8]))
}

// CreateDelegateType returns the TypeId for a delegate or cofunction
// with the given function signature, creating it if this exact
// signature was never declared before. Re-declaring the same
// signature under the same family returns the existing TypeId; a
// different family under the same signature is a hard error (spec.md
// §4.2).
func (r *Registry) CreateDelegateType(sig FuncSig, family Family) (TypeId, error) {
	if family != FamilyDelegate && family != FamilyThread {
		return Null, fmt.Errorf("types: CreateDelegateType requires family delegate or thread, got %s", family)
	}
	sigStr := signatureString(sig)
	key := sigStr
	if existing, ok := r.bySig[key]; ok {
		c := r.Class(existing)
		if c.Family != family {
			return Null, fmt.Errorf("types: signature %q already declared as family %s, cannot redeclare as %s", sigStr, c.Family, family)
		}
		return existing, nil
	}
	name := sigHashName(familyPrefix(family), sigStr)
	id, err := r.CreateType(name, Global, family, false)
	if err != nil {
		return Null, err
	}
	c := r.Class(id)
	c.Sig = &FuncSig{Result: sig.Result, Args: append([]Variable(nil), sig.Args...)}
	r.bySig[key] = id
	return id, nil
}

func familyPrefix(f Family) string {
	if f == FamilyThread {
		return "thread"
	}
	return "delegate"
}
