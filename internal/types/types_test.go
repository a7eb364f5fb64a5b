package types

import "testing"

func TestNewRegistryInstallsPredefined(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"null", "var", "int", "float", "string", "array", "global", "delegate", "exception", "thread"} {
		if _, ok := r.FindByName(name); !ok {
			t.Fatalf("predefined type %q not registered", name)
		}
	}
	if id, _ := r.FindByName("int"); id != Int {
		t.Fatalf("int resolved to %d, want %d", id, Int)
	}
}

func TestCreateTypeAssignsStableSlot(t *testing.T) {
	r := NewRegistry(nil)
	id, err := r.CreateType("Box", Global, FamilyClass, false)
	if err != nil {
		t.Fatal(err)
	}
	if int(id) != len(r.classes)-1 {
		t.Fatalf("type id %d does not match compiler-side slot %d", id, len(r.classes)-1)
	}
	if _, err := r.CreateType("Box", Global, FamilyClass, false); err == nil {
		t.Fatal("expected error re-declaring Box")
	}
}

func TestAddAliasCollision(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.AddAlias("bool", Int); err != nil {
		t.Fatal(err)
	}
	if err := r.AddAlias("int", Int); err == nil {
		t.Fatal("expected collision error aliasing an existing type name")
	}
	id, ok := r.FindByName("bool")
	if !ok || id != Int {
		t.Fatalf("bool alias did not resolve to int: %v %v", id, ok)
	}
}

func TestDelegateContentAddressing(t *testing.T) {
	r := NewRegistry(nil)
	sig := FuncSig{Result: NewVariable("", Int), Args: []Variable{NewVariable("", String)}}
	id1, err := r.CreateDelegateType(sig, FamilyDelegate)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := r.CreateDelegateType(sig, FamilyDelegate)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("re-declaring the same signature produced a new type: %d vs %d", id1, id2)
	}
	if _, err := r.CreateDelegateType(sig, FamilyThread); err == nil {
		t.Fatal("expected error redeclaring a signature under a different family")
	}
}

func TestIsSubclass(t *testing.T) {
	r := NewRegistry(nil)
	iface, _ := r.CreateType("I", Global, FamilyInterface, false)
	base, _ := r.CreateType("B", Global, FamilyClass, false)
	r.Class(base).Base = iface
	if !r.IsSubclass(base, iface) {
		t.Fatal("B should be a subclass of I")
	}
	if r.IsSubclass(iface, base) {
		t.Fatal("I should not be a subclass of B")
	}
}
