package symtab

import (
	"testing"

	"github.com/jewelscript-go/jilc/internal/types"
)

func TestGlobalDeclarationOrder(t *testing.T) {
	g := NewGlobal()
	a := types.NewVariable("a", types.Int)
	b := types.NewVariable("b", types.Int)
	if err := g.AddVariable(&a); err != nil {
		t.Fatal(err)
	}
	if err := g.AddVariable(&b); err != nil {
		t.Fatal(err)
	}
	if err := g.AddVariable(&a); err == nil {
		t.Fatal("expected redeclaration error")
	}
	order := g.InDeclarationOrder()
	if len(order) != 2 || order[0].Name != "a" || order[1].Name != "b" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestMangledKeyLookup(t *testing.T) {
	g := NewGlobal()
	v := types.NewVariable(MangledKey("Box", "kMax"), types.Int)
	if err := g.AddVariable(&v); err != nil {
		t.Fatal(err)
	}
	got, ok := g.Variable("Box::kMax")
	if !ok || got.Name != "Box::kMax" {
		t.Fatalf("mangled lookup failed: %+v %v", got, ok)
	}
}

func TestLookupAmbiguous(t *testing.T) {
	reg := types.NewRegistry(nil)
	classID, _ := reg.CreateType("A", types.Global, types.FamilyClass, false)
	cls := reg.Class(classID)
	cls.Functions = append(cls.Functions, types.NewFunction(classID, "f", types.NewVariable("", types.Int), nil, 0))

	global := NewGlobal()
	global.AddFunction(types.NewFunction(types.Global, "f", types.NewVariable("", types.Int), nil, 0))

	file := NewFileScope(reg)

	if _, err := Lookup(reg, global, classID, file, "f"); err == nil {
		t.Fatal("expected ambiguous lookup error")
	} else if _, ok := err.(*Ambiguous); !ok {
		t.Fatalf("expected *Ambiguous, got %T: %v", err, err)
	}
}

func TestLookupUndefined(t *testing.T) {
	reg := types.NewRegistry(nil)
	global := NewGlobal()
	file := NewFileScope(reg)
	if _, err := Lookup(reg, global, types.Null, file, "nope"); err == nil {
		t.Fatal("expected undefined function error")
	}
}

func TestFileScopeUsingUnknownClass(t *testing.T) {
	reg := types.NewRegistry(nil)
	file := NewFileScope(reg)
	if err := file.AddUsing("DoesNotExist"); err == nil {
		t.Fatal("expected error for unknown using class")
	}
}
