package simstack

import (
	"testing"

	"github.com/jewelscript-go/jilc/internal/types"
)

func TestRegisterMapAllocFree(t *testing.T) {
	m := NewRegisterMap(FirstVarReg + 2)
	a := types.NewVariable("a", types.Int)
	b := types.NewVariable("b", types.Int)
	c := types.NewVariable("c", types.Int)

	if _, ok := m.Alloc(&a); !ok {
		t.Fatal("expected register for a")
	}
	if _, ok := m.Alloc(&b); !ok {
		t.Fatal("expected register for b")
	}
	if _, ok := m.Alloc(&c); ok {
		t.Fatal("expected pool exhaustion for c")
	}
	m.Free(&a)
	if _, ok := m.Alloc(&c); !ok {
		t.Fatal("expected a's register to be reusable after Free")
	}
}

func TestStackPushPopInvariant(t *testing.T) {
	s := NewStack(0)
	v := types.NewVariable("x", types.Int)
	if err := s.Push(&v); err != nil {
		t.Fatal(err)
	}
	if v.StackOffset != 0 || !v.OnStack {
		t.Fatalf("unexpected state after push: %+v", v)
	}
	if err := s.Push(&v); err == nil {
		t.Fatal("expected invariant error pushing an already-resident variable")
	}
	got, err := s.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if got != &v || v.OnStack {
		t.Fatalf("unexpected state after pop: %+v", v)
	}
}

func TestUnrollTo(t *testing.T) {
	s := NewStack(0)
	vars := make([]types.Variable, 3)
	for i := range vars {
		vars[i] = types.NewVariable("t", types.Int)
		if err := s.Push(&vars[i]); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.UnrollTo(1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected to unroll 2 entries, got %d", n)
	}
	if s.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", s.Depth())
	}
}

func TestUnrollOpcodeThreshold(t *testing.T) {
	if UnrollOpcode(0) != "" {
		t.Fatal("expected no opcode for 0 entries")
	}
	if UnrollOpcode(1) != "pop" {
		t.Fatal("expected pop for 1 entry")
	}
	if UnrollOpcode(2) != "popm" {
		t.Fatal("expected popm at threshold")
	}
}
