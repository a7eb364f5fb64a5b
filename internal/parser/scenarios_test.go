package parser

import (
	"testing"

	"github.com/jewelscript-go/jilc/internal/diag"
	"github.com/jewelscript-go/jilc/internal/session"
	"github.com/jewelscript-go/jilc/internal/symtab"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

// newTestParser wires a fresh Parser over a brand-new Registry/Global/
// Sink, the same shape driver.newTestDriver uses one layer down, for
// tests that want to drive Precompile/Compile directly without the
// Two-Pass Driver's import resolution.
func newTestParser() (*Parser, *diag.Sink) {
	reg := types.NewRegistry(nil)
	global := symtab.NewGlobal()
	sink := diag.NewSink()
	p := New(reg, global, sink, session.DefaultOptions())
	return p, sink
}

// compileUnit drives one unit through both passes the way the Two-Pass
// Driver does for a single self-contained source string (CompileUnit),
// without import resolution.
func compileUnit(t *testing.T, p *Parser, unit, src string) {
	t.Helper()
	p.BeginUnit(unit)
	defer p.EndUnit()
	if err := p.Precompile(token.New(unit, src)); err != nil {
		t.Fatalf("Precompile(%s): %v", unit, err)
	}
	if err := p.Compile(src); err != nil {
		t.Fatalf("Compile(%s): %v", unit, err)
	}
}

// TestScenario_OverloadResolution covers the function-overload pick by
// exact-match-over-widening-conversion rule: two free functions named
// f, one taking int and one taking float, both reachable from a single
// call site each.
func TestScenario_OverloadResolution(t *testing.T) {
	p, sink := newTestParser()
	compileUnit(t, p, "overload.jc", `
function int f(int x) {
	return x;
}

function float f(float x) {
	return x;
}

function int main() {
	return f(1) + (int)f(2.5);
}
`)
	for _, m := range sink.Messages() {
		t.Errorf("unexpected diagnostic: %s", m.Text)
	}

	global := p.Reg.Class(types.Global)
	var overloads int
	for _, fn := range global.Functions {
		if fn.Name == "f" {
			overloads++
		}
	}
	if overloads != 2 {
		t.Errorf("got %d overloads of f, want 2", overloads)
	}
	if idx := global.FindFunction("main"); idx < 0 {
		t.Error("main was not registered")
	} else if global.Functions[idx].State != types.FuncLinked {
		t.Errorf("main.State = %v, want FuncLinked", global.Functions[idx].State)
	}
}

// TestScenario_ConstructorConversion covers implicit construction: a
// local var decl initializer of a scalar type that isn't the declared
// class picks the matching single-argument, non-explicit constructor
// as an implicit conversion (spec.md §4.5.2).
func TestScenario_ConstructorConversion(t *testing.T) {
	p, sink := newTestParser()
	compileUnit(t, p, "ctorconv.jc", `
class Box {
	int value;
	method Box(int v) {
		value = v;
	}
}

function int useBox() {
	Box b = 42;
	return b.value;
}
`)
	for _, m := range sink.Messages() {
		t.Errorf("unexpected diagnostic: %s", m.Text)
	}

	boxID, ok := p.Reg.FindByName("Box")
	if !ok {
		t.Fatal("Box was not registered")
	}
	box := p.Reg.Class(boxID)
	if box.DefaultCtor < 0 && !p.hasExplicitCtor(box) {
		t.Error("Box has no registered constructor")
	}
	global := p.Reg.Class(types.Global)
	if idx := global.FindFunction("useBox"); idx < 0 {
		t.Error("useBox was not registered")
	} else if global.Functions[idx].State != types.FuncLinked {
		t.Errorf("useBox.State = %v, want FuncLinked", global.Functions[idx].State)
	}
}

// TestScenario_ClauseGotoUnwind covers a clause entry block that
// dispatches to a labeled sub-block via goto, unwinding the simulated
// stack across the jump (spec.md §4.10).
func TestScenario_ClauseGotoUnwind(t *testing.T) {
	p, sink := newTestParser()
	compileUnit(t, p, "clause.jc", `
function int countdown(int n) {
	int result = 0;
	clause(int n) {
		if (n <= 0) {
			result = 0;
		} else {
			goto more(n - 1);
		}
	} clause more: {
		result = n + 1;
	}
	return result;
}
`)
	for _, m := range sink.Messages() {
		t.Errorf("unexpected diagnostic: %s", m.Text)
	}

	global := p.Reg.Class(types.Global)
	if idx := global.FindFunction("countdown"); idx < 0 {
		t.Error("countdown was not registered")
	} else if global.Functions[idx].State != types.FuncLinked {
		t.Errorf("countdown.State = %v, want FuncLinked", global.Functions[idx].State)
	}
}

// TestScenario_WeakRefFromTemporaryWarns covers the weak-reference
// warning (code 3003): assigning a weak local from a temporary value
// (here, the result of a string concatenation) warns that the ref may
// outlive the temporary it was bound to. Binding a weak local from a
// plain named variable, by contrast, must not warn.
func TestScenario_WeakRefFromTemporaryWarns(t *testing.T) {
	p, sink := newTestParser()
	compileUnit(t, p, "weakref.jc", `
function int useWeak() {
	string s = "hello";
	weak string w = s + "";
	weak string w2 = s;
	return 0;
}
`)
	if sink.ErrorCount() != 0 {
		for _, m := range sink.Messages() {
			t.Errorf("diagnostic: %s", m.Text)
		}
	}

	var warnings []diag.Message
	for _, m := range sink.Messages() {
		if m.Code == 3003 {
			warnings = append(warnings, m)
		}
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings with code 3003, want 1 (messages: %v)", len(warnings), sink.Messages())
	}
}

// TestScenario_Cofunction covers a cofunction whose body yields values
// across repeated calls (spec.md §4.9): it registers with the
// cofunction flag set and compiles to a linked state like any other
// free function.
func TestScenario_Cofunction(t *testing.T) {
	p, sink := newTestParser()
	compileUnit(t, p, "cofunc.jc", `
cofunction int gen(int n) {
	for (int i = 0; i < n; i++) {
		yield i;
	}
}

function int main() {
	return gen(3);
}
`)
	for _, m := range sink.Messages() {
		t.Errorf("unexpected diagnostic: %s", m.Text)
	}

	global := p.Reg.Class(types.Global)
	idx := global.FindFunction("gen")
	if idx < 0 {
		t.Fatal("gen was not registered")
	}
	gen := global.Functions[idx]
	if !gen.Flags.Has(types.FuncCofunction) {
		t.Error("gen is missing FuncCofunction")
	}
	if gen.State != types.FuncLinked {
		t.Errorf("gen.State = %v, want FuncLinked", gen.State)
	}
}

// TestScenario_HybridInterfaceDispatch covers hybrid composition
// (spec.md §4.6): class D implements interface I and is hybrid over
// base class B, which implements I.f directly. Parsing D's declaration
// must synthesize a forwarding method D.f whose HybridDelegateLink
// points at the woven-in delegate member for B.f.
func TestScenario_HybridInterfaceDispatch(t *testing.T) {
	p, sink := newTestParser()
	compileUnit(t, p, "hybrid.jc", `
interface I {
	method int f();
}

class B {
	constructor() {
	}
	method int f() {
		return 1;
	}
}

class D : I hybrid B {
	constructor() {
	}
}
`)
	for _, m := range sink.Messages() {
		t.Errorf("unexpected diagnostic: %s", m.Text)
	}

	dID, ok := p.Reg.FindByName("D")
	if !ok {
		t.Fatal("D was not registered")
	}
	d := p.Reg.Class(dID)
	bID, ok := p.Reg.FindByName("B")
	if !ok {
		t.Fatal("B was not registered")
	}
	if d.HybridBase != bID {
		t.Errorf("D.HybridBase = %v, want %v (B)", d.HybridBase, bID)
	}

	idx := d.FindFunction("f")
	if idx < 0 {
		t.Fatal("D has no forwarding method f")
	}
	fwd := d.Functions[idx]
	if fwd.HybridDelegateLink < 0 {
		t.Error("D.f has no HybridDelegateLink")
	}
	if fwd.HybridDelegateLink >= len(d.Members) {
		t.Fatalf("D.f.HybridDelegateLink = %d, out of range of %d members", fwd.HybridDelegateLink, len(d.Members))
	}
	if d.Members[fwd.HybridDelegateLink].Name != "f" {
		t.Errorf("delegate member at slot %d is %q, want \"f\"", fwd.HybridDelegateLink, d.Members[fwd.HybridDelegateLink].Name)
	}
}
