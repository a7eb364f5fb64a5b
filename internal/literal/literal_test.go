package literal

import (
	"testing"

	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/token"
	"github.com/jewelscript-go/jilc/internal/types"
)

func TestAddIntLiteralEmitsPlaceholder(t *testing.T) {
	fn := types.NewFunction(types.Global, "f", types.NewVariable("", types.Int), nil, 0)
	gen := codegen.New(fn)
	pool := NewPool(fn, gen)
	dst := types.NewVariable("", types.Int)
	dst.Role = types.RoleRegister
	dst.RegisterIndex = 3

	idx := pool.AddInt(42, &dst, token.Pos{Line: 1, Col: 1})
	if fn.Literals[idx].IVal != 42 {
		t.Fatalf("expected literal value 42, got %+v", fn.Literals[idx])
	}
	off := fn.Literals[idx].CodeOffset
	if fn.Bytecode[off].Op != types.OpMoveH || fn.Bytecode[off].Imm != 0 {
		t.Fatalf("expected placeholder moveh, got %+v", fn.Bytecode[off])
	}
}

func TestResolverPatchesHandle(t *testing.T) {
	fn := types.NewFunction(types.Global, "f", types.NewVariable("", types.Int), nil, 0)
	gen := codegen.New(fn)
	pool := NewPool(fn, gen)
	dst := types.NewVariable("", types.Delegate)
	dst.Role = types.RoleRegister

	lex := token.New("a.jc", "function(){}")
	loc := lex.Save()
	idx, pending := pool.AddDelegateLiteral(&dst, false, loc, nil, token.Pos{Line: 1, Col: 1})

	var r Resolver
	r.Defer(pending)
	err := r.Resolve(fn, func(p *PendingAnon) (int, error) { return 99, nil })
	if err != nil {
		t.Fatal(err)
	}
	if fn.Literals[idx].Handle != 99 {
		t.Fatalf("expected handle 99 patched in, got %d", fn.Literals[idx].Handle)
	}
	if !pending.Resolved {
		t.Fatal("expected pending to be marked resolved")
	}
}
