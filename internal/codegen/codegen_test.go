package codegen

import (
	"testing"

	"github.com/jewelscript-go/jilc/internal/types"
)

func newTempReg(r int) *types.Variable {
	v := types.NewVariable("", types.Int)
	v.Role = types.RoleRegister
	v.RegisterIndex = r
	return v
}

func TestEmitBinaryIntAdd(t *testing.T) {
	fn := types.NewFunction(types.Global, "f", types.NewVariable("", types.Int), nil, 0)
	g := New(fn)
	dst, a, b := newTempReg(3), newTempReg(4), newTempReg(5)
	if _, err := g.EmitBinary("+", ArithInt, dst, a, b); err != nil {
		t.Fatal(err)
	}
	if len(fn.Bytecode) != 1 || fn.Bytecode[0].Op != types.OpAddI {
		t.Fatalf("expected a single add_i instruction, got %+v", fn.Bytecode)
	}
}

func TestEmitLiteralLoadPlaceholder(t *testing.T) {
	fn := types.NewFunction(types.Global, "f", types.NewVariable("", types.Int), nil, 0)
	g := New(fn)
	off := g.EmitLiteralLoad(false, newTempReg(3))
	if fn.Bytecode[off].Imm != 0 {
		t.Fatalf("expected placeholder handle 0, got %d", fn.Bytecode[off].Imm)
	}
	g.Patch(off, types.Instr{Op: types.OpMoveH, Operands: fn.Bytecode[off].Operands, Imm: 7})
	if fn.Bytecode[off].Imm != 7 {
		t.Fatalf("patch did not take effect: %+v", fn.Bytecode[off])
	}
}

func TestEmitCallDelegateDispatchesByAddressingMode(t *testing.T) {
	fn := types.NewFunction(types.Global, "f", types.NewVariable("", types.Int), nil, 0)
	g := New(fn)
	dg := types.NewVariable("dg", types.Delegate)
	dg.Role = types.RoleStack
	dg.StackOffset = 2
	off := g.EmitCallDelegate(&dg)
	if fn.Bytecode[off].Op != types.OpCallDGStack {
		t.Fatalf("expected calldg_s for a stack-resident delegate, got %s", fn.Bytecode[off].Op)
	}
}

func TestEmitUnsupportedBinaryOperator(t *testing.T) {
	fn := types.NewFunction(types.Global, "f", types.NewVariable("", types.Int), nil, 0)
	g := New(fn)
	if _, err := g.EmitBinary("@@", ArithInt, newTempReg(3), newTempReg(4), newTempReg(5)); err == nil {
		t.Fatal("expected error for unsupported operator")
	}
}
