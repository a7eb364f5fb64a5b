package link

import (
	"testing"

	"github.com/jewelscript-go/jilc/internal/types"
)

func newAppClass(t *testing.T) (*types.Registry, *types.Class) {
	t.Helper()
	reg := types.NewRegistry(nil)
	id, err := reg.CreateType("App", types.Global, types.FamilyClass, false)
	if err != nil {
		t.Fatalf("CreateType: %v", err)
	}
	return reg, reg.Class(id)
}

func addFunc(c *types.Class, name string) *types.Function {
	fn := types.NewFunction(c.ID, name, types.Variable{Type: types.Int}, nil, 0)
	fn.Index = len(c.Functions)
	c.Functions = append(c.Functions, fn)
	return fn
}

func TestLink_AssignsSequentialHandles(t *testing.T) {
	reg, app := newAppClass(t)
	a := addFunc(app, "a")
	b := addFunc(app, "b")
	a.Bytecode = []types.Instr{{Op: types.OpRet}}
	b.Bytecode = []types.Instr{{Op: types.OpRet}}

	st, err := New(reg).Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if a.Handle < 0 || b.Handle < 0 || a.Handle == b.Handle {
		t.Errorf("expected distinct non-negative handles, got a=%d b=%d", a.Handle, b.Handle)
	}
	if st.FunctionsLinked != 2 {
		t.Errorf("FunctionsLinked = %d, want 2", st.FunctionsLinked)
	}
}

func TestLink_PatchesStaticCallSite(t *testing.T) {
	reg, app := newAppClass(t)
	callee := addFunc(app, "callee")
	caller := addFunc(app, "caller")
	callee.Bytecode = []types.Instr{{Op: types.OpRet}}
	caller.Bytecode = []types.Instr{
		{Op: types.OpCallS, Imm: types.PackFuncRef(app.ID, callee.Index)},
		{Op: types.OpRet},
	}

	st, err := New(reg).Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if st.CallSitesPatched != 1 {
		t.Errorf("CallSitesPatched = %d, want 1", st.CallSitesPatched)
	}
	if caller.Bytecode[0].Imm != int64(callee.Handle) {
		t.Errorf("call-site Imm = %d, want callee handle %d", caller.Bytecode[0].Imm, callee.Handle)
	}
}

func TestLink_PatchesDelegateConstruction(t *testing.T) {
	reg, app := newAppClass(t)
	target := addFunc(app, "target")
	holder := addFunc(app, "holder")
	target.Bytecode = []types.Instr{{Op: types.OpRet}}
	holder.Bytecode = []types.Instr{
		{Op: types.OpNewDG, Operands: []types.Operand{types.RegOperand(0)}, Imm: types.PackFuncRef(app.ID, target.Index)},
		{Op: types.OpRet},
	}

	if _, err := New(reg).Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if holder.Bytecode[0].Imm != int64(target.Handle) {
		t.Errorf("newdg Imm = %d, want target handle %d", holder.Bytecode[0].Imm, target.Handle)
	}
}

func TestLink_UnresolvedCallIsAnError(t *testing.T) {
	reg, app := newAppClass(t)
	fn := addFunc(app, "f")
	fn.Bytecode = []types.Instr{
		{Op: types.OpCallS, Imm: types.PackFuncRef(app.ID, 99)},
	}
	if _, err := New(reg).Link(); err == nil {
		t.Fatal("expected an error for a call to a non-existent function index")
	}
}

func TestLink_AllocatesLiteralHandles(t *testing.T) {
	reg, app := newAppClass(t)
	fn := addFunc(app, "f")
	fn.Bytecode = []types.Instr{
		{Op: types.OpMoveH, Operands: []types.Operand{types.RegOperand(0)}, Imm: 0},
		{Op: types.OpMoveH, Operands: []types.Operand{types.RegOperand(1)}, Imm: 0},
		{Op: types.OpRet},
	}
	fn.Literals = []types.Literal{
		{Kind: types.LitInt, IVal: 1, CodeOffset: 0, Handle: -1},
		{Kind: types.LitString, SVal: "x", CodeOffset: 1, Handle: -1},
	}

	st, err := New(reg).Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if st.LiteralsPatched != 2 {
		t.Errorf("LiteralsPatched = %d, want 2", st.LiteralsPatched)
	}
	if fn.Literals[0].Handle == fn.Literals[1].Handle {
		t.Error("expected distinct constant-table handles")
	}
	if fn.Bytecode[0].Imm != int64(fn.Literals[0].Handle) {
		t.Errorf("bytecode[0].Imm = %d, want literal handle %d", fn.Bytecode[0].Imm, fn.Literals[0].Handle)
	}
	if fn.Bytecode[1].Imm != int64(fn.Literals[1].Handle) {
		t.Errorf("bytecode[1].Imm = %d, want literal handle %d", fn.Bytecode[1].Imm, fn.Literals[1].Handle)
	}
}

func TestLink_ResolvesDelegateLiteral(t *testing.T) {
	reg, app := newAppClass(t)
	target := addFunc(app, "target")
	fn := addFunc(app, "f")
	target.Bytecode = []types.Instr{{Op: types.OpRet}}
	fn.Bytecode = []types.Instr{
		{Op: types.OpCopyH, Operands: []types.Operand{types.RegOperand(0)}, Imm: 0},
		{Op: types.OpRet},
	}
	fn.Literals = []types.Literal{
		{Kind: types.LitDelegate, CodeOffset: 0, Handle: int(types.PackFuncRef(app.ID, target.Index))},
	}

	if _, err := New(reg).Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if fn.Literals[0].Handle != target.Handle {
		t.Errorf("delegate literal Handle = %d, want target handle %d", fn.Literals[0].Handle, target.Handle)
	}
	if fn.Bytecode[0].Imm != int64(target.Handle) {
		t.Errorf("bytecode[0].Imm = %d, want target handle %d", fn.Bytecode[0].Imm, target.Handle)
	}
}

func TestLink_VerifiesHybridDispatch(t *testing.T) {
	reg, app := newAppClass(t)
	fn := addFunc(app, "forward")
	fn.HybridDelegateLink = 3
	fn.Bytecode = []types.Instr{
		{Op: types.OpCallDGMember, Operands: []types.Operand{{Mode: types.AddrMember, Reg: 0, Slot: 3}}},
		{Op: types.OpRet},
	}

	st, err := New(reg).Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if st.HybridsVerified != 1 {
		t.Errorf("HybridsVerified = %d, want 1", st.HybridsVerified)
	}
}

func TestLink_RejectsInconsistentHybridWiring(t *testing.T) {
	reg, app := newAppClass(t)
	fn := addFunc(app, "forward")
	fn.HybridDelegateLink = 3
	fn.Bytecode = []types.Instr{{Op: types.OpRet}}

	if _, err := New(reg).Link(); err == nil {
		t.Fatal("expected an error when a hybrid forwarder never addresses its recorded slot")
	}
}

func TestLink_PeepholeEliminatesSelfMoveAndCollapsesPops(t *testing.T) {
	reg, app := newAppClass(t)
	fn := addFunc(app, "f")
	r0 := types.RegOperand(0)
	fn.Bytecode = []types.Instr{
		{Op: types.OpMove, Operands: []types.Operand{r0, r0}}, // self-move, eliminated
		{Op: types.OpPop},
		{Op: types.OpPop},
		{Op: types.OpPop},
		{Op: types.OpBra, Imm: 6}, // branch to end-of-function (old length is 6)
		{Op: types.OpRet},
	}

	st, err := New(reg).Link()
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if st.MovesEliminated != 1 {
		t.Errorf("MovesEliminated = %d, want 1", st.MovesEliminated)
	}
	if st.PopRunsCollapsed != 1 {
		t.Errorf("PopRunsCollapsed = %d, want 1", st.PopRunsCollapsed)
	}
	if len(fn.Bytecode) != 3 {
		t.Fatalf("Bytecode = %v, want 3 instructions (popm, bra, ret)", fn.Bytecode)
	}
	if fn.Bytecode[0].Op != types.OpPopM || fn.Bytecode[0].Imm != 3 {
		t.Errorf("Bytecode[0] = %v, want popm 3", fn.Bytecode[0])
	}
	if fn.Bytecode[1].Op != types.OpBra || fn.Bytecode[1].Imm != 3 {
		t.Errorf("Bytecode[1] = %v, want bra remapped to the new end-of-function offset 3", fn.Bytecode[1])
	}
}

func TestLink_PeepholeRemapsLiteralCodeOffset(t *testing.T) {
	reg, app := newAppClass(t)
	fn := addFunc(app, "f")
	r0 := types.RegOperand(0)
	fn.Bytecode = []types.Instr{
		{Op: types.OpMove, Operands: []types.Operand{r0, r0}}, // eliminated, shifts everything after it
		{Op: types.OpMoveH, Operands: []types.Operand{r0}, Imm: 0},
		{Op: types.OpRet},
	}
	fn.Literals = []types.Literal{
		{Kind: types.LitInt, CodeOffset: 1, Handle: -1},
	}

	if _, err := New(reg).Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if fn.Literals[0].CodeOffset != 0 {
		t.Errorf("CodeOffset = %d, want 0 after the leading self-move was dropped", fn.Literals[0].CodeOffset)
	}
	if fn.Bytecode[fn.Literals[0].CodeOffset].Op != types.OpMoveH {
		t.Errorf("remapped CodeOffset does not point at the moveh instruction")
	}
}
