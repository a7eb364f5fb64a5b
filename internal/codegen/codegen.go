// Package codegen implements the Code Generator (C8): it emits VM
// opcodes for moves/copies/weak-refs, arithmetic/logic, comparisons,
// calls, allocation, cofunction resume, and delegate construction/
// call, selecting the opcode by (operand-kinds, static types) and
// writing operands in canonical order (spec.md §4.8).
package codegen

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/types"
)

// Gen emits instructions into one Function's bytecode buffer.
type Gen struct {
	F *types.Function
}

// New wraps fn for emission.
func New(fn *types.Function) *Gen { return &Gen{F: fn} }

// Emit appends instr and returns its code offset (index into
// F.Bytecode), used by callers that need to patch the instruction
// later (branch targets, popm counts, literal handles).
func (g *Gen) Emit(instr types.Instr) int {
	g.F.Bytecode = append(g.F.Bytecode, instr)
	return len(g.F.Bytecode) - 1
}

// Patch overwrites the instruction at offset, used for back-patching
// branch targets and pop-counts once they are known.
func (g *Gen) Patch(offset int, instr types.Instr) {
	g.F.Bytecode[offset] = instr
}

func operandFor(v *types.Variable) types.Operand {
	switch v.Role {
	case types.RoleRegister:
		return types.Operand{Mode: types.AddrRegister, Reg: v.RegisterIndex}
	case types.RoleStack:
		return types.Operand{Mode: types.AddrStack, StackOff: v.StackOffset}
	case types.RoleMember:
		return types.Operand{Mode: types.AddrMember, Reg: v.ObjectReg, Slot: v.MemberSlot}
	case types.RoleArrayElement:
		idx := 0
		if v.Index != nil {
			idx = v.Index.RegisterIndex
		}
		return types.Operand{Mode: types.AddrArray, Reg: v.ArrayReg, IdxReg: idx}
	default:
		return types.Operand{Mode: types.AddrRegister, Reg: -1}
	}
}

// MoveKind distinguishes the three destination-assignment strategies
// spec.md §4.5.2 names (move / copy / weak-ref).
type MoveKind int

const (
	MoveOwnership MoveKind = iota
	MoveCopy
	MoveWeak
)

// EmitMove emits the data-movement instruction selected by kind
// (spec.md §4.5.2: "The choice between move / copy / weak-ref").
// When dst currently holds a non-unique temp being mutated, callers
// must instead route through EmitCopyOnWrite first; EmitMove itself
// never inspects uniqueness.
func (g *Gen) EmitMove(kind MoveKind, dst, src *types.Variable) int {
	op := types.OpMove
	switch kind {
	case MoveCopy:
		op = types.OpCopy
	case MoveWeak:
		op = types.OpWeakRf
	}
	return g.Emit(types.Instr{Op: op, Operands: []types.Operand{operandFor(dst), operandFor(src)}})
}

// EmitCopyOnWrite emits a copy_rr of src into dst ahead of an in-place
// mutation, per spec.md §4.8: "Operations that would mutate a non-
// unique temp emit a copy-on-write (copy_rr) first."
func (g *Gen) EmitCopyOnWrite(dst, src *types.Variable) int {
	return g.Emit(types.Instr{Op: types.OpCopy, Operands: []types.Operand{operandFor(dst), operandFor(src)}})
}

// ArithKind selects the operand-kind suffix for an arithmetic opcode
// (spec.md §4.8: "add/sub/mul/div/mod in integer, float, generic,
// string-concat, array-append variants").
type ArithKind int

const (
	ArithInt ArithKind = iota
	ArithFloat
	ArithGeneric
	ArithStringConcat
	ArithArrayAppend
)

var addOpcodes = map[ArithKind]types.Opcode{
	ArithInt: types.OpAddI, ArithFloat: types.OpAddF, ArithGeneric: types.OpAddG,
	ArithStringConcat: types.OpConcatS, ArithArrayAppend: types.OpAppendA,
}

// EmitBinary emits the arithmetic/logic instruction for op (one of
// +, -, *, /, %, &, |, ^, <<, >>, &&, ||) given the operand kind.
func (g *Gen) EmitBinary(op string, kind ArithKind, dst, a, b *types.Variable) (int, error) {
	var oc types.Opcode
	switch op {
	case "+":
		oc = addOpcodes[kind]
	case "-":
		oc = pickBySuffix(kind, types.OpSubI, types.OpSubF)
	case "*":
		oc = pickBySuffix(kind, types.OpMulI, types.OpMulF)
	case "/":
		oc = pickBySuffix(kind, types.OpDivI, types.OpDivF)
	case "%":
		oc = pickBySuffix(kind, types.OpModI, types.OpModF)
	case "&":
		oc = types.OpBitAnd
	case "|":
		oc = types.OpBitOr
	case "^":
		oc = types.OpBitXor
	case "<<":
		oc = types.OpShl
	case ">>":
		oc = types.OpShr
	case "&&":
		oc = types.OpLogAnd
	case "||":
		oc = types.OpLogOr
	default:
		return 0, fmt.Errorf("codegen: unsupported binary operator %q", op)
	}
	return g.Emit(types.Instr{Op: oc, Operands: []types.Operand{operandFor(dst), operandFor(a), operandFor(b)}}), nil
}

func pickBySuffix(kind ArithKind, i, f types.Opcode) types.Opcode {
	if kind == ArithFloat {
		return f
	}
	return i
}

// CompareRelation is one of the six comparison relations.
type CompareRelation int

const (
	CmpEq CompareRelation = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

var cmpOpcodes = [...]types.Opcode{types.OpCmpEq, types.OpCmpNe, types.OpCmpLt, types.OpCmpLe, types.OpCmpGt, types.OpCmpGe}

// EmitCompare emits one of the six per-kind comparison opcodes.
func (g *Gen) EmitCompare(rel CompareRelation, dst, a, b *types.Variable) int {
	return g.Emit(types.Instr{Op: cmpOpcodes[rel], Operands: []types.Operand{operandFor(dst), operandFor(a), operandFor(b)}})
}

// EmitUnary emits a unary neg/not/bnot/inc/dec instruction.
func (g *Gen) EmitUnary(op types.Opcode, dst, src *types.Variable) int {
	return g.Emit(types.Instr{Op: op, Operands: []types.Operand{operandFor(dst), operandFor(src)}})
}

// EmitConvert emits the int<->float/dynamic conversion instructions
// from spec.md §4.5.1's conversion policy steps 2-3.
func (g *Gen) EmitConvert(op types.Opcode, dst, src *types.Variable) int {
	return g.Emit(types.Instr{Op: op, Operands: []types.Operand{operandFor(dst), operandFor(src)}})
}

// EmitRtchk emits a runtime type-check trap instruction (spec.md
// §4.5.1 step 1, §4.5.4).
func (g *Gen) EmitRtchk(v *types.Variable, wantType types.TypeId) int {
	return g.Emit(types.Instr{Op: types.OpRtchk, Operands: []types.Operand{operandFor(v)}, Imm: int64(wantType)})
}

// AllocKind selects the allocation opcode variant (spec.md §4.8:
// "Allocation opcodes distinguish script classes (alloc), native
// libraries (allocn), interface arrays (alloci), and general arrays
// (alloca)").
type AllocKind int

const (
	AllocScript AllocKind = iota
	AllocNative
	AllocInterfaceArray
	AllocArray
)

var allocOpcodes = [...]types.Opcode{types.OpAlloc, types.OpAllocN, types.OpAllocI, types.OpAllocA}

// EmitAlloc emits an allocation instruction for typeID into dst.
func (g *Gen) EmitAlloc(kind AllocKind, dst *types.Variable, typeID types.TypeId) int {
	return g.Emit(types.Instr{Op: allocOpcodes[kind], Operands: []types.Operand{operandFor(dst)}, Imm: int64(typeID)})
}

// EmitNewDelegate emits newdg (free function) or newdgm (bound
// method, carries `this`).
func (g *Gen) EmitNewDelegate(dst *types.Variable, thisVar *types.Variable, funcHandle int) int {
	if thisVar == nil {
		return g.Emit(types.Instr{Op: types.OpNewDG, Operands: []types.Operand{operandFor(dst)}, Imm: int64(funcHandle)})
	}
	return g.Emit(types.Instr{Op: types.OpNewDGM, Operands: []types.Operand{operandFor(dst), operandFor(thisVar)}, Imm: int64(funcHandle)})
}

// CallKind selects which call opcode to emit (spec.md §4.8: "Call
// opcodes are calls (global/static), callm (virtual via type+index),
// calli (factory-invoke through an interface array), calln (native
// static), calldg_* (delegate, one per addressing mode)").
type CallKind int

const (
	CallStatic CallKind = iota
	CallVirtual
	CallInterfaceFactory
	CallNative
)

var callOpcodes = [...]types.Opcode{types.OpCallS, types.OpCallM, types.OpCallI, types.OpCallN}

// EmitCall emits a call instruction to target, a pre-link packed
// (owner, index) function ref (types.PackFuncRef) carried in Imm. The
// linker rewrites a CallStatic target to the callee's final handle;
// the other call kinds keep the packed ref.
func (g *Gen) EmitCall(kind CallKind, target int64) int {
	return g.Emit(types.Instr{Op: callOpcodes[kind], Imm: target})
}

// EmitCallDelegate emits the delegate-call variant matching dg's
// addressing mode.
func (g *Gen) EmitCallDelegate(dg *types.Variable) int {
	var op types.Opcode
	switch dg.Role {
	case types.RoleRegister:
		op = types.OpCallDGReg
	case types.RoleStack:
		op = types.OpCallDGStack
	case types.RoleMember:
		op = types.OpCallDGMember
	case types.RoleArrayElement:
		op = types.OpCallDGArray
	default:
		op = types.OpCallDGReg
	}
	return g.Emit(types.Instr{Op: op, Operands: []types.Operand{operandFor(dg)}})
}

// EmitNewCtx instantiates a cofunction context.
func (g *Gen) EmitNewCtx(dst *types.Variable, threadType types.TypeId) int {
	return g.Emit(types.Instr{Op: types.OpNewCtx, Operands: []types.Operand{operandFor(dst)}, Imm: int64(threadType)})
}

// EmitResume resumes a cofunction context held in ctx.
func (g *Gen) EmitResume(ctx *types.Variable) int {
	op := types.OpResumeReg
	if ctx.Role == types.RoleStack {
		op = types.OpResumeStack
	}
	return g.Emit(types.Instr{Op: op, Operands: []types.Operand{operandFor(ctx)}})
}

// EmitLiteralLoad emits moveh (or copyh for a duplicate-on-read
// policy) with a zero placeholder patched by the linker (spec.md
// §4.9).
func (g *Gen) EmitLiteralLoad(copy bool, dst *types.Variable) int {
	op := types.OpMoveH
	if copy {
		op = types.OpCopyH
	}
	return g.Emit(types.Instr{Op: op, Operands: []types.Operand{operandFor(dst)}, Imm: 0})
}

// EmitPush/EmitPop/EmitPopM are the stack-management primitives the
// simulated stack (C4) drives.
func (g *Gen) EmitPush(v *types.Variable) int {
	return g.Emit(types.Instr{Op: types.OpPush, Operands: []types.Operand{operandFor(v)}})
}

func (g *Gen) EmitPop(v *types.Variable) int {
	return g.Emit(types.Instr{Op: types.OpPop, Operands: []types.Operand{operandFor(v)}})
}

func (g *Gen) EmitPopM(n int) int {
	return g.Emit(types.Instr{Op: types.OpPopM, Imm: int64(n)})
}

// EmitBranch emits an unconditional branch with a placeholder target,
// returning its code offset for later patching.
func (g *Gen) EmitBranch() int { return g.Emit(types.Instr{Op: types.OpBra, Imm: -1}) }

// EmitShortCircuitSkip emits tsteq/tstne: a conditional skip past the
// second operand of && / || (spec.md §4.5.3).
func (g *Gen) EmitShortCircuitSkip(isAnd bool, cond *types.Variable) int {
	op := types.OpTstNe
	if isAnd {
		op = types.OpTstEq
	}
	return g.Emit(types.Instr{Op: op, Operands: []types.Operand{operandFor(cond)}, Imm: -1})
}

func (g *Gen) EmitRet() int { return g.Emit(types.Instr{Op: types.OpRet}) }

// EmitThrow emits the raise instruction for a throw statement (spec.md
// §4.6).
func (g *Gen) EmitThrow(v *types.Variable) int {
	return g.Emit(types.Instr{Op: types.OpThrow, Operands: []types.Operand{operandFor(v)}})
}

// EmitYield suspends the current cofunction activation, carrying the
// yielded value (spec.md §4.6, §5's newctx/yield/resume_* triad).
func (g *Gen) EmitYield(v *types.Variable) int {
	return g.Emit(types.Instr{Op: types.OpYield, Operands: []types.Operand{operandFor(v)}})
}

// EmitBranchIfZero/EmitBranchIfNonZero emit the conditional branches
// used by if/while/for/switch control flow (spec.md §4.6), distinct
// from EmitShortCircuitSkip's tsteq/tstne which only ever skip the
// second operand of && / ||.
func (g *Gen) EmitBranchIfZero(cond *types.Variable) int {
	return g.Emit(types.Instr{Op: types.OpBrz, Operands: []types.Operand{operandFor(cond)}, Imm: -1})
}

func (g *Gen) EmitBranchIfNonZero(cond *types.Variable) int {
	return g.Emit(types.Instr{Op: types.OpBrnz, Operands: []types.Operand{operandFor(cond)}, Imm: -1})
}

// Here reports the code offset the next Emit call will land at, the
// target a backward branch should carry.
func (g *Gen) Here() int { return len(g.F.Bytecode) }

// PatchBranchTarget patches the branch at offset to land on the
// current end of the bytecode buffer.
func (g *Gen) PatchBranchTarget(offset int) {
	g.PatchBranchTo(offset, len(g.F.Bytecode))
}

// PatchBranchTo patches the branch at offset to an explicit target
// code offset (used for backward edges: loop condition re-checks,
// continue, goto).
func (g *Gen) PatchBranchTo(offset, target int) {
	instr := g.F.Bytecode[offset]
	instr.Imm = int64(target)
	g.F.Bytecode[offset] = instr
}

// EmitPopMPlaceholder reserves a popm slot whose count is not yet
// known (the clause/goto facility's unwind count depends on a later
// block's stack depth), for PatchPopM to fill in once resolved.
func (g *Gen) EmitPopMPlaceholder() int {
	return g.Emit(types.Instr{Op: types.OpPopM, Imm: -1})
}

// PatchPopM fills in a previously-reserved popm's unwind count.
func (g *Gen) PatchPopM(offset int, n int) {
	instr := g.F.Bytecode[offset]
	instr.Imm = int64(n)
	g.F.Bytecode[offset] = instr
}
