package types

import "fmt"

// Opcode is one of the fixed VM instruction mnemonics the code
// generator (C8) emits (spec.md §4.8). The VM's own decoding of these
// is out of scope (spec.md §1); this repo represents a function body
// as a slice of Instr rather than raw machine words, a structured
// equivalent of the "Bytecode buffer" spec.md §3 names, chosen the
// way the teacher repo represents an *obj.Prog* list rather than
// final linked bytes before the linker runs.
type Opcode int

const (
	OpNop Opcode = iota

	// data movement
	OpMove   // move_XY: transfer ownership, destination becomes owner
	OpCopy   // copy_rr: copy-on-write duplicate
	OpWeakRf // weak reference assignment

	// literals
	OpMoveH // moveh 0, Rdst -- patched by the linker to a VM constant handle
	OpCopyH

	// arithmetic / logic, per (kind) suffix: I=int, F=float, G=generic (var), S=string-concat, A=array-append
	OpAddI
	OpSubI
	OpMulI
	OpDivI
	OpModI
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpModF
	OpAddG
	OpConcatS
	OpAppendA

	// comparisons, six relations per kind
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe

	// logical / bitwise / shift
	OpLogAnd
	OpLogOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr

	// unary
	OpNeg
	OpNot
	OpBNot
	OpInc
	OpDec

	// conversions
	OpCvf // int -> float
	OpCvl // float -> int
	OpDcvt // dynamic (var) conversion

	// runtime check
	OpRtchk

	// allocation
	OpAlloc  // script class
	OpAllocN // native library
	OpAllocI // interface array
	OpAllocA // general array

	// delegates
	OpNewDG  // function delegate
	OpNewDGM // bound-method delegate, carries `this`

	// calls
	OpCallS    // global/static
	OpCallM    // virtual, via type+index
	OpCallI    // factory-invoke through an interface array
	OpCallN    // native static
	OpCallDGReg
	OpCallDGStack
	OpCallDGMember
	OpCallDGArray

	// cofunctions
	OpNewCtx
	OpResumeReg
	OpResumeStack
	OpYield // suspend a cofunction activation, preserving locals and ip

	// control flow
	OpTstEq // conditional skip when equal (short-circuit &&)
	OpTstNe // conditional skip when not equal (short-circuit ||)
	OpBra   // unconditional branch
	OpBrz   // branch if zero
	OpBrnz  // branch if non-zero
	OpRet
	OpThrow // raise the exception-family value in the operand

	// stack management
	OpPush
	OpPop
	OpPopM // pop multiple
)

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpMove: "move", OpCopy: "copy_rr", OpWeakRf: "weak_rf",
	OpMoveH: "moveh", OpCopyH: "copyh",
	OpAddI: "add_i", OpSubI: "sub_i", OpMulI: "mul_i", OpDivI: "div_i", OpModI: "mod_i",
	OpAddF: "add_f", OpSubF: "sub_f", OpMulF: "mul_f", OpDivF: "div_f", OpModF: "mod_f",
	OpAddG: "add_g", OpConcatS: "concat_s", OpAppendA: "append_a",
	OpCmpEq: "ceq", OpCmpNe: "cne", OpCmpLt: "clt", OpCmpLe: "cle", OpCmpGt: "cgt", OpCmpGe: "cge",
	OpLogAnd: "and_l", OpLogOr: "or_l", OpBitAnd: "and_b", OpBitOr: "or_b", OpBitXor: "xor_b",
	OpShl: "shl", OpShr: "shr",
	OpNeg: "neg", OpNot: "not", OpBNot: "bnot", OpInc: "inc", OpDec: "dec",
	OpCvf: "cvf", OpCvl: "cvl", OpDcvt: "dcvt", OpRtchk: "rtchk",
	OpAlloc: "alloc", OpAllocN: "allocn", OpAllocI: "alloci", OpAllocA: "alloca",
	OpNewDG: "newdg", OpNewDGM: "newdgm",
	OpCallS: "calls", OpCallM: "callm", OpCallI: "calli", OpCallN: "calln",
	OpCallDGReg: "calldg_r", OpCallDGStack: "calldg_s", OpCallDGMember: "calldg_m", OpCallDGArray: "calldg_a",
	OpNewCtx: "newctx", OpResumeReg: "resume_r", OpResumeStack: "resume_s", OpYield: "yield",
	OpTstEq: "tsteq", OpTstNe: "tstne", OpBra: "bra", OpBrz: "brz", OpBrnz: "brnz", OpRet: "ret", OpThrow: "throw",
	OpPush: "push", OpPop: "pop", OpPopM: "popm",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op#%d", int(o))
}

// AddrMode is the addressing mode of one Operand (spec.md §4.8).
type AddrMode int

const (
	AddrRegister AddrMode = iota
	AddrStack
	AddrMember // object-register + slot
	AddrArray  // array-register + index-register
)

// Operand is one operand word group of an Instr, in canonical order
// (mode tag then the mode-specific fields).
type Operand struct {
	Mode AddrMode

	Reg      int // AddrRegister, or the object/array base register for Member/Array
	StackOff int // AddrStack
	Slot     int // AddrMember
	IdxReg   int // AddrArray: index register
}

// RegOperand is a convenience constructor for a plain register operand.
func RegOperand(r int) Operand { return Operand{Mode: AddrRegister, Reg: r} }

// PackFuncRef encodes a function reference (owner type + in-class
// index; owner is Global for top-level functions) into the Imm word
// of a call or delegate-creation instruction at compile time, before
// the linker (C12) has assigned final handles. UnpackFuncRef reverses
// it; the linker rewrites the Imm of calls/newdg/newdgm instructions
// and the Handle of delegate literals to absolute handles (spec.md
// §4.12), while callm/calli/calln keep the packed reference.
func PackFuncRef(owner TypeId, index int) int64 {
	return int64(owner)<<32 | int64(uint32(index))
}

func UnpackFuncRef(v int64) (TypeId, int) {
	return TypeId(v >> 32), int(int32(v))
}

// Instr is one emitted VM instruction: an opcode, its operands in
// canonical order, and an optional immediate (packed function
// reference before linking, handle after for calls/newdg/newdgm; zero
// placeholder for moveh/copyh until the linker patches in the
// literal's value; branch/popm patch target; etc).
type Instr struct {
	Op       Opcode
	Operands []Operand
	Imm      int64
}

func (i Instr) String() string {
	return fmt.Sprintf("%s %v %d", i.Op, i.Operands, i.Imm)
}
