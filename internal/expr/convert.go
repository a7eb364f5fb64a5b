package expr

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/codegen"
	"github.com/jewelscript-go/jilc/internal/types"
)

// AutoConvert implements cg_auto_convert (spec.md §4.5.1): given a
// source variable and a destination type, it produces a possibly-new
// source variable holding a value of type dst. allowExplicit permits
// explicit-only convertors/constructors to participate, the way a
// (T)expr cast does (spec.md §4.5.4).
func (e *Engine) AutoConvert(src *types.Variable, dst types.TypeId, allowExplicit bool) (*types.Variable, error) {
	// Step 1: implicit convertibility.
	if src.Type == dst || dst == types.Var {
		if src.Type == types.Var && dst != types.Var && dst != types.String && e.Opts.UseRtchk {
			e.Gen.EmitRtchk(src, dst)
		}
		return src, nil
	}
	if src.Type == types.Var && dst != types.String {
		out, err := e.newTemp(dst)
		if err != nil {
			return nil, err
		}
		if e.Opts.UseRtchk {
			e.Gen.EmitRtchk(src, dst)
		}
		e.Gen.EmitMove(codegen.MoveOwnership, out, src)
		return out, nil
	}
	if e.Reg.IsSubclass(src.Type, dst) {
		return src, nil
	}
	if src.Type == types.Array && dst == types.Array && (src.ElemType == types.Var || dst == types.Var) {
		return src, nil
	}

	// Step 2: int<->float.
	if (src.Type == types.Int && dst == types.Float) || (src.Type == types.Float && dst == types.Int) {
		out, err := e.newTemp(dst)
		if err != nil {
			return nil, err
		}
		op := types.OpCvf
		if dst == types.Int {
			op = types.OpCvl
			e.Sink.Warnf(2, e.Unit, 0, 0, 3001, "implicit conversion from float to int may lose precision")
		}
		e.Gen.EmitConvert(op, out, src)
		return out, nil
	}

	// Step 3: var -> string.
	if src.Type == types.Var && dst == types.String {
		out, err := e.newTemp(dst)
		if err != nil {
			return nil, err
		}
		e.Sink.Warnf(3, e.Unit, 0, 0, 3002, "dynamic conversion from var to string")
		e.Gen.EmitConvert(types.OpDcvt, out, src)
		return out, nil
	}

	// Step 4: convertor method on the source class.
	if srcCls := e.Reg.Class(src.Type); srcCls != nil {
		for _, f := range srcCls.Functions {
			if !f.Flags.Has(types.FuncConvertor) || f.Result.Type != dst {
				continue
			}
			if f.Flags.Has(types.FuncExplicit) && !allowExplicit {
				continue
			}
			return e.emitConvertorCall(src, f, dst)
		}
	}

	// Step 5: single-argument constructor on the destination class.
	if dstCls := e.Reg.Class(dst); dstCls != nil {
		for _, f := range dstCls.Functions {
			if !f.Flags.Has(types.FuncConstructor) || len(f.Args) != 1 || f.Args[0].Type != src.Type {
				continue
			}
			if f.Flags.Has(types.FuncExplicit) && !allowExplicit {
				continue
			}
			return e.emitConstructorCall(src, dst, f)
		}
	}

	return nil, fmt.Errorf("expr: no conversion from %s to %s", e.Reg.TypeName(src.Type), e.Reg.TypeName(dst))
}

// emitConvertorCall implements the "saved-r0/call/restore-r0
// sequence" of spec.md §4.5.1 step 4: the source object becomes the
// receiver (`this`), the convertor is invoked, and its return value
// becomes the converted temp.
func (e *Engine) emitConvertorCall(src *types.Variable, f *types.Function, dst types.TypeId) (*types.Variable, error) {
	out, err := e.newTemp(dst)
	if err != nil {
		return nil, err
	}
	this := types.NewVariable("", f.Owner)
	this.Role = types.RoleRegister
	this.RegisterIndex = 0
	e.Gen.EmitMove(codegen.MoveOwnership, &this, src)
	e.Gen.EmitCall(codegen.CallVirtual, packMethod(f.Owner, f.Index))
	e.Gen.EmitMove(codegen.MoveOwnership, out, &types.Variable{Role: types.RoleRegister, RegisterIndex: 1})
	return out, nil
}

// emitConstructorCall implements spec.md §4.5.1 step 5: allocate a
// new dst instance then invoke its matching single-argument
// constructor with src pushed as the argument.
func (e *Engine) emitConstructorCall(src *types.Variable, dst types.TypeId, ctor *types.Function) (*types.Variable, error) {
	out, err := e.newTemp(dst)
	if err != nil {
		return nil, err
	}
	e.Gen.EmitAlloc(codegen.AllocScript, out, dst)
	if err := e.Stack.Push(src); err != nil {
		return nil, fmt.Errorf("expr: %w", err)
	}
	e.Gen.EmitPush(src)
	e.Gen.EmitCall(codegen.CallVirtual, packMethod(ctor.Owner, ctor.Index))
	if _, err := e.Stack.Pop(); err != nil {
		return nil, fmt.Errorf("expr: %w", err)
	}
	return out, nil
}

func packMethod(owner types.TypeId, index int) int64 {
	return types.PackFuncRef(owner, index)
}

// ownershipRule names the violation kinds of spec.md §4.5.2.
type ownershipRule int

const (
	ruleSrcDst ownershipRule = iota
	ruleDstModify
	ruleDstAssign
)

// OwnershipError reports a const/ref/init violation from spec.md
// §4.5.2.
type OwnershipError struct {
	Rule ownershipRule
	Msg  string
}

func (e *OwnershipError) Error() string { return e.Msg }

// CheckMove validates the src->dst ownership rules of spec.md §4.5.2
// before a move/copy/weak-ref is emitted.
func (e *Engine) CheckMove(src, dst *types.Variable) error {
	if !src.Initialized && src.Usage != types.UsageTemp {
		return &OwnershipError{ruleSrcDst, fmt.Sprintf("expr: %q used before being initialized", src.Name)}
	}
	if dst.Const && dst.Initialized {
		return &OwnershipError{ruleDstAssign, fmt.Sprintf("expr: cannot assign to const %q", dst.Name)}
	}
	return nil
}

// DecideMove implements the move/copy/weak-ref choice of spec.md
// §4.5.2:
//   - weak-ref if dst is declared weak, not a temp, and src is not weak;
//   - move if dst is a reference, OR src is a unique temp, OR dst is const;
//   - copy otherwise (requires the type be copyable).
func (e *Engine) DecideMove(dst, src *types.Variable) (codegen.MoveKind, error) {
	if dst.Weak && dst.Usage != types.UsageTemp && !src.Weak {
		if src.Usage == types.UsageTemp {
			e.Sink.Warnf(1, e.Unit, 0, 0, 3003, "weak ref %q may outlive the temporary it was assigned from", dst.Name)
		}
		return codegen.MoveWeak, nil
	}
	if dst.Ref || src.Unique || dst.Const {
		return codegen.MoveOwnership, nil
	}
	if !e.Reg.IsCopyable(dst.Type) {
		return 0, fmt.Errorf("expr: type %s is not copyable", e.Reg.TypeName(dst.Type))
	}
	return codegen.MoveCopy, nil
}

// Assign performs a full l-value assignment: ownership checks, the
// conversion policy, move/copy/weak-ref selection, and emission,
// mirroring the combined effect of spec.md §4.5.1 and §4.5.2. It is
// used both for plain assignment statements and for compound-assign
// destinations (C6 computes the new value first, then calls Assign).
func (e *Engine) Assign(dst *types.Variable, src *types.Variable) error {
	if err := e.CheckMove(src, dst); err != nil {
		return err
	}
	converted, err := e.AutoConvert(src, dst.Type, false)
	if err != nil {
		return err
	}
	kind, err := e.DecideMove(dst, converted)
	if err != nil {
		return err
	}
	if dst.Usage == types.UsageTemp && !dst.Unique && kind == codegen.MoveOwnership {
		e.Gen.EmitCopyOnWrite(dst, converted)
	} else {
		e.Gen.EmitMove(kind, dst, converted)
	}
	dst.Initialized = true
	e.freeTemp(converted)
	return nil
}

// Cast implements the (T)expr explicit cast of spec.md §4.5.4: it
// forces the conversion path to allow explicit convertors/ctors and
// emits an rtchk when narrowing from var/interface to a concrete
// subtype.
func (e *Engine) Cast(src *types.Variable, dst types.TypeId) (*types.Variable, error) {
	src.TypeCast = true
	if (src.Type == types.Var || e.Reg.IsInterface(src.Type)) && e.Reg.IsSubclass(dst, src.Type) {
		out, err := e.newTemp(dst)
		if err != nil {
			return nil, err
		}
		e.Gen.EmitRtchk(src, dst)
		e.Gen.EmitMove(codegen.MoveOwnership, out, src)
		return out, nil
	}
	return e.AutoConvert(src, dst, true)
}
