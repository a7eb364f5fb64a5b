package overload

import (
	"testing"

	"github.com/jewelscript-go/jilc/internal/types"
)

type stubChecker struct {
	result map[[2]types.TypeId]Convertibility
}

func (s stubChecker) Convertibility(arg, param types.TypeId) Convertibility {
	if arg == param {
		return Implicit
	}
	if c, ok := s.result[[2]types.TypeId{arg, param}]; ok {
		return c
	}
	return NotConvertible
}

func fn(name string, result types.TypeId, args ...types.TypeId) *types.Function {
	vs := make([]types.Variable, len(args))
	for i, a := range args {
		vs[i] = types.NewVariable("", a)
	}
	return types.NewFunction(types.Global, name, types.NewVariable("", result), vs, 0)
}

func TestResolveOverloadExactMatchPreferred(t *testing.T) {
	intF := fn("f", types.Int, types.Int)
	floatF := fn("f", types.Float, types.Float)
	checker := stubChecker{result: map[[2]types.TypeId]Convertibility{
		{types.Int, types.Float}: NonTrivial,
		{types.Float, types.Int}: NonTrivial,
	}}
	got, err := Resolve("f", []*types.Function{intF, floatF}, []types.TypeId{types.Int}, checker, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != intF {
		t.Fatalf("expected exact int overload, got %+v", got)
	}
}

func TestResolveAmbiguousTie(t *testing.T) {
	a := fn("f", types.Int, types.Int)
	b := fn("f", types.Int, types.Int)
	checker := stubChecker{}
	_, err := Resolve("f", []*types.Function{a, b}, []types.TypeId{types.Int}, checker, false)
	if _, ok := err.(*AmbiguousError); !ok {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
}

func TestResolveNoMatch(t *testing.T) {
	a := fn("f", types.Int, types.String)
	checker := stubChecker{}
	_, err := Resolve("f", []*types.Function{a}, []types.TypeId{types.Int}, checker, false)
	if _, ok := err.(*NoMatchError); !ok {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
}

func TestResolveArityMismatchSkipped(t *testing.T) {
	a := fn("f", types.Int, types.Int, types.Int)
	b := fn("f", types.Int, types.Int)
	checker := stubChecker{}
	got, err := Resolve("f", []*types.Function{a, b}, []types.TypeId{types.Int}, checker, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Fatalf("expected the 1-arg overload, got %+v", got)
	}
}
