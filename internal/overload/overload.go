// Package overload implements the Overload Resolver (C7): given a
// class, a name, and a vector of argument types, it finds the unique
// best-matching function via a conversion-cost score (spec.md §4.7).
package overload

import (
	"fmt"

	"github.com/jewelscript-go/jilc/internal/types"
)

// Convertibility classifies how an argument converts to a parameter
// type, used both to reject non-convertible candidates and to score
// the survivors (spec.md §4.7 step 2-3).
type Convertibility int

const (
	NotConvertible Convertibility = iota
	Implicit                      // equal type, var on either side, subclass, etc: costs 0
	NonTrivial                    // requires int<->float, convertor, or constructor: costs 2
)

// Checker is the conversion oracle the resolver consults; package expr
// supplies the real implementation (cg_auto_convert's classification
// step) so this package stays free of any dependency on expression
// code generation.
type Checker interface {
	Convertibility(argType types.TypeId, paramType types.TypeId) Convertibility
}

// Candidate is one function under consideration. Whether the call
// site discards the return value (spec.md §4.7 step 3) is not stored
// here; it is passed to Resolve as discardsReturn.
type Candidate struct {
	Func *types.Function
}

// Tolerated names the recoverable error kinds of the "tolerated" set
// (spec.md §7). The expression compiler compiles each call argument
// once and has no argument-probing pass; nothing in the compiler
// currently reads these values.
type Tolerated int

const (
	TolerateUndefinedFunction Tolerated = iota
	TolerateUndefinedIdentifier
	TolerateErrorInArg
)

// AmbiguousError is returned when two or more candidates tie for the
// lowest score.
type AmbiguousError struct {
	Name  string
	Tied  []*types.Function
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("overload: call to %q is ambiguous among %d candidates", e.Name, len(e.Tied))
}

// NoMatchError is returned when no candidate is both arity-compatible
// and convertible.
type NoMatchError struct{ Name string }

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("overload: no matching overload of %q for the given arguments", e.Name)
}

// Resolve scores every candidate in candidates against argTypes and
// returns the unique lowest-scoring one (spec.md §4.7):
//  1. filter to candidates whose arity matches |argTypes|,
//  2. reject any candidate where an argument is not convertible,
//  3. score: +2 per non-trivial conversion, +1 for a discarded-return
//     mismatch,
//  4. pick the unique minimum; ties are ambiguous, empty is NoMatchError.
func Resolve(name string, candidates []*types.Function, argTypes []types.TypeId, checker Checker, discardsReturn bool) (*types.Function, error) {
	type scored struct {
		f     *types.Function
		score int
	}
	var survivors []scored

	for _, f := range candidates {
		if len(f.Args) != len(argTypes) {
			continue
		}
		ok := true
		score := 0
		for i, pt := range f.Args {
			conv := checker.Convertibility(argTypes[i], pt.Type)
			if conv == NotConvertible {
				ok = false
				break
			}
			if conv == NonTrivial {
				score += 2
			}
		}
		if !ok {
			continue
		}
		isVoidResult := f.Result.Type == types.Null
		if discardsReturn != isVoidResult {
			score++
		}
		survivors = append(survivors, scored{f, score})
	}

	if len(survivors) == 0 {
		return nil, &NoMatchError{Name: name}
	}

	best := survivors[0].score
	for _, s := range survivors[1:] {
		if s.score < best {
			best = s.score
		}
	}
	var tied []*types.Function
	for _, s := range survivors {
		if s.score == best {
			tied = append(tied, s.f)
		}
	}
	if len(tied) > 1 {
		return nil, &AmbiguousError{Name: name, Tied: tied}
	}
	return tied[0], nil
}
