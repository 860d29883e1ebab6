package typeeval

import (
	"math/big"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/codeflow"
	"github.com/funvibe/tycheck/internal/types"
)

// TypeNarrowingCallback builds the function implementing a test
// expression's semantics with respect to reference, or nil when the
// test says nothing about it. Supported shapes: x is None / x is not
// None, isinstance(x, C) with a class or class tuple, truthiness of
// the reference itself, and `not <test>` negation.
func (e *Evaluator) TypeNarrowingCallback(reference, test ast.Expression, isPositive bool) codeflow.NarrowingCallback {
	switch v := test.(type) {
	case *ast.UnaryExpression:
		if v.Operator == "not" {
			return e.TypeNarrowingCallback(reference, v.Operand, !isPositive)
		}
		return nil

	case *ast.BinaryExpression:
		if v.Operator != "is" && v.Operator != "is not" {
			return nil
		}
		if _, isNone := v.Right.(*ast.NoneLiteral); !isNone {
			return nil
		}
		if !ast.MatchesReference(reference, v.Left) {
			return nil
		}
		keepNone := isPositive
		if v.Operator == "is not" {
			keepNone = !keepNone
		}
		return func(t types.Type) types.Type {
			return narrowForIsNone(t, keepNone)
		}

	case *ast.CallExpression:
		fn, ok := v.Function.(*ast.Identifier)
		if !ok || fn.Value != "isinstance" || len(v.Args) != 2 {
			return nil
		}
		if !ast.MatchesReference(reference, v.Args[0]) {
			return nil
		}
		classes := e.resolveClassArg(v.Args[1])
		if len(classes) == 0 {
			return nil
		}
		return func(t types.Type) types.Type {
			return narrowForIsInstance(t, classes, isPositive)
		}

	default:
		if ast.MatchesReference(reference, test) {
			return func(t types.Type) types.Type {
				return narrowForTruthiness(t, isPositive)
			}
		}
		return nil
	}
}

func (e *Evaluator) resolveClassArg(arg ast.Expression) []*types.Class {
	var out []*types.Class
	elements := []ast.Expression{arg}
	if tuple, ok := arg.(*ast.TupleExpression); ok {
		elements = tuple.Elements
	}
	for _, el := range elements {
		t, ok := e.TypeOfExpression(el, codeflow.EvalNoInference)
		if !ok {
			return nil
		}
		cls, ok := t.(*types.Class)
		if !ok {
			return nil
		}
		out = append(out, cls)
	}
	return out
}

func narrowForIsNone(t types.Type, keepNone bool) types.Type {
	var kept []types.Type
	types.ForEachSubtype(t, func(sub types.Type) {
		_, isNone := sub.(types.NoneType)
		if _, isUnknown := sub.(types.Unknown); isUnknown {
			// Unknown admits both outcomes.
			if keepNone {
				kept = append(kept, types.NoneType{})
			} else {
				kept = append(kept, sub)
			}
			return
		}
		if isNone == keepNone {
			kept = append(kept, sub)
		}
	})
	return types.Combine(kept...)
}

func narrowForIsInstance(t types.Type, classes []*types.Class, isPositive bool) types.Type {
	matches := func(cls *types.Class) bool {
		for _, c := range classes {
			if cls.DerivesFrom(c) {
				return true
			}
		}
		return false
	}
	var kept []types.Type
	types.ForEachSubtype(t, func(sub types.Type) {
		if _, isUnknown := sub.(types.Unknown); isUnknown {
			if isPositive {
				for _, c := range classes {
					kept = append(kept, types.InstanceOf(c))
				}
			} else {
				kept = append(kept, sub)
			}
			return
		}
		if _, isNone := sub.(types.NoneType); isNone {
			// None is an instance of none of the tested classes.
			if !isPositive {
				kept = append(kept, sub)
			}
			return
		}
		cls, ok := types.ClassOfInstance(sub)
		if !ok {
			// Not an instance; the test says nothing about it.
			kept = append(kept, sub)
			return
		}
		if matches(cls) == isPositive {
			kept = append(kept, sub)
		}
	})
	return types.Combine(kept...)
}

func narrowForTruthiness(t types.Type, isPositive bool) types.Type {
	var kept []types.Type
	types.ForEachSubtype(t, func(sub types.Type) {
		switch v := sub.(type) {
		case types.NoneType:
			if !isPositive {
				kept = append(kept, sub)
			}
		case *types.Literal:
			if literalTruthy(v) == isPositive {
				kept = append(kept, sub)
			}
		default:
			// Can't decide; keep on both edges.
			kept = append(kept, sub)
		}
	})
	return types.Combine(kept...)
}

func literalTruthy(l *types.Literal) bool {
	switch v := l.Value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case *big.Int:
		return v.Cmp(bigZero) != 0
	}
	return true
}
