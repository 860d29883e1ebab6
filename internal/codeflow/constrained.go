package codeflow

import (
	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/config"
	"github.com/funvibe/tycheck/internal/flowgraph"
	"github.com/funvibe/tycheck/internal/types"
)

// NarrowConstrainedTypeVar walks backwards from flowNode filtering the
// type variable's constraint set through isinstance guards. It returns
// the single surviving constraint, or ok=false when zero or more than
// one remain, or when any constraint is not a class instance.
func (e *Engine) NarrowConstrainedTypeVar(flowNode flowgraph.FlowNode, typeVar *types.TypeVar) (types.Type, bool) {
	if typeVar == nil || len(typeVar.Constraints) == 0 {
		return nil, false
	}
	for _, c := range typeVar.Constraints {
		if _, ok := types.ClassOfInstance(c); !ok {
			return nil, false
		}
	}

	visited := make(map[int]bool)
	remaining := e.constrainedWalk(flowNode, typeVar, visited, 0)

	count := 0
	var single types.Type
	for i, keep := range remaining {
		if keep {
			count++
			single = typeVar.Constraints[i]
		}
	}
	if count == 1 {
		return single, true
	}
	return nil, false
}

func (e *Engine) constrainedWalk(cur flowgraph.FlowNode, typeVar *types.TypeVar, visited map[int]bool, depth int) []bool {
	full := func() []bool {
		set := make([]bool, len(typeVar.Constraints))
		for i := range set {
			set[i] = true
		}
		return set
	}

	for {
		if depth > config.MaxConstrainedWalkDepth {
			return full()
		}
		if visited[cur.ID()] {
			// Revisits (loop back-edges) contribute no narrowing.
			return full()
		}
		visited[cur.ID()] = true

		switch v := cur.(type) {
		case *flowgraph.Start, *flowgraph.Unreachable:
			return full()

		case *flowgraph.Label:
			union := make([]bool, len(typeVar.Constraints))
			for _, ant := range v.Antecedents {
				set := e.constrainedWalk(ant, typeVar, visited, depth+1)
				for i := range union {
					union[i] = union[i] || set[i]
				}
			}
			return union

		case *flowgraph.Condition:
			if v.Flags()&(flowgraph.FlagTrueCondition|flowgraph.FlagFalseCondition) != 0 {
				if testClass, ok := e.isInstanceGuardOnTypeVar(v.Test, typeVar); ok {
					set := e.constrainedWalk(v.Antecedent, typeVar, visited, depth+1)
					positive := v.IsPositive()
					for i, constraint := range typeVar.Constraints {
						cls, _ := types.ClassOfInstance(constraint)
						match := sameGenericClass(cls, testClass)
						if positive {
							set[i] = set[i] && match
						} else {
							set[i] = set[i] && !match
						}
					}
					return set
				}
			}
			cur = v.Antecedent
			continue

		default:
			ant, ok := flowgraph.SingleAntecedent(cur)
			if !ok {
				return full()
			}
			cur = ant
			continue
		}
	}
}

// isInstanceGuardOnTypeVar recognises a test of the literal shape
// isinstance(X, C) where X's type is compatible with the constrained
// type variable and C resolves to a class.
func (e *Engine) isInstanceGuardOnTypeVar(test ast.Expression, typeVar *types.TypeVar) (*types.Class, bool) {
	call, ok := test.(*ast.CallExpression)
	if !ok || len(call.Args) != 2 {
		return nil, false
	}
	fn, ok := call.Function.(*ast.Identifier)
	if !ok || fn.Value != "isinstance" {
		return nil, false
	}

	argType, ok := e.eval.TypeOfExpression(call.Args[0], EvalNoInference)
	if !ok || argType == nil {
		return nil, false
	}
	compatible := true
	types.ForEachSubtype(argType, func(sub types.Type) {
		tv, isTV := sub.(*types.TypeVar)
		if !isTV || tv.Name != typeVar.Name {
			compatible = false
		}
	})
	if !compatible {
		return nil, false
	}

	classType, ok := e.eval.TypeOfExpression(call.Args[1], EvalNoInference)
	if !ok {
		return nil, false
	}
	cls, ok := classType.(*types.Class)
	if !ok {
		return nil, false
	}
	return cls, true
}

func sameGenericClass(a, b *types.Class) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || a.Name == b.Name
}
