package codeflow

import (
	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/types"
)

// IsExceptionContextManager decides, best-effort, whether a context
// manager expression's exit hook may swallow an in-flight exception:
// the declared return of __exit__ (or __aexit__ when async) is a bool
// instance whose literal value is unspecified or True. Verdicts are
// cached per expression.
func (e *Engine) IsExceptionContextManager(expr ast.Expression, isAsync bool) bool {
	if expr == nil {
		return false
	}
	key := contextMgrKey{expr: expr, isAsync: isAsync}
	if v, ok := e.contextMgrCache[key]; ok {
		return v
	}
	if e.contextMgrDepth >= maxContextMgrRecursion {
		return false
	}
	e.contextMgrDepth++
	defer func() { e.contextMgrDepth-- }()

	result := e.computeExceptionContextManager(expr, isAsync)
	e.contextMgrCache[key] = result
	return result
}

func (e *Engine) computeExceptionContextManager(expr ast.Expression, isAsync bool) bool {
	t, ok := e.eval.TypeOfExpression(expr, EvalNoInference)
	if !ok || t == nil {
		return false
	}

	exitName := "__exit__"
	if isAsync {
		exitName = "__aexit__"
	}

	swallows := false
	types.ForEachSubtype(t, func(sub types.Type) {
		if swallows {
			return
		}
		inst := instanceForm(sub)
		if inst == nil {
			return
		}
		method, found := types.LookupMember(inst, exitName)
		if !found {
			return
		}
		switch m := method.(type) {
		case *types.Function:
			swallows = exitReturnSwallows(m.DeclaredReturn)
		case *types.Overloaded:
			for _, f := range m.Overloads {
				if exitReturnSwallows(f.DeclaredReturn) {
					swallows = true
					break
				}
			}
		}
	})
	return swallows
}

// instanceForm maps a manager expression's type to the instance the
// exit hook is looked up on. An instantiable class means the manager
// is constructed at the with statement.
func instanceForm(t types.Type) types.Type {
	switch v := t.(type) {
	case *types.Instance:
		return v
	case *types.Literal:
		return v
	case *types.Class:
		if v.Instantiable {
			return types.InstanceOf(v)
		}
	case *types.Function:
		if v.DeclaredReturn != nil {
			return instanceForm(v.DeclaredReturn)
		}
	}
	return nil
}

func exitReturnSwallows(ret types.Type) bool {
	switch v := ret.(type) {
	case *types.Instance:
		return v.Class != nil && v.Class.Name == "bool"
	case *types.Literal:
		if v.Class == nil || v.Class.Name != "bool" {
			return false
		}
		value, ok := v.Value.(bool)
		return ok && value
	}
	return false
}
