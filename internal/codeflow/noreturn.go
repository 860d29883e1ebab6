package codeflow

import (
	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/types"
)

// IsCallNoReturn decides, best-effort, whether a call cannot return
// normally. Only declared types participate; full inference here would
// make evaluation circular. Verdicts are cached per call node; calls
// with a stable callee key also consult and feed the persistable
// verdict maps (SeedNoReturnVerdicts / ExportNoReturnVerdicts).
func (e *Engine) IsCallNoReturn(node *ast.CallExpression) bool {
	if node == nil {
		return false
	}
	if v, ok := e.noReturnCache[node]; ok {
		return v
	}
	key, hasKey := e.CalleeKey(node)
	if hasKey {
		if v, ok := e.noReturnSeed[key]; ok {
			e.noReturnCache[node] = v
			e.noReturnByKey[key] = v
			return v
		}
	}
	if e.noReturnDepth >= maxNoReturnRecursion {
		return false
	}
	e.noReturnDepth++
	defer func() { e.noReturnDepth-- }()

	// Pre-seed against infinite descent: a recursive re-query of the
	// same call during its own analysis assumes it returns.
	e.noReturnCache[node] = false
	result := e.computeCallNoReturn(node)
	e.noReturnCache[node] = result
	if hasKey {
		e.noReturnByKey[key] = result
	}
	return result
}

// CalleeKey derives a stable identity for the call's declared callee,
// usable to persist never-return verdicts between runs. ok is false
// when the callee has no declared type to derive a key from.
func (e *Engine) CalleeKey(node *ast.CallExpression) (string, bool) {
	if node == nil {
		return "", false
	}
	t, ok := e.eval.TypeOfExpression(node.Function, EvalNoInference)
	if !ok || t == nil {
		return "", false
	}
	if _, isUnknown := t.(types.Unknown); isUnknown {
		return "", false
	}
	key := ast.String(node.Function) + "#" + t.String()
	if node.InAwait {
		// An awaited async callee answers differently than the bare
		// coroutine constructor.
		key += "#await"
	}
	return key, true
}

// SeedNoReturnVerdicts merges verdicts persisted by an earlier run,
// keyed by CalleeKey. Seeded verdicts are trusted over re-analysis.
func (e *Engine) SeedNoReturnVerdicts(verdicts map[string]bool) {
	for key, v := range verdicts {
		e.noReturnSeed[key] = v
	}
}

// ExportNoReturnVerdicts returns the verdicts this engine has settled
// for callees with a stable key, for persistence between runs.
func (e *Engine) ExportNoReturnVerdicts() map[string]bool {
	out := make(map[string]bool, len(e.noReturnByKey))
	for key, v := range e.noReturnByKey {
		out[key] = v
	}
	return out
}

func (e *Engine) computeCallNoReturn(node *ast.CallExpression) bool {
	calleeType, ok := e.eval.TypeOfExpression(node.Function, EvalNoInference)
	if !ok || calleeType == nil {
		return false
	}

	examined := 0
	allNoReturn := true
	types.ForEachSubtype(calleeType, func(sub types.Type) {
		switch v := sub.(type) {
		case *types.Class:
			examined++
			if v.MetaclassCall && v.Instantiable {
				// A user-defined metaclass __call__ may do anything;
				// assume the construction returns.
				allNoReturn = false
				return
			}
			ctor, found := v.LookupMethod("__init__")
			if !found {
				ctor, found = v.LookupMethod("__new__")
			}
			if !found || !e.callableNoReturn(ctor, node) {
				allNoReturn = false
			}
		case *types.Instance:
			examined++
			callMethod, found := v.Class.LookupMethod("__call__")
			if !found || !e.callableNoReturn(callMethod, node) {
				allNoReturn = false
			}
		case *types.Function:
			examined++
			if !e.functionNoReturn(v, node.InAwait) {
				allNoReturn = false
			}
		case *types.Overloaded:
			examined++
			if !e.overloadNoReturn(v, node) {
				allNoReturn = false
			}
		default:
			examined++
			allNoReturn = false
		}
	})
	return examined > 0 && allNoReturn
}

func (e *Engine) callableNoReturn(t types.Type, node *ast.CallExpression) bool {
	switch v := t.(type) {
	case *types.Function:
		return e.functionNoReturn(v, node.InAwait)
	case *types.Overloaded:
		return e.overloadNoReturn(v, node)
	}
	return false
}

func (e *Engine) overloadNoReturn(o *types.Overloaded, node *ast.CallExpression) bool {
	all := true
	any := false
	for _, f := range o.Overloads {
		if e.functionNoReturn(f, node.InAwait) {
			any = true
		} else {
			all = false
		}
	}
	if all {
		return len(o.Overloads) > 0
	}
	if !any {
		return false
	}
	// Mixed overloads: resolve against the actual arguments and let
	// the matching overload decide.
	for _, f := range o.Overloads {
		if len(f.Params) == len(node.Args) {
			return e.functionNoReturn(f, node.InAwait)
		}
	}
	return false
}

func (e *Engine) functionNoReturn(f *types.Function, isAwaited bool) bool {
	if f == nil {
		return false
	}
	if f.DeclaredReturn != nil {
		if !types.IsNever(f.DeclaredReturn) {
			return false
		}
		if f.IsAsync {
			// An async callee produces a coroutine; only awaiting it
			// actually reaches the Never result.
			return isAwaited
		}
		return true
	}

	// Opt-in inference for functions without a declared return type.
	if f.IsGenerator || f.IsAbstract || f.FromStub {
		return false
	}
	if f.RaisesNotImplementedOnly {
		// An abstract-by-convention body; callers are expected to
		// override it.
		return false
	}
	if body, ok := f.BodyNode.(ast.Node); ok && body != nil {
		return !e.eval.IsAfterNodeReachable(body)
	}
	return false
}
