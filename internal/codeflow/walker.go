package codeflow

import (
	"fmt"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/flowgraph"
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/types"
)

// walker carries the state of one top-level type-at query.
type walker struct {
	analyzer *Analyzer
	engine   *Engine
	eval     Evaluator
	cache    *refCache

	reference   ast.Expression // nil for reachability-style queries
	refKey      string
	subKeys     []string
	typeAtStart types.Type
	options     FlowOptions

	// callCount counts every walker invocation of the query; loop
	// iteration checks it against the engine's per-query budget.
	// loopVisits counts re-entries per loop label.
	callCount  int
	loopVisits map[int]int
}

// walk computes the reference's type at cur, moving backwards along
// antecedents. symID is the symbol id currently standing for the
// reference; alias edges substitute it for the rest of the path.
func (w *walker) walk(cur flowgraph.FlowNode, symID symbols.ID) (*FlowTypeResult, error) {
	w.callCount++
	for {
		if err := w.eval.CheckForCancellation(); err != nil {
			return nil, err
		}
		id := cur.ID()

		if w.cache.pending[id] {
			// The node is on the stack for this reference; hand back an
			// incomplete placeholder so the caller can make progress.
			return &FlowTypeResult{
				Type:         types.Unknown{Incomplete: true},
				IsIncomplete: true,
				Generation:   w.engine.generation,
			}, nil
		}
		if entry, ok := w.cache.entries[id]; ok {
			if !entry.isIncomplete {
				r := entry.result()
				return &r, nil
			}
			if entry.generation == w.engine.generation {
				r := entry.result()
				r.Type = types.RemoveIncompleteUnknowns(r.Type)
				return &r, nil
			}
			// Stale incomplete read: something it depended on refined
			// since; re-enter the node.
		}

		switch v := cur.(type) {
		case *flowgraph.Unreachable:
			return w.setComplete(cur, nil), nil

		case *flowgraph.Annotation:
			cur = v.Antecedent
			continue

		case *flowgraph.AssignmentAlias:
			if v.TargetID == symID {
				symID = v.AliasID
			}
			cur = v.Antecedent
			continue

		case *flowgraph.Start:
			return w.set(cur, w.typeAtStart, w.options.TypeAtStartIncomplete), nil

		case *flowgraph.Call:
			if !w.options.SkipNoReturnAnalysis && w.engine.IsCallNoReturn(v.Node) {
				// Nothing before a never-returning call reaches here.
				return w.setComplete(cur, nil), nil
			}
			cur = v.Antecedent
			continue

		case *flowgraph.Assignment:
			r, handled, err := w.walkAssignment(v, symID)
			if err != nil {
				return nil, err
			}
			if handled {
				return r, nil
			}
			cur = v.Antecedent
			continue

		case *flowgraph.Condition:
			r, handled, err := w.walkCondition(v, symID)
			if err != nil {
				return nil, err
			}
			if handled {
				return r, nil
			}
			cur = v.Antecedent
			continue

		case *flowgraph.Label:
			if v.Flags()&flowgraph.FlagLoopLabel != 0 {
				return w.walkLoop(v, symID)
			}
			r, jump, err := w.walkBranchLabel(v, symID)
			if err != nil {
				return nil, err
			}
			if jump != nil {
				cur = jump
				continue
			}
			return r, nil

		case *flowgraph.WildcardImport:
			if ident, ok := w.reference.(*ast.Identifier); ok && containsName(v.Names, ident.Value) {
				return w.setComplete(cur, w.wildcardImportType(v, ident.Value)), nil
			}
			cur = v.Antecedent
			continue

		case *flowgraph.ExhaustedMatch:
			if t, ok := w.eval.EvalTypeForSubnode(v.Node, nil); ok && types.IsNever(t) {
				// All cases were taken; the fall-through edge is dead.
				return w.setComplete(cur, nil), nil
			}
			cur = v.Antecedent
			continue

		case *flowgraph.NarrowForPattern:
			if w.reference == nil || !ast.MatchesReference(w.reference, v.Subject) {
				cur = v.Antecedent
				continue
			}
			t, ok := w.eval.EvalTypeForSubnode(v.Pattern, nil)
			if !ok {
				cur = v.Antecedent
				continue
			}
			if types.IsNever(t) {
				return w.setComplete(cur, nil), nil
			}
			return w.setComplete(cur, t), nil

		case *flowgraph.PreFinallyGate:
			if v.IsGateClosed() {
				// The result depends on the gate bit, so it is never
				// memoised for this node.
				return &FlowTypeResult{Generation: w.engine.generation}, nil
			}
			cur = v.Antecedent
			continue

		case *flowgraph.PostFinally:
			return w.walkPostFinally(v, symID)
		}

		panic(fmt.Sprintf("codeflow: unknown flow node kind (id %d, flags %#x)", cur.ID(), cur.Flags()))
	}
}

// walkAssignment handles an assignment edge. handled is false when the
// edge does not touch the reference and the caller should continue to
// the antecedent.
func (w *walker) walkAssignment(v *flowgraph.Assignment, symID symbols.ID) (*FlowTypeResult, bool, error) {
	if w.reference == nil {
		return nil, false, nil
	}
	targetKey, targetOK := ast.ReferenceKey(v.Target)

	if targetOK && targetKey == w.refKey && v.SymbolID == symID {
		if v.IsUnbind() {
			return w.setComplete(v, types.Unbound{}), true, nil
		}
		// The evaluator may re-enter the engine while typing the RHS.
		w.cache.pending[v.ID()] = true
		defer delete(w.cache.pending, v.ID())
		t, ok := w.eval.EvalTypeForSubnode(v.Target, func() {
			w.eval.EvalTypesForStatement(v.Statement)
		})
		if !ok {
			// The evaluator refused to type the statement (it sits in
			// code it considers unreachable): no type flows out.
			return w.setComplete(v, nil), true, nil
		}
		if types.IsTypeAliasPlaceholder(t) {
			return w.setComplete(v, nil), true, nil
		}
		if _, isMember := v.Target.(*ast.MemberAccess); isMember && w.eval.IsAsymmetricDescriptorAssignment(v.Statement) {
			return w.setComplete(v, nil), true, nil
		}
		return w.setComplete(v, t), true, nil
	}

	// The assignment rebinds a prefix of the reference (writes a while
	// tracking a.b): any prior narrowing is invalidated.
	if targetOK && ast.IsPartialMatch(w.reference, v.Target) {
		return w.setComplete(v, w.typeAtStart), true, nil
	}

	// base["key"] = ... narrows a structural-mapping base in place.
	if idx, isIdx := v.Target.(*ast.IndexExpression); isIdx && ast.MatchesReference(w.reference, idx.Base) {
		if lit, isStr := idx.Index.(*ast.StringLiteral); isStr {
			w.cache.pending[v.ID()] = true
			defer delete(w.cache.pending, v.ID())
			r, err := w.walk(v.Antecedent, symID)
			if err != nil {
				return nil, true, err
			}
			t := r.Type
			if t != nil {
				var parts []types.Type
				types.ForEachSubtype(t, func(sub types.Type) {
					parts = append(parts, types.NarrowStructMapKey(sub, lit.Value))
				})
				t = types.Combine(parts...)
			}
			return w.set(v, t, r.IsIncomplete), true, nil
		}
	}

	return nil, false, nil
}

// walkCondition handles true/false condition edges, including the
// never-condition variants whose test mentions a different reference.
func (w *walker) walkCondition(v *flowgraph.Condition, symID symbols.ID) (*FlowTypeResult, bool, error) {
	isNeverVariant := v.Flags()&(flowgraph.FlagTrueNeverCondition|flowgraph.FlagFalseNeverCondition) != 0

	if isNeverVariant {
		// The test is about some other reference; the only use here is
		// ruling out edges that collapse that reference to Never. Only
		// declared types participate, to avoid unbounded inference.
		other := v.Reference
		if other == nil {
			return nil, false, nil
		}
		name, ok := ast.BaseName(other)
		if !ok {
			return nil, false, nil
		}
		sym, ok := w.eval.LookupSymbolRecursive(other, name.Value, false)
		if !ok {
			return nil, false, nil
		}
		declared, ok := w.eval.DeclaredTypeOfSymbol(sym)
		if !ok {
			return nil, false, nil
		}
		cb := w.eval.TypeNarrowingCallback(other, v.Test, v.IsPositive())
		if cb == nil {
			return nil, false, nil
		}
		if narrowed := cb(declared); narrowed != nil && types.IsNever(narrowed) {
			return w.setComplete(v, nil), true, nil
		}
		return nil, false, nil
	}

	if w.options.SkipConditionalNarrowing || w.reference == nil {
		return nil, false, nil
	}
	cb := w.eval.TypeNarrowingCallback(w.reference, v.Test, v.IsPositive())
	if cb == nil {
		return nil, false, nil
	}

	w.cache.pending[v.ID()] = true
	defer delete(w.cache.pending, v.ID())
	r, err := w.walk(v.Antecedent, symID)
	if err != nil {
		return nil, true, err
	}
	t := r.Type
	if t != nil {
		t = cb(t)
	}
	return w.set(v, t, r.IsIncomplete), true, nil
}

// walkBranchLabel handles a join point. When the branch cannot affect
// the reference it returns jump, telling the caller to continue at the
// pre-branch antecedent instead.
func (w *walker) walkBranchLabel(v *flowgraph.Label, symID symbols.ID) (*FlowTypeResult, flowgraph.FlowNode, error) {
	if v.Flags()&flowgraph.FlagPostContextManager != 0 {
		swallows := false
		for _, cm := range v.ContextManagers {
			if w.engine.IsExceptionContextManager(cm, v.IsAsync) {
				swallows = true
				break
			}
		}
		if swallows != v.ActivateIfSwallows {
			return w.setComplete(v, nil), nil, nil
		}
	}

	// Most branches do not touch most references: when no sub-key of
	// the reference is in the label's affected set, skip the whole
	// branch and resume at the pre-branch point.
	if w.reference != nil && v.PreBranchAntecedent != nil && !w.branchAffectsReference(v) &&
		w.engine.isReachableFrom(v, v.PreBranchAntecedent, false) {
		return nil, v.PreBranchAntecedent, nil
	}

	w.cache.pending[v.ID()] = true
	defer delete(w.cache.pending, v.ID())

	var parts []types.Type
	incomplete := false
	for _, ant := range v.Antecedents {
		r, err := w.walk(ant, symID)
		if err != nil {
			return nil, nil, err
		}
		if r.IsIncomplete {
			incomplete = true
		}
		if r.Type != nil {
			parts = append(parts, r.Type)
			if w.reference == nil {
				// Reachability-style query: one live antecedent is enough.
				break
			}
		}
	}
	var t types.Type
	if len(parts) > 0 {
		t = types.Combine(parts...)
	}
	return w.set(v, t, incomplete), nil, nil
}

func (w *walker) branchAffectsReference(v *flowgraph.Label) bool {
	if v.AffectedExpressions == nil {
		return true
	}
	for _, key := range w.subKeys {
		if _, ok := v.AffectedExpressions[key]; ok {
			return true
		}
	}
	return false
}

// walkPostFinally models the finally suite's second pass: the walk
// proceeds with the paired gate closed so the normal-path edge cannot
// contribute, and every downstream cache write is speculative.
func (w *walker) walkPostFinally(v *flowgraph.PostFinally, symID symbols.ID) (*FlowTypeResult, error) {
	var r *FlowTypeResult
	var err error
	func() {
		wasClosed := v.Gate.IsGateClosed()
		v.Gate.SetGateClosed(true)
		defer v.Gate.SetGateClosed(wasClosed)
		w.eval.UseSpeculativeMode(v.FinallyNode, func() {
			r, err = w.walk(v.Antecedent, symID)
		})
	}()
	if err != nil {
		return nil, err
	}
	if !r.IsIncomplete {
		return w.setComplete(v, r.Type), nil
	}
	return r, nil
}

func (w *walker) wildcardImportType(v *flowgraph.WildcardImport, name string) types.Type {
	sym, ok := w.eval.LookupSymbolRecursive(v.Node, name, false)
	if !ok {
		return types.Unknown{}
	}
	for i := range sym.Declarations {
		decl := &sym.Declarations[i]
		if decl.Kind == symbols.DeclWildcardImport && decl.Node == ast.Node(v.Node) {
			if t, ok := w.eval.InferredTypeOfDeclaration(sym, decl); ok {
				return t
			}
		}
	}
	if len(sym.Declarations) > 0 {
		if t, ok := w.eval.InferredTypeOfDeclaration(sym, &sym.Declarations[0]); ok {
			return t
		}
	}
	return types.Unknown{}
}

// set writes a cache entry and returns its result. The generation is
// bumped when an entry completes or an incomplete aggregate changes
// materially; unchanged rewrites keep the current generation so stale
// readers are not needlessly re-entered.
func (w *walker) set(n flowgraph.FlowNode, t types.Type, incomplete bool) *FlowTypeResult {
	id := n.ID()
	prev, existed := w.cache.entries[id]
	entry := prev
	if entry == nil {
		entry = &cacheEntry{}
		w.cache.entries[id] = entry
		w.engine.trackSpeculativeEntry(w.cache, id)
	}
	bump := false
	if !incomplete {
		if !existed || prev.isIncomplete {
			bump = true
		}
	} else if !existed || !types.IsSame(entry.typ, t) {
		bump = true
	}
	entry.typ = t
	entry.isIncomplete = incomplete
	if !incomplete {
		entry.incompleteSubtypes = nil
	}
	if bump {
		w.engine.bumpGeneration()
	}
	entry.generation = w.engine.generation
	r := entry.result()
	return &r
}

func (w *walker) setComplete(n flowgraph.FlowNode, t types.Type) *FlowTypeResult {
	return w.set(n, t, false)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
