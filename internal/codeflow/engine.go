package codeflow

import (
	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/config"
	"github.com/funvibe/tycheck/internal/flowgraph"
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/types"
)

// maxNoReturnRecursion bounds nested never-return analyses: a callee's
// analysis may evaluate defaults or decorators that contain calls.
const maxNoReturnRecursion = 3

// maxContextMgrRecursion bounds nested exception-suppression analyses.
const maxContextMgrRecursion = 3

// Engine owns the caches and counters shared by every walker. One
// engine serves one checked scope's worth of queries on a single
// goroutine; nothing here is safe for concurrent use.
type Engine struct {
	eval Evaluator

	maxLoopVisits         int
	maxWalkerCallsPerLoop int

	// generation invalidates stale incomplete cache reads. It bumps
	// when any entry completes or an incomplete aggregate materially
	// changes.
	generation uint64

	noReturnCache map[*ast.CallExpression]bool
	noReturnDepth int

	// noReturnSeed holds verdicts persisted by an earlier run, keyed by
	// CalleeKey; noReturnByKey accumulates this run's settled verdicts
	// under the same keys for export.
	noReturnSeed  map[string]bool
	noReturnByKey map[string]bool

	contextMgrCache map[contextMgrKey]bool
	contextMgrDepth int

	// reachableRecursion guards against unbounded re-entry when a
	// reachability query recursively triggers another for the same node.
	reachableRecursion map[int]bool

	speculative speculativeState
}

type contextMgrKey struct {
	expr    ast.Expression
	isAsync bool
}

// Options tunes the engine's safety valves. Zero values select the
// defaults from the config package.
type Options struct {
	MaxLoopVisits         int
	MaxWalkerCallsPerLoop int
}

// NewEngine creates an engine over the given type evaluator.
func NewEngine(eval Evaluator, opts Options) *Engine {
	if opts.MaxLoopVisits <= 0 {
		opts.MaxLoopVisits = config.MaxLoopVisits
	}
	if opts.MaxWalkerCallsPerLoop <= 0 {
		opts.MaxWalkerCallsPerLoop = config.MaxWalkerCallsPerLoop
	}
	return &Engine{
		eval:                  eval,
		maxLoopVisits:         opts.MaxLoopVisits,
		maxWalkerCallsPerLoop: opts.MaxWalkerCallsPerLoop,
		noReturnCache:         make(map[*ast.CallExpression]bool),
		noReturnSeed:          make(map[string]bool),
		noReturnByKey:         make(map[string]bool),
		contextMgrCache:       make(map[contextMgrKey]bool),
		reachableRecursion:    make(map[int]bool),
	}
}

// Generation returns the current generation counter value.
func (e *Engine) Generation() uint64 { return e.generation }

func (e *Engine) bumpGeneration() { e.generation++ }

// FlowOptions adjusts a single type-at query.
type FlowOptions struct {
	// TypeAtStartIncomplete marks the caller-supplied start type as
	// still-resolving; the result inherits the incompleteness.
	TypeAtStartIncomplete bool

	// SkipNoReturnAnalysis leaves call edges as pass-throughs.
	SkipNoReturnAnalysis bool

	// SkipConditionalNarrowing leaves condition edges as pass-throughs.
	SkipConditionalNarrowing bool
}

// Analyzer answers type-at-point queries for references. It owns the
// per-reference caches; their lifetime is bounded by the analyzer, so a
// caller that needs fresh answers creates a fresh analyzer.
type Analyzer struct {
	engine *Engine
	caches map[cacheKey]*refCache
}

// CreateCodeFlowAnalyzer creates an analyzer bound to this engine.
func (e *Engine) CreateCodeFlowAnalyzer() *Analyzer {
	return &Analyzer{
		engine: e,
		caches: make(map[cacheKey]*refCache),
	}
}

func (a *Analyzer) cacheFor(refKey string, symbolID symbols.ID) *refCache {
	key := cacheKey{refKey: refKey, symbolID: symbolID}
	cache, ok := a.caches[key]
	if !ok {
		cache = newRefCache()
		a.caches[key] = cache
	}
	return cache
}

// GetTypeFromCodeFlow computes the type of reference at flowNode.
//
// A nil reference makes this a reachability-style query: a non-nil
// result type means the point is reachable from the scope start, and
// the type value itself is the start sentinel. typeAtStart is the
// declared or assumed type at the scope's Start edge; symbolID is the
// reference's originating symbol id, or symbols.NoID when the
// reference is not a simple name.
func (a *Analyzer) GetTypeFromCodeFlow(
	flowNode flowgraph.FlowNode,
	reference ast.Expression,
	symbolID symbols.ID,
	typeAtStart types.Type,
	options FlowOptions,
) (FlowTypeResult, error) {
	refKey := ""
	var subKeys []string
	if reference != nil {
		key, ok := ast.ReferenceKey(reference)
		if !ok {
			panic("codeflow: untrackable reference expression " + ast.String(reference))
		}
		refKey = key
		subKeys = ast.SubReferenceKeys(reference)
	}
	w := &walker{
		analyzer:    a,
		engine:      a.engine,
		eval:        a.engine.eval,
		cache:       a.cacheFor(refKey, symbolID),
		reference:   reference,
		refKey:      refKey,
		subKeys:     subKeys,
		typeAtStart: typeAtStart,
		options:     options,
		loopVisits:  make(map[int]int),
	}
	r, err := w.walk(flowNode, symbolID)
	if err != nil {
		return FlowTypeResult{}, err
	}
	return *r, nil
}
