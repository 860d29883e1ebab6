package codeflow

import (
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/types"
)

// FlowTypeResult is the engine's answer for one (reference, flow node)
// query. A nil Type means the path is statically dead for this query:
// no value of the reference can reach the point.
type FlowTypeResult struct {
	Type         types.Type
	IsIncomplete bool

	// Generation stamps incomplete results with the engine generation
	// at which they were computed; stale reads are re-entered.
	Generation uint64
}

// IncompleteSubtype tracks one loop antecedent's contribution while the
// loop header iterates toward a fixed point.
type IncompleteSubtype struct {
	Type            types.Type
	IsIncomplete    bool
	IsPending       bool
	EvaluationCount int
}

// cacheEntry is one per-flow-node slot of a reference cache. Legal
// state transitions: absent -> pending -> incomplete -> complete, with
// incomplete refining in place, and pending -> absent on unwind.
type cacheEntry struct {
	typ          types.Type
	isIncomplete bool
	generation   uint64

	// incompleteSubtypes is non-nil only on loop-header entries.
	incompleteSubtypes []*IncompleteSubtype
}

func (e *cacheEntry) result() FlowTypeResult {
	return FlowTypeResult{Type: e.typ, IsIncomplete: e.isIncomplete, Generation: e.generation}
}

// refCache holds the per-flow-node results for one tracked reference.
// Its lifetime is bounded by the analyzer that owns it.
type refCache struct {
	entries map[int]*cacheEntry
	pending map[int]bool
}

func newRefCache() *refCache {
	return &refCache{
		entries: make(map[int]*cacheEntry),
		pending: make(map[int]bool),
	}
}

// cacheKey selects the per-reference cache within an analyzer.
type cacheKey struct {
	refKey   string
	symbolID symbols.ID
}
