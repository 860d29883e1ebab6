package codeflow

import (
	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/types"
)

// speculativeState tracks cache writes whose lifetime is bounded by an
// enclosing speculative region, plus a memo for types computed during
// repeated speculative re-entries of the same region.
type speculativeState struct {
	frames    []*speculativeFrame
	typeCache map[speculativeTypeKey]types.Type
}

type speculativeFrame struct {
	root     ast.Node
	entries  []trackedCacheEntry
	typeKeys []speculativeTypeKey
}

type trackedCacheEntry struct {
	cache  *refCache
	nodeID int
}

type speculativeTypeKey struct {
	node ast.Node
	// expected is the rendered expected type, empty when none: the same
	// expression may evaluate differently under different expectations.
	expected string
}

// EnterSpeculativeRegion opens a speculative region rooted at root.
// Regions nest; each tracks its own writes.
func (e *Engine) EnterSpeculativeRegion(root ast.Node) {
	e.speculative.frames = append(e.speculative.frames, &speculativeFrame{root: root})
}

// LeaveSpeculativeRegion closes the innermost region, removing exactly
// the cache entries and speculative types written inside it.
func (e *Engine) LeaveSpeculativeRegion() {
	frames := e.speculative.frames
	if len(frames) == 0 {
		panic("codeflow: LeaveSpeculativeRegion without a matching enter")
	}
	frame := frames[len(frames)-1]
	e.speculative.frames = frames[:len(frames)-1]

	for _, tracked := range frame.entries {
		delete(tracked.cache.entries, tracked.nodeID)
	}
	for _, key := range frame.typeKeys {
		delete(e.speculative.typeCache, key)
	}
}

// IsSpeculativeMode reports whether a speculative region is open.
func (e *Engine) IsSpeculativeMode() bool {
	return len(e.speculative.frames) > 0
}

// trackSpeculativeEntry registers a fresh flow-cache entry with the
// innermost region so it is rolled back on exit. A no-op outside
// speculative mode.
func (e *Engine) trackSpeculativeEntry(cache *refCache, nodeID int) {
	frames := e.speculative.frames
	if len(frames) == 0 {
		return
	}
	frame := frames[len(frames)-1]
	frame.entries = append(frame.entries, trackedCacheEntry{cache: cache, nodeID: nodeID})
}

// SetSpeculativeType memoises a type computed for node under an
// optional expected type within the current region.
func (e *Engine) SetSpeculativeType(node ast.Node, expected types.Type, t types.Type) {
	frames := e.speculative.frames
	if len(frames) == 0 {
		return
	}
	if e.speculative.typeCache == nil {
		e.speculative.typeCache = make(map[speculativeTypeKey]types.Type)
	}
	key := speculativeTypeKey{node: node, expected: renderExpected(expected)}
	if _, exists := e.speculative.typeCache[key]; !exists {
		frame := frames[len(frames)-1]
		frame.typeKeys = append(frame.typeKeys, key)
	}
	e.speculative.typeCache[key] = t
}

// GetSpeculativeType reads a memoised speculative type.
func (e *Engine) GetSpeculativeType(node ast.Node, expected types.Type) (types.Type, bool) {
	if e.speculative.typeCache == nil {
		return nil, false
	}
	t, ok := e.speculative.typeCache[speculativeTypeKey{node: node, expected: renderExpected(expected)}]
	return t, ok
}

func renderExpected(expected types.Type) string {
	if expected == nil {
		return ""
	}
	return expected.String()
}
