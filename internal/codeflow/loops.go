package codeflow

import (
	"github.com/funvibe/tycheck/internal/flowgraph"
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/types"
)

// walkLoop iterates a loop header toward a fixed point. Antecedent 0 is
// the edge feeding from outside the loop by binder convention; the
// others loop back and may recurse into this very node.
func (w *walker) walkLoop(label *flowgraph.Label, symID symbols.ID) (*FlowTypeResult, error) {
	id := label.ID()

	entry, ok := w.cache.entries[id]
	if !ok || entry.incompleteSubtypes == nil {
		subs := make([]*IncompleteSubtype, len(label.Antecedents))
		for i := range subs {
			subs[i] = &IncompleteSubtype{IsIncomplete: true}
		}
		entry = &cacheEntry{isIncomplete: true, generation: w.engine.generation, incompleteSubtypes: subs}
		w.cache.entries[id] = entry
		w.engine.trackSpeculativeEntry(w.cache, id)
	}

	w.loopVisits[id]++
	forceComplete := w.loopVisits[id] > w.engine.maxLoopVisits

	sawPending := false
	attempts := 0
	maxAttempts := len(label.Antecedents)

	for !forceComplete {
		anyIncomplete := false

		for i, ant := range label.Antecedents {
			sub := entry.incompleteSubtypes[i]
			if sub.IsPending {
				// Another frame on the stack is resolving this edge.
				sawPending = true
				continue
			}
			if sub.EvaluationCount > 0 && !sub.IsIncomplete {
				continue
			}
			if w.callCount > w.engine.maxWalkerCallsPerLoop {
				// Pathological recursion: trade precision for
				// termination by declaring the answer complete.
				forceComplete = true
				break
			}

			sub.IsPending = true
			r, err := w.walk(ant, symID)
			if err != nil {
				sub.IsPending = false
				return nil, err
			}
			sub.IsPending = false

			newType := r.Type
			if newType == nil && r.IsIncomplete {
				// Keep the cycle moving: a missing type on a
				// still-resolving edge becomes the placeholder.
				newType = types.Unknown{Incomplete: true}
			}
			if !types.IsSame(sub.Type, newType) || sub.IsIncomplete != r.IsIncomplete {
				w.engine.bumpGeneration()
			}
			sub.Type = newType
			sub.IsIncomplete = r.IsIncomplete
			sub.EvaluationCount++
			if r.IsIncomplete {
				anyIncomplete = true
			}
		}

		aggregate := loopAggregate(entry)
		if !types.IsSame(entry.typ, aggregate) {
			w.engine.bumpGeneration()
		}
		entry.typ = aggregate
		entry.generation = w.engine.generation

		if w.reference == nil && aggregate != nil {
			// Reachability-style query: the header is reachable the
			// moment any edge resolves to a live type.
			return &FlowTypeResult{Type: aggregate, IsIncomplete: true, Generation: entry.generation}, nil
		}

		attempts++
		if !anyIncomplete || attempts >= maxAttempts {
			break
		}
	}

	aggregate := entry.typ

	if forceComplete {
		// The first antecedent feeds from outside the loop and
		// dominates the final incompleteness decision.
		first := entry.incompleteSubtypes[0]
		return w.set(label, types.RemoveIncompleteUnknowns(aggregate), first.IsIncomplete), nil
	}

	for _, sub := range entry.incompleteSubtypes {
		if sub.IsPending {
			sawPending = true
		}
	}
	if !sawPending && !types.ContainsIncompleteUnknown(aggregate) {
		// The fixed point is real; completing bumps the generation so
		// callers holding stale incomplete reads re-read.
		return w.set(label, aggregate, false), nil
	}

	// An outer frame will finish the job; report progress so far
	// without overwriting the entry.
	return &FlowTypeResult{Type: aggregate, IsIncomplete: true, Generation: entry.generation}, nil
}

func loopAggregate(entry *cacheEntry) types.Type {
	var parts []types.Type
	for _, sub := range entry.incompleteSubtypes {
		if sub.EvaluationCount > 0 && sub.Type != nil {
			parts = append(parts, sub.Type)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return types.Combine(parts...)
}
