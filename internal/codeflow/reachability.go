package codeflow

import (
	"fmt"

	"github.com/funvibe/tycheck/internal/config"
	"github.com/funvibe/tycheck/internal/flowgraph"
)

// IsFlowNodeReachable reports whether node is reachable from the scope
// start. A non-nil source restricts the question to "reachable from
// source". ignoreNoReturn makes call edges unconditional pass-throughs.
func (e *Engine) IsFlowNodeReachable(node flowgraph.FlowNode, source flowgraph.FlowNode, ignoreNoReturn bool) bool {
	return e.isReachableFrom(node, source, ignoreNoReturn)
}

func (e *Engine) isReachableFrom(node flowgraph.FlowNode, source flowgraph.FlowNode, ignoreNoReturn bool) bool {
	// A reachability query can recursively trigger another for the same
	// node (never-return analysis evaluates types, which may consult
	// code flow again). Treat the inner question as unreachable; the
	// outer frame owns the answer.
	if e.reachableRecursion[node.ID()] {
		return false
	}
	e.reachableRecursion[node.ID()] = true
	defer delete(e.reachableRecursion, node.ID())

	visited := make(map[int]bool)
	return e.reachableWalk(node, source, ignoreNoReturn, visited, 0)
}

func (e *Engine) reachableWalk(cur flowgraph.FlowNode, source flowgraph.FlowNode, ignoreNoReturn bool, visited map[int]bool, depth int) bool {
	for {
		if depth > config.MaxReachabilityDepth {
			// Conservative at the limit.
			return true
		}
		id := cur.ID()
		if visited[id] {
			// Each node contributes at most once per query.
			return false
		}
		visited[id] = true

		if source != nil && id == source.ID() {
			return true
		}

		switch v := cur.(type) {
		case *flowgraph.Unreachable:
			return false

		case *flowgraph.Start:
			return source == nil

		case *flowgraph.Call:
			if !ignoreNoReturn && e.IsCallNoReturn(v.Node) {
				return false
			}
			cur = v.Antecedent
			continue

		case *flowgraph.Label:
			if v.Flags()&flowgraph.FlagPostContextManager != 0 {
				swallows := false
				for _, cm := range v.ContextManagers {
					if e.IsExceptionContextManager(cm, v.IsAsync) {
						swallows = true
						break
					}
				}
				if swallows != v.ActivateIfSwallows {
					return false
				}
			}
			for _, ant := range v.Antecedents {
				if e.reachableWalk(ant, source, ignoreNoReturn, visited, depth+1) {
					return true
				}
			}
			return false

		case *flowgraph.PreFinallyGate:
			if v.IsGateClosed() {
				return false
			}
			cur = v.Antecedent
			continue

		case *flowgraph.PostFinally:
			wasClosed := v.Gate.IsGateClosed()
			v.Gate.SetGateClosed(true)
			reachable := e.reachableWalk(v.Antecedent, source, ignoreNoReturn, visited, depth+1)
			v.Gate.SetGateClosed(wasClosed)
			return reachable

		default:
			ant, ok := flowgraph.SingleAntecedent(cur)
			if !ok {
				panic(fmt.Sprintf("codeflow: unknown flow node kind (id %d, flags %#x)", cur.ID(), cur.Flags()))
			}
			cur = ant
			continue
		}
	}
}
