package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/flowgraph"
)

// DescribeGraph renders the scenario's flow nodes, one line per node in
// id order, for the CLI's graph command and for snapshots.
func (s *Scenario) DescribeGraph() string {
	names := make(map[int]string, len(s.nodes))
	ids := make([]int, 0, len(s.nodes))
	byID := make(map[int]flowgraph.FlowNode, len(s.nodes))
	for name, node := range s.nodes {
		// Gate-created post nodes are registered twice; prefer the
		// explicit name.
		if existing, ok := names[node.ID()]; ok && !strings.HasSuffix(existing, ".post") {
			continue
		}
		names[node.ID()] = name
		byID[node.ID()] = node
	}
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	for _, id := range ids {
		node := byID[id]
		fmt.Fprintf(&b, "%3d %-14s %s\n", id, nodeKind(node), describeNode(node, names))
	}
	return b.String()
}

func nodeKind(n flowgraph.FlowNode) string {
	switch v := n.(type) {
	case *flowgraph.Start:
		return "start"
	case *flowgraph.Unreachable:
		return "unreachable"
	case *flowgraph.Annotation:
		return "annotation"
	case *flowgraph.Assignment:
		if v.IsUnbind() {
			return "del"
		}
		return "assign"
	case *flowgraph.AssignmentAlias:
		return "alias"
	case *flowgraph.Call:
		return "call"
	case *flowgraph.Condition:
		if v.Flags()&(flowgraph.FlagTrueNeverCondition|flowgraph.FlagFalseNeverCondition) != 0 {
			return "never-cond"
		}
		return "condition"
	case *flowgraph.Label:
		if v.Flags()&flowgraph.FlagLoopLabel != 0 {
			return "loop"
		}
		if v.Flags()&flowgraph.FlagPostContextManager != 0 {
			return "post-with"
		}
		return "branch"
	case *flowgraph.WildcardImport:
		return "wildcard"
	case *flowgraph.ExhaustedMatch:
		return "match-end"
	case *flowgraph.NarrowForPattern:
		return "pattern"
	case *flowgraph.PreFinallyGate:
		return "pre-finally"
	case *flowgraph.PostFinally:
		return "post-finally"
	}
	return "?"
}

func describeNode(n flowgraph.FlowNode, names map[int]string) string {
	ref := func(node flowgraph.FlowNode) string {
		if node == nil {
			return "?"
		}
		if name, ok := names[node.ID()]; ok {
			return name
		}
		return fmt.Sprintf("#%d", node.ID())
	}

	switch v := n.(type) {
	case *flowgraph.Assignment:
		op := "="
		if v.IsUnbind() {
			op = "del"
		}
		if stmt, ok := v.Statement.(*ast.AssignmentStatement); ok && !v.IsUnbind() {
			return fmt.Sprintf("%s %s %s  <- %s", ast.String(v.Target), op, ast.String(stmt.Value), ref(v.Antecedent))
		}
		return fmt.Sprintf("%s %s  <- %s", op, ast.String(v.Target), ref(v.Antecedent))
	case *flowgraph.Call:
		return fmt.Sprintf("%s  <- %s", ast.String(v.Node), ref(v.Antecedent))
	case *flowgraph.Condition:
		edge := "false"
		if v.IsPositive() {
			edge = "true"
		}
		return fmt.Sprintf("[%s] %s  <- %s", edge, ast.String(v.Test), ref(v.Antecedent))
	case *flowgraph.Label:
		parts := make([]string, len(v.Antecedents))
		for i, ant := range v.Antecedents {
			parts[i] = ref(ant)
		}
		out := "<- " + strings.Join(parts, ", ")
		if v.PreBranchAntecedent != nil {
			out += "  pre=" + ref(v.PreBranchAntecedent)
		}
		if len(v.AffectedExpressions) > 0 {
			keys := make([]string, 0, len(v.AffectedExpressions))
			for k := range v.AffectedExpressions {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out += "  affects={" + strings.Join(keys, ", ") + "}"
		}
		return out
	case *flowgraph.WildcardImport:
		return fmt.Sprintf("* -> {%s}  <- %s", strings.Join(v.Names, ", "), ref(v.Antecedent))
	case *flowgraph.PreFinallyGate:
		return fmt.Sprintf("<- %s", ref(v.Antecedent))
	case *flowgraph.PostFinally:
		return fmt.Sprintf("gate=%s  <- %s", ref(v.Gate), ref(v.Antecedent))
	default:
		if ant, ok := flowgraph.SingleAntecedent(n); ok {
			return "<- " + ref(ant)
		}
		return ""
	}
}
