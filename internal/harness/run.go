package harness

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/codeflow"
	"github.com/funvibe/tycheck/internal/flowgraph"
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/types"
)

// QueryResult is one query's outcome in presentable form.
type QueryResult struct {
	Kind        string
	Description string

	// typeAt
	Type       string
	Incomplete bool

	// reachable
	Reachable *bool

	// narrowTypeVar
	Constraint string
}

// Report is the outcome of one scenario run. RunID identifies the run
// in logs and snapshots that aggregate several scenarios.
type Report struct {
	RunID   uuid.UUID
	Name    string
	Results []QueryResult
}

// Render formats the report without its run id, for snapshots and
// other deterministic consumers.
func (r *Report) Render() string {
	out := "scenario: " + r.Name + "\n"
	for _, res := range r.Results {
		switch res.Kind {
		case "typeAt":
			out += fmt.Sprintf("  %s: %s", res.Description, res.Type)
			if res.Incomplete {
				out += " (incomplete)"
			}
			out += "\n"
		case "reachable":
			out += fmt.Sprintf("  %s: %v\n", res.Description, *res.Reachable)
		case "narrowTypeVar":
			out += fmt.Sprintf("  %s: %s\n", res.Description, res.Constraint)
		}
	}
	return out
}

// Run executes every query in the scenario, in order, against a fresh
// analyzer per typeAt query.
func (s *Scenario) Run() (*Report, error) {
	report := &Report{RunID: uuid.New(), Name: s.file.Name}
	for i := range s.file.Queries {
		result, err := s.runQuery(&s.file.Queries[i])
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i+1, err)
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

func (s *Scenario) runQuery(q *QuerySpec) (*QueryResult, error) {
	node, ok := s.nodes[q.Node]
	if !ok {
		return nil, fmt.Errorf("unknown flow node %q", q.Node)
	}

	switch q.Kind {
	case "typeAt":
		return s.runTypeAt(q, node)

	case "reachable":
		var source flowgraph.FlowNode
		if q.Source != "" {
			source, ok = s.nodes[q.Source]
			if !ok {
				return nil, fmt.Errorf("unknown source node %q", q.Source)
			}
		}
		reachable := s.engine.IsFlowNodeReachable(node, source, q.IgnoreNoReturn)
		return &QueryResult{
			Kind:        q.Kind,
			Description: fmt.Sprintf("reachable(%s)", q.Node),
			Reachable:   &reachable,
		}, nil

	case "narrowTypeVar":
		constraints := make([]types.Type, 0, len(q.Constraints))
		for _, c := range q.Constraints {
			t, err := s.parseType(c)
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, t)
		}
		typeVar := &types.TypeVar{Name: q.TypeVar, Constraints: constraints}
		result := &QueryResult{
			Kind:        q.Kind,
			Description: fmt.Sprintf("narrow %s at %s", q.TypeVar, q.Node),
			Constraint:  "<no narrowing>",
		}
		if narrowed, ok := s.engine.NarrowConstrainedTypeVar(node, typeVar); ok {
			result.Constraint = narrowed.String()
		}
		return result, nil
	}

	return nil, fmt.Errorf("unknown query kind %q", q.Kind)
}

func (s *Scenario) runTypeAt(q *QuerySpec, node flowgraph.FlowNode) (*QueryResult, error) {
	var reference ast.Expression
	symbolID := symbols.NoID
	if q.Reference != "" {
		expr, err := s.parseExpr(q.Reference)
		if err != nil {
			return nil, err
		}
		reference = expr
		symbolID = s.symbolIDForTarget(expr)
	}

	startType := types.Type(types.Unknown{})
	if q.StartType != "" {
		t, err := s.parseType(q.StartType)
		if err != nil {
			return nil, err
		}
		startType = t
	}

	analyzer := s.engine.CreateCodeFlowAnalyzer()
	result, err := analyzer.GetTypeFromCodeFlow(node, reference, symbolID, startType, codeflow.FlowOptions{
		TypeAtStartIncomplete:    q.StartIncomplete,
		SkipNoReturnAnalysis:     q.SkipNoReturn,
		SkipConditionalNarrowing: q.SkipNarrowing,
	})
	if err != nil {
		return nil, err
	}

	rendered := "<no type>"
	if result.Type != nil {
		rendered = result.Type.String()
	}
	return &QueryResult{
		Kind:        q.Kind,
		Description: fmt.Sprintf("type of %s at %s", q.Reference, q.Node),
		Type:        rendered,
		Incomplete:  result.IsIncomplete,
	}, nil
}
