package flowgraph

import (
	"fmt"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/symbols"
)

// Builder allocates flow nodes with stable, unique ids. One builder
// serves one execution scope; ids start at 0 with the Start node by
// convention, though callers may create nodes in any order.
type Builder struct {
	nextID int
	gates  map[*PreFinallyGate]*PostFinally
}

func NewBuilder() *Builder {
	return &Builder{gates: make(map[*PreFinallyGate]*PostFinally)}
}

func (b *Builder) alloc(flags Flags) node {
	n := node{id: b.nextID, flags: flags}
	b.nextID++
	return n
}

// NodeCount returns the number of nodes allocated so far.
func (b *Builder) NodeCount() int { return b.nextID }

func (b *Builder) NewStart() *Start {
	return &Start{node: b.alloc(FlagStart)}
}

func (b *Builder) NewUnreachable() *Unreachable {
	return &Unreachable{node: b.alloc(FlagUnreachable)}
}

func (b *Builder) NewAnnotation(antecedent FlowNode) *Annotation {
	return &Annotation{node: b.alloc(FlagVariableAnnotation), Antecedent: antecedent}
}

func (b *Builder) NewAssignment(antecedent FlowNode, target ast.Expression, stmt ast.Node, symbolID symbols.ID) *Assignment {
	return &Assignment{
		node:       b.alloc(FlagAssignment),
		Antecedent: antecedent,
		Target:     target,
		Statement:  stmt,
		SymbolID:   symbolID,
	}
}

func (b *Builder) NewUnbind(antecedent FlowNode, target ast.Expression, stmt ast.Node, symbolID symbols.ID) *Assignment {
	a := b.NewAssignment(antecedent, target, stmt, symbolID)
	a.flags |= FlagUnbind
	return a
}

func (b *Builder) NewAssignmentAlias(antecedent FlowNode, targetID, aliasID symbols.ID) *AssignmentAlias {
	return &AssignmentAlias{
		node:       b.alloc(FlagAssignmentAlias),
		Antecedent: antecedent,
		TargetID:   targetID,
		AliasID:    aliasID,
	}
}

func (b *Builder) NewCall(antecedent FlowNode, call *ast.CallExpression) *Call {
	return &Call{node: b.alloc(FlagCall), Antecedent: antecedent, Node: call}
}

func (b *Builder) NewCondition(antecedent FlowNode, test, reference ast.Expression, positive bool) *Condition {
	flags := FlagFalseCondition
	if positive {
		flags = FlagTrueCondition
	}
	return &Condition{node: b.alloc(flags), Antecedent: antecedent, Test: test, Reference: reference}
}

// NewNeverCondition creates the condition variant whose test mentions a
// different reference than the one under analysis.
func (b *Builder) NewNeverCondition(antecedent FlowNode, test, reference ast.Expression, positive bool) *Condition {
	flags := FlagFalseNeverCondition
	if positive {
		flags = FlagTrueNeverCondition
	}
	return &Condition{node: b.alloc(flags), Antecedent: antecedent, Test: test, Reference: reference}
}

func (b *Builder) NewBranchLabel() *Label {
	return &Label{node: b.alloc(FlagBranchLabel)}
}

// NewPostContextManagerLabel creates the branch label that models the
// code after a with statement's body raised: reachable only when some
// manager (dis)agrees with activateIfSwallows about swallowing.
func (b *Builder) NewPostContextManagerLabel(managers []ast.Expression, isAsync, activateIfSwallows bool) *Label {
	l := b.NewBranchLabel()
	l.flags |= FlagPostContextManager
	l.ContextManagers = managers
	l.IsAsync = isAsync
	l.ActivateIfSwallows = activateIfSwallows
	return l
}

func (b *Builder) NewLoopLabel() *Label {
	return &Label{node: b.alloc(FlagLoopLabel)}
}

func (b *Builder) NewWildcardImport(antecedent FlowNode, imp *ast.ImportStatement, names []string) *WildcardImport {
	return &WildcardImport{node: b.alloc(FlagWildcardImport), Antecedent: antecedent, Node: imp, Names: names}
}

func (b *Builder) NewExhaustedMatch(antecedent FlowNode, subject ast.Expression, matchNode ast.Node) *ExhaustedMatch {
	return &ExhaustedMatch{node: b.alloc(FlagExhaustedMatch), Antecedent: antecedent, Subject: subject, Node: matchNode}
}

func (b *Builder) NewNarrowForPattern(antecedent FlowNode, subject ast.Expression, pattern ast.Node) *NarrowForPattern {
	return &NarrowForPattern{node: b.alloc(FlagNarrowForPattern), Antecedent: antecedent, Subject: subject, Pattern: pattern}
}

// NewFinallyGatePair creates a pre-finally gate and its paired
// post-finally node. The post node's antecedent (the end of the finally
// suite) is wired by the caller once the suite is built.
func (b *Builder) NewFinallyGatePair(gateAntecedent FlowNode, finallyNode ast.Node) (*PreFinallyGate, *PostFinally) {
	gate := &PreFinallyGate{node: b.alloc(FlagPreFinallyGate), Antecedent: gateAntecedent}
	post := &PostFinally{node: b.alloc(FlagPostFinally), Gate: gate, FinallyNode: finallyNode}
	b.gates[gate] = post
	return gate, post
}

// Validate checks the structural invariants the engine relies on: every
// non-start node has an antecedent, and finally gates come in pairs.
func (b *Builder) Validate(nodes []FlowNode) error {
	seenPost := make(map[*PreFinallyGate]int)
	for _, n := range nodes {
		switch v := n.(type) {
		case *Start, *Unreachable:
		case *Label:
			if len(v.Antecedents) == 0 {
				return fmt.Errorf("label node %d has no antecedents", v.ID())
			}
		case *PostFinally:
			if v.Antecedent == nil {
				return fmt.Errorf("post-finally node %d has no antecedent", v.ID())
			}
			if v.Gate == nil {
				return fmt.Errorf("post-finally node %d has no gate", v.ID())
			}
			seenPost[v.Gate]++
		default:
			if ant, ok := SingleAntecedent(n); !ok || ant == nil {
				return fmt.Errorf("node %d has no antecedent", n.ID())
			}
		}
	}
	for gate, count := range seenPost {
		if count != 1 {
			return fmt.Errorf("gate %d referenced by %d post-finally nodes", gate.ID(), count)
		}
		if _, ok := b.gates[gate]; !ok {
			return fmt.Errorf("gate %d was not allocated by this builder", gate.ID())
		}
	}
	return nil
}
