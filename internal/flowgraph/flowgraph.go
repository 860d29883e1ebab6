// Package flowgraph defines the control-flow graph the code-flow engine
// walks. The binder builds one graph per execution scope; the graph is
// immutable shared input afterwards, except for the one-bit finally
// gates, which the engine toggles in a scoped save/restore.
package flowgraph

import (
	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/symbols"
)

// Flags identifies the kind of a flow node plus its kind modifiers.
// The walkers dispatch on the kind bits; the modifier bits (Unbind,
// PostContextManager) refine Assignment and BranchLabel nodes.
type Flags uint32

const (
	FlagUnreachable Flags = 1 << iota
	FlagStart
	FlagAssignment
	FlagUnbind
	FlagCall
	FlagTrueCondition
	FlagFalseCondition
	FlagTrueNeverCondition
	FlagFalseNeverCondition
	FlagBranchLabel
	FlagLoopLabel
	FlagPostContextManager
	FlagWildcardImport
	FlagExhaustedMatch
	FlagNarrowForPattern
	FlagVariableAnnotation
	FlagPreFinallyGate
	FlagPostFinally
	FlagAssignmentAlias
)

// FlowNode is a vertex of the control-flow graph.
type FlowNode interface {
	ID() int
	Flags() Flags
}

type node struct {
	id    int
	flags Flags
}

func (n *node) ID() int      { return n.id }
func (n *node) Flags() Flags { return n.flags }

// Start marks the entry of an execution scope.
type Start struct{ node }

// Unreachable is the dead-code sink.
type Unreachable struct{ node }

// Annotation is a pure variable annotation (x: T) with no assignment.
type Annotation struct {
	node
	Antecedent FlowNode
}

// Assignment binds or (with FlagUnbind) unbinds a target expression.
type Assignment struct {
	node
	Antecedent FlowNode

	// Target is the assignment target expression; Statement is the
	// enclosing statement handed to the evaluator for typing.
	Target    ast.Expression
	Statement ast.Node
	SymbolID  symbols.ID
}

// IsUnbind reports whether this assignment models a del statement.
func (a *Assignment) IsUnbind() bool { return a.flags&FlagUnbind != 0 }

// AssignmentAlias makes the walker treat AliasID as TargetID past this
// point. It is a pass-through optimisation edge.
type AssignmentAlias struct {
	node
	Antecedent FlowNode
	TargetID   symbols.ID
	AliasID    symbols.ID
}

// Call is a call site; a never-returning callee makes everything after
// this node unreachable.
type Call struct {
	node
	Antecedent FlowNode
	Node       *ast.CallExpression
}

// Condition narrows along the true or false edge of a test.
// Reference is the tracked expression the test mentions; for the
// never-condition variants it names a different reference whose
// narrowing may rule the edge out entirely.
type Condition struct {
	node
	Antecedent FlowNode
	Test       ast.Expression
	Reference  ast.Expression
}

// IsPositive reports whether the condition models the true edge.
func (c *Condition) IsPositive() bool {
	return c.flags&(FlagTrueCondition|FlagTrueNeverCondition) != 0
}

// Label is a join point (BranchLabel) or a loop header (LoopLabel).
type Label struct {
	node
	Antecedents []FlowNode

	// PreBranchAntecedent is the node just before the branch diverged;
	// when the tracked reference is unaffected by the whole branch the
	// walker skips straight to it.
	PreBranchAntecedent FlowNode

	// AffectedExpressions holds the reference keys any antecedent
	// branch may touch.
	AffectedExpressions map[string]struct{}

	// Context-manager payload, present with FlagPostContextManager.
	ContextManagers    []ast.Expression
	IsAsync            bool
	ActivateIfSwallows bool
}

// AddAntecedent appends an incoming edge. The binder calls this while
// wiring the graph; the engine never does.
func (l *Label) AddAntecedent(n FlowNode) {
	l.Antecedents = append(l.Antecedents, n)
}

// WildcardImport introduces the names of a `from m import *` statement.
type WildcardImport struct {
	node
	Antecedent FlowNode
	Node       *ast.ImportStatement
	Names      []string
}

// ExhaustedMatch is the point after a match whose cases are exhaustive.
type ExhaustedMatch struct {
	node
	Antecedent FlowNode
	Subject    ast.Expression
	Node       ast.Node
}

// NarrowForPattern narrows the subject through a case clause or the
// match head itself.
type NarrowForPattern struct {
	node
	Antecedent FlowNode
	Subject    ast.Expression
	Pattern    ast.Node
}

// PreFinallyGate guards entry to a finally suite. The binder creates it
// open; the engine closes it while analysing the exceptional path.
type PreFinallyGate struct {
	node
	Antecedent   FlowNode
	isGateClosed bool
}

// IsGateClosed reports the current gate state.
func (g *PreFinallyGate) IsGateClosed() bool { return g.isGateClosed }

// SetGateClosed flips the gate. Only the engine's scoped save/restore
// may call this.
func (g *PreFinallyGate) SetGateClosed(closed bool) { g.isGateClosed = closed }

// PostFinally marks the end of a finally suite and references its gate.
type PostFinally struct {
	node
	Antecedent FlowNode
	Gate       *PreFinallyGate

	// FinallyNode is the suite's AST handle, the root for speculative
	// evaluation of the exceptional pass.
	FinallyNode ast.Node
}

// SingleAntecedent returns the unique predecessor of pass-through node
// kinds. Labels, Start, and Unreachable return false.
func SingleAntecedent(n FlowNode) (FlowNode, bool) {
	switch v := n.(type) {
	case *Annotation:
		return v.Antecedent, true
	case *Assignment:
		return v.Antecedent, true
	case *AssignmentAlias:
		return v.Antecedent, true
	case *Call:
		return v.Antecedent, true
	case *Condition:
		return v.Antecedent, true
	case *WildcardImport:
		return v.Antecedent, true
	case *ExhaustedMatch:
		return v.Antecedent, true
	case *NarrowForPattern:
		return v.Antecedent, true
	case *PreFinallyGate:
		return v.Antecedent, true
	case *PostFinally:
		return v.Antecedent, true
	}
	return nil, false
}
