package flowgraph

import (
	"testing"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/symbols"
)

func TestBuilderAssignsUniqueIDs(t *testing.T) {
	b := NewBuilder()
	start := b.NewStart()
	a := b.NewAssignment(start, &ast.Identifier{Value: "x"}, nil, symbols.ID(0))
	label := b.NewBranchLabel()

	seen := map[int]bool{}
	for _, n := range []FlowNode{start, a, label} {
		if seen[n.ID()] {
			t.Fatalf("duplicate node id %d", n.ID())
		}
		seen[n.ID()] = true
	}
	if b.NodeCount() != 3 {
		t.Errorf("NodeCount = %d, want 3", b.NodeCount())
	}
}

func TestFlagsPerKind(t *testing.T) {
	b := NewBuilder()
	start := b.NewStart()
	target := &ast.Identifier{Value: "x"}

	del := b.NewUnbind(start, target, nil, symbols.ID(0))
	if del.Flags()&FlagAssignment == 0 || del.Flags()&FlagUnbind == 0 {
		t.Errorf("del should carry assignment and unbind flags")
	}
	if !del.IsUnbind() {
		t.Errorf("IsUnbind should be true")
	}

	cond := b.NewCondition(start, target, nil, true)
	if !cond.IsPositive() || cond.Flags()&FlagTrueCondition == 0 {
		t.Errorf("positive condition flags wrong")
	}
	neg := b.NewNeverCondition(start, target, target, false)
	if neg.IsPositive() || neg.Flags()&FlagFalseNeverCondition == 0 {
		t.Errorf("negative never-condition flags wrong")
	}

	withLabel := b.NewPostContextManagerLabel(nil, true, true)
	if withLabel.Flags()&FlagBranchLabel == 0 || withLabel.Flags()&FlagPostContextManager == 0 {
		t.Errorf("post-context-manager label flags wrong")
	}
}

func TestSingleAntecedent(t *testing.T) {
	b := NewBuilder()
	start := b.NewStart()
	ann := b.NewAnnotation(start)

	if ant, ok := SingleAntecedent(ann); !ok || ant != FlowNode(start) {
		t.Errorf("annotation should expose its antecedent")
	}
	if _, ok := SingleAntecedent(start); ok {
		t.Errorf("start has no antecedent")
	}
	label := b.NewBranchLabel()
	if _, ok := SingleAntecedent(label); ok {
		t.Errorf("labels have multiple antecedents")
	}
}

func TestFinallyGatePairing(t *testing.T) {
	b := NewBuilder()
	start := b.NewStart()
	gate, post := b.NewFinallyGatePair(start, nil)

	if post.Gate != gate {
		t.Fatalf("post node must reference its gate")
	}
	if gate.IsGateClosed() {
		t.Errorf("gates are created open")
	}
	gate.SetGateClosed(true)
	if !gate.IsGateClosed() {
		t.Errorf("gate did not close")
	}
	gate.SetGateClosed(false)
}

func TestValidate(t *testing.T) {
	b := NewBuilder()
	start := b.NewStart()
	ann := b.NewAnnotation(start)
	gate, post := b.NewFinallyGatePair(ann, nil)
	post.Antecedent = gate

	good := []FlowNode{start, ann, gate, post}
	if err := b.Validate(good); err != nil {
		t.Fatalf("valid graph rejected: %v", err)
	}

	empty := b.NewBranchLabel()
	if err := b.Validate([]FlowNode{start, empty}); err == nil {
		t.Errorf("label without antecedents should be rejected")
	}

	orphanPost := &PostFinally{Gate: gate, Antecedent: ann}
	if err := b.Validate([]FlowNode{start, ann, gate, post, orphanPost}); err == nil {
		t.Errorf("a gate with two post nodes should be rejected")
	}
}
