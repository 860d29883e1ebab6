package codeflow_test

import (
	"testing"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/types"
)

func TestReachabilityBasics(t *testing.T) {
	e := newEnv(t)
	e.table.Define("x")

	start := e.b.NewStart()
	a := e.assign(start, "x", intLit(1))
	dead := e.b.NewUnreachable()
	deadAnn := e.b.NewAnnotation(dead)

	if !e.engine.IsFlowNodeReachable(a, nil, false) {
		t.Errorf("assignment after start should be reachable")
	}
	if e.engine.IsFlowNodeReachable(deadAnn, nil, false) {
		t.Errorf("node behind the unreachable sink should not be reachable")
	}
}

func TestReachabilityWithSource(t *testing.T) {
	e := newEnv(t)
	e.table.Define("x")
	e.table.Define("y")

	start := e.b.NewStart()
	ax := e.assign(start, "x", intLit(1))
	ay := e.assign(ax, "y", intLit(2))

	if !e.engine.IsFlowNodeReachable(ay, ax, false) {
		t.Errorf("ay should be reachable from ax")
	}
	if e.engine.IsFlowNodeReachable(ax, ay, false) {
		t.Errorf("ax is upstream of ay; not reachable from it")
	}
	// With a source, passing through Start without meeting it fails.
	if e.engine.IsFlowNodeReachable(ax, ay, true) {
		t.Errorf("ignoreNoReturn must not change source semantics")
	}
}

func TestReachabilityThroughNoReturnCall(t *testing.T) {
	e := newEnv(t)
	e.table.DefineTyped("exit", &types.Function{Name: "exit", DeclaredReturn: types.Never{}})

	start := e.b.NewStart()
	call := e.b.NewCall(start, &ast.CallExpression{Function: ident("exit")})
	after := e.b.NewAnnotation(call)

	if e.engine.IsFlowNodeReachable(after, nil, false) {
		t.Errorf("code after exit() should be unreachable")
	}
	if !e.engine.IsFlowNodeReachable(after, nil, true) {
		t.Errorf("ignoreNoReturn should pass through the call")
	}
}

func TestReachabilityBranchesAndLoops(t *testing.T) {
	e := newEnv(t)
	e.table.Define("x")

	start := e.b.NewStart()
	dead := e.b.NewUnreachable()
	label := e.b.NewBranchLabel()
	label.AddAntecedent(dead)
	label.AddAntecedent(start)

	if !e.engine.IsFlowNodeReachable(label, nil, false) {
		t.Errorf("one live antecedent makes the label reachable")
	}

	loop := e.b.NewLoopLabel()
	body := e.assign(loop, "x", intLit(1))
	loop.AddAntecedent(start)
	loop.AddAntecedent(body)
	if !e.engine.IsFlowNodeReachable(loop, nil, false) {
		t.Errorf("loop header fed from start should be reachable")
	}

	orphan := e.b.NewLoopLabel()
	orphanBody := e.assign(orphan, "x", intLit(1))
	orphan.AddAntecedent(orphanBody)
	if e.engine.IsFlowNodeReachable(orphan, nil, false) {
		t.Errorf("self-feeding loop with no outside entry is unreachable")
	}
}

func TestReachabilityFinallyGate(t *testing.T) {
	e := newEnv(t)
	e.table.Define("x")

	start := e.b.NewStart()
	a1 := e.assign(start, "x", intLit(1))
	gate, post := e.b.NewFinallyGatePair(a1, nil)
	a2 := e.assign(gate, "x", intLit(2))
	post.Antecedent = a2

	if !e.engine.IsFlowNodeReachable(a2, nil, false) {
		t.Errorf("finally body reachable while the gate is open")
	}

	// A post-finally query closes the gate for the duration of its own
	// walk, so nothing upstream of the gate is visible through it...
	if e.engine.IsFlowNodeReachable(post, a1, false) {
		t.Errorf("post-finally must not see through a closed gate")
	}
	// ...and restores it afterwards.
	if gate.IsGateClosed() {
		t.Errorf("gate was not restored")
	}

	gate.SetGateClosed(true)
	if e.engine.IsFlowNodeReachable(a2, nil, false) {
		t.Errorf("finally body unreachable while the gate is closed")
	}
	gate.SetGateClosed(false)
}

func TestReachabilityPostContextManager(t *testing.T) {
	e := newEnv(t)
	suppressing := &types.Class{Name: "Suppress", Instantiable: true, Methods: map[string]types.Type{
		"__exit__": &types.Function{Name: "__exit__", DeclaredReturn: types.InstanceOf(e.boolCls)},
	}}
	e.eval.RegisterClass(suppressing)
	e.table.DefineTyped("cm", types.InstanceOf(suppressing))

	start := e.b.NewStart()

	alive := e.b.NewPostContextManagerLabel([]ast.Expression{ident("cm")}, false, true)
	alive.AddAntecedent(start)
	if !e.engine.IsFlowNodeReachable(alive, nil, false) {
		t.Errorf("swallowing manager keeps the post-raise branch alive")
	}

	dead := e.b.NewPostContextManagerLabel([]ast.Expression{ident("cm")}, false, false)
	dead.AddAntecedent(start)
	if e.engine.IsFlowNodeReachable(dead, nil, false) {
		t.Errorf("swallowing manager kills the no-swallow branch")
	}
}
