package codeflow_test

import (
	"testing"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/token"
	"github.com/funvibe/tycheck/internal/types"
)

func isinstanceTest(value, class string) *ast.CallExpression {
	return &ast.CallExpression{
		Token:    token.Token{Type: token.OP, Lexeme: "("},
		Function: ident("isinstance"),
		Args:     []ast.Expression{ident(value), ident(class)},
	}
}

// constrainedEnv declares v: T where T is constrained to int | str.
func constrainedEnv(t *testing.T) (*env, *types.TypeVar) {
	e := newEnv(t)
	typeVar := &types.TypeVar{Name: "T", Constraints: []types.Type{
		types.InstanceOf(e.intCls),
		types.InstanceOf(e.strCls),
	}}
	e.table.DefineTyped("v", typeVar)
	return e, typeVar
}

func TestNarrowConstrainedTypeVarPositive(t *testing.T) {
	e, typeVar := constrainedEnv(t)

	start := e.b.NewStart()
	guard := e.b.NewCondition(start, isinstanceTest("v", "int"), nil, true)

	narrowed, ok := e.engine.NarrowConstrainedTypeVar(guard, typeVar)
	if !ok {
		t.Fatalf("expected narrowing to a single constraint")
	}
	if narrowed.String() != "int" {
		t.Errorf("narrowed to %s, want int", narrowed)
	}
}

func TestNarrowConstrainedTypeVarNegative(t *testing.T) {
	e, typeVar := constrainedEnv(t)

	start := e.b.NewStart()
	guard := e.b.NewCondition(start, isinstanceTest("v", "int"), nil, false)

	narrowed, ok := e.engine.NarrowConstrainedTypeVar(guard, typeVar)
	if !ok {
		t.Fatalf("expected the str constraint to survive")
	}
	if narrowed.String() != "str" {
		t.Errorf("narrowed to %s, want str", narrowed)
	}
}

func TestNarrowConstrainedTypeVarJoin(t *testing.T) {
	e, typeVar := constrainedEnv(t)

	// Two arms guard different constraints; their join knows nothing.
	start := e.b.NewStart()
	intArm := e.b.NewCondition(start, isinstanceTest("v", "int"), nil, true)
	strArm := e.b.NewCondition(start, isinstanceTest("v", "str"), nil, true)
	label := e.b.NewBranchLabel()
	label.AddAntecedent(intArm)
	label.AddAntecedent(strArm)

	if _, ok := e.engine.NarrowConstrainedTypeVar(label, typeVar); ok {
		t.Errorf("joined arms must not narrow to a single constraint")
	}
}

func TestNarrowConstrainedTypeVarNoConditions(t *testing.T) {
	e, typeVar := constrainedEnv(t)

	start := e.b.NewStart()
	a := e.assign(start, "x", intLit(1))

	if _, ok := e.engine.NarrowConstrainedTypeVar(a, typeVar); ok {
		t.Errorf("pass-through edges alone must not narrow")
	}
}

func TestNarrowConstrainedTypeVarRejectsNonClassConstraints(t *testing.T) {
	e, _ := constrainedEnv(t)

	badVar := &types.TypeVar{Name: "U", Constraints: []types.Type{types.NoneType{}}}
	start := e.b.NewStart()
	guard := e.b.NewCondition(start, isinstanceTest("v", "int"), nil, true)

	if _, ok := e.engine.NarrowConstrainedTypeVar(guard, badVar); ok {
		t.Errorf("non-class constraints must disable narrowing")
	}

	unconstrained := &types.TypeVar{Name: "V"}
	if _, ok := e.engine.NarrowConstrainedTypeVar(guard, unconstrained); ok {
		t.Errorf("an unconstrained type var has nothing to narrow")
	}
}

func TestNarrowConstrainedTypeVarOtherReference(t *testing.T) {
	e, typeVar := constrainedEnv(t)
	e.table.DefineTyped("w", types.InstanceOf(e.intCls))

	// The guard tests w, whose type is not the constrained type var.
	start := e.b.NewStart()
	guard := e.b.NewCondition(start, isinstanceTest("w", "int"), nil, true)

	if _, ok := e.engine.NarrowConstrainedTypeVar(guard, typeVar); ok {
		t.Errorf("a guard on an unrelated reference must not narrow")
	}
}

func TestNarrowConstrainedTypeVarLoopGuard(t *testing.T) {
	e, typeVar := constrainedEnv(t)

	// The guard sits on a loop back edge; the walk must terminate and
	// the outside entry keeps both constraints alive.
	start := e.b.NewStart()
	loop := e.b.NewLoopLabel()
	guard := e.b.NewCondition(loop, isinstanceTest("v", "int"), nil, true)
	loop.AddAntecedent(start)
	loop.AddAntecedent(guard)

	if _, ok := e.engine.NarrowConstrainedTypeVar(loop, typeVar); ok {
		t.Errorf("the outside entry keeps the full constraint set")
	}
}
