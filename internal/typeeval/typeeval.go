// Package typeeval is a compact, non-inferring type evaluator that
// implements the interface the code-flow engine consumes. It resolves
// declared types from a symbol table, types the expression shapes the
// checker's tests exercise, and builds narrowing callbacks for is-None,
// isinstance, and truthiness tests. Anything it cannot see declared
// becomes Unknown; it never guesses.
package typeeval

import (
	"math/big"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/codeflow"
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/types"
)

// SpeculativeController is the engine-side hook bracketing speculative
// regions. Bound after the engine is constructed.
type SpeculativeController interface {
	EnterSpeculativeRegion(root ast.Node)
	LeaveSpeculativeRegion()
}

// Evaluator resolves types from declarations and recorded statement
// results. It is deliberately shallow: the flow engine supplies all
// control-flow sensitivity.
type Evaluator struct {
	table   *symbols.Table
	classes map[string]*types.Class

	// nodeTypes memoises per-node results the way the checker's type
	// map does; assignment statements populate it for their targets.
	nodeTypes map[ast.Node]types.Type

	asymmetricWrites map[ast.Node]bool
	afterUnreachable map[ast.Node]bool

	speculative   SpeculativeController
	cancelHook    func() bool
	stmtReachable func(stmt ast.Node) bool

	// SubnodeEvalCounts records how often each node was evaluated
	// through EvalTypeForSubnode; tests assert evaluation budgets.
	SubnodeEvalCounts map[ast.Node]int
}

func New(table *symbols.Table) *Evaluator {
	return &Evaluator{
		table:             table,
		classes:           make(map[string]*types.Class),
		nodeTypes:         make(map[ast.Node]types.Type),
		asymmetricWrites:  make(map[ast.Node]bool),
		afterUnreachable:  make(map[ast.Node]bool),
		SubnodeEvalCounts: make(map[ast.Node]int),
	}
}

// RegisterClass makes a class resolvable by name.
func (e *Evaluator) RegisterClass(c *types.Class) {
	e.classes[c.Name] = c
}

// ResolveClass returns a registered class by name.
func (e *Evaluator) ResolveClass(name string) (*types.Class, bool) {
	c, ok := e.classes[name]
	return c, ok
}

// RecordTypeForNode seeds the evaluator's node-type map, the way an
// earlier evaluation pass would have.
func (e *Evaluator) RecordTypeForNode(node ast.Node, t types.Type) {
	e.nodeTypes[node] = t
}

// MarkAsymmetricDescriptor marks a statement as writing through an
// asymmetric descriptor.
func (e *Evaluator) MarkAsymmetricDescriptor(stmt ast.Node) {
	e.asymmetricWrites[stmt] = true
}

// MarkAfterNodeUnreachable records that control cannot fall off the
// end of the given suite.
func (e *Evaluator) MarkAfterNodeUnreachable(node ast.Node) {
	e.afterUnreachable[node] = true
}

// SetReachabilityCheck installs the statement-reachability question the
// evaluator asks before typing a statement. Statements in unreachable
// code are left untyped, which the flow engine reads as "no type".
func (e *Evaluator) SetReachabilityCheck(check func(stmt ast.Node) bool) {
	e.stmtReachable = check
}

// BindSpeculative attaches the engine's speculative-region hooks.
func (e *Evaluator) BindSpeculative(ctrl SpeculativeController) {
	e.speculative = ctrl
}

// SetCancellationHook installs the cooperative cancellation check; the
// hook returns true when the current operation should abort.
func (e *Evaluator) SetCancellationHook(hook func() bool) {
	e.cancelHook = hook
}

// Table returns the evaluator's symbol table.
func (e *Evaluator) Table() *symbols.Table { return e.table }

func (e *Evaluator) EvalTypeForSubnode(node ast.Node, kick func()) (types.Type, bool) {
	e.SubnodeEvalCounts[node]++
	if t, ok := e.nodeTypes[node]; ok {
		return t, true
	}
	if kick != nil {
		kick()
		if t, ok := e.nodeTypes[node]; ok {
			return t, true
		}
	}
	// No fallback: a node the statement evaluation refused to type
	// (unreachable code, typically) stays untyped.
	return nil, false
}

func (e *Evaluator) EvalTypesForStatement(node ast.Node) {
	stmt, ok := node.(*ast.AssignmentStatement)
	if !ok {
		return
	}
	if e.stmtReachable != nil && !e.stmtReachable(node) {
		return
	}
	if _, done := e.nodeTypes[stmt.Target]; done {
		return
	}
	if t, ok := e.TypeOfExpression(stmt.Value, codeflow.EvalNone); ok {
		e.nodeTypes[stmt.Target] = t
	}
}

func (e *Evaluator) TypeOfExpression(expr ast.Expression, flags codeflow.EvalFlags) (types.Type, bool) {
	if t, ok := e.nodeTypes[expr]; ok {
		return t, true
	}
	switch v := expr.(type) {
	case *ast.Identifier:
		if cls, ok := e.classes[v.Value]; ok {
			return cls, true
		}
		sym, ok := e.table.LookupRecursive(v.Value, false)
		if !ok {
			return types.Unknown{}, true
		}
		if sym.DeclaredType != nil {
			return sym.DeclaredType, true
		}
		if flags&codeflow.EvalNoInference != 0 {
			return nil, false
		}
		if sym.InferredType != nil {
			return sym.InferredType, true
		}
		return types.Unknown{}, true

	case *ast.StringLiteral:
		if cls, ok := e.classes["str"]; ok {
			return types.StrLiteral(cls, v.Value), true
		}
		return types.Unknown{}, true

	case *ast.IntegerLiteral:
		if cls, ok := e.classes["int"]; ok {
			return types.IntLiteral(cls, v.Value), true
		}
		return types.Unknown{}, true

	case *ast.BooleanLiteral:
		if cls, ok := e.classes["bool"]; ok {
			return types.BoolLiteral(cls, v.Value), true
		}
		return types.Unknown{}, true

	case *ast.NoneLiteral:
		return types.NoneType{}, true

	case *ast.MemberAccess:
		base, ok := e.TypeOfExpression(v.Target, flags)
		if !ok || base == nil {
			return nil, false
		}
		if m, found := types.LookupMember(base, v.Member); found {
			return m, true
		}
		return types.Unknown{}, true

	case *ast.AwaitExpression:
		return e.TypeOfExpression(v.Value, flags)

	case *ast.CallExpression:
		callee, ok := e.TypeOfExpression(v.Function, flags)
		if !ok || callee == nil {
			return nil, false
		}
		return e.callReturnType(callee, v), true

	case *ast.IndexExpression:
		base, ok := e.TypeOfExpression(v.Base, flags)
		if !ok || base == nil {
			return nil, false
		}
		if key, isStr := v.Index.(*ast.StringLiteral); isStr {
			if cls, isMap := types.IsStructMapInstance(base); isMap {
				if entry, found := cls.Entries[key.Value]; found {
					return entry.Value, true
				}
			}
		}
		return types.Unknown{}, true
	}
	return types.Unknown{}, true
}

func (e *Evaluator) callReturnType(callee types.Type, call *ast.CallExpression) types.Type {
	switch v := callee.(type) {
	case *types.Class:
		if v.Instantiable {
			return types.InstanceOf(v)
		}
		return types.Unknown{}
	case *types.Function:
		if v.DeclaredReturn != nil {
			return v.DeclaredReturn
		}
		return types.Unknown{}
	case *types.Overloaded:
		for _, f := range v.Overloads {
			if len(f.Params) == len(call.Args) && f.DeclaredReturn != nil {
				return f.DeclaredReturn
			}
		}
		return types.Unknown{}
	case *types.Instance:
		if m, ok := v.Class.LookupMethod("__call__"); ok {
			return e.callReturnType(m, call)
		}
	}
	return types.Unknown{}
}

func (e *Evaluator) DeclaredTypeOfSymbol(sym *symbols.Symbol) (types.Type, bool) {
	if sym == nil || sym.DeclaredType == nil {
		return nil, false
	}
	return sym.DeclaredType, true
}

func (e *Evaluator) InferredTypeOfDeclaration(sym *symbols.Symbol, decl *symbols.Declaration) (types.Type, bool) {
	if decl != nil && decl.Type != nil {
		return decl.Type, true
	}
	if sym != nil && sym.InferredType != nil {
		return sym.InferredType, true
	}
	if sym != nil && sym.DeclaredType != nil {
		return sym.DeclaredType, true
	}
	return nil, false
}

func (e *Evaluator) LookupSymbolRecursive(node ast.Node, name string, honorFlow bool) (*symbols.Symbol, bool) {
	return e.table.LookupRecursive(name, false)
}

func (e *Evaluator) IsAsymmetricDescriptorAssignment(node ast.Node) bool {
	return e.asymmetricWrites[node]
}

func (e *Evaluator) IsAfterNodeReachable(node ast.Node) bool {
	return !e.afterUnreachable[node]
}

func (e *Evaluator) UseSpeculativeMode(root ast.Node, body func()) {
	if e.speculative == nil {
		body()
		return
	}
	e.speculative.EnterSpeculativeRegion(root)
	defer e.speculative.LeaveSpeculativeRegion()
	body()
}

func (e *Evaluator) CheckForCancellation() error {
	if e.cancelHook != nil && e.cancelHook() {
		return codeflow.ErrCancelled
	}
	return nil
}

// bigZero is shared by the truthiness narrowing below.
var bigZero = big.NewInt(0)
