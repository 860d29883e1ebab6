// Package codeflow implements the code-flow narrowing engine: given a
// control-flow graph and a reference expression, it computes the
// statically known type of the reference at a program point, answers
// flow-node reachability, and narrows constrained type variables.
//
// The engine walks the graph backwards from the query point, applying
// assignment, condition, pattern, and import edges, merging at joins
// and iterating loop headers to a fixed point. Cycles in the graph are
// handled with an incomplete/pending/generation protocol: intermediate
// results may be incomplete, are stamped with a generation counter, and
// are re-read once a later pass refines anything they depended on.
package codeflow

import (
	"errors"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/types"
)

// ErrCancelled is returned when the evaluator's cancellation hook
// signals an abort. It unwinds through pending-marker cleanup and the
// finally-gate save/restore before surfacing.
var ErrCancelled = errors.New("operation cancelled")

// EvalFlags adjusts how the evaluator computes an expression's type.
type EvalFlags uint32

const (
	EvalNone EvalFlags = 0

	// EvalNoInference restricts the evaluator to declared types. The
	// never-return analyser uses this to avoid circular evaluation.
	EvalNoInference EvalFlags = 1 << iota
)

// NarrowingCallback refines a type according to the semantics of a test
// expression along one conditional edge. It may return Never when the
// edge admits no value. The engine holds a callback for exactly one
// edge and never stores it.
type NarrowingCallback func(types.Type) types.Type

// Evaluator is the type evaluator the engine consumes. The engine never
// infers types itself; everything syntactic is delegated here.
type Evaluator interface {
	// EvalTypeForSubnode evaluates the type of an AST sub-expression,
	// invoking kick first when a side computation (typically typing the
	// enclosing statement) is needed to populate the evaluator's cache.
	EvalTypeForSubnode(node ast.Node, kick func()) (types.Type, bool)

	// EvalTypesForStatement forces evaluation of a statement's types
	// into the evaluator's own cache.
	EvalTypesForStatement(node ast.Node)

	// TypeOfExpression computes the type of an expression.
	TypeOfExpression(expr ast.Expression, flags EvalFlags) (types.Type, bool)

	// DeclaredTypeOfSymbol is a non-inferring type lookup.
	DeclaredTypeOfSymbol(sym *symbols.Symbol) (types.Type, bool)

	// InferredTypeOfDeclaration infers the type a single declaration
	// contributes; used for aliases and cross-scope reads only.
	InferredTypeOfDeclaration(sym *symbols.Symbol, decl *symbols.Declaration) (types.Type, bool)

	// LookupSymbolRecursive resolves a name in the scopes enclosing node.
	LookupSymbolRecursive(node ast.Node, name string, honorFlow bool) (*symbols.Symbol, bool)

	// IsAsymmetricDescriptorAssignment reports whether the assignment
	// writes through a descriptor whose setter accepts a different type
	// than its getter returns; such writes must not narrow.
	IsAsymmetricDescriptorAssignment(node ast.Node) bool

	// IsAfterNodeReachable reports whether control can fall off the end
	// of the given suite; used by never-return inference for functions
	// without a declared return type.
	IsAfterNodeReachable(node ast.Node) bool

	// UseSpeculativeMode runs body inside a speculative region rooted
	// at root. Cache entries written inside the region are rolled back
	// when it exits.
	UseSpeculativeMode(root ast.Node, body func())

	// CheckForCancellation is the cooperative yield point, consulted on
	// every walker entry. A non-nil error aborts the current query.
	CheckForCancellation() error

	// TypeNarrowingCallback builds the narrowing function for a test
	// expression with respect to a reference, or nil when the test says
	// nothing about the reference.
	TypeNarrowingCallback(reference, test ast.Expression, isPositive bool) NarrowingCallback
}
