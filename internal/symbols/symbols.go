package symbols

import (
	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/types"
)

// ID is a binder-assigned symbol id, unique within one analysis run.
// The flow engine compares symbol ids rather than names so that
// shadowed bindings in nested scopes stay distinct.
type ID int

// NoID marks references that do not resolve to a simple name symbol.
const NoID ID = -1

// DeclarationKind classifies where a symbol binding comes from.
type DeclarationKind int

const (
	DeclVariable DeclarationKind = iota
	DeclParameter
	DeclFunction
	DeclClass
	DeclAlias
	DeclWildcardImport
)

// Declaration records one binding site of a symbol.
type Declaration struct {
	Kind DeclarationKind
	Node ast.Node
	// Type is the type this declaration contributes when it can be
	// determined without inference (annotations, class/function decls).
	Type types.Type
}

// Symbol is a named binding within a scope.
type Symbol struct {
	Name         string
	ID           ID
	DeclaredType types.Type // nil when the symbol carries no annotation
	InferredType types.Type // nil until some evaluator records one
	Declarations []Declaration
}

// HasDeclaredType reports whether the symbol carries an explicit annotation.
func (s *Symbol) HasDeclaredType() bool {
	return s != nil && s.DeclaredType != nil
}

// ScopeType distinguishes the lookup behavior of nested tables.
type ScopeType int

const (
	ScopeModule ScopeType = iota
	ScopeFunction
	ScopeClass
)

// Table is a single scope's symbol table, chained to its enclosing scope.
type Table struct {
	store     map[string]*Symbol
	outer     *Table
	scopeType ScopeType
	nextID    *ID // shared across the chain so ids stay unique
}

// NewTable creates a root (module) scope table.
func NewTable() *Table {
	id := ID(0)
	return &Table{
		store:     make(map[string]*Symbol),
		scopeType: ScopeModule,
		nextID:    &id,
	}
}

// NewEnclosedTable creates a child scope of outer.
func NewEnclosedTable(outer *Table, scopeType ScopeType) *Table {
	return &Table{
		store:     make(map[string]*Symbol),
		outer:     outer,
		scopeType: scopeType,
		nextID:    outer.nextID,
	}
}

func (t *Table) Outer() *Table       { return t.outer }
func (t *Table) Scope() ScopeType    { return t.scopeType }
func (t *Table) IsGlobalScope() bool { return t.outer == nil }

// Symbols returns the scope's own symbols in unspecified order.
func (t *Table) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(t.store))
	for _, s := range t.store {
		out = append(out, s)
	}
	return out
}

// Define adds a symbol to this scope, assigning it a fresh id.
// Redefining a name returns the existing symbol unchanged.
func (t *Table) Define(name string) *Symbol {
	if existing, ok := t.store[name]; ok {
		return existing
	}
	sym := &Symbol{Name: name, ID: *t.nextID}
	*t.nextID++
	t.store[name] = sym
	return sym
}

// DefineTyped adds a symbol with a declared type.
func (t *Table) DefineTyped(name string, declared types.Type) *Symbol {
	sym := t.Define(name)
	sym.DeclaredType = declared
	return sym
}

// Resolve finds a symbol in this scope only.
func (t *Table) Resolve(name string) (*Symbol, bool) {
	sym, ok := t.store[name]
	return sym, ok
}

// LookupRecursive finds a symbol in this scope or any enclosing scope.
// Class scopes are skipped for names referenced from nested functions,
// matching the language's scoping rules.
func (t *Table) LookupRecursive(name string, fromNested bool) (*Symbol, bool) {
	cur := t
	for cur != nil {
		if !(fromNested && cur.scopeType == ScopeClass) {
			if sym, ok := cur.store[name]; ok {
				return sym, true
			}
		}
		fromNested = true
		cur = cur.outer
	}
	return nil, false
}
