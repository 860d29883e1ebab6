package types

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Type is the interface for all types in the checker's model.
type Type interface {
	String() string
}

// Unknown is the implicit type of unannotated, uninferred values.
// Incomplete marks the placeholder produced while a code-flow cycle is
// still being resolved; it is stripped from finished results.
type Unknown struct {
	Incomplete bool
}

func (u Unknown) String() string {
	if u.Incomplete {
		return "Unknown(incomplete)"
	}
	return "Unknown"
}

// Never is the empty type: no value inhabits it.
type Never struct{}

func (Never) String() string { return "Never" }

// Unbound is the type of a name after del, before any assignment.
type Unbound struct{}

func (Unbound) String() string { return "Unbound" }

// NoneType is the type of the None constant.
type NoneType struct{}

func (NoneType) String() string { return "None" }

// Module is the type of an imported module object.
type Module struct {
	Name    string
	Members map[string]Type
}

func (m *Module) String() string { return "Module(" + m.Name + ")" }

// StructMapEntry describes one key of a structural mapping class.
type StructMapEntry struct {
	Value    Type
	Required bool
}

// Class is a class object (the value you call to instantiate).
type Class struct {
	Name string

	// Instantiable is false for protocol-like classes that cannot be
	// constructed directly.
	Instantiable bool

	// MetaclassCall is set when a user-defined metaclass supplies
	// __call__, making constructor-based return analysis unreliable.
	MetaclassCall bool

	Abstract bool

	Bases   []*Class
	Methods map[string]Type // Function or Overloaded values

	// Entries is non-nil for structural mapping classes; keys map to
	// their value types and required-ness.
	Entries map[string]StructMapEntry
}

func (c *Class) String() string { return "type[" + c.Name + "]" }

// LookupMethod resolves a method on the class or its bases.
func (c *Class) LookupMethod(name string) (Type, bool) {
	if c == nil {
		return nil, false
	}
	if m, ok := c.Methods[name]; ok {
		return m, true
	}
	for _, base := range c.Bases {
		if m, ok := base.LookupMethod(name); ok {
			return m, true
		}
	}
	return nil, false
}

// DerivesFrom reports whether c is other or inherits from it.
func (c *Class) DerivesFrom(other *Class) bool {
	if c == nil || other == nil {
		return false
	}
	if c == other {
		return true
	}
	for _, base := range c.Bases {
		if base.DerivesFrom(other) {
			return true
		}
	}
	return false
}

// Instance is a value of a class.
type Instance struct {
	Class *Class
}

func (i *Instance) String() string {
	if i.Class == nil {
		return "object"
	}
	if i.Class.Entries != nil {
		// Structural mappings render their keys so that two narrowings
		// of the same class stay distinguishable.
		keys := make([]string, 0, len(i.Class.Entries))
		for k, e := range i.Class.Entries {
			if e.Required {
				keys = append(keys, k)
			} else {
				keys = append(keys, k+"?")
			}
		}
		sort.Strings(keys)
		return i.Class.Name + "{" + strings.Join(keys, ", ") + "}"
	}
	return i.Class.Name
}

// Literal is an instance carrying a known constant value.
// Value is a bool, string, or *big.Int depending on the class.
type Literal struct {
	Class *Class
	Value any
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case string:
		return fmt.Sprintf("Literal[%q]", v)
	case bool:
		if v {
			return "Literal[True]"
		}
		return "Literal[False]"
	case *big.Int:
		return "Literal[" + v.String() + "]"
	}
	return "Literal[?]"
}

// Param is a single function parameter.
type Param struct {
	Name string
	Type Type
}

// Function is a callable with an optional declared return type.
type Function struct {
	Name   string
	Params []Param

	// DeclaredReturn is nil when the return is unannotated. For async
	// functions it is the coroutine's result argument.
	DeclaredReturn Type

	IsAsync     bool
	IsGenerator bool
	IsAbstract  bool

	// FromStub marks declarations that come from a stub file or carry
	// stub-like bodies; their bodies say nothing about control flow.
	FromStub bool

	// RaisesNotImplementedOnly marks bodies whose only non-docstring
	// statement is `raise NotImplementedError(...)`.
	RaisesNotImplementedOnly bool

	// BodyNode is the function's AST body handle, used to ask the
	// evaluator whether control can fall off the end.
	BodyNode any
}

func (f *Function) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		if p.Type != nil {
			parts[i] = p.Type.String()
		} else {
			parts[i] = "Unknown"
		}
	}
	ret := "Unknown"
	if f.DeclaredReturn != nil {
		ret = f.DeclaredReturn.String()
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + ret
}

// Overloaded is a set of function overloads sharing one name.
type Overloaded struct {
	Overloads []*Function
}

func (o *Overloaded) String() string {
	parts := make([]string, len(o.Overloads))
	for i, f := range o.Overloads {
		parts[i] = f.String()
	}
	return "Overload[" + strings.Join(parts, "; ") + "]"
}

// Union is a set of alternative types. Construct through Combine so
// that unions stay flat and deduplicated.
type Union struct {
	Subtypes []Type
}

func (u *Union) String() string {
	parts := make([]string, len(u.Subtypes))
	for i, t := range u.Subtypes {
		parts[i] = t.String()
	}
	return strings.Join(parts, " | ")
}

// TypeVar is a type variable. A non-empty Constraints list makes it a
// constrained type variable: the value's type is always exactly one of
// the constraint types.
type TypeVar struct {
	Name        string
	Constraints []Type

	// AliasPlaceholder marks the synthesized variable that stands in
	// for a type alias while its right-hand side is still being
	// evaluated; flow results must not capture it.
	AliasPlaceholder bool
}

func (tv *TypeVar) String() string {
	if len(tv.Constraints) == 0 {
		return tv.Name
	}
	parts := make([]string, len(tv.Constraints))
	for i, c := range tv.Constraints {
		parts[i] = c.String()
	}
	sort.Strings(parts)
	return tv.Name + "(" + strings.Join(parts, ", ") + ")"
}
