package types

import "math/big"

// IsNever reports whether t is the empty type.
func IsNever(t Type) bool {
	_, ok := t.(Never)
	return ok
}

// IsUnbound reports whether t is the post-del sentinel.
func IsUnbound(t Type) bool {
	_, ok := t.(Unbound)
	return ok
}

// IsIncompleteUnknown reports whether t is the cycle placeholder.
func IsIncompleteUnknown(t Type) bool {
	u, ok := t.(Unknown)
	return ok && u.Incomplete
}

// IsTypeAliasPlaceholder reports whether t is the stand-in type var of
// an alias still under evaluation.
func IsTypeAliasPlaceholder(t Type) bool {
	tv, ok := t.(*TypeVar)
	return ok && tv.AliasPlaceholder
}

// IsSame reports whether two types are structurally identical.
// Classes compare by identity through their rendered names, which are
// unique per analysis run; this mirrors how the checker's caches decide
// whether a refinement was material.
func IsSame(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// ForEachSubtype invokes f for each union member, or for t itself when
// it is not a union.
func ForEachSubtype(t Type, f func(Type)) {
	if u, ok := t.(*Union); ok {
		for _, sub := range u.Subtypes {
			f(sub)
		}
		return
	}
	f(t)
}

// Subtypes returns the union members of t, or [t] for non-unions.
func Subtypes(t Type) []Type {
	if u, ok := t.(*Union); ok {
		return u.Subtypes
	}
	return []Type{t}
}

// Combine unions the given types. Nil entries and Never are dropped,
// nested unions are flattened, and duplicates are removed while
// preserving first-occurrence order. An empty result is Never.
func Combine(ts ...Type) Type {
	var flat []Type
	seen := make(map[string]bool)
	var add func(t Type)
	add = func(t Type) {
		if t == nil || IsNever(t) {
			return
		}
		if u, ok := t.(*Union); ok {
			for _, sub := range u.Subtypes {
				add(sub)
			}
			return
		}
		key := t.String()
		if seen[key] {
			return
		}
		seen[key] = true
		flat = append(flat, t)
	}
	for _, t := range ts {
		add(t)
	}
	switch len(flat) {
	case 0:
		return Never{}
	case 1:
		return flat[0]
	}
	return &Union{Subtypes: flat}
}

// ContainsIncompleteUnknown reports whether t or any union member is an
// incomplete-unknown placeholder.
func ContainsIncompleteUnknown(t Type) bool {
	found := false
	ForEachSubtype(t, func(sub Type) {
		if IsIncompleteUnknown(sub) {
			found = true
		}
	})
	return found
}

// RemoveIncompleteUnknowns strips incomplete-unknown placeholders from a
// union. A type that is nothing but placeholders collapses to a plain
// Unknown rather than Never: the cycle said "don't know", not "no value".
func RemoveIncompleteUnknowns(t Type) Type {
	if t == nil || !ContainsIncompleteUnknown(t) {
		return t
	}
	var kept []Type
	ForEachSubtype(t, func(sub Type) {
		if !IsIncompleteUnknown(sub) {
			kept = append(kept, sub)
		}
	})
	if len(kept) == 0 {
		return Unknown{}
	}
	return Combine(kept...)
}

// LookupMember resolves a named member on a class, instance, or module.
func LookupMember(t Type, name string) (Type, bool) {
	switch v := t.(type) {
	case *Class:
		return v.LookupMethod(name)
	case *Instance:
		return v.Class.LookupMethod(name)
	case *Literal:
		return v.Class.LookupMethod(name)
	case *Module:
		m, ok := v.Members[name]
		return m, ok
	}
	return nil, false
}

// InstanceOf returns the instance form of a class object.
func InstanceOf(c *Class) *Instance {
	return &Instance{Class: c}
}

// ClassOfInstance returns the class behind an instance or literal.
func ClassOfInstance(t Type) (*Class, bool) {
	switch v := t.(type) {
	case *Instance:
		return v.Class, true
	case *Literal:
		return v.Class, true
	}
	return nil, false
}

// BoolLiteral constructs a literal bool instance of class boolClass.
func BoolLiteral(boolClass *Class, value bool) *Literal {
	return &Literal{Class: boolClass, Value: value}
}

// StrLiteral constructs a literal string instance of class strClass.
func StrLiteral(strClass *Class, value string) *Literal {
	return &Literal{Class: strClass, Value: value}
}

// IntLiteral constructs a literal integer instance of class intClass.
func IntLiteral(intClass *Class, value *big.Int) *Literal {
	return &Literal{Class: intClass, Value: value}
}

// IsStructMapInstance reports whether t is an instance of a structural
// mapping class, returning the class when it is.
func IsStructMapInstance(t Type) (*Class, bool) {
	cls, ok := ClassOfInstance(t)
	if !ok || cls == nil || cls.Entries == nil {
		return nil, false
	}
	return cls, true
}

// NarrowStructMapKey returns t with the named key marked as present.
// The class is copied; the original is never mutated. When t is not a
// structural mapping instance or lacks the key, t is returned unchanged.
func NarrowStructMapKey(t Type, key string) Type {
	cls, ok := IsStructMapInstance(t)
	if !ok {
		return t
	}
	entry, ok := cls.Entries[key]
	if !ok || entry.Required {
		return t
	}
	narrowed := *cls
	narrowed.Entries = make(map[string]StructMapEntry, len(cls.Entries))
	for k, v := range cls.Entries {
		narrowed.Entries[k] = v
	}
	narrowed.Entries[key] = StructMapEntry{Value: entry.Value, Required: true}
	return &Instance{Class: &narrowed}
}
