package ast

// Reference keys identify the expressions the flow engine can track:
// bare names, attribute chains rooted at a name, and subscripts of such
// chains with a literal string or integer index. A key is a canonical
// rendering of the expression; two occurrences of the same reference in
// different parts of a function produce the same key.

// ReferenceKey returns the canonical key for a trackable reference
// expression. ok is false when the expression is not trackable.
func ReferenceKey(expr Expression) (string, bool) {
	switch e := expr.(type) {
	case *Identifier:
		return e.Value, true
	case *MemberAccess:
		base, ok := ReferenceKey(e.Target)
		if !ok {
			return "", false
		}
		return base + "." + e.Member, true
	case *IndexExpression:
		base, ok := ReferenceKey(e.Base)
		if !ok {
			return "", false
		}
		switch idx := e.Index.(type) {
		case *StringLiteral:
			return base + "[\"" + idx.Value + "\"]", true
		case *IntegerLiteral:
			return base + "[" + idx.Value.String() + "]", true
		}
		return "", false
	}
	return "", false
}

// SubReferenceKeys returns the reference's own key followed by the keys
// of every prefix, innermost name last. For a.b["k"] that is
// [a.b["k"], a.b, a]. The result is nil for untrackable expressions.
func SubReferenceKeys(expr Expression) []string {
	var keys []string
	cur := expr
	for cur != nil {
		key, ok := ReferenceKey(cur)
		if !ok {
			return nil
		}
		keys = append(keys, key)
		switch e := cur.(type) {
		case *MemberAccess:
			cur = e.Target
		case *IndexExpression:
			cur = e.Base
		default:
			cur = nil
		}
	}
	return keys
}

// BaseName returns the identifier at the root of a reference chain.
func BaseName(expr Expression) (*Identifier, bool) {
	for {
		switch e := expr.(type) {
		case *Identifier:
			return e, true
		case *MemberAccess:
			expr = e.Target
		case *IndexExpression:
			expr = e.Base
		default:
			return nil, false
		}
	}
}

// MatchesReference reports whether a and b denote the same reference.
func MatchesReference(a, b Expression) bool {
	ka, oka := ReferenceKey(a)
	kb, okb := ReferenceKey(b)
	return oka && okb && ka == kb
}

// IsPartialMatch reports whether target writes a strict prefix of
// reference: rebinding a invalidates any narrowing of a.b or a["k"].
func IsPartialMatch(reference, target Expression) bool {
	targetKey, ok := ReferenceKey(target)
	if !ok {
		return false
	}
	subKeys := SubReferenceKeys(reference)
	for i, key := range subKeys {
		if i == 0 {
			continue // the full key is an exact match, not a partial one
		}
		if key == targetKey {
			return true
		}
	}
	return false
}
