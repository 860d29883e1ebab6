package ast

import (
	"math/big"
	"testing"

	"github.com/funvibe/tycheck/internal/token"
)

func name(v string) *Identifier {
	return &Identifier{Token: token.Token{Type: token.IDENT, Lexeme: v}, Value: v}
}

func attr(target Expression, member string) *MemberAccess {
	return &MemberAccess{Token: token.Token{Type: token.OP, Lexeme: "."}, Target: target, Member: member}
}

func strIndex(base Expression, key string) *IndexExpression {
	return &IndexExpression{
		Token: token.Token{Type: token.OP, Lexeme: "["},
		Base:  base,
		Index: &StringLiteral{Token: token.Token{Type: token.STRING}, Value: key},
	}
}

func TestReferenceKey(t *testing.T) {
	tests := []struct {
		name string
		expr Expression
		want string
		ok   bool
	}{
		{"bare name", name("x"), "x", true},
		{"attribute", attr(name("a"), "b"), "a.b", true},
		{"nested attribute", attr(attr(name("a"), "b"), "c"), "a.b.c", true},
		{"string subscript", strIndex(name("d"), "k"), `d["k"]`, true},
		{"int subscript", &IndexExpression{Base: name("d"), Index: &IntegerLiteral{Value: big.NewInt(3)}}, "d[3]", true},
		{"call not trackable", &CallExpression{Function: name("f")}, "", false},
		{"dynamic subscript not trackable", &IndexExpression{Base: name("d"), Index: name("i")}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReferenceKey(tt.expr)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ReferenceKey = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSubReferenceKeys(t *testing.T) {
	keys := SubReferenceKeys(strIndex(attr(name("a"), "b"), "k"))
	want := []string{`a.b["k"]`, "a.b", "a"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}

	if got := SubReferenceKeys(&CallExpression{Function: name("f")}); got != nil {
		t.Errorf("untrackable expression should yield nil, got %v", got)
	}
}

func TestMatchesAndPartialMatch(t *testing.T) {
	ab := attr(name("a"), "b")
	if !MatchesReference(ab, attr(name("a"), "b")) {
		t.Errorf("structurally equal references should match")
	}
	if MatchesReference(ab, name("a")) {
		t.Errorf("prefix is not a full match")
	}

	if !IsPartialMatch(ab, name("a")) {
		t.Errorf("writing a invalidates a.b")
	}
	if IsPartialMatch(ab, attr(name("a"), "b")) {
		t.Errorf("an exact write is not a partial match")
	}
	if IsPartialMatch(name("a"), ab) {
		t.Errorf("a longer write does not partially match a shorter reference")
	}
}

func TestBaseName(t *testing.T) {
	base, ok := BaseName(strIndex(attr(name("root"), "leaf"), "k"))
	if !ok || base.Value != "root" {
		t.Errorf("BaseName = (%v, %v), want root", base, ok)
	}
	if _, ok := BaseName(&CallExpression{Function: name("f")}); ok {
		t.Errorf("calls have no base name")
	}
}

func TestExpressionString(t *testing.T) {
	call := &CallExpression{Function: name("isinstance"), Args: []Expression{name("x"), name("int")}}
	if got := String(call); got != "isinstance(x, int)" {
		t.Errorf("String = %s", got)
	}
	bin := &BinaryExpression{Left: name("x"), Operator: "is not", Right: &NoneLiteral{}}
	if got := String(bin); got != "x is not None" {
		t.Errorf("String = %s", got)
	}
}
