package types

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCombine(t *testing.T) {
	intCls := &Class{Name: "int", Instantiable: true}
	strCls := &Class{Name: "str", Instantiable: true}
	intInst := InstanceOf(intCls)
	strInst := InstanceOf(strCls)

	tests := []struct {
		name string
		in   []Type
		want string
	}{
		{"empty is Never", nil, "Never"},
		{"single passes through", []Type{intInst}, "int"},
		{"two members", []Type{intInst, strInst}, "int | str"},
		{"duplicates collapse", []Type{intInst, intInst, strInst}, "int | str"},
		{"nil entries dropped", []Type{nil, intInst, nil}, "int"},
		{"never dropped", []Type{Never{}, intInst}, "int"},
		{"nested unions flatten", []Type{&Union{Subtypes: []Type{intInst, strInst}}, NoneType{}}, "int | str | None"},
		{"order preserved", []Type{NoneType{}, intInst}, "None | int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Combine(tt.in...).String(); got != tt.want {
				t.Errorf("Combine = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRemoveIncompleteUnknowns(t *testing.T) {
	intInst := InstanceOf(&Class{Name: "int", Instantiable: true})
	dust := Unknown{Incomplete: true}

	mixed := Combine(intInst, dust)
	if got := RemoveIncompleteUnknowns(mixed).String(); got != "int" {
		t.Errorf("got %s, want int", got)
	}

	// Pure placeholder collapses to a plain Unknown, not Never.
	if got := RemoveIncompleteUnknowns(dust).String(); got != "Unknown" {
		t.Errorf("got %s, want Unknown", got)
	}

	clean := Combine(intInst, NoneType{})
	if got := RemoveIncompleteUnknowns(clean); !IsSame(got, clean) {
		t.Errorf("clean union should be returned unchanged")
	}
}

func TestSubtypesAndForEach(t *testing.T) {
	intInst := InstanceOf(&Class{Name: "int", Instantiable: true})
	u := Combine(intInst, NoneType{})

	var seen []string
	ForEachSubtype(u, func(sub Type) { seen = append(seen, sub.String()) })
	if diff := cmp.Diff([]string{"int", "None"}, seen); diff != "" {
		t.Errorf("subtype walk mismatch (-want +got):\n%s", diff)
	}

	if got := Subtypes(intInst); len(got) != 1 || got[0] != Type(intInst) {
		t.Errorf("non-union should yield itself")
	}
}

func TestLiteralsAndRendering(t *testing.T) {
	boolCls := &Class{Name: "bool", Instantiable: true}
	strCls := &Class{Name: "str", Instantiable: true}
	intCls := &Class{Name: "int", Instantiable: true}

	tests := []struct {
		typ  Type
		want string
	}{
		{BoolLiteral(boolCls, true), "Literal[True]"},
		{BoolLiteral(boolCls, false), "Literal[False]"},
		{StrLiteral(strCls, "hi"), `Literal["hi"]`},
		{IntLiteral(intCls, big.NewInt(42)), "Literal[42]"},
		{intCls, "type[int]"},
		{InstanceOf(intCls), "int"},
		{Unknown{}, "Unknown"},
		{Unknown{Incomplete: true}, "Unknown(incomplete)"},
		{Unbound{}, "Unbound"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
	}
}

func TestClassLookupAndDerivation(t *testing.T) {
	base := &Class{Name: "Base", Instantiable: true, Methods: map[string]Type{
		"close": &Function{Name: "close"},
	}}
	derived := &Class{Name: "Derived", Instantiable: true, Bases: []*Class{base}}

	if _, ok := derived.LookupMethod("close"); !ok {
		t.Errorf("method lookup should walk bases")
	}
	if !derived.DerivesFrom(base) {
		t.Errorf("Derived derives from Base")
	}
	if base.DerivesFrom(derived) {
		t.Errorf("Base does not derive from Derived")
	}
	if !base.DerivesFrom(base) {
		t.Errorf("a class derives from itself")
	}
}

func TestNarrowStructMapKey(t *testing.T) {
	strCls := &Class{Name: "str", Instantiable: true}
	movie := &Class{Name: "Movie", Instantiable: true, Entries: map[string]StructMapEntry{
		"title": {Value: InstanceOf(strCls), Required: true},
		"year":  {Value: InstanceOf(strCls), Required: false},
	}}
	inst := InstanceOf(movie)

	narrowed := NarrowStructMapKey(inst, "year")
	if got := narrowed.String(); got != "Movie{title, year}" {
		t.Errorf("got %s, want Movie{title, year}", got)
	}
	// The original class is untouched.
	if movie.Entries["year"].Required {
		t.Errorf("narrowing mutated the shared class")
	}
	// Unknown keys and non-mapping types pass through.
	if got := NarrowStructMapKey(inst, "missing"); got != Type(inst) {
		t.Errorf("unknown key should return the input unchanged")
	}
	if got := NarrowStructMapKey(InstanceOf(strCls), "x"); got.String() != "str" {
		t.Errorf("non-mapping types pass through")
	}
}

func TestIsTypeAliasPlaceholder(t *testing.T) {
	placeholder := &TypeVar{Name: "__alias", AliasPlaceholder: true}
	plain := &TypeVar{Name: "T"}
	if !IsTypeAliasPlaceholder(placeholder) {
		t.Errorf("placeholder not recognised")
	}
	if IsTypeAliasPlaceholder(plain) || IsTypeAliasPlaceholder(Unknown{}) {
		t.Errorf("false positives")
	}
}
