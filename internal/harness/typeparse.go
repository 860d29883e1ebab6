package harness

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/funvibe/tycheck/internal/types"
)

// parseType turns a scenario type string into a type value. Supported
// syntax, mirroring how scenarios describe declared types:
//
//	Never | Unknown | None | Unbound
//	int, str, MyClass          (instance of a class, registered on demand)
//	type[MyClass]              (the class object itself)
//	Literal["s"], Literal[3], Literal[True]
//	() -> T                    (zero-arg function returning T)
//	A | B | C                  (union)
func (s *Scenario) parseType(src string) (types.Type, error) {
	parts := splitTopLevel(src, '|')
	if len(parts) > 1 {
		var members []types.Type
		for _, p := range parts {
			t, err := s.parseType(p)
			if err != nil {
				return nil, err
			}
			members = append(members, t)
		}
		return types.Combine(members...), nil
	}

	src = strings.TrimSpace(src)
	switch src {
	case "":
		return nil, fmt.Errorf("empty type expression")
	case "Never":
		return types.Never{}, nil
	case "Unknown":
		return types.Unknown{}, nil
	case "None":
		return types.NoneType{}, nil
	case "Unbound":
		return types.Unbound{}, nil
	}

	if rest, ok := strings.CutPrefix(src, "() -> "); ok {
		ret, err := s.parseType(rest)
		if err != nil {
			return nil, err
		}
		return &types.Function{DeclaredReturn: ret}, nil
	}

	if inner, ok := cutBrackets(src, "type["); ok {
		return s.classNamed(strings.TrimSpace(inner)), nil
	}

	// TypeVar[T, int, str] declares a constrained type variable.
	if inner, ok := cutBrackets(src, "TypeVar["); ok {
		parts := splitTopLevel(inner, ',')
		if len(parts) == 0 || !isIdentifier(parts[0]) {
			return nil, fmt.Errorf("bad type variable %q", src)
		}
		tv := &types.TypeVar{Name: parts[0]}
		for _, c := range parts[1:] {
			constraint, err := s.parseType(c)
			if err != nil {
				return nil, err
			}
			tv.Constraints = append(tv.Constraints, constraint)
		}
		return tv, nil
	}

	if inner, ok := cutBrackets(src, "Literal["); ok {
		inner = strings.TrimSpace(inner)
		switch {
		case inner == "True":
			return types.BoolLiteral(s.classNamed("bool"), true), nil
		case inner == "False":
			return types.BoolLiteral(s.classNamed("bool"), false), nil
		case strings.HasPrefix(inner, "\"") && strings.HasSuffix(inner, "\"") && len(inner) >= 2:
			return types.StrLiteral(s.classNamed("str"), inner[1:len(inner)-1]), nil
		default:
			value, ok := new(big.Int).SetString(inner, 10)
			if !ok {
				return nil, fmt.Errorf("bad literal %q", inner)
			}
			return types.IntLiteral(s.classNamed("int"), value), nil
		}
	}

	if !isIdentifier(src) {
		return nil, fmt.Errorf("bad type expression %q", src)
	}
	return types.InstanceOf(s.classNamed(src)), nil
}

// classNamed returns the scenario's class of that name, creating and
// registering a plain instantiable class on first use.
func (s *Scenario) classNamed(name string) *types.Class {
	if cls, ok := s.eval.ResolveClass(name); ok {
		return cls
	}
	cls := &types.Class{Name: name, Instantiable: true}
	s.eval.RegisterClass(cls)
	return cls
}

func cutBrackets(src, prefix string) (string, bool) {
	if strings.HasPrefix(src, prefix) && strings.HasSuffix(src, "]") {
		return src[len(prefix) : len(src)-1], true
	}
	return "", false
}

// splitTopLevel splits src on sep occurrences outside brackets/quotes.
func splitTopLevel(src string, sep byte) []string {
	var parts []string
	depth := 0
	inString := false
	last := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inString:
			if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, strings.TrimSpace(src[last:i]))
			last = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(src[last:]))
	return parts
}

func isIdentifier(src string) bool {
	if src == "" {
		return false
	}
	for i, r := range src {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
