package harness

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/token"
)

// Scenario expressions cover the shapes the engine dispatches on:
// names, attribute chains, subscripts with literal indexes, calls,
// await, `not`, `is` / `is not`, literals, and class tuples.
//
// Parsed expressions are interned per scenario: the same source string
// always yields the same node pointers, matching the checker's rule
// that one syntactic occurrence is one allocation.

type exprParser struct {
	src string
	pos int
}

func (s *Scenario) parseExpr(src string) (ast.Expression, error) {
	src = strings.TrimSpace(src)
	if cached, ok := s.exprs[src]; ok {
		return cached, nil
	}
	p := &exprParser{src: src}
	expr, err := p.parseIs()
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", src, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("parsing %q: trailing input at %d", src, p.pos)
	}
	s.exprs[src] = expr
	return expr, nil
}

func (p *exprParser) parseIs() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.takeWord("is") {
		op := "is"
		if p.takeWord("not") {
			op = "is not"
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpression{Token: opToken(op), Left: left, Operator: op, Right: right}, nil
	}
	return left, nil
}

func (p *exprParser) parseUnary() (ast.Expression, error) {
	p.skipSpace()
	if p.takeWord("not") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpression{Token: opToken("not"), Operator: "not", Operand: operand}, nil
	}
	if p.takeWord("await") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if call, ok := operand.(*ast.CallExpression); ok {
			call.InAwait = true
		}
		return &ast.AwaitExpression{Token: opToken("await"), Value: operand}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		switch {
		case p.take('.'):
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			expr = &ast.MemberAccess{Token: opToken("."), Target: expr, Member: name}
		case p.take('['):
			index, err := p.parseIs()
			if err != nil {
				return nil, err
			}
			if !p.take(']') {
				return nil, fmt.Errorf("expected ] at %d", p.pos)
			}
			expr = &ast.IndexExpression{Token: opToken("["), Base: expr, Index: index}
		case p.take('('):
			call := &ast.CallExpression{Token: opToken("("), Function: expr}
			p.skipSpace()
			if !p.take(')') {
				for {
					arg, err := p.parseIs()
					if err != nil {
						return nil, err
					}
					call.Args = append(call.Args, arg)
					p.skipSpace()
					if p.take(',') {
						continue
					}
					if p.take(')') {
						break
					}
					return nil, fmt.Errorf("expected , or ) at %d", p.pos)
				}
			}
			expr = call
		default:
			return expr, nil
		}
	}
}

func (p *exprParser) parsePrimary() (ast.Expression, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	c := p.src[p.pos]
	switch {
	case c == '(':
		p.pos++
		var elements []ast.Expression
		for {
			el, err := p.parseIs()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			p.skipSpace()
			if p.take(',') {
				continue
			}
			if p.take(')') {
				break
			}
			return nil, fmt.Errorf("expected , or ) at %d", p.pos)
		}
		if len(elements) == 1 {
			return elements[0], nil
		}
		return &ast.TupleExpression{Token: opToken("("), Elements: elements}, nil

	case c == '"':
		end := strings.IndexByte(p.src[p.pos+1:], '"')
		if end < 0 {
			return nil, fmt.Errorf("unterminated string at %d", p.pos)
		}
		value := p.src[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return &ast.StringLiteral{Token: token.Token{Type: token.STRING, Lexeme: value}, Value: value}, nil

	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		value, _ := new(big.Int).SetString(p.src[start:p.pos], 10)
		return &ast.IntegerLiteral{Token: token.Token{Type: token.INT, Lexeme: p.src[start:p.pos]}, Value: value}, nil

	default:
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		switch name {
		case "None":
			return &ast.NoneLiteral{Token: token.Token{Type: token.KEYWORD, Lexeme: "None"}}, nil
		case "True", "False":
			return &ast.BooleanLiteral{Token: token.Token{Type: token.KEYWORD, Lexeme: name}, Value: name == "True"}, nil
		}
		return &ast.Identifier{Token: token.Token{Type: token.IDENT, Lexeme: name}, Value: name}, nil
	}
}

func (p *exprParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if unicode.IsLetter(r) || r == '_' || (p.pos > start && unicode.IsDigit(r)) {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", fmt.Errorf("expected identifier at %d", p.pos)
	}
	return p.src[start:p.pos], nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) take(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

// takeWord consumes word only when it appears as a whole word.
func (p *exprParser) takeWord(word string) bool {
	p.skipSpace()
	end := p.pos + len(word)
	if end > len(p.src) || p.src[p.pos:end] != word {
		return false
	}
	if end < len(p.src) {
		r := rune(p.src[end])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return false
		}
	}
	p.pos = end
	return true
}

func opToken(lexeme string) token.Token {
	return token.Token{Type: token.OP, Lexeme: lexeme}
}
