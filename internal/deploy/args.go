package deploy

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// tuple is a parenthesized sequence; lists parse to []any
type tuple []any

// ParseArgs parses a constructor argument literal such as
// `('Token', 'TKN', 1_000_000, True, ['0xabc...'])`.
//
// Supported values: single or double quoted strings, integers (decimal, 0x hex,
// negative, underscores), True/False/true/false, lists in brackets and nested
// tuples. A parenthesized single value without a trailing comma is one argument.
func ParseArgs(literal string) ([]any, error) {
	p := &argParser{src: literal}
	p.skipSpace()
	if p.done() {
		return nil, fmt.Errorf("%w: empty argument literal", ErrEncoding)
	}

	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}

	if t, ok := v.(tuple); ok {
		return []any(t), nil
	}
	return []any{v}, nil
}

type argParser struct {
	src string
	pos int
}

func (p *argParser) done() bool {
	return p.pos >= len(p.src)
}

func (p *argParser) peek() byte {
	return p.src[p.pos]
}

func (p *argParser) skipSpace() {
	for !p.done() && unicode.IsSpace(rune(p.peek())) {
		p.pos++
	}
}

func (p *argParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: argument literal at offset %d: %s", ErrEncoding, p.pos, fmt.Sprintf(format, args...))
}

func (p *argParser) value() (any, error) {
	p.skipSpace()
	if p.done() {
		return nil, p.errorf("unexpected end of input")
	}

	switch c := p.peek(); {
	case c == '(':
		return p.sequence('(', ')')
	case c == '[':
		return p.sequence('[', ']')
	case c == '\'' || c == '"':
		return p.str()
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.integer()
	case unicode.IsLetter(rune(c)):
		return p.word()
	default:
		return nil, p.errorf("unexpected %q", string(c))
	}
}

func (p *argParser) sequence(open, closing byte) (any, error) {
	p.pos++ // open
	var items []any
	trailingComma := false

	for {
		p.skipSpace()
		if p.done() {
			return nil, p.errorf("missing %q", string(closing))
		}
		if p.peek() == closing {
			p.pos++
			break
		}

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		trailingComma = false

		p.skipSpace()
		if p.done() {
			return nil, p.errorf("missing %q", string(closing))
		}
		switch p.peek() {
		case ',':
			p.pos++
			trailingComma = true
		case closing:
		default:
			return nil, p.errorf("expected ',' or %q", string(closing))
		}
	}

	if open == '[' {
		if items == nil {
			items = []any{}
		}
		return items, nil
	}
	// (x) groups, (x,) is a one-element tuple
	if len(items) == 1 && !trailingComma {
		return items[0], nil
	}
	return tuple(items), nil
}

func (p *argParser) str() (any, error) {
	quote := p.peek()
	p.pos++

	var sb strings.Builder
	for !p.done() {
		c := p.peek()
		p.pos++
		switch c {
		case quote:
			return sb.String(), nil
		case '\\':
			if p.done() {
				return nil, p.errorf("unterminated escape")
			}
			esc := p.peek()
			p.pos++
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *argParser) integer() (any, error) {
	start := p.pos
	for !p.done() {
		c := p.peek()
		if c == ',' || c == ')' || c == ']' || unicode.IsSpace(rune(c)) {
			break
		}
		p.pos++
	}

	raw := p.src[start:p.pos]
	text := strings.ReplaceAll(raw, "_", "")
	sign := ""
	if text != "" && (text[0] == '-' || text[0] == '+') {
		sign, text = text[:1], text[1:]
	}

	base := 10
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base, text = 16, text[2:]
	}

	n, ok := new(big.Int).SetString(text, base)
	if !ok || text == "" {
		p.pos = start
		return nil, p.errorf("invalid integer %q", raw)
	}
	if sign == "-" {
		n.Neg(n)
	}
	return n, nil
}

func (p *argParser) word() (any, error) {
	start := p.pos
	for !p.done() && (unicode.IsLetter(rune(p.peek())) || unicode.IsDigit(rune(p.peek())) || p.peek() == '_') {
		p.pos++
	}

	switch w := p.src[start:p.pos]; w {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	default:
		p.pos = start
		return nil, p.errorf("unknown identifier %q", w)
	}
}
