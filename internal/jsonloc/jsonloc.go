// Package jsonloc is a small JSON parser that keeps source positions for
// every node, so validation errors can point at a line and column.
package jsonloc

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Kind is the JSON type of a Node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Pos is a location in the source. Line and Column are 1-based; Column
// counts runes.
type Pos struct {
	Offset int
	Line   int
	Column int
}

// Node is a parsed JSON value with its source span.
type Node struct {
	Kind   Kind
	Start  Pos
	End    Pos
	Bool   bool
	Number float64
	String string
	Items  []*Node
	Fields []*Property
}

// Property is one member of an object.
type Property struct {
	Key    string
	KeyPos Pos
	Value  *Node
}

// SyntaxError reports malformed input.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Parse parses a complete JSON document.
func Parse(data []byte) (*Node, error) {
	p := &parser{src: data, pos: Pos{Line: 1, Column: 1}}
	p.skipSpace()
	n, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q after top-level value", p.peek())
	}
	return n, nil
}

// Field returns the value of the named member, or nil.
func (n *Node) Field(name string) *Node {
	if n == nil || n.Kind != Object {
		return nil
	}
	for _, f := range n.Fields {
		if f.Key == name {
			return f.Value
		}
	}
	return nil
}

// Lookup walks path (string keys and int indexes) from n. It returns the
// deepest node reached, which is n itself when nothing matches.
func (n *Node) Lookup(path ...any) *Node {
	cur := n
	for _, step := range path {
		var next *Node
		switch s := step.(type) {
		case string:
			next = cur.Field(s)
		case int:
			if cur.Kind == Array && s >= 0 && s < len(cur.Items) {
				next = cur.Items[s]
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
	return cur
}

// Interface converts the node to the encoding/json data model
// (map[string]any, []any, float64, string, bool, nil).
func (n *Node) Interface() any {
	switch n.Kind {
	case Bool:
		return n.Bool
	case Number:
		return n.Number
	case String:
		return n.String
	case Array:
		out := make([]any, len(n.Items))
		for i, it := range n.Items {
			out[i] = it.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			out[f.Key] = f.Value.Interface()
		}
		return out
	}
	return nil
}

type parser struct {
	src []byte
	pos Pos
}

func (p *parser) eof() bool { return p.pos.Offset >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos.Offset]
}

func (p *parser) advance() {
	c := p.src[p.pos.Offset]
	p.pos.Offset++
	switch {
	case c == '\n':
		p.pos.Line++
		p.pos.Column = 1
	case c&0xC0 != 0x80:
		p.pos.Column++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.advance()
		default:
			return
		}
	}
}

func (p *parser) value() (*Node, error) {
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.peek(); {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		start := p.pos
		s, err := p.str()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: String, Start: start, End: p.pos, String: s}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	case c == 't':
		return p.literal("true", &Node{Kind: Bool, Bool: true})
	case c == 'f':
		return p.literal("false", &Node{Kind: Bool})
	case c == 'n':
		return p.literal("null", &Node{Kind: Null})
	default:
		return nil, p.errorf("unexpected character %q", c)
	}
}

func (p *parser) literal(word string, n *Node) (*Node, error) {
	n.Start = p.pos
	if !bytes.HasPrefix(p.src[p.pos.Offset:], []byte(word)) {
		return nil, p.errorf("invalid literal, expected %s", word)
	}
	for range word {
		p.advance()
	}
	n.End = p.pos
	return n, nil
}

func (p *parser) object() (*Node, error) {
	n := &Node{Kind: Object, Start: p.pos}
	p.advance()
	p.skipSpace()
	if p.peek() == '}' {
		p.advance()
		n.End = p.pos
		return n, nil
	}
	for {
		p.skipSpace()
		if p.peek() != '"' {
			return nil, p.errorf("expected string key")
		}
		keyPos := p.pos
		key, err := p.str()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.advance()
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		n.Fields = append(n.Fields, &Property{Key: key, KeyPos: keyPos, Value: val})
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.advance()
		case '}':
			p.advance()
			n.End = p.pos
			return n, nil
		default:
			return nil, p.errorf("expected ',' or '}' in object")
		}
	}
}

func (p *parser) array() (*Node, error) {
	n := &Node{Kind: Array, Start: p.pos}
	p.advance()
	p.skipSpace()
	if p.peek() == ']' {
		p.advance()
		n.End = p.pos
		return n, nil
	}
	for {
		p.skipSpace()
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, item)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.advance()
		case ']':
			p.advance()
			n.End = p.pos
			return n, nil
		default:
			return nil, p.errorf("expected ',' or ']' in array")
		}
	}
}

func (p *parser) number() (*Node, error) {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.advance()
			continue
		}
		break
	}
	text := string(p.src[start.Offset:p.pos.Offset])
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("invalid number %q", text)}
	}
	return &Node{Kind: Number, Start: start, End: p.pos, Number: f}, nil
}

func (p *parser) str() (string, error) {
	p.advance() // opening quote
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		c := p.peek()
		switch {
		case c == '"':
			p.advance()
			return b.String(), nil
		case c == '\\':
			p.advance()
			if err := p.escape(&b); err != nil {
				return "", err
			}
		case c < 0x20:
			return "", p.errorf("control character in string")
		default:
			r, size := utf8.DecodeRune(p.src[p.pos.Offset:])
			b.WriteRune(r)
			for i := 0; i < size; i++ {
				p.advance()
			}
		}
	}
}

func (p *parser) escape(b *strings.Builder) error {
	if p.eof() {
		return p.errorf("unterminated escape")
	}
	c := p.peek()
	p.advance()
	switch c {
	case '"', '\\', '/':
		b.WriteByte(c)
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'u':
		r, err := p.hex4()
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(r) && bytes.HasPrefix(p.src[p.pos.Offset:], []byte(`\u`)) {
			p.advance()
			p.advance()
			r2, err := p.hex4()
			if err != nil {
				return err
			}
			r = utf16.DecodeRune(r, r2)
		}
		b.WriteRune(r)
	default:
		return p.errorf("invalid escape '\\%c'", c)
	}
	return nil
}

func (p *parser) hex4() (rune, error) {
	if p.pos.Offset+4 > len(p.src) {
		return 0, p.errorf("short unicode escape")
	}
	v, err := strconv.ParseUint(string(p.src[p.pos.Offset:p.pos.Offset+4]), 16, 32)
	if err != nil {
		return 0, p.errorf("invalid unicode escape")
	}
	for i := 0; i < 4; i++ {
		p.advance()
	}
	return rune(v), nil
}
