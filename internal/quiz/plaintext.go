package quiz

import (
	"strconv"
	"strings"

	"github.com/bem130/rubyquiz/internal/content"
)

// DefaultListSeparator joins listkey entries when no separator is given.
const DefaultListSeparator = ", "

// maxResolveDepth bounds recursion through token-valued row fields.
const maxResolveDepth = 8

// TokensToPlainText flattens tokens resolved against row into comparable
// text. Readings are dropped and content markup is flattened.
func TokensToPlainText(tokens Tokens, row Row) string {
	var b strings.Builder
	writeTokens(&b, tokens, row, 0)
	return strings.TrimSpace(b.String())
}

// ListEntries returns the entries of a listkey field. Each entry of an
// array field is a token array, a string or a single token object; a
// scalar field counts as one entry.
func ListEntries(row Row, field string) []Tokens {
	v, ok := row[field]
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return []Tokens{valueTokens(v)}
	}
	out := make([]Tokens, 0, len(items))
	for _, item := range items {
		out = append(out, valueTokens(item))
	}
	return out
}

// FieldTokens returns the tokens a key token renders for row.
func FieldTokens(row Row, field string) Tokens {
	return valueTokens(row[field])
}

// SourceValue resolves a katex or smiles source against row.
func SourceValue(value, field string, row Row) string {
	if field == "" {
		return value
	}
	switch v := row[field].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return formatScalar(v)
	}
}

func writeTokens(b *strings.Builder, tokens Tokens, row Row, depth int) {
	if depth > maxResolveDepth {
		return
	}
	for _, t := range tokens {
		switch tok := t.(type) {
		case Text:
			b.WriteString(content.Flatten(tok.Value))
		case Key:
			writeValue(b, row[tok.Field], row, depth+1)
		case ListKey:
			sep := tok.Separator
			if sep == "" {
				sep = DefaultListSeparator
			}
			for i, entry := range ListEntries(row, tok.Field) {
				if i > 0 {
					b.WriteString(sep)
				}
				writeTokens(b, entry, row, depth+1)
			}
		case Ruby:
			writeTokens(b, tok.Base, row, depth+1)
		case Katex:
			b.WriteString(SourceValue(tok.Value, tok.Field, row))
		case Smiles:
			b.WriteString(SourceValue(tok.Value, tok.Field, row))
		case Hide:
			writeTokens(b, tok.Value, row, depth+1)
		case Break, Rule:
			b.WriteString("\n")
		}
	}
}

func writeValue(b *strings.Builder, v any, row Row, depth int) {
	switch x := v.(type) {
	case nil:
	case string:
		b.WriteString(content.Flatten(x))
	case float64:
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	default:
		writeTokens(b, valueTokens(x), row, depth)
	}
}
