package content

import "strings"

type tokenKind int

const (
	tokText tokenKind = iota
	tokSymbol
	tokBreak
)

// token is one lexeme. raw is the source text it was read from, which
// differs from text when escapes were resolved.
type token struct {
	kind tokenKind
	text string
	raw  string
}

func isSpecial(c byte) bool {
	switch c {
	case '[', ']', '/', '{', '}':
		return true
	}
	return false
}

// tokenize splits plain text into symbol, break and text tokens. A backslash
// escapes the five special characters and another backslash, so a special
// character is literal exactly when an odd run of backslashes precedes it.
// Before any other character the backslash is kept as-is.
func tokenize(s string) []token {
	var toks []token
	var text, raw strings.Builder
	flush := func() {
		if raw.Len() > 0 {
			toks = append(toks, token{kind: tokText, text: text.String(), raw: raw.String()})
			text.Reset()
			raw.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (isSpecial(s[i+1]) || s[i+1] == '\\'):
			text.WriteByte(s[i+1])
			raw.WriteString(s[i : i+2])
			i++
		case isSpecial(c):
			flush()
			toks = append(toks, token{kind: tokSymbol, text: string(c), raw: string(c)})
		case c == '\n':
			flush()
			toks = append(toks, token{kind: tokBreak, text: "\n", raw: "\n"})
		default:
			text.WriteByte(c)
			raw.WriteByte(c)
		}
	}
	flush()
	return toks
}
