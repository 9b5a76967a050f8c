package content

import "strings"

// parseStatus reports how a bracketed construct ended.
type parseStatus int

const (
	parsed parseStatus = iota
	invalid
	unterminated
)

// Parse turns annotated text into segments. It never fails: malformed ruby or
// gloss markup degrades to Plain text.
func Parse(text string) []Segment {
	var out []Segment
	for _, c := range splitMath(text) {
		if c.math != nil {
			out = append(out, *c.math)
			continue
		}
		out = append(out, parseTokens(tokenize(c.text))...)
	}
	return mergePlain(out)
}

func parseTokens(toks []token) []Segment {
	var out []Segment
	for i := 0; i < len(toks); {
		t := toks[i]
		switch {
		case t.kind == tokBreak:
			out = append(out, Escape{Text: t.text})
			i++
			continue
		case t.kind == tokSymbol && t.text == "[":
			seg, next, status := parseRuby(toks, i)
			switch status {
			case parsed:
				out = append(out, seg)
				i = next
				continue
			case unterminated:
				return appendPlain(out, joinTokens(toks[i:]))
			}
		case t.kind == tokSymbol && t.text == "{":
			seg, next, status := parseGloss(toks, i)
			switch status {
			case parsed:
				out = append(out, seg)
				i = next
				continue
			case unterminated:
				return appendPlain(out, joinTokens(toks[i:]))
			}
		}
		out = appendPlain(out, t.text)
		i++
	}
	return out
}

// parseRuby parses [Base/Reading] starting at the "[" token at start.
// Slashes after the first belong to the reading.
func parseRuby(toks []token, start int) (Annotated, int, parseStatus) {
	var base, reading strings.Builder
	slash := false
	for i := start + 1; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tokSymbol {
			switch t.text {
			case "]":
				if !slash {
					return Annotated{}, 0, invalid
				}
				var segs []Segment
				if base.Len() > 0 {
					segs = []Segment{Plain{Text: base.String()}}
				}
				return Annotated{Base: segs, Reading: reading.String()}, i + 1, parsed
			case "/":
				if !slash {
					slash = true
					continue
				}
			case "[", "{", "}":
				return Annotated{}, 0, invalid
			}
		}
		if slash {
			reading.WriteString(t.text)
		} else {
			base.WriteString(t.text)
		}
	}
	return Annotated{}, 0, unterminated
}

// parseGloss parses {Base/Alt1/...} starting at the "{" token at start. Each
// part may contain ruby blocks; nested braces invalidate the gloss.
func parseGloss(toks []token, start int) (Gloss, int, parseStatus) {
	var parts [][]Segment
	var cur []Segment
	for i := start + 1; i < len(toks); {
		t := toks[i]
		if t.kind == tokSymbol {
			switch t.text {
			case "[":
				if seg, next, status := parseRuby(toks, i); status == parsed {
					cur = append(cur, seg)
					i = next
					continue
				}
			case "/":
				parts = append(parts, mergePlain(cur))
				cur = nil
				i++
				continue
			case "}":
				parts = append(parts, mergePlain(cur))
				return Gloss{Base: parts[0], Glosses: parts[1:]}, i + 1, parsed
			case "{":
				return Gloss{}, 0, invalid
			}
		}
		cur = appendPlain(cur, t.text)
		i++
	}
	return Gloss{}, 0, unterminated
}

// joinTokens rebuilds the source text of toks, escapes included.
func joinTokens(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.raw)
	}
	return b.String()
}
