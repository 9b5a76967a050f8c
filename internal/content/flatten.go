package content

import "strings"

// PlainText flattens segments into the canonical comparable form used for
// answer deduplication. Readings are dropped, math is re-wrapped in its
// delimiters and gloss alternates are appended in parentheses.
func PlainText(segs []Segment) string {
	var b strings.Builder
	writePlain(&b, segs)
	return b.String()
}

// Flatten is PlainText(Parse(text)).
func Flatten(text string) string {
	return PlainText(Parse(text))
}

func writePlain(b *strings.Builder, segs []Segment) {
	for _, s := range segs {
		switch seg := s.(type) {
		case Plain:
			b.WriteString(seg.Text)
		case Escape:
			b.WriteString(seg.Text)
		case Math:
			delim := "$"
			if seg.Display {
				delim = "$$"
			}
			b.WriteString(delim)
			b.WriteString(seg.TeX)
			b.WriteString(delim)
		case Annotated:
			writePlain(b, seg.Base)
		case Gloss:
			writePlain(b, seg.Base)
			if len(seg.Glosses) == 0 {
				continue
			}
			alts := make([]string, len(seg.Glosses))
			for i, g := range seg.Glosses {
				alts[i] = PlainText(g)
			}
			b.WriteString(" (")
			b.WriteString(strings.Join(alts, " / "))
			b.WriteString(")")
		}
	}
}
