// Package content parses the inline markup used in quiz text: ruby
// annotations ([Base/Reading]), glosses ({Base/Alt1/Alt2}) and TeX math
// ($...$, $$...$$).
package content

// Kind identifies the concrete type of a Segment.
type Kind string

const (
	KindPlain     Kind = "plain"
	KindMath      Kind = "math"
	KindAnnotated Kind = "annotated"
	KindGloss     Kind = "gloss"
	KindEscape    Kind = "escape"
)

// Segment is one node of parsed content. The set of implementations is
// closed: Plain, Math, Annotated, Gloss and Escape.
type Segment interface {
	Kind() Kind
	isSegment()
}

// Plain is literal text.
type Plain struct {
	Text string
}

// Math is a TeX fragment. Display is true for $$...$$.
type Math struct {
	TeX     string
	Display bool
}

// Annotated is a ruby block: base text with a reading rendered above it.
// Base only ever holds Plain segments.
type Annotated struct {
	Base    []Segment
	Reading string
}

// Gloss is a term with zero or more alternate readings or translations.
// Base and each alternate may contain Plain and Annotated segments but
// never another Gloss.
type Gloss struct {
	Base    []Segment
	Glosses [][]Segment
}

// Escape marks a line break.
type Escape struct {
	Text string
}

func (Plain) Kind() Kind     { return KindPlain }
func (Math) Kind() Kind      { return KindMath }
func (Annotated) Kind() Kind { return KindAnnotated }
func (Gloss) Kind() Kind     { return KindGloss }
func (Escape) Kind() Kind    { return KindEscape }

func (Plain) isSegment()     {}
func (Math) isSegment()      {}
func (Annotated) isSegment() {}
func (Gloss) isSegment()     {}
func (Escape) isSegment()    {}

// appendPlain appends text to segs, merging it into a trailing Plain.
func appendPlain(segs []Segment, text string) []Segment {
	if text == "" {
		return segs
	}
	if n := len(segs); n > 0 {
		if p, ok := segs[n-1].(Plain); ok {
			segs[n-1] = Plain{Text: p.Text + text}
			return segs
		}
	}
	return append(segs, Plain{Text: text})
}

// mergePlain collapses runs of adjacent Plain segments and drops empty ones.
func mergePlain(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if p, ok := s.(Plain); ok {
			out = appendPlain(out, p.Text)
			continue
		}
		out = append(out, s)
	}
	return out
}
