// Package render turns questions, content markup and session results into
// terminal text.
package render

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/bem130/rubyquiz/internal/content"
	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/session"
	"github.com/bem130/rubyquiz/internal/store"
	"github.com/bem130/rubyquiz/internal/ui/theme"
)

// Blank stands in for the hidden answer in a question prompt.
const Blank = "____"

const (
	ruleWidth = 32
	maxDepth  = 8
)

// Renderer formats quiz output. A plain renderer emits no escape sequences.
type Renderer struct {
	plain bool
}

// New returns a renderer that styles output with the theme.
func New() *Renderer {
	return &Renderer{}
}

// Plain returns a renderer that emits unstyled text.
func Plain() *Renderer {
	return &Renderer{plain: true}
}

func (r *Renderer) paint(s lipgloss.Style, text string) string {
	if r.plain || text == "" {
		return text
	}
	return s.Render(text)
}

// Content renders inline markup. Ruby readings follow their base in
// parentheses and gloss alternates follow the term.
func (r *Renderer) Content(text string) string {
	var b strings.Builder
	r.writeSegments(&b, content.Parse(text))
	return b.String()
}

func (r *Renderer) writeSegments(b *strings.Builder, segs []content.Segment) {
	for _, seg := range segs {
		switch s := seg.(type) {
		case content.Plain:
			b.WriteString(s.Text)
		case content.Escape:
			b.WriteString(s.Text)
		case content.Math:
			delim := "$"
			if s.Display {
				delim = "$$"
			}
			b.WriteString(r.paint(theme.Math, delim+s.TeX+delim))
		case content.Annotated:
			r.writeSegments(b, s.Base)
			b.WriteString(r.paint(theme.Ruby, "("+s.Reading+")"))
		case content.Gloss:
			r.writeSegments(b, s.Base)
			if len(s.Glosses) == 0 {
				continue
			}
			alts := make([]string, len(s.Glosses))
			for i, g := range s.Glosses {
				var ab strings.Builder
				r.writeSegments(&ab, g)
				alts[i] = ab.String()
			}
			b.WriteString(r.paint(theme.Gloss, " ("+strings.Join(alts, " / ")+")"))
		}
	}
}

// Tokens renders a token template against row. The hide slot renders as
// Blank.
func (r *Renderer) Tokens(tokens quiz.Tokens, row quiz.Row) string {
	var b strings.Builder
	r.writeTokens(&b, tokens, row, 0)
	return strings.TrimRight(b.String(), " \n")
}

func (r *Renderer) writeTokens(b *strings.Builder, tokens quiz.Tokens, row quiz.Row, depth int) {
	if depth > maxDepth {
		return
	}
	for _, t := range tokens {
		switch tok := t.(type) {
		case quiz.Text:
			b.WriteString(r.Content(tok.Value))
		case quiz.Key:
			r.writeStyled(b, tok.Styles, func(sb *strings.Builder) {
				r.writeTokens(sb, quiz.FieldTokens(row, tok.Field), row, depth+1)
			})
		case quiz.ListKey:
			sep := tok.Separator
			if sep == "" {
				sep = quiz.DefaultListSeparator
			}
			r.writeStyled(b, tok.Styles, func(sb *strings.Builder) {
				for i, entry := range quiz.ListEntries(row, tok.Field) {
					if i > 0 {
						sb.WriteString(sep)
					}
					r.writeTokens(sb, entry, row, depth+1)
				}
			})
		case quiz.Ruby:
			r.writeStyled(b, tok.Styles, func(sb *strings.Builder) {
				r.writeTokens(sb, tok.Base, row, depth+1)
				var rb strings.Builder
				r.writeTokens(&rb, tok.Reading, row, depth+1)
				if rb.Len() > 0 {
					sb.WriteString(r.paint(theme.Ruby, "("+rb.String()+")"))
				}
			})
		case quiz.Katex:
			if src := quiz.SourceValue(tok.Value, tok.Field, row); src != "" {
				b.WriteString(r.paint(theme.Math, "$"+src+"$"))
			}
		case quiz.Smiles:
			b.WriteString(r.paint(theme.Math, quiz.SourceValue(tok.Value, tok.Field, row)))
		case quiz.Hide:
			b.WriteString(r.paint(theme.Blank, Blank))
		case quiz.Break:
			b.WriteString("\n")
		case quiz.Rule:
			b.WriteString("\n" + r.paint(theme.Rule, strings.Repeat("─", ruleWidth)) + "\n")
		}
	}
}

func (r *Renderer) writeStyled(b *strings.Builder, styles []string, fn func(*strings.Builder)) {
	if r.plain || len(styles) == 0 {
		fn(b)
		return
	}
	var inner strings.Builder
	fn(&inner)
	b.WriteString(theme.Emphasis(lipgloss.NewStyle(), styles).Render(inner.String()))
}

// Lookup finds the row a question or option refers to. It returns nil
// when the dataset or row is unknown.
func Lookup(def *quiz.Definition, dataSetID, entityID string) quiz.Row {
	if def == nil {
		return nil
	}
	ds, ok := def.DataSets[dataSetID]
	if !ok {
		return nil
	}
	row, _ := ds.Row(entityID)
	return row
}

// Prompt renders the question template with the answer hidden.
func (r *Renderer) Prompt(def *quiz.Definition, q *problemgen.Question) string {
	row := Lookup(def, q.Meta.DataSetID, q.Meta.EntityID)
	return r.paint(theme.Prompt, r.Tokens(q.Tokens, row))
}

// OptionLabel renders one option against its own row.
func (r *Renderer) OptionLabel(def *quiz.Definition, opt problemgen.Option) string {
	label := r.Tokens(opt.LabelTokens, Lookup(def, opt.DataSetID, opt.EntityID))
	if label == "" {
		return opt.DisplayKey
	}
	return label
}

// Options renders the numbered choices of the first answer part. When
// reveal is set the correct option and the learner's pick are marked.
func (r *Renderer) Options(def *quiz.Definition, q *problemgen.Question, reveal bool) string {
	if len(q.Answers) == 0 {
		return ""
	}
	part := q.Answers[0]
	var b strings.Builder
	for i, opt := range part.Options {
		idx := r.paint(theme.OptionIndex, fmt.Sprintf("%d)", i+1))
		label := r.OptionLabel(def, opt)
		marker := ""
		if reveal {
			switch {
			case i == part.CorrectIndex:
				label = r.paint(theme.Correct, label)
				marker = " " + r.paint(theme.Correct, "✓")
			case part.UserSelectedIndex != nil && *part.UserSelectedIndex == i:
				label = r.paint(theme.Incorrect, label)
				marker = " " + r.paint(theme.Incorrect, "✗")
			default:
				label = r.paint(theme.Option, label)
			}
		} else {
			label = r.paint(theme.Option, label)
		}
		fmt.Fprintf(&b, "  %s %s%s\n", idx, label, marker)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Question renders the prompt followed by its options.
func (r *Renderer) Question(def *quiz.Definition, q *problemgen.Question) string {
	return r.Prompt(def, q) + "\n\n" + r.Options(def, q, false)
}

// Feedback reports how an answer was graded.
func (r *Renderer) Feedback(def *quiz.Definition, q *problemgen.Question, result store.Result) string {
	answer := ""
	if opt, ok := q.CorrectOption(); ok {
		answer = r.OptionLabel(def, opt)
	}
	switch result {
	case store.ResultStrong:
		return r.paint(theme.Correct, "✓ Correct!")
	case store.ResultWeak:
		return r.paint(theme.Correct, "✓ Correct") + r.paint(theme.Hint, " (unsure)")
	case store.ResultIdk:
		return r.paint(theme.Hint, "Skipped.") + " Answer: " + answer
	default:
		return r.paint(theme.Incorrect, "✗ Wrong.") + " Answer: " + answer
	}
}

// Tips renders the pattern tips against the correct row.
func (r *Renderer) Tips(def *quiz.Definition, q *problemgen.Question) string {
	if len(q.Tips) == 0 {
		return ""
	}
	row := Lookup(def, q.Meta.DataSetID, q.Meta.EntityID)
	var b strings.Builder
	for _, tip := range q.Tips {
		label := tip.Label
		if label == "" {
			label = "Tip"
		}
		fmt.Fprintf(&b, "%s %s\n", r.paint(theme.Hint, label+":"), r.Tokens(tip.Tokens, row))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Badge labels the stage a question was served from.
func (r *Renderer) Badge(stage session.Stage) string {
	text := string(stage)
	if r.plain {
		return "[" + text + "]"
	}
	switch stage {
	case session.StageNew:
		return theme.BadgeNew.Render(text)
	case session.StageRepair:
		return theme.BadgeRepair.Render(text)
	case session.StageTest:
		return theme.BadgeTest.Render(text)
	default:
		return theme.BadgeDue.Render(text)
	}
}

// Header is the separator printed above each question.
func (r *Renderer) Header(n, total int) string {
	if total > 0 {
		return r.paint(theme.Title, fmt.Sprintf("── Question %d/%d ──", n, total))
	}
	return r.paint(theme.Title, fmt.Sprintf("── Question %d ──", n))
}

// Summary renders the end-of-session report.
func (r *Renderer) Summary(s session.Summary) string {
	var b strings.Builder
	b.WriteString(r.paint(theme.Title, fmt.Sprintf("── Summary: %d/%d correct ──", s.Correct, s.Attempts)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Accuracy: %.0f%%  Time: %s\n", s.Accuracy*100, s.Duration.Round(time.Second))
	results := []store.Result{store.ResultStrong, store.ResultWeak, store.ResultWrong, store.ResultIdk}
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, fmt.Sprintf("%s %d", res, s.ByResult[res]))
	}
	b.WriteString(r.paint(theme.Subtitle, strings.Join(parts, "  ")))
	return b.String()
}
