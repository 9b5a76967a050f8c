package problemgen

import (
	"fmt"
	"reflect"

	"github.com/bem130/rubyquiz/internal/quiz"
)

// Engine builds questions from a quiz definition. The active mode's pattern
// weights decide which pattern is tried next.
type Engine struct {
	def     *quiz.Definition
	config  Config
	rand    Rand
	weights []quiz.PatternWeight
}

// New creates an engine using the definition's first mode.
func New(def *quiz.Definition, cfg Config) *Engine {
	e := &Engine{def: def, config: cfg, rand: DefaultRand()}
	if len(def.Modes) > 0 {
		e.weights = def.Modes[0].PatternWeights
	}
	return e
}

// Definition returns the definition the engine generates from.
func (e *Engine) Definition() *quiz.Definition { return e.def }

// WithRand returns a copy of the engine that draws from r.
func (e *Engine) WithRand(r Rand) *Engine {
	cp := *e
	cp.rand = r
	return &cp
}

// SetMode activates the weight table of the named mode.
func (e *Engine) SetMode(modeID string) error {
	m := e.def.Mode(modeID)
	if m == nil {
		return fmt.Errorf("unknown mode %q", modeID)
	}
	e.weights = m.PatternWeights
	return nil
}

// SetSinglePatternMode restricts generation to one pattern.
func (e *Engine) SetSinglePatternMode(patternID string) error {
	if e.def.Pattern(patternID) == nil {
		return fmt.Errorf("unknown pattern %q", patternID)
	}
	e.weights = []quiz.PatternWeight{{PatternID: patternID, Weight: 1}}
	return nil
}

// Generate builds one question. Patterns that cannot yield a question are
// skipped; after MaxConsecutiveSkips failures in a row it returns an error
// wrapping ErrNoQuestionsAvailable.
func (e *Engine) Generate() (*Question, error) {
	if len(e.def.Patterns) == 0 {
		return nil, fmt.Errorf("generate question: %w: definition has no patterns", ErrNoQuestionsAvailable)
	}
	table := buildWeightTable(e.def, e.weights)
	if table.total <= 0 {
		table = uniformWeightTable(e.def.Patterns)
	}

	var lastReason string
	for skips := 0; skips < e.config.MaxConsecutiveSkips; skips++ {
		p := table.pick(e.rand)
		if p == nil {
			p = e.def.Patterns[intn(e.rand, len(e.def.Patterns))]
		}
		q, reason := e.build(p)
		if q == nil {
			lastReason = reason
			continue
		}
		if verr := e.validate(q); verr != nil {
			lastReason = verr.Error()
			continue
		}
		return q, nil
	}
	return nil, fmt.Errorf("generate question: %w after %d skips (last: %s)",
		ErrNoQuestionsAvailable, e.config.MaxConsecutiveSkips, lastReason)
}

func (e *Engine) validate(q *Question) *ValidationError {
	for _, v := range e.config.Validators {
		if err := v.Validate(q); err != nil {
			err.QuestionID = q.ID
			return err
		}
	}
	return nil
}

// build tries to make a question from p. On failure it returns nil and the
// reason the pattern was skipped.
func (e *Engine) build(p *quiz.Pattern) (*Question, string) {
	ds := e.def.DataSets[p.DataSet]
	if ds == nil {
		return nil, "missing dataset " + p.DataSet
	}
	rows := quiz.FilterRows(ds.Rows, p.Filter)
	if len(rows) == 0 {
		return nil, "no rows match pattern " + p.ID
	}
	hide, ok := p.Hide()
	if !ok {
		return nil, "pattern " + p.ID + " has no hide token"
	}

	correctRow := rows[intn(e.rand, len(rows))]
	correctVariants := expandVariants(hide.Value, correctRow, e.config.MaxVariants)
	if len(correctVariants) == 0 {
		return nil, "empty answer for row " + correctRow.ID()
	}
	display := correctVariants[intn(e.rand, len(correctVariants))]
	if display.text == "" {
		return nil, "empty answer for row " + correctRow.ID()
	}
	exclude := variantTexts(correctVariants)

	pool := distractorPool(rows, correctRow, hide.GroupField())
	distractors := e.sampleDistractors(pool, hide.Value, display.text, exclude)
	if len(distractors) == 0 {
		return nil, "no distractors for row " + correctRow.ID()
	}

	options := make([]Option, 0, len(distractors)+1)
	options = append(options, makeOption(correctRow, display, ds.ID, true))
	for _, d := range distractors {
		options = append(options, makeOption(d.row, d.variant, ds.ID, false))
	}
	e.shuffle(options)

	correctIndex := 0
	for i, o := range options {
		if o.IsCorrect {
			correctIndex = i
			break
		}
	}

	answerID := hide.ID
	if answerID == "" {
		answerID = "answer_0"
	}
	return &Question{
		ID:        p.ID + "::" + correctRow.ID(),
		PatternID: p.ID,
		Tokens:    p.Tokens,
		Tips:      p.Tips,
		Answers: []AnswerPart{{
			ID:           answerID,
			Options:      options,
			CorrectIndex: correctIndex,
		}},
		Meta: QuestionMeta{DataSetID: ds.ID, EntityID: correctRow.ID()},
	}, ""
}

type distractor struct {
	row     quiz.Row
	variant variant
}

// distractorPool returns every row except correct, dropping rows that share
// the correct row's group value when groupField is set.
func distractorPool(rows []quiz.Row, correct quiz.Row, groupField string) []quiz.Row {
	var group any
	if groupField != "" {
		group = correct[groupField]
	}
	pool := make([]quiz.Row, 0, len(rows))
	for _, r := range rows {
		if r.ID() == correct.ID() {
			continue
		}
		if group != nil && reflect.DeepEqual(r[groupField], group) {
			continue
		}
		pool = append(pool, r)
	}
	return pool
}

// sampleDistractors draws candidates without replacement. A candidate is
// rejected when its label collides with any acceptable correct phrasing or
// an accepted distractor, or when its own alternatives include the correct
// label.
func (e *Engine) sampleDistractors(pool []quiz.Row, value quiz.Tokens, correctText string, exclude map[string]bool) []distractor {
	budget := max(e.config.MinSampleBudget, len(pool)*e.config.SamplesPerCandidate)
	accepted := make(map[string]bool)
	var out []distractor

	for attempts := 0; len(out) < e.config.DistractorCount && len(pool) > 0 && attempts < budget; attempts++ {
		idx := intn(e.rand, len(pool))
		cand := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)

		variants := expandVariants(value, cand, e.config.MaxVariants)
		if len(variants) == 0 {
			continue
		}
		v := variants[intn(e.rand, len(variants))]
		if v.text == "" || exclude[v.text] || accepted[v.text] {
			continue
		}
		if variantTexts(variants)[correctText] {
			continue
		}
		accepted[v.text] = true
		out = append(out, distractor{row: cand, variant: v})
	}
	return out
}

// shuffle is a Fisher-Yates shuffle.
func (e *Engine) shuffle(options []Option) {
	for i := len(options) - 1; i > 0; i-- {
		j := intn(e.rand, i+1)
		options[i], options[j] = options[j], options[i]
	}
}

func makeOption(row quiz.Row, v variant, dataSetID string, correct bool) Option {
	return Option{
		EntityID:    row.ID(),
		ConceptID:   row.ConceptID(),
		IsCorrect:   correct,
		DisplayKey:  v.text,
		LabelTokens: v.tokens,
		DataSetID:   dataSetID,
	}
}
