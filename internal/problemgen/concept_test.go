package problemgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupedQuiz = `{
  "title": "Groups",
  "description": "Test quiz",
  "version": 3,
  "table": [
    {"id": "r1", "name": "a", "group": "g1"},
    {"id": "r2", "name": "b", "group": "g1"},
    {"id": "r3", "name": "c", "group": "g2"},
    {"id": "r4", "name": "d", "group": "g3"},
    {"id": "r5", "name": "e", "group": "g4"}
  ],
  "patterns": [
    {"id": "p", "tokens": [
      {"type": "hide", "value": [{"type": "key", "field": "name"}],
       "answer": {"mode": "choice_from_entities", "distractorSource": {"groupField": "group"}}}
    ]}
  ]
}`

func labels(q *Question) map[string]bool {
	out := make(map[string]bool)
	for _, o := range q.Answers[0].Options {
		out[o.DisplayKey] = true
	}
	return out
}

func TestConceptOption(t *testing.T) {
	def := loadDef(t, groupedQuiz)
	cfg := DefaultConfig()
	cfg.DistractorCount = 1
	e := New(def, cfg).WithRand(NewLCG("concept"))

	var q *Question
	for i := 0; i < 50; i++ {
		got, err := e.Generate()
		require.NoError(t, err)
		if got.Meta.EntityID == "r1" {
			q = got
			break
		}
	}
	require.NotNil(t, q, "no question about r1 generated")

	names := map[string]string{"r3": "c", "r4": "d", "r5": "e"}
	for _, concept := range []string{"r3", "r4", "r5"} {
		taken := labels(q)
		opt, ok := e.ConceptOption(q, concept, taken)
		if taken[names[concept]] {
			assert.False(t, ok, "label of %s already shown", concept)
			continue
		}
		require.True(t, ok, concept)
		assert.Equal(t, concept, opt.EntityID)
		assert.Equal(t, names[concept], opt.DisplayKey)
		assert.Equal(t, concept, opt.ConceptID)
		assert.False(t, opt.IsCorrect)
		assert.Equal(t, "file:test", opt.DataSetID)
	}

	_, ok := e.ConceptOption(q, "r2", labels(q))
	assert.False(t, ok, "r2 shares the correct row's group")
	_, ok = e.ConceptOption(q, "r1", nil)
	assert.False(t, ok, "the correct row is never a distractor")
	_, ok = e.ConceptOption(q, "r3", map[string]bool{"c": true})
	assert.False(t, ok, "taken labels are skipped")
	_, ok = e.ConceptOption(q, "missing", nil)
	assert.False(t, ok)
}

func TestServes(t *testing.T) {
	def := loadDef(t, `{
  "title": "Two",
  "description": "Test quiz",
  "version": 3,
  "table": [{"id": "r1", "a": "x", "b": "y"}, {"id": "r2", "a": "z", "b": "w"}],
  "patterns": [
    {"id": "first", "tokens": [{"type": "hide", "value": [{"type": "key", "field": "a"}], "answer": {"mode": "choice_from_entities"}}]},
    {"id": "second", "tokens": [{"type": "hide", "value": [{"type": "key", "field": "b"}], "answer": {"mode": "choice_from_entities"}}]}
  ]
}`)
	e := New(def, DefaultConfig())
	assert.True(t, e.Serves("test::first"))
	assert.True(t, e.Serves("test::second"))

	require.NoError(t, e.SetSinglePatternMode("test::second"))
	assert.False(t, e.Serves("test::first"))
	assert.True(t, e.Serves("test::second"))
	assert.False(t, e.Serves("test::unknown"))
}
