package problemgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternCapacity(t *testing.T) {
	def := loadDef(t, animalsQuiz)
	e := New(def, DefaultConfig())

	assert.Equal(t, 4, e.PatternCapacity("test::p"))
	assert.Equal(t, 0, e.PatternCapacity("missing"))
	assert.Equal(t, map[string]int{"test::p": 4}, e.Capacities())

	// The "all" mode and the singleton mode share the pattern.
	assert.Equal(t, 4, EstimateCapacity(def))
}

func TestPatternCapacity_SingleAnswer(t *testing.T) {
	def := loadDef(t, `{
  "title": "Same",
  "description": "Test quiz",
  "version": 3,
  "table": [{"id": "r1", "term": "x"}, {"id": "r2", "term": "x"}],
  "patterns": [
    {"id": "p", "tokens": [
      {"type": "hide", "value": [{"type": "key", "field": "term"}],
       "answer": {"mode": "choice_from_entities"}}
    ]}
  ]
}`)
	assert.Equal(t, 0, New(def, DefaultConfig()).PatternCapacity("test::p"))
	assert.Equal(t, 0, EstimateCapacity(def))
}
