package quiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_JSONRoundTrip(t *testing.T) {
	src := `["Q: ",{"type":"ruby","base":[{"type":"key","field":"kanji"}],"ruby":[{"type":"key","field":"kana"}]},` +
		`{"type":"br"},{"type":"katex","value":"x^2"},` +
		`{"type":"hide","id":"a","value":[{"type":"listkey","field":"names","separator":" / "}],` +
		`"answer":{"mode":"choice_from_entities","distractorSource":{"groupField":"g"}}}]`

	var toks Tokens
	require.NoError(t, json.Unmarshal([]byte(src), &toks))
	require.Len(t, toks, 5)
	assert.Equal(t, Text{Value: "Q: "}, toks[0])
	assert.IsType(t, Ruby{}, toks[1])
	assert.Equal(t, Katex{Value: "x^2"}, toks[3])

	out, err := json.Marshal(toks)
	require.NoError(t, err)
	var again Tokens
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, toks, again)
}

func TestTokensToPlainText(t *testing.T) {
	row := Row{
		"id":      "r1",
		"kanji":   "猫",
		"kana":    "ねこ",
		"names":   []any{[]any{"cat"}, "kitty", map[string]any{"type": "key", "field": "kanji"}},
		"formula": "E=mc^2",
		"count":   3.0,
		"marked":  "{[犬/いぬ]/dog}",
	}
	tests := []struct {
		name string
		toks Tokens
		want string
	}{
		{"text markup", Tokens{Text{Value: "[猫/ねこ]です"}}, "猫です"},
		{"key", Tokens{Key{Field: "kanji"}}, "猫"},
		{"key with gloss markup", Tokens{Key{Field: "marked"}}, "犬 (dog)"},
		{"number", Tokens{Key{Field: "count"}}, "3"},
		{"missing field", Tokens{Key{Field: "nope"}}, ""},
		{"listkey default separator", Tokens{ListKey{Field: "names"}}, "cat, kitty, 猫"},
		{"listkey separator", Tokens{ListKey{Field: "names", Separator: "|"}}, "cat|kitty|猫"},
		{"ruby drops reading", Tokens{Ruby{Base: Tokens{Key{Field: "kanji"}}, Reading: Tokens{Key{Field: "kana"}}}}, "猫"},
		{"katex field", Tokens{Katex{Field: "formula"}}, "E=mc^2"},
		{"hide value", Tokens{Text{Value: "a "}, Hide{Value: Tokens{Key{Field: "kana"}}}}, "a ねこ"},
		{"breaks", Tokens{Text{Value: "a"}, Break{}, Text{Value: "b"}, Rule{}}, "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokensToPlainText(tt.toks, row))
		})
	}
}

func TestTokensToPlainText_SelfReferenceTerminates(t *testing.T) {
	row := Row{"id": "r", "loop": map[string]any{"type": "key", "field": "loop"}}
	assert.Equal(t, "", TokensToPlainText(Tokens{Key{Field: "loop"}}, row))
}

func TestListEntries(t *testing.T) {
	row := Row{"id": "r", "one": "solo", "many": []any{"a", []any{"b", "c"}}}
	assert.Equal(t, []Tokens{{Text{Value: "solo"}}}, ListEntries(row, "one"))
	assert.Equal(t, []Tokens{{Text{Value: "a"}}, {Text{Value: "b"}, Text{Value: "c"}}}, ListEntries(row, "many"))
	assert.Nil(t, ListEntries(row, "missing"))
}
