package quiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	rows := []Row{
		{"id": "a", "kind": "noun", "level": 1.0, "note": "x"},
		{"id": "b", "kind": "verb", "level": 2.0},
		{"id": "c", "kind": "noun", "level": 3.0, "note": ""},
	}
	tests := []struct {
		name   string
		filter string
		want   []string
	}{
		{"eq", `{"eq":{"field":"kind","value":"noun"}}`, []string{"a", "c"}},
		{"neq", `{"neq":{"field":"kind","value":"noun"}}`, []string{"b"}},
		{"in", `{"in":{"field":"level","values":[1,2]}}`, []string{"a", "b"}},
		{"exists short form", `{"exists":"note"}`, []string{"a"}},
		{"exists", `{"exists":{"field":"note"}}`, []string{"a"}},
		{"not", `{"not":{"eq":{"field":"kind","value":"verb"}}}`, []string{"a", "c"}},
		{"and", `{"and":[{"eq":{"field":"kind","value":"noun"}},{"in":{"field":"level","values":[3]}}]}`, []string{"c"}},
		{"or", `{"or":[{"eq":{"field":"kind","value":"verb"}},{"exists":"note"}]}`, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw any
			require.NoError(t, json.Unmarshal([]byte(tt.filter), &raw))
			f, err := decodeFilter(raw, path{"filter"})
			require.NoError(t, err)

			var got []string
			for _, r := range FilterRows(rows, f) {
				got = append(got, r.ID())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_NilMatchesAll(t *testing.T) {
	var f *Filter
	assert.True(t, f.Match(Row{"id": "x"}))
}

func TestDecodeFilter_Errors(t *testing.T) {
	for _, src := range []string{
		`{}`,
		`{"eq":{"field":"a","value":1},"neq":{"field":"a","value":1}}`,
		`{"between":{"field":"a"}}`,
		`{"and":[]}`,
		`{"in":{"field":"a","values":3}}`,
	} {
		var raw any
		require.NoError(t, json.Unmarshal([]byte(src), &raw))
		_, err := decodeFilter(raw, path{"filter"})
		assert.Error(t, err, src)
	}
}
