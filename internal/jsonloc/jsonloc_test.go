package jsonloc

import (
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Positions(t *testing.T) {
	src := "{\n  \"title\": \"猫\",\n  \"items\": [1, true, null]\n}"
	n, err := Parse([]byte(src))
	require.NoError(t, err)
	require.Equal(t, Object, n.Kind)

	title := n.Field("title")
	require.NotNil(t, title)
	assert.Equal(t, "猫", title.String)
	assert.Equal(t, 2, title.Start.Line)
	assert.Equal(t, 12, title.Start.Column)

	second := n.Lookup("items", 1)
	assert.Equal(t, Bool, second.Kind)
	assert.Equal(t, 3, second.Start.Line)
	assert.Equal(t, 16, second.Start.Column)
}

func TestLookup_StopsAtDeepestMatch(t *testing.T) {
	n, err := Parse([]byte(`{"patterns":[{"tokens":[]}]}`))
	require.NoError(t, err)

	got := n.Lookup("patterns", 0, "tokens", 3)
	assert.Equal(t, Array, got.Kind)
	assert.Equal(t, 24, got.Start.Column)
}

func TestInterface(t *testing.T) {
	n, err := Parse([]byte(`{"a":[1.5,"xé\n",false,null],"b":{}}`))
	require.NoError(t, err)
	want := map[string]any{
		"a": []any{1.5, "xé\n", false, nil},
		"b": map[string]any{},
	}
	assert.Equal(t, want, n.Interface())
}

func TestParse_SurrogatePair(t *testing.T) {
	n, err := Parse([]byte(`"😀"`))
	require.NoError(t, err)
	assert.Equal(t, "😀", n.String)
}

func TestParse_EscapedSurrogatePair(t *testing.T) {
	n, err := Parse([]byte(`["\ud83d\ude00", true]`))
	require.NoError(t, err)
	assert.Equal(t, "😀", n.Lookup(0).String)
	assert.Equal(t, Bool, n.Lookup(1).Kind)
}

func TestParse_LiteralsDoNotCopyRemainingInput(t *testing.T) {
	const count = 20000
	src := []byte("[" + strings.Repeat("true,null,false,", count) + "null]")

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	n, err := Parse(src)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)
	require.Len(t, n.Items, 3*count+1)

	// Copying the tail at every literal would allocate gigabytes here.
	allocated := after.TotalAlloc - before.TotalAlloc
	assert.Less(t, allocated, uint64(64<<20), "parse allocated %d bytes", allocated)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		col  int
	}{
		{`{"a" 1}`, 1, 6},
		{"[1,\n  2,,]", 2, 5},
		{`{"a": tru}`, 1, 7},
		{`"abc`, 1, 5},
		{`[1] x`, 1, 5},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.src))
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q): expected SyntaxError, got %v", tt.src, err)
			continue
		}
		if se.Pos.Line != tt.line || se.Pos.Column != tt.col {
			t.Errorf("Parse(%q): error at %d:%d, want %d:%d (%v)",
				tt.src, se.Pos.Line, se.Pos.Column, tt.line, tt.col, se)
		}
	}
}
