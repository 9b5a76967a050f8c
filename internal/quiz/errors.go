package quiz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bem130/rubyquiz/internal/jsonloc"
)

// ErrUnsupportedVersion is wrapped by the ValidationError returned for quiz
// files whose version is not 3.
var ErrUnsupportedVersion = errors.New("unsupported quiz file version")

// ValidationError describes why a quiz file was rejected. Path uses the
// form patterns[2].tokens[0]; Line and Column are set when the source was
// JSON and the path could be located.
type ValidationError struct {
	Path    string
	Message string
	Line    int
	Column  int
	Err     error

	steps path
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Line > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "(line %d, column %d)", e.Line, e.Column)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// locate fills Line and Column from the parsed JSON tree.
func (e *ValidationError) locate(root *jsonloc.Node) {
	if root == nil {
		return
	}
	n := root.Lookup(e.steps...)
	e.Line, e.Column = n.Start.Line, n.Start.Column
}

// path is a position inside the quiz document: string keys and int indexes.
type path []any

func (p path) key(k string) path {
	out := make(path, len(p), len(p)+1)
	copy(out, p)
	return append(out, k)
}

func (p path) index(i int) path {
	out := make(path, len(p), len(p)+1)
	copy(out, p)
	return append(out, i)
}

func (p path) String() string {
	var b strings.Builder
	for _, step := range p {
		switch s := step.(type) {
		case string:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s)
		case int:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s))
			b.WriteByte(']')
		}
	}
	return b.String()
}

func (p path) errorf(format string, args ...any) *ValidationError {
	return &ValidationError{Path: p.String(), Message: fmt.Sprintf(format, args...), steps: p}
}
