package problemgen

import "errors"

// ErrNoQuestionsAvailable means the current patterns and filters cannot
// produce another question. It is not a transient failure.
var ErrNoQuestionsAvailable = errors.New("no questions available")
