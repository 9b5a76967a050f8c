package content

import "strings"

// chunk is the output of the math split pass: either plain text still to be
// tokenized, or a finished math segment.
type chunk struct {
	text string
	math *Math
}

// splitMath separates $...$ and $$...$$ spans from the surrounding text.
// Delimiters are only recognized outside of [ ] and { } annotations.
func splitMath(s string) []chunk {
	var chunks []chunk
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			chunks = append(chunks, chunk{text: plain.String()})
			plain.Reset()
		}
	}

	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		if isEscaped(s, i) {
			plain.WriteByte(c)
			i++
			continue
		}
		switch c {
		case '[', '{':
			depth++
		case ']', '}':
			if depth > 0 {
				depth--
			}
		case '$':
			if depth != 0 {
				break
			}
			if i+1 < len(s) && s[i+1] == '$' {
				if end := findDelimiter(s, i+2, "$$"); end >= 0 {
					flush()
					chunks = append(chunks, chunk{math: &Math{TeX: s[i+2 : end], Display: true}})
					i = end + 2
					continue
				}
				plain.WriteString("$$")
				i += 2
				continue
			}
			if end := findDelimiter(s, i+1, "$"); end >= 0 {
				flush()
				chunks = append(chunks, chunk{math: &Math{TeX: s[i+1 : end]}})
				i = end + 1
				continue
			}
		}
		plain.WriteByte(c)
		i++
	}
	flush()
	return chunks
}

// findDelimiter returns the index of the first unescaped occurrence of delim
// at or after from, or -1.
func findDelimiter(s string, from int, delim string) int {
	for i := from; i+len(delim) <= len(s); i++ {
		if strings.HasPrefix(s[i:], delim) && !isEscaped(s, i) {
			return i
		}
	}
	return -1
}

// isEscaped reports whether s[i] is preceded by an odd number of backslashes.
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
