package problemgen

import "github.com/bem130/rubyquiz/internal/quiz"

// variant is one rendering of a hide value for a row. Rows whose value
// contains listkey tokens have one variant per list entry.
type variant struct {
	tokens quiz.Tokens
	text   string
}

// expandVariants resolves value against row, expanding each top-level
// listkey into its entries (cartesian product, capped at limit).
func expandVariants(value quiz.Tokens, row quiz.Row, limit int) []variant {
	partial := []quiz.Tokens{{}}
	for _, tok := range value {
		lk, ok := tok.(quiz.ListKey)
		if !ok {
			for i := range partial {
				partial[i] = append(partial[i], tok)
			}
			continue
		}
		entries := quiz.ListEntries(row, lk.Field)
		if len(entries) == 0 {
			continue
		}
		next := make([]quiz.Tokens, 0, len(partial)*len(entries))
		for _, base := range partial {
			for _, entry := range entries {
				if limit > 0 && len(next) >= limit {
					break
				}
				combined := make(quiz.Tokens, 0, len(base)+len(entry))
				combined = append(combined, base...)
				combined = append(combined, entry...)
				next = append(next, combined)
			}
		}
		partial = next
	}

	out := make([]variant, 0, len(partial))
	for _, toks := range partial {
		out = append(out, variant{tokens: toks, text: quiz.TokensToPlainText(toks, row)})
	}
	return out
}

func variantTexts(vs []variant) map[string]bool {
	set := make(map[string]bool, len(vs))
	for _, v := range vs {
		set[v.text] = true
	}
	return set
}
