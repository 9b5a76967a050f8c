package cmd

import (
	"errors"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/render"
)

// runGenerate prints count questions for one pattern, marking the correct
// option. It prints at most as many questions as the pattern can produce.
func runGenerate(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	patternRef, _ := cmd.Flags().GetString("pattern")
	count, _ := cmd.Flags().GetInt("count")

	if len(files) == 0 || patternRef == "" || count <= 0 {
		_ = cmd.Usage()
		return fmt.Errorf("--file, --pattern and a positive --count are required")
	}

	def, err := loadQuizzes(files)
	if err != nil {
		return err
	}
	patternID, ok := def.ResolvePatternID(patternRef)
	if !ok {
		return fmt.Errorf("pattern not found: %s", patternRef)
	}

	engine := problemgen.New(def, problemgen.DefaultConfig())
	if err := engine.SetSinglePatternMode(patternID); err != nil {
		return err
	}
	capacity := engine.PatternCapacity(patternID)
	if capacity <= 0 {
		return fmt.Errorf("pattern %s cannot produce any questions", patternID)
	}

	total := min(count, capacity)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", strings.Join(files, ", "))
	fmt.Fprintf(out, "Pattern: %s (up to %d questions)\n", patternID, capacity)
	fmt.Fprintf(out, "Questions: %d\n\n", total)

	r := render.New()
	for i := 1; i <= total; i++ {
		q, err := engine.Generate()
		if err != nil {
			if errors.Is(err, problemgen.ErrNoQuestionsAvailable) {
				return fmt.Errorf("no more questions can be generated: %w", err)
			}
			return fmt.Errorf("generate question %d: %w", i, err)
		}
		lipgloss.Fprintln(out, formatGenerated(r, def, q, i))
		fmt.Fprintln(out)
	}
	return nil
}

func formatGenerated(r *render.Renderer, def *quiz.Definition, q *problemgen.Question, n int) string {
	var b strings.Builder
	b.WriteString(r.Header(n, 0))
	b.WriteString("\n")
	b.WriteString(r.Prompt(def, q))
	b.WriteString("\n")
	b.WriteString(r.Options(def, q, true))
	if tips := r.Tips(def, q); tips != "" {
		b.WriteString("\n")
		b.WriteString(tips)
	}
	return b.String()
}
