package cmd

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/render"
	"github.com/bem130/rubyquiz/internal/spacedrep"
	"github.com/bem130/rubyquiz/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")
		quizID := ""
		if path != "" {
			quizID = quiz.NormalizeFileKey(path)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.SessionRepo().UserStats(ctx, cfg.User, quizID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		scope := "all quizzes"
		if quizID != "" {
			scope = quizID
		}
		fmt.Fprintf(out, "User %s, %s\n", cfg.User, scope)
		fmt.Fprintln(out, strings.Repeat("─", 40))
		accuracy := 0.0
		if stats.TotalAttempts > 0 {
			accuracy = float64(stats.CorrectAttempts) / float64(stats.TotalAttempts) * 100
		}
		fmt.Fprintf(out, "%-14s %d\n", "Attempts", stats.TotalAttempts)
		fmt.Fprintf(out, "%-14s %d (%.0f%%)\n", "Correct", stats.CorrectAttempts, accuracy)
		fmt.Fprintf(out, "%-14s %d\n", "Unsure", stats.WeakAttempts)
		fmt.Fprintf(out, "%-14s %d\n", "Don't know", stats.IdkCount)
		if stats.TotalAttempts > 0 {
			lipgloss.Fprintln(out, render.New().Progress("Accuracy", accuracy/100, 40))
		}

		if quizID == "" {
			return nil
		}
		counts, err := spacedrep.NewScheduler(st.ScheduleRepo()).Counts(ctx, cfg.User, quizID)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%-14s %6s %6s\n", "State", "Total", "Due")
		for _, state := range []store.ScheduleState{store.StateNew, store.StateLearning, store.StateRelearning, store.StateReview} {
			c := counts[state]
			fmt.Fprintf(out, "%-14s %6d %6d\n", state, c.Total, c.Due)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().StringP("file", "f", "", "Limit to one quiz file")
}
