package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/spacedrep"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset learner data for a quiz",
	Long: `Remove the current user's review schedule for a quiz. With --purge, drop
everything stored for the quiz: schedules of all users, saved questions,
attempts and confusion statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")
		purge, _ := cmd.Flags().GetBool("purge")
		quizID := quiz.NormalizeFileKey(path)

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		if purge {
			if err := st.PackageRepo().PurgeQuiz(ctx, quizID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Purged all data for %s.\n", quizID)
			return nil
		}
		n, err := spacedrep.NewScheduler(st.ScheduleRepo()).Reset(ctx, cfg.User, quizID)
		if err != nil {
			return fmt.Errorf("reset schedule: %w", err)
		}
		fmt.Fprintf(out, "Removed %d scheduled questions of %s for %s.\n", n, quizID, cfg.User)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringP("file", "f", "", "Quiz file (required)")
	resetCmd.Flags().Bool("purge", false, "Drop all stored data for the quiz, for every user")
	_ = resetCmd.MarkFlagRequired("file")
}
