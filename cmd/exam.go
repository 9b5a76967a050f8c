package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/session"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Take a reproducible test without touching the review schedule",
	Long: `Questions are drawn from a generator seeded with --seed, so the same seed,
quiz and stored questions give the same test. Answers are recorded but do not
change the review schedule.`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringP("file", "f", "", "Quiz file (required)")
	testCmd.Flags().StringP("pattern", "p", "", "Only test this pattern")
	testCmd.Flags().String("seed", "", "Seed for question order (default random, printed)")
	testCmd.Flags().IntP("count", "c", 10, "Number of questions")
	_ = testCmd.MarkFlagRequired("file")
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("file")
	patternRef, _ := cmd.Flags().GetString("pattern")
	seed, _ := cmd.Flags().GetString("seed")
	count, _ := cmd.Flags().GetInt("count")
	if count <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	if seed == "" {
		seed = uuid.NewString()[:8]
	}

	def, err := quiz.LoadFile(path)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := syncQuiz(ctx, st, def); err != nil {
		return err
	}

	engine := problemgen.New(def, problemgen.DefaultConfig())
	modeID, err := selectMode(engine, def, patternRef)
	if err != nil {
		return err
	}

	runner := session.NewTestRunner(session.TestDeps{
		Engine:    engine,
		Questions: st.QuestionRepo(),
		Sessions:  st.SessionRepo(),
		Logger:    appLogger.With("user_id", cfg.User, "quiz_id", def.Meta.ID),
	})
	err = runner.Start(ctx, session.TestConfig{
		UserID:        cfg.User,
		QuizID:        def.Meta.ID,
		QuizTitle:     def.Meta.Title,
		ModeID:        modeID,
		Seed:          seed,
		QuestionCount: count,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d questions, seed %s\n", def.Meta.Title, count, seed)
	fmt.Fprintf(out, "%s\n\n", answerHelp)
	return play(ctx, out, cmd.InOrStdin(), runner, def, count)
}
