package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bem130/rubyquiz/internal/config"
	"github.com/bem130/rubyquiz/internal/distractor"
	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/session"
	"github.com/bem130/rubyquiz/internal/spacedrep"
)

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Study a quiz with spaced repetition",
	Long: `Serve due reviews first, then repair questions for confused pairs and a
limited share of new questions. Every answer updates the review schedule.`,
	RunE: runStudy,
}

func init() {
	studyCmd.Flags().StringP("file", "f", "", "Quiz file (required)")
	studyCmd.Flags().StringP("pattern", "p", "", "Only practice this pattern")
	studyCmd.Flags().IntP("count", "c", 20, "Questions per session")
	studyCmd.Flags().Bool("drain", false, "Only work through due and repair questions")
	_ = studyCmd.MarkFlagRequired("file")
	_ = settings.BindPFlag(config.KeyStudyCount, studyCmd.Flags().Lookup("count"))
}

// selectMode narrows engine to one pattern when ref is set and returns the
// id of the mode in use.
func selectMode(engine *problemgen.Engine, def *quiz.Definition, ref string) (string, error) {
	if ref == "" {
		if len(def.Modes) == 0 {
			return "", nil
		}
		return def.Modes[0].ID, nil
	}
	id, ok := def.ResolvePatternID(ref)
	if !ok {
		return "", fmt.Errorf("pattern not found: %s", ref)
	}
	if err := engine.SetSinglePatternMode(id); err != nil {
		return "", err
	}
	return quiz.SingletonModeID(def.Pattern(id)), nil
}

func runStudy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("file")
	patternRef, _ := cmd.Flags().GetString("pattern")
	drain, _ := cmd.Flags().GetBool("drain")
	count := cfg.Study.Count

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

	log := appLogger.With("user_id", cfg.User, "quiz_id", def.Meta.ID)
	runner := session.NewStudyRunner(session.StudyDeps{
		Engine:    engine,
		Scheduler: spacedrep.NewScheduler(st.ScheduleRepo()),
		Questions: st.QuestionRepo(),
		Confusion: st.ConfusionRepo(),
		Concepts:  st.ConceptRepo(),
		Sessions:  st.SessionRepo(),
		Strategy:  distractor.New(st.ConfusionRepo(), distractor.WithOptionSource(engine), distractor.WithLogger(log)),
		Logger:    log,
	})
	err = runner.Start(ctx, session.StudyConfig{
		UserID:        cfg.User,
		QuizID:        def.Meta.ID,
		QuizTitle:     def.Meta.Title,
		ModeID:        modeID,
		QuestionCount: count,
		Lookahead:     cfg.Study.Lookahead,
		PerStateLimit: cfg.Study.PerStateLimit,
		DrainDue:      drain,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d due, up to %d new\n", def.Meta.Title, runner.Backlog(), runner.NewQuota())
	fmt.Fprintf(out, "%s\n\n", answerHelp)
	return play(ctx, out, cmd.InOrStdin(), runner, def, count)
}
