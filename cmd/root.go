package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bem130/rubyquiz/internal/config"
	"github.com/bem130/rubyquiz/internal/logger"
	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/store"
)

var (
	settings  = config.NewViper()
	cfg       *config.Config
	appLogger = logger.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "rubyquiz",
	Short: "Table-driven quizzes with spaced repetition",
	Long: `rubyquiz builds multiple-choice questions from quiz files (a table of rows
plus question patterns) and schedules them for review.

Without a subcommand it prints generated questions for one pattern:

  rubyquiz --file kanji.json --pattern meaning --count 5`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLogger.Sync()
	},
	RunE: runGenerate,
}

// ExecuteContext runs the root command with ctx, which subcommands use for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Path to SQLite database file (overrides RUBYQUIZ_DB env var)")
	pf.String("user", "", "Learner id (default \"guest\", or RUBYQUIZ_USER)")
	pf.String("log", "", "Log format: dev or prod (default \"dev\")")
	pf.String("config", "", "Config file (default $XDG_CONFIG_HOME/rubyquiz/config.yaml)")

	_ = settings.BindPFlag(config.KeyDB, pf.Lookup("db"))
	_ = settings.BindPFlag(config.KeyUser, pf.Lookup("user"))
	_ = settings.BindPFlag(config.KeyLog, pf.Lookup("log"))

	rootCmd.Flags().StringSliceP("file", "f", nil, "Quiz file(s); several files are merged")
	rootCmd.Flags().StringP("pattern", "p", "", "Pattern id, local or <fileKey>::<id>")
	rootCmd.Flags().IntP("count", "c", 0, "Number of questions to print")

	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(capacityCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup resolves configuration and builds the logger before any command
// runs.
func setup(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("config")
	c, err := config.Load(settings, file)
	if err != nil {
		return err
	}
	l, err := logger.New(c.Log, c.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, appLogger = c, l
	if c.File != "" {
		appLogger.Debug("config loaded", "file", c.File)
	}
	return nil
}

// resolveDBPath returns the database path using --db, RUBYQUIZ_DB or the
// config file, then the default XDG path.
func resolveDBPath() (string, error) {
	if cfg != nil && cfg.DB != "" {
		return cfg.DB, store.EnsureDir(cfg.DB)
	}
	return store.DefaultDBPath()
}

func openStore() (*store.Store, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	appLogger.Debug("database opened", "path", dbPath)
	return s, nil
}

// loadQuizzes loads every path and merges them into one definition.
func loadQuizzes(paths []string) (*quiz.Definition, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("--file is required")
	}
	defs := make([]*quiz.Definition, 0, len(paths))
	for _, p := range paths {
		def, err := quiz.LoadFile(p)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return quiz.Merge(defs...)
}

// syncQuiz records the quiz revision, purging learner data for rows or
// patterns that changed since the last run.
func syncQuiz(ctx context.Context, st *store.Store, def *quiz.Definition) error {
	res, err := st.PackageRepo().Sync(ctx, def.Meta.ID, def.DataSets["file:"+def.Meta.ID], def.Patterns)
	if err != nil {
		return err
	}
	switch {
	case res.ResetAll:
		appLogger.Info("quiz patterns changed, progress reset", "quiz_id", def.Meta.ID)
	case len(res.ChangedRowIDs) > 0:
		appLogger.Info("quiz rows changed", "quiz_id", def.Meta.ID, "rows", res.ChangedRowIDs)
	}
	return nil
}
