package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/bem130/rubyquiz/internal/capacity"
	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity <file>...",
	Short: "Estimate how many distinct questions quiz files can produce",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCapacity,
}

func init() {
	capacityCmd.Flags().Bool("patterns", false, "Also list the capacity of every pattern")
}

func loadQuizFile(ctx context.Context, ref string) (*quiz.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return quiz.LoadFile(ref)
}

func runCapacity(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	perPattern, _ := cmd.Flags().GetBool("patterns")

	sched := capacity.New(loadQuizFile,
		capacity.WithBudget(cfg.Capacity.Budget),
		capacity.WithRate(rate.Limit(cfg.Capacity.Rate)),
		capacity.WithLogger(appLogger),
		capacity.WithOnUpdate(func(r capacity.Result) {
			appLogger.Debug("capacity updated", "key", r.Key, "capacity", r.Capacity, "status", r.Status)
		}),
	)
	for _, path := range args {
		sched.EnqueueQuiz(path)
	}
	const totalID = "total"
	if len(args) > 1 {
		sched.EnqueueEntry(capacity.Entry{ID: totalID, Refs: args})
	}
	if err := sched.Drain(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-40s  %8s  %s\n", "File", "Capacity", "Status")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	failed := 0
	for _, path := range args {
		r, _ := sched.Capacity(path)
		status := string(r.Status)
		if r.Err != nil {
			failed++
			status = fmt.Sprintf("%s: %v", r.Status, r.Err)
		}
		fmt.Fprintf(out, "%-40s  %8d  %s\n", path, r.Capacity, status)
		if perPattern && r.Err == nil {
			printPatternCapacities(out, path)
		}
	}
	if r, ok := sched.EntryCapacity(totalID); ok {
		fmt.Fprintln(out, strings.Repeat("─", 60))
		fmt.Fprintf(out, "%-40s  %8d\n", "Total", r.Capacity)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be loaded", failed, len(args))
	}
	return nil
}

func printPatternCapacities(out io.Writer, path string) {
	def, err := quiz.LoadFile(path)
	if err != nil {
		return
	}
	caps := problemgen.New(def, problemgen.DefaultConfig()).Capacities()
	for _, p := range def.Patterns {
		fmt.Fprintf(out, "  %-38s  %8d\n", p.LocalID, caps[p.ID])
	}
}
