package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bem130/rubyquiz/internal/quiz"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check quiz files and report errors with their position",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		type checked struct {
			def *quiz.Definition
			err error
		}
		results := make([]checked, len(args))

		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, path := range args {
			g.Go(func() error {
				def, err := quiz.LoadFile(path)
				results[i] = checked{def: def, err: err}
				return nil
			})
		}
		_ = g.Wait()

		out := cmd.OutOrStdout()
		failed := 0
		for i, path := range args {
			r := results[i]
			if r.err != nil {
				failed++
				fmt.Fprintf(out, "✗ %s\n    %v\n", path, r.err)
				continue
			}
			rows := 0
			for _, ds := range r.def.DataSets {
				rows += len(ds.Rows)
			}
			fmt.Fprintf(out, "✓ %s  (%d patterns, %d rows)\n", path, len(r.def.Patterns), rows)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed validation", failed, len(args))
		}
		return nil
	},
}
