package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rubyquiz version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		v := version
		if v == "(devel)" && ok && info.Main.Version != "" {
			v = info.Main.Version
		}
		fmt.Fprintln(out, "rubyquiz", v)
		if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
			return
		}
		fmt.Fprintf(out, "go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if !ok {
			return
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" || s.Key == "vcs.time" {
				fmt.Fprintf(out, "%-9s %s\n", s.Key[len("vcs."):]+":", s.Value)
			}
		}
	},
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "Also print Go and VCS build details")
}
