package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"stackscope/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "stackscope",
	Short:         "Stack-machine execution tracer",
	Long:          `stackscope traces stack-machine programs: statically, by replaying instructions against an abstract operand stack, or dynamically, by instrumenting a live run`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(animateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to a TOML options file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
