package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stackscope/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, _ []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "stackscope %s\n", version.Version)
	if version.GitCommit != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", version.GitCommit)
	}
	if version.BuildDate != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "built:  %s\n", version.BuildDate)
	}
	return nil
}
