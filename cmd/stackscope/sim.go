package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stackscope/internal/sim"
	"stackscope/internal/ui"
)

var simCmd = &cobra.Command{
	Use:   "sim [flags] <file.sasm>",
	Short: "Statically simulate a program against an abstract stack",
	Long:  `Replay a program's instructions against an abstract operand stack, without executing them, and print the per-step stack evolution`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSim,
}

func init() {
	simCmd.Flags().Int("entry", 0, "entry instruction offset")
	simCmd.Flags().Int("max-steps", 0, "step cap for the pass (0 uses the configured default)")
}

func runSim(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	entry, err := cmd.Flags().GetInt("entry")
	if err != nil {
		return fmt.Errorf("failed to get entry flag: %w", err)
	}
	maxSteps, err := cmd.Flags().GetInt("max-steps")
	if err != nil {
		return fmt.Errorf("failed to get max-steps flag: %w", err)
	}
	if maxSteps > 0 {
		opts.MaxSteps = maxSteps
	}

	prog, err := assembleFile(args[0])
	if err != nil {
		return err
	}
	simOpts, err := opts.Sim()
	if err != nil {
		return err
	}
	if simOpts.MaxSteps == 0 {
		simOpts.MaxSteps = sim.DefaultMaxSteps
	}

	t, err := sim.Simulate(prog, entry, simOpts)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	colorize, err := colorEnabled(cmd)
	if err != nil {
		return err
	}
	return ui.RenderTable(os.Stdout, prog, t, colorize)
}
