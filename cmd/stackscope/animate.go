package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"stackscope/internal/capture"
	"stackscope/internal/sim"
	"stackscope/internal/trace"
	"stackscope/internal/ui"
	"stackscope/internal/vm"
)

var animateCmd = &cobra.Command{
	Use:   "animate [flags] <file.sasm>",
	Short: "Step through a trace interactively",
	Long:  `Produce a trace (static simulation by default, --live for a captured run) and step through it in the terminal, one event at a time`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAnimate,
}

func init() {
	animateCmd.Flags().Bool("live", false, "capture a real run instead of simulating")
	animateCmd.Flags().Int("entry", 0, "entry instruction offset (static mode)")
	animateCmd.Flags().String("entry-func", "main", "function to invoke (--live)")
	animateCmd.Flags().StringArray("arg", nil, "argument passed to the entry function (--live, repeatable)")
	animateCmd.Flags().Duration("delay", 500*time.Millisecond, "autoplay delay between steps")
}

func runAnimate(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	live, err := cmd.Flags().GetBool("live")
	if err != nil {
		return fmt.Errorf("failed to get live flag: %w", err)
	}
	delay, err := cmd.Flags().GetDuration("delay")
	if err != nil {
		return fmt.Errorf("failed to get delay flag: %w", err)
	}

	prog, err := assembleFile(args[0])
	if err != nil {
		return err
	}

	var t *trace.Trace
	if live {
		entryFunc, err := cmd.Flags().GetString("entry-func")
		if err != nil {
			return fmt.Errorf("failed to get entry-func flag: %w", err)
		}
		rawArgs, err := cmd.Flags().GetStringArray("arg")
		if err != nil {
			return fmt.Errorf("failed to get arg flag: %w", err)
		}
		machine := vm.New(prog)
		machine.Out = cmd.ErrOrStderr()
		t, err = capture.Run(machine, func() error {
			_, err := machine.Run(entryFunc, parseArgs(rawArgs))
			return err
		}, opts.Capture())
		// A failed run still produced unwind events worth animating.
		if t == nil {
			return err
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %v (animating the partial trace)\n", err)
		}
	} else {
		entry, err := cmd.Flags().GetInt("entry")
		if err != nil {
			return fmt.Errorf("failed to get entry flag: %w", err)
		}
		simOpts, err := opts.Sim()
		if err != nil {
			return err
		}
		if simOpts.MaxSteps == 0 {
			simOpts.MaxSteps = sim.DefaultMaxSteps
		}
		t, err = sim.Simulate(prog, entry, simOpts)
		if err != nil {
			return fmt.Errorf("simulation failed: %w", err)
		}
	}

	model := ui.NewAnimModel(prog, t, delay)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("animation failed: %w", err)
	}
	return nil
}
