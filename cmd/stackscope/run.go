package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stackscope/internal/capture"
	"stackscope/internal/trace"
	"stackscope/internal/ui"
	"stackscope/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file.sasm>",
	Short: "Execute a program under dynamic capture",
	Long:  `Execute a program on the reference VM with capture instrumentation installed, then print the recorded trace with concrete values`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCapture,
}

func init() {
	runCmd.Flags().String("entry-func", "main", "function to invoke")
	runCmd.Flags().StringArray("arg", nil, "argument passed to the entry function (repeatable)")
	runCmd.Flags().Int("repr-limit", 0, "value representation limit in display cells (0 uses the configured default)")
	runCmd.Flags().Duration("timeout", 0, "request a cooperative stop after this duration (0 = run to completion)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	entryFunc, err := cmd.Flags().GetString("entry-func")
	if err != nil {
		return fmt.Errorf("failed to get entry-func flag: %w", err)
	}
	rawArgs, err := cmd.Flags().GetStringArray("arg")
	if err != nil {
		return fmt.Errorf("failed to get arg flag: %w", err)
	}
	reprLimit, err := cmd.Flags().GetInt("repr-limit")
	if err != nil {
		return fmt.Errorf("failed to get repr-limit flag: %w", err)
	}
	if reprLimit != 0 {
		opts.ValueReprLimit = reprLimit
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}

	prog, err := assembleFile(args[0])
	if err != nil {
		return err
	}
	machine := vm.New(prog)
	machine.Out = cmd.OutOrStdout()
	vmArgs := parseArgs(rawArgs)

	var (
		t      *trace.Trace
		runErr error
	)
	if timeout > 0 {
		t, runErr = captureWithTimeout(machine, entryFunc, vmArgs, opts.Capture(), timeout)
	} else {
		t, runErr = capture.Run(machine, func() error {
			_, err := machine.Run(entryFunc, vmArgs)
			return err
		}, opts.Capture())
	}
	if t == nil {
		return runErr
	}

	colorize, err := colorEnabled(cmd)
	if err != nil {
		return err
	}
	if err := ui.RenderTable(os.Stdout, prog, t, colorize); err != nil {
		return err
	}
	// The partial trace was printed; the program's own failure still
	// propagates.
	return runErr
}

// captureWithTimeout runs the target on a worker goroutine and requests a
// cooperative stop when the deadline passes; whatever was in flight is
// recorded before teardown.
func captureWithTimeout(machine *vm.VM, entryFunc string, args []vm.Value, opts capture.Options, timeout time.Duration) (*trace.Trace, error) {
	s, err := capture.Start(machine, opts)
	if err != nil {
		return nil, err
	}

	timer := time.AfterFunc(timeout, s.Interrupt)
	defer timer.Stop()

	var g errgroup.Group
	var runErr error
	g.Go(func() error {
		_, err := machine.Run(entryFunc, args)
		runErr = err
		return nil
	})
	_ = g.Wait()

	t, stopErr := s.Stop()
	if stopErr != nil {
		return t, stopErr
	}
	if runErr != nil && !errors.Is(runErr, capture.ErrStopRequested) {
		return t, runErr
	}
	return t, nil
}
