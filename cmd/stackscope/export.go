package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"stackscope/internal/capture"
	"stackscope/internal/sim"
	"stackscope/internal/trace"
	"stackscope/internal/vm"
)

var exportCmd = &cobra.Command{
	Use:   "export [flags] <file.sasm>",
	Short: "Produce a trace and write it to a file",
	Long:  `Produce a trace (static simulation by default, --live for a captured run) and serialize it as NDJSON or msgpack`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().Bool("live", false, "capture a real run instead of simulating")
	exportCmd.Flags().Int("entry", 0, "entry instruction offset (static mode)")
	exportCmd.Flags().String("entry-func", "main", "function to invoke (--live)")
	exportCmd.Flags().StringArray("arg", nil, "argument passed to the entry function (--live, repeatable)")
	exportCmd.Flags().String("format", "json", "output format (json|msgpack)")
	exportCmd.Flags().String("out", "-", "output path (- for stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	live, err := cmd.Flags().GetBool("live")
	if err != nil {
		return fmt.Errorf("failed to get live flag: %w", err)
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
		var runErr error
		t, runErr = capture.Run(machine, func() error {
			_, err := machine.Run(entryFunc, parseArgs(rawArgs))
			return err
		}, opts.Capture())
		if t == nil {
			return runErr
		}
		if runErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %v (exporting the partial trace)\n", runErr)
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

	var w io.Writer = os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return trace.Encode(t, w, format)
}
