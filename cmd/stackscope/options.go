package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stackscope/internal/bytecode"
	"stackscope/internal/config"
	"stackscope/internal/vm"
)

// loadOptions resolves engine options: defaults, then the --config file.
// Per-command flags override individual fields afterwards.
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Options{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// colorEnabled resolves the --color flag against the terminal.
func colorEnabled(cmd *cobra.Command) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return isTerminal(os.Stdout), nil
	default:
		return false, fmt.Errorf("invalid color mode: %q (expected: auto|on|off)", mode)
	}
}

// assembleFile reads and assembles a textual program.
func assembleFile(path string) (*bytecode.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer f.Close()
	return bytecode.Assemble(programName(path), f)
}

func programName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// parseArgs converts --arg values into VM values: integers, true/false, or
// plain strings.
func parseArgs(raw []string) []vm.Value {
	out := make([]vm.Value, 0, len(raw))
	for _, s := range raw {
		switch {
		case s == "true":
			out = append(out, vm.Bool(true))
		case s == "false":
			out = append(out, vm.Bool(false))
		default:
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				out = append(out, vm.Int(n))
			} else {
				out = append(out, vm.Str(s))
			}
		}
	}
	return out
}
