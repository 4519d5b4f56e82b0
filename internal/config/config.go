// Package config holds the engine options recognized across both tracing
// modes, with TOML file loading for the CLI.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"stackscope/internal/capture"
	"stackscope/internal/sim"
)

// Options are the recognized engine options.
type Options struct {
	// MaxSteps caps a static simulation pass. 0 keeps the default.
	MaxSteps int `toml:"max_steps"`
	// ValueReprLimit truncates captured value representations, in display
	// cells. 0 keeps the default; negative disables the bound.
	ValueReprLimit int `toml:"value_repr_limit"`
	// BranchPolicy names the static simulator's conditional-jump policy.
	BranchPolicy string `toml:"branch_policy"`
}

// Default returns the options used when no config file is given.
func Default() Options {
	return Options{
		MaxSteps:       sim.DefaultMaxSteps,
		ValueReprLimit: capture.DefaultReprLimit,
		BranchPolicy:   sim.FallthroughOnly.String(),
	}
}

// Load reads options from a TOML file, filling unset fields from Default.
func Load(path string) (Options, error) {
	opts := Default()
	meta, err := toml.DecodeFile(path, &opts)
	if err != nil {
		return Options{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Options{}, fmt.Errorf("config: %s: unrecognized option %q", path, undecoded[0].String())
	}
	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks option values.
func (o Options) Validate() error {
	if o.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative, got %d", o.MaxSteps)
	}
	if _, err := sim.ParseBranchPolicy(o.BranchPolicy); err != nil {
		return err
	}
	return nil
}

// Sim converts the options into static-simulator options.
func (o Options) Sim() (sim.Options, error) {
	policy, err := sim.ParseBranchPolicy(o.BranchPolicy)
	if err != nil {
		return sim.Options{}, err
	}
	return sim.Options{MaxSteps: o.MaxSteps, Branch: policy}, nil
}

// Capture converts the options into capture options.
func (o Options) Capture() capture.Options {
	return capture.Options{ValueReprLimit: o.ValueReprLimit}
}
