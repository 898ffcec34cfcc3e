package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/xdrop/cartel/pkg/client/config"
	"github.com/xdrop/cartel/pkg/client/request"
	"github.com/xdrop/cartel/pkg/manifest"
	"github.com/xdrop/cartel/pkg/types"
)

// newClient builds a request.Client against the configured daemon URL,
// honoring a --daemon-url override on any subcommand.
func newClient(cmd *cobra.Command) (*request.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if override, _ := cmd.Flags().GetString("daemon-url"); override != "" {
		cfg.DaemonURL = override
	}
	return request.New(cfg.DaemonURL), nil
}

// loadManifest discovers and parses cartel.yml starting from the
// current working directory, falling back to ~/.cartel for a default
// manifest location.
func loadManifest() ([]*types.ModuleDefinition, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	defaultDir, err := config.Dir()
	if err != nil {
		defaultDir = ""
	}
	return manifest.Load(cwd, defaultDir)
}

func findModule(defs []*types.ModuleDefinition, name string) *types.ModuleDefinition {
	for _, d := range defs {
		if d.Name == name {
			return d
		}
	}
	return nil
}
