package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/xdrop/cartel/pkg/client/terminal"
)

var shellCmd = &cobra.Command{
	Use:   "shell NAME",
	Short: "Drop into an interactive shell in a module's environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	name := args[0]

	defs, err := loadManifest()
	if err != nil {
		return err
	}
	def := findModule(defs, name)
	if def == nil {
		return fmt.Errorf("no such module: %s", name)
	}

	workingDir := def.WorkingDir
	if def.Shell != nil && def.Shell.WorkingDir != "" {
		workingDir = def.Shell.WorkingDir
	}

	child := exec.Command(terminal.Shell())
	child.Dir = workingDir
	child.Env = mergedEnv(def)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	return child.Run()
}
