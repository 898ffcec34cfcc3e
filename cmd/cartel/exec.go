package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/xdrop/cartel/pkg/types"
)

var execCmd = &cobra.Command{
	Use:   "exec NAME -- CMD...",
	Short: "Run a command in a module's working directory and environment",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	name := args[0]
	command := args[1:]

	defs, err := loadManifest()
	if err != nil {
		return err
	}
	def := findModule(defs, name)
	if def == nil {
		return fmt.Errorf("no such module: %s", name)
	}

	child := exec.Command(command[0], command[1:]...)
	child.Dir = def.WorkingDir
	child.Env = mergedEnv(def)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	return child.Run()
}

// mergedEnv layers a module's declared environment on top of the
// current process environment: inherit, then override.
func mergedEnv(def *types.ModuleDefinition) []string {
	env := os.Environ()
	for k, v := range def.Environment {
		env = append(env, k+"="+v)
	}
	return env
}
