package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xdrop/cartel/pkg/api"
	"github.com/xdrop/cartel/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run TASK",
	Short: "Deploy and synchronously run a task module",
	Args:  cobra.ExactArgs(1),
	RunE:  runTask,
}

func runTask(cmd *cobra.Command, args []string) error {
	name := args[0]

	defs, err := loadManifest()
	if err != nil {
		return err
	}
	def := findModule(defs, name)
	if def == nil {
		return fmt.Errorf("no such task: %s", name)
	}
	if def.Kind != types.KindTask {
		return fmt.Errorf("%s is not a task module", name)
	}

	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	task := api.TaskDeploymentCommand{TaskDefinition: toWireTaskDefinition(def)}
	var resp api.TaskDeploymentResponse
	if err := client.PostJSON("/api/v1/tasks/deploy", task, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("task %s failed", name)
	}
	return nil
}

func toWireTaskDefinition(def *types.ModuleDefinition) api.ModuleDefinition {
	wire := api.ModuleDefinition{
		Kind:        string(def.Kind),
		Name:        def.Name,
		Command:     def.Command,
		Environment: def.Environment,
	}
	if def.WorkingDir != "" {
		wire.WorkingDir = &def.WorkingDir
	}
	return wire
}
