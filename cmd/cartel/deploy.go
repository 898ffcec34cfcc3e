package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xdrop/cartel/pkg/client/deploy"
	"github.com/xdrop/cartel/pkg/client/progress"
	"github.com/xdrop/cartel/pkg/client/request"
	"github.com/xdrop/cartel/pkg/client/terminal"
	"github.com/xdrop/cartel/pkg/types"
)

var deployCmd = &cobra.Command{
	Use:   "deploy [names...]",
	Short: "Deploy one or more modules from the manifest",
	RunE:  runDeploy,
}

func init() {
	deployCmd.Flags().Bool("force", false, "Redeploy even if the running definition is unchanged")
	deployCmd.Flags().Bool("skip-checks", false, "Do not deploy check modules")
	deployCmd.Flags().Bool("skip-readiness-checks", false, "Drop readiness probes from the deployed definitions")
	deployCmd.Flags().Bool("only-selected", false, "Deploy only the named modules, not their dependencies")
	deployCmd.Flags().Bool("serial", false, "Deploy one module at a time")
	deployCmd.Flags().Int("threads", 4, "Maximum concurrent deploys per dependency level")
	deployCmd.Flags().Bool("wait", false, "Wait (up to 30s) for the selected modules to report RUNNING before returning")
	deployCmd.Flags().StringArray("env", nil, "Additional KEY=VALUE environment override (repeatable)")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	defs, err := loadManifest()
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	skipChecks, _ := cmd.Flags().GetBool("skip-checks")
	skipReadiness, _ := cmd.Flags().GetBool("skip-readiness-checks")
	onlySelected, _ := cmd.Flags().GetBool("only-selected")
	serial, _ := cmd.Flags().GetBool("serial")
	threads, _ := cmd.Flags().GetInt("threads")
	wait, _ := cmd.Flags().GetBool("wait")
	envOverrides, _ := cmd.Flags().GetStringArray("env")

	if skipChecks {
		defs = filterOutChecks(defs)
	}
	if skipReadiness {
		for _, d := range defs {
			if d.ServiceTask != nil {
				d.ServiceTask.ReadinessProbe = nil
			}
		}
	}
	applyEnvOverrides(defs, envOverrides)

	selected := args
	if len(selected) == 0 {
		for _, d := range defs {
			selected = append(selected, d.Name)
		}
	}
	if onlySelected {
		defs = restrictTo(defs, selected)
	}

	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	var reporter *progress.Reporter
	if terminal.IsInteractive() {
		reporter = progress.Default(len(selected))
	}

	result, err := deploy.Run(client, defs, deploy.Options{
		Force:    force,
		Serial:   serial,
		Threads:  threads,
		Selected: selected,
	}, reporter)
	if reporter != nil {
		reporter.Finish()
	}
	if err != nil {
		return err
	}

	if wait {
		waitForReadiness(client, selected)
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("%d module(s) failed to deploy", len(result.Errors))
	}
	return nil
}

func filterOutChecks(defs []*types.ModuleDefinition) []*types.ModuleDefinition {
	out := make([]*types.ModuleDefinition, 0, len(defs))
	for _, d := range defs {
		if d.Kind != types.KindCheck {
			out = append(out, d)
		}
	}
	return out
}

func restrictTo(defs []*types.ModuleDefinition, names []string) []*types.ModuleDefinition {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]*types.ModuleDefinition, 0, len(names))
	for _, d := range defs {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

func applyEnvOverrides(defs []*types.ModuleDefinition, overrides []string) {
	if len(overrides) == 0 {
		return
	}
	parsed := make(map[string]string, len(overrides))
	for _, kv := range overrides {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				parsed[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for _, d := range defs {
		if d.Environment == nil {
			d.Environment = make(map[string]string, len(parsed))
		}
		for k, v := range parsed {
			d.Environment[k] = v
		}
	}
}

// waitForReadiness polls module status until every selected module
// reports RUNNING, or a 30-second timeout elapses. Best-effort: the
// monitor key returned by a deploy is per-request and not threaded back
// to this driver, so this settles for "process is running" rather than
// "readiness probe succeeded".
func waitForReadiness(client *request.Client, names []string) {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		var resp struct {
			Status []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"status"`
		}
		if err := client.GetJSON("/api/v1/status", &resp); err != nil {
			return
		}
		pending := false
		byName := make(map[string]string, len(resp.Status))
		for _, s := range resp.Status {
			byName[s.Name] = s.Status
		}
		for _, n := range names {
			if byName[n] != "RUNNING" {
				pending = true
			}
		}
		if !pending {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}
