// Package planner implements the daemon's module-lifecycle operations:
// deploy, deploy_many, deploy_task, get_plan, and the restart/stop/status
// pass-throughs to the executor and monitor runtime.
package planner

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/xdrop/cartel/pkg/cartelerr"
	"github.com/xdrop/cartel/pkg/executor"
	"github.com/xdrop/cartel/pkg/log"
	"github.com/xdrop/cartel/pkg/monitor"
	"github.com/xdrop/cartel/pkg/types"
)

var plannerLog = log.WithComponent("planner")

// PsStatus is a summarized view of one deployed module, as returned by
// ModuleStatus.
type PsStatus struct {
	Name            string
	PID             int
	Status          types.RunStatus
	ExitCode        *int
	TimeSinceStatus int64
}

// Planner coordinates the executor and monitor runtime behind the
// operations the HTTP API and CLI call.
type Planner struct {
	executor *executor.Executor
	monitor  *monitor.Runtime
}

// New constructs a Planner over the given executor and monitor runtime.
func New(ex *executor.Executor, mon *monitor.Runtime) *Planner {
	return &Planner{executor: ex, monitor: mon}
}

// Deploy deploys a single module, or does nothing if it is already
// running with an identical definition. Returns whether a deploy
// actually occurred.
func (p *Planner) Deploy(def *types.ModuleDefinition, force bool) (bool, error) {
	if def.Kind == types.KindCheck {
		return false, &cartelerr.ValidationError{Message: fmt.Sprintf("module %q is a check and cannot be deployed", def.Name)}
	}
	existing, ok := p.executor.StatusByName(def.Name)
	if !ok {
		if err := p.executor.Run(def); err != nil {
			return false, err
		}
		return true, nil
	}

	if !force && !shouldRestart(def, existing) {
		return false, nil
	}

	if err := p.executor.Redeploy(def); err != nil {
		return false, err
	}
	return true, nil
}

// DeployWithMonitor deploys def and, if it declares a readiness probe,
// registers a readiness monitor for it, returning the monitor key (empty
// if none was created).
func (p *Planner) DeployWithMonitor(def *types.ModuleDefinition, force bool) (deployed bool, monitorKey string, err error) {
	deployed, err = p.Deploy(def, force)
	if err != nil {
		return false, "", err
	}
	if !deployed || def.ServiceTask == nil || def.ServiceTask.ReadinessProbe == nil {
		return deployed, "", nil
	}

	key := monitor.NewMonitorKey(def.Name)
	logPath, _ := p.executor.LogPath(def.Name)
	p.monitor.NewReadinessMonitor(key, def.ServiceTask.ReadinessProbe, logPath)

	if def.ServiceTask.LivenessProbe != nil {
		livenessKey := monitor.NewMonitorKey(def.Name)
		p.monitor.NewLivenessMonitor(livenessKey, def.ServiceTask.LivenessProbe, logPath)
	}

	return deployed, key, nil
}

// DeployMany deploys each module in defs whose name appears in
// selection, returning per-module deploy results. selection must be a
// subset of defs' names.
func (p *Planner) DeployMany(defs []*types.ModuleDefinition, selection []string) (map[string]bool, error) {
	byName := make(map[string]*types.ModuleDefinition, len(defs))
	selectionSet := make(map[string]bool, len(selection))
	for _, d := range defs {
		byName[d.Name] = d
	}
	for _, s := range selection {
		selectionSet[s] = true
		if _, ok := byName[s]; !ok {
			return nil, &cartelerr.SubsetNotFound{}
		}
	}

	results := make(map[string]bool, len(selection))
	for _, def := range defs {
		if !selectionSet[def.Name] {
			continue
		}
		deployed, err := p.Deploy(def, false)
		if err != nil {
			return nil, err
		}
		results[def.Name] = deployed
	}
	return results, nil
}

// DeployTask synchronously executes a Task module to completion and
// returns its exit code. Unlike Service modules, a Task is not tracked
// in the executor's running-module map afterward.
func (p *Planner) DeployTask(def *types.ModuleDefinition) (int, error) {
	if def.Kind != types.KindTask {
		return -1, &cartelerr.ValidationError{Message: fmt.Sprintf("module %q is not a task", def.Name)}
	}

	var name string
	var args []string
	if len(def.Command) > 0 {
		name, args = def.Command[0], def.Command[1:]
	}
	cmd := exec.Command(name, args...)
	cmd.Dir = def.WorkingDir

	start := time.Now()
	err := cmd.Run()
	plannerLog.Info().Str("task", def.Name).Dur("duration", time.Since(start)).Msg("task finished")

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return -1, &cartelerr.SpawnFailure{Name: def.Name, Err: err}
		}
	}

	if code != 0 {
		return code, &cartelerr.TaskFailed{TaskName: def.Name, Code: code}
	}
	return code, nil
}

// GetPlan predicts, for each module definition, whether deploying it
// would deploy-for-the-first-time, redeploy, or be a no-op.
func (p *Planner) GetPlan(defs []*types.ModuleDefinition) map[string]types.PlannedAction {
	plan := make(map[string]types.PlannedAction, len(defs))
	for _, def := range defs {
		existing, ok := p.executor.StatusByName(def.Name)
		switch {
		case !ok:
			plan[def.Name] = types.ActionWillDeploy
		case shouldRestart(def, existing):
			plan[def.Name] = types.ActionWillRedeploy
		default:
			plan[def.Name] = types.ActionAlreadyDeployed
		}
	}
	return plan
}

// RestartModule restarts a previously deployed module using its last
// deployed definition.
func (p *Planner) RestartModule(name string) error { return p.executor.Restart(name) }

// StopModule stops a running module.
func (p *Planner) StopModule(name string) error { return p.executor.Stop(name) }

// StopAll stops every currently running module.
func (p *Planner) StopAll() { p.executor.Cleanup() }

// Cleanup stops every currently running module; used by the signal
// handler on SIGTERM/SIGINT.
func (p *Planner) Cleanup() { p.executor.Cleanup() }

// CollectDead reaps any module whose process has exited. Typically
// called from the SIGCHLD handler.
func (p *Planner) CollectDead() { p.executor.Collect() }

// LogPath returns the log file path of a deployed module.
func (p *Planner) LogPath(name string) (string, error) { return p.executor.LogPath(name) }

// ModuleStatus returns a summarized status list for every deployed
// module.
func (p *Planner) ModuleStatus() []PsStatus {
	statuses := p.executor.AllStatuses()
	out := make([]PsStatus, 0, len(statuses))
	now := time.Now().Unix()
	for _, m := range statuses {
		var since int64
		switch m.Status {
		case types.StatusRunning:
			since = now - m.Uptime
		case types.StatusStopped, types.StatusExited:
			since = now - m.ExitTime
		}
		out = append(out, PsStatus{
			Name:            m.Definition.Name,
			PID:             m.PID,
			Status:          m.Status,
			ExitCode:        m.ExitStatus,
			TimeSinceStatus: since,
		})
	}
	return out
}

// MonitorStatus returns the published status of a monitor key.
func (p *Planner) MonitorStatus(key string) (types.MonitorProbeStatus, bool) {
	return p.monitor.Status(key)
}

// shouldRestart decides whether re-deploying def over the existing
// status should actually replace the running process: true if the
// module isn't currently running, or if command, environment, log path,
// working directory, or termination signal differ from what's deployed.
func shouldRestart(def *types.ModuleDefinition, existing *types.ModuleStatus) bool {
	if existing.Status != types.StatusRunning {
		return true
	}
	current := existing.Definition

	if !equalCommand(current.Command, def.Command) {
		return true
	}
	if !equalEnv(current.Environment, def.Environment) {
		return true
	}
	if current.LogFilePath != def.LogFilePath {
		return true
	}
	if current.WorkingDir != def.WorkingDir {
		return true
	}
	return terminationSignal(current) != terminationSignal(def)
}

func terminationSignal(def *types.ModuleDefinition) types.TermSignal {
	if def.ServiceTask == nil || def.ServiceTask.TerminationSignal == "" {
		return types.DefaultTermSignal
	}
	return def.ServiceTask.TerminationSignal
}

func equalCommand(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalEnv(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
