// Package api exposes the daemon's lifecycle operations over a local,
// unauthenticated JSON HTTP interface, routed with gorilla/mux for its
// path-parameterized routes (/api/v1/log/{name}, /api/v1/health/{key}).
package api

import "github.com/xdrop/cartel/pkg/types"

// ModuleDefinition is the wire shape of a module definition posted to
// /api/v1/deploy or /api/v1/get_plan.
type ModuleDefinition struct {
	Kind                string            `json:"kind"`
	Name                string            `json:"name"`
	Command             []string          `json:"command,omitempty"`
	Environment         map[string]string `json:"environment,omitempty"`
	LogFilePath         *string           `json:"log_file_path,omitempty"`
	Dependencies        []string          `json:"dependencies,omitempty"`
	OrderedDependencies []string          `json:"ordered_dependencies,omitempty"`
	WorkingDir          *string           `json:"working_dir,omitempty"`
	TerminationSignal   string            `json:"termination_signal,omitempty"`
	PostUp              []string          `json:"post_up,omitempty"`
	Post                []string          `json:"post,omitempty"`
	Checks              []string          `json:"checks,omitempty"`
	AlwaysAwaitReadinessProbe bool        `json:"always_await_readiness_probe,omitempty"`
	ReadinessProbe      *Probe            `json:"readiness_probe,omitempty"`
	LivenessProbe       *Probe            `json:"liveness_probe,omitempty"`
}

// Probe is tagged by Kind: "exec", "log_line", or "net".
type Probe struct {
	Kind       string   `json:"kind"`
	Retries    int      `json:"retries,omitempty"`
	Command    []string `json:"command,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty"`
	LineRegex  string   `json:"line_regex,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	Port       int      `json:"port,omitempty"`
}

func (p *Probe) toSpec() *types.ProbeSpec {
	if p == nil {
		return nil
	}
	spec := &types.ProbeSpec{Retries: p.Retries}
	switch p.Kind {
	case "log_line":
		spec.Kind = types.ProbeLogLine
		spec.LineRegex = p.LineRegex
	case "net":
		spec.Kind = types.ProbeNet
		spec.Host = p.Hostname
		spec.Port = p.Port
	default:
		spec.Kind = types.ProbeExec
		spec.Command = p.Command
		spec.WorkingDir = p.WorkingDir
	}
	return spec
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// toInternal converts the wire definition to the internal tagged-union
// representation.
func (d *ModuleDefinition) toInternal() (*types.ModuleDefinition, error) {
	def := &types.ModuleDefinition{
		Name:                d.Name,
		Kind:                types.ModuleKind(d.Kind),
		Command:             d.Command,
		Environment:         d.Environment,
		WorkingDir:          strOrEmpty(d.WorkingDir),
		Dependencies:        d.Dependencies,
		OrderedDependencies: d.OrderedDependencies,
		LogFilePath:         strOrEmpty(d.LogFilePath),
	}
	if def.Kind == "" {
		def.Kind = types.KindService
	}

	sig := types.TermSignal(d.TerminationSignal)
	if sig == "" {
		sig = types.DefaultTermSignal
	}

	switch def.Kind {
	case types.KindService, types.KindTask:
		def.ServiceTask = &types.ServiceTaskSpec{
			TerminationSignal:         sig,
			PostUp:                    d.PostUp,
			Post:                      d.Post,
			Checks:                    d.Checks,
			AlwaysAwaitReadinessProbe: d.AlwaysAwaitReadinessProbe,
			ReadinessProbe:            d.ReadinessProbe.toSpec(),
			LivenessProbe:             d.LivenessProbe.toSpec(),
		}
	case types.KindCheck:
		def.Check = &types.CheckSpec{Command: d.Command, WorkingDir: strOrEmpty(d.WorkingDir)}
	case types.KindGroup:
		def.Group = &types.GroupSpec{Checks: d.Checks}
	case types.KindShell:
		def.Shell = &types.ShellSpec{Command: d.Command, WorkingDir: strOrEmpty(d.WorkingDir)}
	}

	return def, nil
}

// DeploymentCommand is the body of POST /api/v1/deploy.
type DeploymentCommand struct {
	ModuleDefinition ModuleDefinition `json:"module_definition"`
	Force            bool             `json:"force"`
}

// DeploymentResponse is the response of POST /api/v1/deploy.
type DeploymentResponse struct {
	Success  bool    `json:"success"`
	Deployed bool    `json:"deployed"`
	Monitor  *string `json:"monitor,omitempty"`
}

// TaskDeploymentCommand is the body of POST /api/v1/tasks/deploy.
type TaskDeploymentCommand struct {
	TaskDefinition ModuleDefinition `json:"task_definition"`
}

// TaskDeploymentResponse is the response of POST /api/v1/tasks/deploy.
type TaskDeploymentResponse struct {
	Success bool `json:"success"`
}

// ModuleOperation is the operation requested by POST /api/v1/operation.
type ModuleOperation string

const (
	OperationStop    ModuleOperation = "STOP"
	OperationRestart ModuleOperation = "RESTART"
)

// OperationCommand is the body of POST /api/v1/operation.
type OperationCommand struct {
	ModuleName string          `json:"module_name"`
	Operation  ModuleOperation `json:"operation"`
}

// OperationResponse is the response of POST /api/v1/operation.
type OperationResponse struct {
	Success bool `json:"success"`
}

// ModuleStatus is one entry of GET /api/v1/status's response.
type ModuleStatus struct {
	Name            string  `json:"name"`
	PID             int     `json:"pid"`
	Status          string  `json:"status"`
	LivenessStatus  *string `json:"liveness_status,omitempty"`
	ExitCode        *int    `json:"exit_code,omitempty"`
	TimeSinceStatus int64   `json:"time_since_status"`
}

// ModuleStatusResponse is the response of GET /api/v1/status.
type ModuleStatusResponse struct {
	Status []ModuleStatus `json:"status"`
}

// LogResponse is the response of GET /api/v1/log/{name}.
type LogResponse struct {
	LogFilePath string `json:"log_file_path"`
}

// HealthResponse is the response of GET /api/v1/health/{key}.
type HealthResponse struct {
	ProbeStatus *string `json:"probe_status,omitempty"`
}

// GetPlanRequest is the body of POST /api/v1/get_plan.
type GetPlanRequest struct {
	Modules []ModuleDefinition `json:"modules"`
}

// GetPlanResponse is the response of POST /api/v1/get_plan.
type GetPlanResponse struct {
	Plan map[string]string `json:"plan"`
}

// ErrorResponse is the error envelope returned with HTTP 400.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
