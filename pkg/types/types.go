// Package types defines the data model shared by every cartel package:
// module definitions as parsed from a manifest, the runtime status of a
// deployed module, and the probe/dependency vocabulary used to resolve and
// supervise them.
package types

// ModuleKind discriminates the tagged union carried by ModuleDefinition.
type ModuleKind string

const (
	KindService ModuleKind = "service"
	KindTask    ModuleKind = "task"
	KindCheck   ModuleKind = "check"
	KindGroup   ModuleKind = "group"
	KindShell   ModuleKind = "shell"
)

// TermSignal is the signal sent to a module's process group on stop.
type TermSignal string

const (
	SignalKill TermSignal = "KILL"
	SignalTerm TermSignal = "TERM"
	SignalInt  TermSignal = "INT"
)

// DefaultTermSignal is used when a manifest entry does not specify one.
const DefaultTermSignal = SignalKill

// DefaultProbeRetries is applied to a probe that doesn't specify retries.
const DefaultProbeRetries = 5

// EdgeDirection describes whether an edge's owner depends on the target
// (To) or the target depends on the owner (From).
type EdgeDirection int

const (
	DirectionTo EdgeDirection = iota
	DirectionFrom
)

// EdgeMarker labels an edge as Instant (ordering only) or WaitProbe
// (ordering plus the target's readiness probe). The resolver records the
// marker on each reached Node; the deploy driver orders modules by
// dependency level only and does not wait on any readiness probe for
// either marker.
type EdgeMarker int

const (
	MarkerInstant EdgeMarker = iota
	MarkerWaitProbe
)

// DependencyEdge is one edge generated from a module definition's
// dependency-shaped fields (dependencies, post_up, post,
// ordered_dependencies).
type DependencyEdge struct {
	Target    string
	Direction EdgeDirection
	Marker    EdgeMarker
}

// ProbeKind discriminates the ProbeSpec tagged union.
type ProbeKind string

const (
	ProbeExec    ProbeKind = "exec"
	ProbeLogLine ProbeKind = "log_line"
	ProbeNet     ProbeKind = "net"
)

// ProbeSpec is a readiness or liveness probe attached to a Service/Task
// module. Exactly one of the kind-specific payload fields is populated,
// matching Kind.
type ProbeSpec struct {
	Kind    ProbeKind
	Retries int

	// ProbeExec
	Command    []string
	WorkingDir string

	// ProbeLogLine
	LineRegex string

	// ProbeNet
	Host string
	Port int
}

// EffectiveRetries returns Retries, or DefaultProbeRetries if unset.
func (p *ProbeSpec) EffectiveRetries() int {
	if p == nil || p.Retries <= 0 {
		return DefaultProbeRetries
	}
	return p.Retries
}

// ServiceTaskSpec holds the fields specific to Service and Task modules.
type ServiceTaskSpec struct {
	TerminationSignal         TermSignal
	PostUp                    []string
	Post                      []string
	Checks                    []string
	AlwaysAwaitReadinessProbe bool
	ReadinessProbe            *ProbeSpec
	LivenessProbe             *ProbeSpec
}

// CheckSpec holds the fields specific to Check modules. A Check is never
// deployed (the planner rejects it); it exists only to be referenced by
// name from a Service, Task, or Group's Checks list. Nothing in this
// repository executes a check's command.
type CheckSpec struct {
	About      string
	Help       string
	Command    []string
	WorkingDir string
}

// GroupSpec holds the fields specific to Group modules. A Group has no
// command of its own; it exists purely to express a dependency edge set
// and an associated check list.
type GroupSpec struct {
	Checks []string
}

// ShellSpec holds the fields specific to Shell modules. A Shell module is
// deploy-inert: it can be part of a resolved dependency graph when
// selected, but the CLI's deploy driver skips it; it is only resolved by
// the CLI's `shell` verb into an interactive exec.
type ShellSpec struct {
	Command    []string
	WorkingDir string
}

// ModuleDefinition is the tagged union describing one manifest entry.
// Exactly one of ServiceTask, Check, Group, Shell is populated, selected
// by Kind.
type ModuleDefinition struct {
	Name         string
	Kind         ModuleKind
	Command      []string
	Environment  map[string]string
	WorkingDir   string
	Dependencies []string

	// OrderedDependencies impose the same deploy ordering as
	// Dependencies but without a probe wait: they generate To/Instant
	// edges, where Dependencies generate To/WaitProbe edges.
	OrderedDependencies []string

	ServiceTask *ServiceTaskSpec
	Check       *CheckSpec
	Group       *GroupSpec
	Shell       *ShellSpec

	// LogFilePath overrides the default derived log path. Empty means
	// "use the default for this name/kind".
	LogFilePath string
}

// Key returns the unique identifier used throughout the dependency graph
// and the executor's module map: the module's Name.
func (m *ModuleDefinition) Key() string { return m.Name }

// Edges returns the dependency edges generated by this definition:
//   - Dependencies        -> To,   WaitProbe
//   - OrderedDependencies -> To,   Instant
//   - PostUp              -> From, WaitProbe
//   - Post                -> From, Instant
func (m *ModuleDefinition) Edges() []DependencyEdge {
	var edges []DependencyEdge
	for _, dep := range m.Dependencies {
		edges = append(edges, DependencyEdge{Target: dep, Direction: DirectionTo, Marker: MarkerWaitProbe})
	}
	for _, dep := range m.OrderedDependencies {
		edges = append(edges, DependencyEdge{Target: dep, Direction: DirectionTo, Marker: MarkerInstant})
	}
	if m.ServiceTask != nil {
		for _, dep := range m.ServiceTask.PostUp {
			edges = append(edges, DependencyEdge{Target: dep, Direction: DirectionFrom, Marker: MarkerWaitProbe})
		}
		for _, dep := range m.ServiceTask.Post {
			edges = append(edges, DependencyEdge{Target: dep, Direction: DirectionFrom, Marker: MarkerInstant})
		}
	}
	return edges
}

// RunStatus is the lifecycle state of a deployed module.
type RunStatus string

const (
	StatusWaiting RunStatus = "WAITING"
	StatusRunning RunStatus = "RUNNING"
	StatusStopped RunStatus = "STOPPED"
	StatusExited  RunStatus = "EXITED"
)

// ModuleStatus is the executor's record of one deployed module: its last
// deployed definition plus the current lifecycle state.
type ModuleStatus struct {
	Definition  *ModuleDefinition
	Status      RunStatus
	PID         int
	Uptime      int64
	ExitTime    int64
	ExitStatus  *int
	LogFilePath string
}

// MonitorProbeStatus is the terminal/transient status of one probe poll
// sequence, published by the monitor runtime.
type MonitorProbeStatus string

const (
	MonitorPending         MonitorProbeStatus = "pending"
	MonitorSuccessful      MonitorProbeStatus = "successful"
	MonitorRetriesExceeded MonitorProbeStatus = "retries_exceeded"
	MonitorFailing         MonitorProbeStatus = "failing"
	MonitorError           MonitorProbeStatus = "error"
)

// PlannedAction is the outcome get_plan predicts for one module.
type PlannedAction string

const (
	ActionWillDeploy      PlannedAction = "will_deploy"
	ActionWillRedeploy    PlannedAction = "will_redeploy"
	ActionAlreadyDeployed PlannedAction = "already_deployed"
)
