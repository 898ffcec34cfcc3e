// Package deploy drives a multi-module deploy from the CLI: it resolves
// the dependency graph into levels, then dispatches each level's modules
// to the daemon over a bounded worker pool, waiting for a level to finish
// before starting the next.
package deploy

import (
	"fmt"
	"sync"

	"github.com/xdrop/cartel/pkg/api"
	"github.com/xdrop/cartel/pkg/client/progress"
	"github.com/xdrop/cartel/pkg/client/request"
	"github.com/xdrop/cartel/pkg/dependency"
	"github.com/xdrop/cartel/pkg/types"
)

// Options controls how a deploy is driven.
type Options struct {
	Force    bool
	Serial   bool
	Threads  int
	Selected []string
}

// Result is the outcome of deploying every selected module.
type Result struct {
	Deployed map[string]bool
	Errors   map[string]error
}

const defaultThreads = 4

// Run resolves the dependency graph for opts.Selected (or every module
// in defs if unset), then deploys level by level: every module in a
// level is dispatched concurrently (bounded by opts.Threads, or serially
// if opts.Serial), and a level only starts once the previous one has
// fully completed -- this is what gives dependencies deployed before
// dependents their ordering guarantee.
func Run(client *request.Client, defs []*types.ModuleDefinition, opts Options, reporter *progress.Reporter) (*Result, error) {
	selected := opts.Selected
	if len(selected) == 0 {
		for _, d := range defs {
			selected = append(selected, d.Name)
		}
	}

	graph, err := dependency.Build(defs, selected)
	if err != nil {
		return nil, err
	}
	groups, _, err := graph.GroupSort()
	if err != nil {
		return nil, err
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = defaultThreads
	}
	if opts.Serial {
		threads = 1
	}

	result := &Result{Deployed: make(map[string]bool), Errors: make(map[string]error)}

	for _, level := range groups {
		if !deployLevel(client, level, opts.Force, threads, reporter, result) {
			return result, fmt.Errorf("deploy aborted: one or more modules in the current level failed")
		}
	}

	return result, nil
}

// deployLevel returns false if any module in the level failed to
// deploy, aborting the group rather than deploying into a partially
// failed dependency level.
func deployLevel(client *request.Client, level []*dependency.Node, force bool, threads int, reporter *progress.Reporter, result *Result) bool {
	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := true

	for _, node := range level {
		if node.Def.Kind == types.KindCheck || node.Def.Kind == types.KindShell {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(node *dependency.Node) {
			defer wg.Done()
			defer func() { <-sem }()

			if reporter != nil {
				reporter.Step(node.Key)
			}

			deployed, err := deployOne(client, node.Def, force)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[node.Key] = err
				ok = false
				if reporter != nil {
					reporter.Error(node.Key, err)
				}
				return
			}
			result.Deployed[node.Key] = deployed
			if reporter != nil {
				reporter.Success(node.Key)
			}
		}(node)
	}

	wg.Wait()
	return ok
}

func deployOne(client *request.Client, def *types.ModuleDefinition, force bool) (bool, error) {
	cmd := api.DeploymentCommand{
		ModuleDefinition: toWireDefinition(def),
		Force:            force,
	}
	var resp api.DeploymentResponse
	if err := client.PostJSON("/api/v1/deploy", cmd, &resp); err != nil {
		return false, err
	}
	return resp.Deployed, nil
}

func toWireDefinition(def *types.ModuleDefinition) api.ModuleDefinition {
	wire := api.ModuleDefinition{
		Kind:                string(def.Kind),
		Name:                def.Name,
		Command:             def.Command,
		Environment:         def.Environment,
		Dependencies:        def.Dependencies,
		OrderedDependencies: def.OrderedDependencies,
	}
	if def.WorkingDir != "" {
		wire.WorkingDir = &def.WorkingDir
	}
	if def.LogFilePath != "" {
		wire.LogFilePath = &def.LogFilePath
	}
	if def.ServiceTask != nil {
		wire.TerminationSignal = string(def.ServiceTask.TerminationSignal)
		wire.PostUp = def.ServiceTask.PostUp
		wire.Post = def.ServiceTask.Post
		wire.Checks = def.ServiceTask.Checks
		wire.AlwaysAwaitReadinessProbe = def.ServiceTask.AlwaysAwaitReadinessProbe
		wire.ReadinessProbe = toWireProbe(def.ServiceTask.ReadinessProbe)
		wire.LivenessProbe = toWireProbe(def.ServiceTask.LivenessProbe)
	}
	return wire
}

func toWireProbe(spec *types.ProbeSpec) *api.Probe {
	if spec == nil {
		return nil
	}
	p := &api.Probe{Retries: spec.Retries}
	switch spec.Kind {
	case types.ProbeLogLine:
		p.Kind = "log_line"
		p.LineRegex = spec.LineRegex
	case types.ProbeNet:
		p.Kind = "net"
		p.Hostname = spec.Host
		p.Port = spec.Port
	default:
		p.Kind = "exec"
		p.Command = spec.Command
		p.WorkingDir = spec.WorkingDir
	}
	return p
}
