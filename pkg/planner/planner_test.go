package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdrop/cartel/pkg/cartelerr"
	"github.com/xdrop/cartel/pkg/executor"
	"github.com/xdrop/cartel/pkg/monitor"
	"github.com/xdrop/cartel/pkg/types"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	ex := executor.New(t.TempDir())
	mon := monitor.NewRuntime()
	return New(ex, mon)
}

func svc(name string, cmd ...string) *types.ModuleDefinition {
	return &types.ModuleDefinition{
		Name:        name,
		Kind:        types.KindService,
		Command:     cmd,
		ServiceTask: &types.ServiceTaskSpec{},
	}
}

func TestDeployFirstTimeAlwaysDeploys(t *testing.T) {
	p := newTestPlanner(t)
	deployed, err := p.Deploy(svc("a", "sh", "-c", "sleep 30"), false)
	require.NoError(t, err)
	assert.True(t, deployed)
	defer p.StopAll()
}

func TestDeployIdempotentWhenUnchanged(t *testing.T) {
	p := newTestPlanner(t)
	def := svc("a", "sh", "-c", "sleep 30")
	_, err := p.Deploy(def, false)
	require.NoError(t, err)

	deployed, err := p.Deploy(def, false)
	require.NoError(t, err)
	assert.False(t, deployed)
	p.StopAll()
}

func TestDeployRedeploysWhenCommandDiffers(t *testing.T) {
	p := newTestPlanner(t)
	_, err := p.Deploy(svc("a", "sh", "-c", "sleep 30"), false)
	require.NoError(t, err)

	deployed, err := p.Deploy(svc("a", "sh", "-c", "sleep 60"), false)
	require.NoError(t, err)
	assert.True(t, deployed)
	p.StopAll()
}

func TestDeployRedeploysWhenStopped(t *testing.T) {
	p := newTestPlanner(t)
	def := svc("a", "sh", "-c", "sleep 30")
	_, err := p.Deploy(def, false)
	require.NoError(t, err)
	require.NoError(t, p.StopModule("a"))

	deployed, err := p.Deploy(def, false)
	require.NoError(t, err)
	assert.True(t, deployed)
	p.StopAll()
}

func TestDeployManyRejectsBadSelection(t *testing.T) {
	p := newTestPlanner(t)
	defs := []*types.ModuleDefinition{svc("a", "true")}
	_, err := p.DeployMany(defs, []string{"nonexistent"})
	require.Error(t, err)
	var subsetErr *cartelerr.SubsetNotFound
	assert.ErrorAs(t, err, &subsetErr)
}

func TestGetPlanReflectsDeployState(t *testing.T) {
	p := newTestPlanner(t)
	def := svc("a", "sh", "-c", "sleep 30")
	plan := p.GetPlan([]*types.ModuleDefinition{def})
	assert.Equal(t, types.ActionWillDeploy, plan["a"])

	_, err := p.Deploy(def, false)
	require.NoError(t, err)

	plan = p.GetPlan([]*types.ModuleDefinition{def})
	assert.Equal(t, types.ActionAlreadyDeployed, plan["a"])

	plan = p.GetPlan([]*types.ModuleDefinition{svc("a", "sh", "-c", "sleep 99")})
	assert.Equal(t, types.ActionWillRedeploy, plan["a"])

	p.StopAll()
}

func TestDeployTaskReportsFailure(t *testing.T) {
	p := newTestPlanner(t)
	task := &types.ModuleDefinition{
		Name:    "migrate",
		Kind:    types.KindTask,
		Command: []string{"sh", "-c", "exit 3"},
	}
	code, err := p.DeployTask(task)
	require.Error(t, err)
	assert.Equal(t, 3, code)
	var taskErr *cartelerr.TaskFailed
	assert.ErrorAs(t, err, &taskErr)
}

func TestDeployTaskSucceeds(t *testing.T) {
	p := newTestPlanner(t)
	task := &types.ModuleDefinition{
		Name:    "migrate",
		Kind:    types.KindTask,
		Command: []string{"sh", "-c", "exit 0"},
	}
	code, err := p.DeployTask(task)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestModuleStatusReportsPID(t *testing.T) {
	p := newTestPlanner(t)
	_, err := p.Deploy(svc("a", "sh", "-c", "sleep 30"), false)
	require.NoError(t, err)
	defer p.StopAll()

	time.Sleep(10 * time.Millisecond)
	statuses := p.ModuleStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, "a", statuses[0].Name)
	assert.Greater(t, statuses[0].PID, 0)
	assert.Equal(t, types.StatusRunning, statuses[0].Status)
}
