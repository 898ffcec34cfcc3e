package executor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdrop/cartel/pkg/types"
)

func serviceDef(name string, command ...string) *types.ModuleDefinition {
	return &types.ModuleDefinition{
		Name:        name,
		Kind:        types.KindService,
		Command:     command,
		ServiceTask: &types.ServiceTaskSpec{TerminationSignal: types.SignalTerm},
	}
}

func TestRunAndCollectExited(t *testing.T) {
	dir := t.TempDir()
	ex := New(dir)

	def := serviceDef("sleeper", "sh", "-c", "exit 0")
	require.NoError(t, ex.Run(def))

	status, ok := ex.StatusByName("sleeper")
	require.True(t, ok)
	assert.Equal(t, types.StatusRunning, status.Status)

	// give the shell a moment to exit, then collect.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ex.Collect()
		status, _ = ex.StatusByName("sleeper")
		if status.Status == types.StatusExited {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.Equal(t, types.StatusExited, status.Status)
	assert.NotNil(t, status.ExitStatus)
	assert.Equal(t, 0, *status.ExitStatus)
}

func TestStopRunningModule(t *testing.T) {
	dir := t.TempDir()
	ex := New(dir)

	def := serviceDef("longrun", "sh", "-c", "sleep 30")
	require.NoError(t, ex.Run(def))

	require.NoError(t, ex.Stop("longrun"))

	status, ok := ex.StatusByName("longrun")
	require.True(t, ok)
	assert.Equal(t, types.StatusStopped, status.Status)
}

func TestStopUnknownModule(t *testing.T) {
	ex := New(t.TempDir())
	err := ex.Stop("nope")
	require.Error(t, err)
}

func TestRunWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	ex := New(dir)

	def := serviceDef("logger", "sh", "-c", "echo hello")
	require.NoError(t, ex.Run(def))

	path, err := ex.LogPath("logger")
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	var data []byte
	for time.Now().Before(deadline) {
		ex.Collect()
		data, _ = os.ReadFile(path)
		if len(data) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.Contains(t, string(data), "hello")
}

func TestRedeployReplacesDefinition(t *testing.T) {
	dir := t.TempDir()
	ex := New(dir)

	def := serviceDef("svc", "sh", "-c", "sleep 30")
	require.NoError(t, ex.Run(def))

	newDef := serviceDef("svc", "sh", "-c", "sleep 30 --flag")
	require.NoError(t, ex.Redeploy(newDef))

	status, ok := ex.StatusByName("svc")
	require.True(t, ok)
	assert.Equal(t, types.StatusRunning, status.Status)
	assert.Equal(t, newDef.Command, status.Definition.Command)
}

func TestCleanupStopsAllRunning(t *testing.T) {
	dir := t.TempDir()
	ex := New(dir)

	require.NoError(t, ex.Run(serviceDef("a", "sh", "-c", "sleep 30")))
	require.NoError(t, ex.Run(serviceDef("b", "sh", "-c", "sleep 30")))

	ex.Cleanup()

	for _, name := range []string{"a", "b"} {
		status, ok := ex.StatusByName(name)
		require.True(t, ok)
		assert.Equal(t, types.StatusStopped, status.Status)
	}
}
