package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdrop/cartel/pkg/types"
)

func waitForStatus(t *testing.T, rt *Runtime, key string, want types.MonitorProbeStatus, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got, ok := rt.Status(key); ok && got == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := rt.Status(key)
	t.Fatalf("timed out waiting for status %s on %s, last seen %s", want, key, got)
}

func TestMonitorSucceeds(t *testing.T) {
	rt := NewRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	probe := &types.ProbeSpec{Kind: types.ProbeExec, Command: []string{"true"}, Retries: 3}
	key := "svc-abc"
	rt.NewReadinessMonitor(key, probe, "")

	rt.mailbox <- command{op: opPollReadiness}
	waitForStatus(t, rt, key, types.MonitorSuccessful, 2*time.Second)
}

func TestMonitorRetriesExceeded(t *testing.T) {
	rt := NewRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	probe := &types.ProbeSpec{Kind: types.ProbeExec, Command: []string{"false"}, Retries: 2}
	key := "svc-xyz"
	rt.NewReadinessMonitor(key, probe, "")

	for i := 0; i < 3; i++ {
		rt.mailbox <- command{op: opPollReadiness}
		time.Sleep(50 * time.Millisecond)
	}

	waitForStatus(t, rt, key, types.MonitorRetriesExceeded, 2*time.Second)
}

func TestMonitorRemove(t *testing.T) {
	rt := NewRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	probe := &types.ProbeSpec{Kind: types.ProbeExec, Command: []string{"true"}, Retries: 3}
	key := "svc-remove"
	rt.NewReadinessMonitor(key, probe, "")
	rt.RemoveMonitor(key)

	time.Sleep(50 * time.Millisecond)
	_, ok := rt.Status(key)
	assert.False(t, ok)
}

func TestNewMonitorKeyIsOpaqueAndPrefixed(t *testing.T) {
	k1 := NewMonitorKey("web")
	k2 := NewMonitorKey("web")
	require.NotEqual(t, k1, k2)
	assert.Contains(t, k1, "web-")
}

func TestNetChecker(t *testing.T) {
	c := &netChecker{host: "127.0.0.1", port: 1}
	ok, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLivenessMonitorSurvivesSuccess(t *testing.T) {
	rt := NewRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	probe := &types.ProbeSpec{Kind: types.ProbeExec, Command: []string{"true"}, Retries: 3}
	key := "svc-alive"
	rt.NewLivenessMonitor(key, probe, "")

	rt.mailbox <- command{op: opPollLiveness}
	waitForStatus(t, rt, key, types.MonitorSuccessful, 2*time.Second)

	// A liveness monitor is never removed by a terminal poll outcome: it
	// must still be present and keep being polled on the next tick.
	rt.mailbox <- command{op: opPollLiveness}
	time.Sleep(50 * time.Millisecond)
	_, ok := rt.Status(key)
	require.True(t, ok, "liveness monitor must remain registered after success")
}

func TestLivenessMonitorSurvivesRetriesExceeded(t *testing.T) {
	rt := NewRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	probe := &types.ProbeSpec{Kind: types.ProbeExec, Command: []string{"false"}, Retries: 2}
	key := "svc-failing"
	rt.NewLivenessMonitor(key, probe, "")

	for i := 0; i < 3; i++ {
		rt.mailbox <- command{op: opPollLiveness}
		time.Sleep(50 * time.Millisecond)
	}
	waitForStatus(t, rt, key, types.MonitorRetriesExceeded, 2*time.Second)

	// Still registered and still polled, unlike a readiness monitor.
	rt.mailbox <- command{op: opPollLiveness}
	time.Sleep(50 * time.Millisecond)
	_, ok := rt.Status(key)
	require.True(t, ok, "liveness monitor must remain registered after retries exceeded")
}

func TestReadinessMonitorRemovedAfterSuccess(t *testing.T) {
	rt := NewRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	probe := &types.ProbeSpec{Kind: types.ProbeExec, Command: []string{"true"}, Retries: 3}
	key := "svc-ready"
	rt.NewReadinessMonitor(key, probe, "")
	rt.mailbox <- command{op: opPollReadiness}
	waitForStatus(t, rt, key, types.MonitorSuccessful, 2*time.Second)

	rt.CleanupIdleMonitors()
	time.Sleep(50 * time.Millisecond)
	_, ok := rt.Status(key)
	assert.False(t, ok, "readiness monitor should be cleaned up once terminal")
}

func TestInvalidLineRegexDoesNotPanicAndReportsError(t *testing.T) {
	rt := NewRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	probe := &types.ProbeSpec{Kind: types.ProbeLogLine, LineRegex: "(unterminated", Retries: 3}
	key := "svc-badregex"
	rt.NewReadinessMonitor(key, probe, "")

	rt.mailbox <- command{op: opPollReadiness}
	waitForStatus(t, rt, key, types.MonitorError, 2*time.Second)
}

func TestNewCheckerInvalidRegexReturnsErrCheckerInsteadOfPanicking(t *testing.T) {
	require.NotPanics(t, func() {
		c := NewChecker(&types.ProbeSpec{Kind: types.ProbeLogLine, LineRegex: "("})
		_, err := c.Check(context.Background())
		require.Error(t, err)
	})
}
