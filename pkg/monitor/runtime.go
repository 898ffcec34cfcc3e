// Package monitor implements the probe polling runtime: a single
// dedicated worker goroutine that owns the readiness/liveness monitor
// sets and drives them on independent tickers, fed by a command mailbox
// so that registration/removal never races with a poll in flight.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xdrop/cartel/pkg/log"
	"github.com/xdrop/cartel/pkg/types"
)

const (
	readinessInterval = 2 * time.Second
	livenessInterval  = 5 * time.Second
	maxConcurrentPoll = 8
)

type probeKind int

const (
	readinessKind probeKind = iota
	livenessKind
)

type entry struct {
	key      string
	probe    *types.ProbeSpec
	checker  Checker
	attempts int
}

type commandOp int

const (
	opNewMonitor commandOp = iota
	opRemoveMonitor
	opPollReadiness
	opPollLiveness
	opCleanupIdle
)

type command struct {
	op    commandOp
	kind  probeKind
	key   string
	probe *types.ProbeSpec
	path  string
}

var monitorLog = log.WithComponent("monitor")

// Runtime is the monitor mailbox: exactly one goroutine (run) owns
// readiness/liveness and mutates them only in response to commands
// received over mailbox. Status reads happen outside that goroutine via
// the lock-free status map.
type Runtime struct {
	mailbox chan command
	status  sync.Map // key -> types.MonitorProbeStatus

	readiness map[string]*entry
	liveness  map[string]*entry

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRuntime constructs a Runtime. Call Start to launch its worker
// goroutine.
func NewRuntime() *Runtime {
	return &Runtime{
		mailbox:   make(chan command, 256),
		readiness: make(map[string]*entry),
		liveness:  make(map[string]*entry),
		done:      make(chan struct{}),
	}
}

// Start launches the single worker goroutine and its two tickers.
func (r *Runtime) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	go r.tick(ctx, readinessInterval, opPollReadiness)
	go r.tick(ctx, livenessInterval, opPollLiveness)
	go r.run(ctx)
}

// Stop cancels the tickers and worker goroutine and waits for it to
// exit.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Runtime) tick(ctx context.Context, interval time.Duration, op commandOp) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case r.mailbox <- command{op: op}:
			default:
				// mailbox full: drop this tick rather than block the ticker
			}
		}
	}
}

// NewReadinessMonitor registers a readiness probe under key and returns
// immediately; the worker goroutine picks it up on its next poll tick.
func (r *Runtime) NewReadinessMonitor(key string, probe *types.ProbeSpec, logPath string) {
	r.status.Store(key, types.MonitorPending)
	r.mailbox <- command{op: opNewMonitor, kind: readinessKind, key: key, probe: probe, path: logPath}
}

// NewLivenessMonitor registers a liveness probe under key.
func (r *Runtime) NewLivenessMonitor(key string, probe *types.ProbeSpec, logPath string) {
	r.status.Store(key, types.MonitorPending)
	r.mailbox <- command{op: opNewMonitor, kind: livenessKind, key: key, probe: probe, path: logPath}
}

// RemoveMonitor unregisters key from both monitor sets.
func (r *Runtime) RemoveMonitor(key string) {
	r.mailbox <- command{op: opRemoveMonitor, key: key}
}

// CleanupIdleMonitors asks the worker to drop monitors that have already
// reached a terminal state (Successful/RetriesExceeded), together with
// their published status.
func (r *Runtime) CleanupIdleMonitors() {
	r.mailbox <- command{op: opCleanupIdle}
}

// Status returns the last published status for key. This is a brief
// point lookup against a sync.Map and never blocks on the worker
// goroutine.
func (r *Runtime) Status(key string) (types.MonitorProbeStatus, bool) {
	v, ok := r.status.Load(key)
	if !ok {
		return "", false
	}
	return v.(types.MonitorProbeStatus), true
}

// NewMonitorKey mints an opaque monitor key of the form "{name}-{uuid}".
func NewMonitorKey(name string) string {
	return name + "-" + uuid.New().String()
}

func (r *Runtime) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.mailbox:
			r.handle(ctx, cmd)
		}
	}
}

func (r *Runtime) handle(ctx context.Context, cmd command) {
	switch cmd.op {
	case opNewMonitor:
		e := &entry{key: cmd.key, probe: cmd.probe, checker: NewChecker(cmd.probe)}
		if ll, ok := e.checker.(*logLineChecker); ok {
			ll.bindFile(cmd.path)
		}
		if cmd.kind == readinessKind {
			r.readiness[cmd.key] = e
		} else {
			r.liveness[cmd.key] = e
		}
	case opRemoveMonitor:
		delete(r.readiness, cmd.key)
		delete(r.liveness, cmd.key)
		r.status.Delete(cmd.key)
	case opPollReadiness:
		r.pollSet(ctx, readinessKind, r.readiness)
	case opPollLiveness:
		r.pollSet(ctx, livenessKind, r.liveness)
	case opCleanupIdle:
		r.cleanupIdle(r.readiness)
		r.cleanupIdle(r.liveness)
		// Readiness entries are removed from their set as soon as they
		// turn terminal; drop the status they left behind as well.
		r.status.Range(func(k, v interface{}) bool {
			key := k.(string)
			s := v.(types.MonitorProbeStatus)
			_, inReadiness := r.readiness[key]
			_, inLiveness := r.liveness[key]
			if !inReadiness && !inLiveness && (s == types.MonitorSuccessful || s == types.MonitorRetriesExceeded) {
				r.status.Delete(key)
			}
			return true
		})
	}
}

func (r *Runtime) cleanupIdle(set map[string]*entry) {
	for key := range set {
		status, ok := r.status.Load(key)
		if !ok {
			continue
		}
		s := status.(types.MonitorProbeStatus)
		if s == types.MonitorSuccessful || s == types.MonitorRetriesExceeded {
			delete(set, key)
			r.status.Delete(key)
		}
	}
}

// pollSet runs one poll attempt for every entry in set, bounded to
// maxConcurrentPoll concurrent probe executions, and updates the status
// map: a success marks Successful, exceeding the probe's configured
// retries marks RetriesExceeded, and a checker error marks Error.
// Readiness monitors are one-shot: any of those three terminal states
// removes the entry from set, since a readiness probe exists only to be
// waited on once. Liveness monitors are long-lived: they are never
// removed by a terminal state, only re-published, so that a later
// failure is still observed and "Successful" holds until that failure
// happens (kind distinguishes this from readiness).
//
// While the probe is still outstanding, the transient status is Pending
// for readiness and Failing for liveness, matching the glossary's
// distinction between "not yet ready" and "was up, may be failing".
func (r *Runtime) pollSet(ctx context.Context, kind probeKind, set map[string]*entry) {
	if len(set) == 0 {
		return
	}

	sem := make(chan struct{}, maxConcurrentPoll)
	var wg sync.WaitGroup
	var mu sync.Mutex
	toDelete := make([]string, 0)

	for key, e := range set {
		wg.Add(1)
		sem <- struct{}{}
		go func(key string, e *entry) {
			defer wg.Done()
			defer func() { <-sem }()

			pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			ok, err := e.checker.Check(pollCtx)
			if err != nil {
				r.status.Store(key, types.MonitorError)
				monitorLog.Error().Err(err).Str("key", key).Msg("probe check errored")
				if kind == readinessKind {
					mu.Lock()
					toDelete = append(toDelete, key)
					mu.Unlock()
				}
				return
			}

			if ok {
				r.status.Store(key, types.MonitorSuccessful)
				mu.Lock()
				e.attempts = 0
				mu.Unlock()
				if kind == readinessKind {
					mu.Lock()
					toDelete = append(toDelete, key)
					mu.Unlock()
				}
				return
			}

			mu.Lock()
			e.attempts++
			attempts := e.attempts
			mu.Unlock()

			if attempts > e.probe.EffectiveRetries() {
				r.status.Store(key, types.MonitorRetriesExceeded)
				if kind == readinessKind {
					mu.Lock()
					toDelete = append(toDelete, key)
					mu.Unlock()
				}
				return
			}

			if kind == livenessKind {
				r.status.Store(key, types.MonitorFailing)
			} else {
				r.status.Store(key, types.MonitorPending)
			}
		}(key, e)
	}
	wg.Wait()

	for _, key := range toDelete {
		delete(set, key)
	}
}
