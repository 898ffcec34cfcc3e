// Package executor owns the map of deployed modules and the low-level
// run/stop/collect/cleanup operations over their process groups.
package executor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xdrop/cartel/pkg/cartelerr"
	"github.com/xdrop/cartel/pkg/log"
	"github.com/xdrop/cartel/pkg/process"
	"github.com/xdrop/cartel/pkg/types"
)

type runningModule struct {
	status *types.ModuleStatus
	group  *process.Group
	logs   *os.File
}

// Executor tracks every module that has ever been deployed in this
// daemon's lifetime, along with a live process.Group handle for whichever
// of them are currently RUNNING.
type Executor struct {
	mu      sync.Mutex
	modules map[string]*runningModule
	logDir  string
}

// New constructs an Executor whose default log files are written under
// logDir.
func New(logDir string) *Executor {
	return &Executor{modules: make(map[string]*runningModule), logDir: logDir}
}

var execLog = log.WithComponent("executor")

// StatusByName returns the current status of a previously-deployed
// module.
func (e *Executor) StatusByName(name string) (*types.ModuleStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.modules[name]
	if !ok {
		return nil, false
	}
	return m.status, true
}

// AllStatuses returns a snapshot of every module's status.
func (e *Executor) AllStatuses() []*types.ModuleStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.ModuleStatus, 0, len(e.modules))
	for _, m := range e.modules {
		out = append(out, m.status)
	}
	return out
}

// LogPath returns the log file path recorded for name.
func (e *Executor) LogPath(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.modules[name]
	if !ok {
		return "", &cartelerr.NotFound{Name: name}
	}
	return m.status.LogFilePath, nil
}

func (e *Executor) logFilePath(def *types.ModuleDefinition) string {
	if def.LogFilePath != "" {
		return def.LogFilePath
	}
	return filepath.Join(e.logDir, fmt.Sprintf("%s.log", def.Name))
}

// prepareLogFiles opens (creating if needed) the module's log file for
// stdout, and reuses the same *os.File for stderr so interleaved output
// stays in file order.
func prepareLogFiles(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Run spawns def for the first time. It is an error to Run a name that is
// already tracked; callers should use Redeploy/Restart for that case.
func (e *Executor) Run(def *types.ModuleDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.modules[def.Name]; ok {
		return &cartelerr.ValidationError{Message: fmt.Sprintf("module %q is already tracked; use Redeploy or Restart", def.Name)}
	}
	return e.runLocked(def)
}

func (e *Executor) runLocked(def *types.ModuleDefinition) error {
	logPath := e.logFilePath(def)
	logFile, err := prepareLogFiles(logPath)
	if err != nil {
		return &cartelerr.SpawnFailure{Name: def.Name, Err: err}
	}

	cmd := buildCmd(def, logFile)
	group, err := process.Start(cmd)
	if err != nil {
		logFile.Close()
		return &cartelerr.SpawnFailure{Name: def.Name, Err: err}
	}

	e.modules[def.Name] = &runningModule{
		status: &types.ModuleStatus{
			Definition:  def,
			Status:      types.StatusRunning,
			PID:         group.ID(),
			Uptime:      time.Now().Unix(),
			LogFilePath: logPath,
		},
		group: group,
		logs:  logFile,
	}

	execLog.Info().Str("module", def.Name).Int("pid", group.ID()).Msg("module started")
	return nil
}

func buildCmd(def *types.ModuleDefinition, logFile *os.File) *exec.Cmd {
	var name string
	var args []string
	if len(def.Command) > 0 {
		name, args = def.Command[0], def.Command[1:]
	}
	cmd := exec.Command(name, args...)
	cmd.Dir = def.WorkingDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if len(def.Environment) > 0 {
		env := os.Environ()
		for k, v := range def.Environment {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	return cmd
}

// Stop signals the module's process group with its configured
// termination signal and blocks until the group leader has exited.
func (e *Executor) Stop(name string) error {
	e.mu.Lock()
	m, ok := e.modules[name]
	e.mu.Unlock()
	if !ok {
		return &cartelerr.NotFound{Name: name}
	}
	return e.stopModule(m)
}

func (e *Executor) stopModule(m *runningModule) error {
	if m.group == nil || m.status.Status != types.StatusRunning {
		return nil
	}

	sig := string(types.DefaultTermSignal)
	if m.status.Definition.ServiceTask != nil && m.status.Definition.ServiceTask.TerminationSignal != "" {
		sig = string(m.status.Definition.ServiceTask.TerminationSignal)
	}
	if err := m.group.SignalFor(sig); err != nil {
		return &cartelerr.IOError{Context: fmt.Sprintf("stopping %s", m.status.Definition.Name), Err: err}
	}

	result, err := m.group.Wait()
	e.mu.Lock()
	m.status.Status = types.StatusStopped
	m.status.ExitTime = time.Now().Unix()
	if err == nil && result != nil {
		code := result.Code
		m.status.ExitStatus = &code
	}
	e.mu.Unlock()
	if m.logs != nil {
		m.logs.Close()
	}
	return nil
}

// Restart restarts an existing module using the last deployed definition
// for that name (it does not accept a new definition).
func (e *Executor) Restart(name string) error {
	e.mu.Lock()
	m, ok := e.modules[name]
	e.mu.Unlock()
	if !ok {
		return &cartelerr.NotFound{Name: name}
	}
	def := m.status.Definition
	if err := e.stopModule(m); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runLocked(def)
}

// Redeploy stops the currently running instance (if any) of def.Name and
// runs def in its place, replacing the stored definition.
func (e *Executor) Redeploy(def *types.ModuleDefinition) error {
	e.mu.Lock()
	m, ok := e.modules[def.Name]
	e.mu.Unlock()
	if ok {
		if err := e.stopModule(m); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runLocked(def)
}

// Collect reaps any RUNNING module whose process group leader has
// exited, transitioning it to EXITED. Reaping only ever moves RUNNING to
// EXITED; any module not currently RUNNING is left untouched by Collect.
func (e *Executor) Collect() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, m := range e.modules {
		if m.status.Status != types.StatusRunning || m.group == nil {
			continue
		}
		result, err := m.group.TryWait()
		if err != nil {
			execLog.Error().Err(err).Str("module", name).Msg("failed to reap module")
			continue
		}
		if result == nil {
			continue
		}
		m.status.Status = types.StatusExited
		m.status.ExitTime = time.Now().Unix()
		code := result.Code
		m.status.ExitStatus = &code
		if m.logs != nil {
			m.logs.Close()
		}
		execLog.Info().Str("module", name).Int("code", code).Msg("module exited")
	}
}

// Cleanup stops every RUNNING module. Used by the SIGTERM/SIGINT signal
// path and by stop_all.
func (e *Executor) Cleanup() {
	e.mu.Lock()
	var running []*runningModule
	for _, m := range e.modules {
		if m.status.Status == types.StatusRunning {
			running = append(running, m)
		}
	}
	e.mu.Unlock()

	for _, m := range running {
		if err := e.stopModule(m); err != nil {
			execLog.Error().Err(err).Str("module", m.status.Definition.Name).Msg("failed to stop module during cleanup")
		}
	}
}

// DerivedLogPath computes the default log file path for a module that
// has not yet overridden one, joining the configured log directory with
// a sanitized module name.
func (e *Executor) DerivedLogPath(name string) string {
	safe := strings.ReplaceAll(name, string(filepath.Separator), "_")
	return filepath.Join(e.logDir, fmt.Sprintf("%s.log", safe))
}
