// Package process wraps os/exec to give every spawned module its own
// POSIX process group, so a single signal can be delivered to the whole
// tree it spawns rather than just its immediate PID, and to support
// non-blocking reaping of any member of that group via
// unix.Wait4(-pgid, WNOHANG).
package process

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Group is a spawned child process that owns its own process group. Its
// ID() is the process group id, which equals the leader's pid.
type Group struct {
	cmd  *exec.Cmd
	pgid int
}

// ExitResult describes how a reaped process group leader terminated.
type ExitResult struct {
	Code     int
	Signaled bool
	Signal   syscall.Signal
}

// Start spawns cmd in a new process group (Setpgid on a not-yet-exec'd
// child makes it its own group leader, giving it a pgid equal to its
// pid -- the Unix equivalent of calling setsid before exec).
func Start(cmd *exec.Cmd) (*Group, error) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &Group{cmd: cmd, pgid: cmd.Process.Pid}, nil
}

// ID returns the process group id (equal to the leader's pid).
func (g *Group) ID() int { return g.pgid }

// Signal delivers sig to every process in the group.
func (g *Group) Signal(sig syscall.Signal) error {
	if err := syscall.Kill(-g.pgid, sig); err != nil {
		return fmt.Errorf("signal group %d: %w", g.pgid, err)
	}
	return nil
}

// Interrupt sends SIGINT to the group.
func (g *Group) Interrupt() error { return g.Signal(syscall.SIGINT) }

// Terminate sends SIGTERM to the group.
func (g *Group) Terminate() error { return g.Signal(syscall.SIGTERM) }

// Kill sends SIGKILL to the group.
func (g *Group) Kill() error { return g.Signal(syscall.SIGKILL) }

// SignalFor dispatches the given named signal to the group.
func (g *Group) SignalFor(name string) error {
	switch name {
	case "TERM":
		return g.Terminate()
	case "INT":
		return g.Interrupt()
	default:
		return g.Kill()
	}
}

// Wait blocks until a member of the group exits and returns its result.
// Waiting on -pgid rather than pgid reaps any descendant that shares the
// group, not only the leader.
func (g *Group) Wait() (*ExitResult, error) {
	var status unix.WaitStatus
	_, err := unix.Wait4(-g.pgid, &status, 0, nil)
	if err != nil {
		return nil, err
	}
	return resultFromStatus(status), nil
}

// TryWait performs a non-blocking reap of any member of the group. It
// returns (nil, nil) if nothing has exited yet.
func (g *Group) TryWait() (*ExitResult, error) {
	var status unix.WaitStatus
	pid, err := unix.Wait4(-g.pgid, &status, unix.WNOHANG, nil)
	if err != nil {
		if err == unix.ECHILD {
			return nil, nil
		}
		return nil, err
	}
	if pid == 0 {
		return nil, nil
	}
	return resultFromStatus(status), nil
}

func resultFromStatus(status unix.WaitStatus) *ExitResult {
	if status.Signaled() {
		return &ExitResult{Code: 128 + int(status.Signal()), Signaled: true, Signal: status.Signal()}
	}
	return &ExitResult{Code: status.ExitStatus()}
}
