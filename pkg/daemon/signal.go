// Package daemon wires the planner to the process's OS signals: SIGCHLD
// triggers a reap of dead modules, SIGTERM/SIGINT stop every running
// module and exit cleanly.
package daemon

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/xdrop/cartel/pkg/log"
	"github.com/xdrop/cartel/pkg/planner"
)

var daemonLog = log.WithComponent("daemon")

// RunSignalLoop installs handlers for SIGCHLD, SIGTERM, and SIGINT and
// blocks until a terminating signal is received, at which point it stops
// every running module and returns. Callers typically os.Exit(0)
// immediately after this returns.
func RunSignalLoop(p *planner.Planner) {
	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, syscall.SIGCHLD, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigs)

	for sig := range sigs {
		switch sig {
		case syscall.SIGCHLD:
			p.CollectDead()
		case syscall.SIGTERM, syscall.SIGINT:
			daemonLog.Info().Str("signal", sig.String()).Msg("shutting down")
			p.Cleanup()
			return
		}
	}
}
