// Command carteld is the long-lived supervisor: it owns the executor,
// the probe monitor runtime, and the planner that coordinates them, and
// exposes them over a local HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xdrop/cartel/pkg/api"
	"github.com/xdrop/cartel/pkg/daemon"
	"github.com/xdrop/cartel/pkg/executor"
	"github.com/xdrop/cartel/pkg/log"
	"github.com/xdrop/cartel/pkg/metrics"
	"github.com/xdrop/cartel/pkg/monitor"
	"github.com/xdrop/cartel/pkg/planner"
)

var rootCmd = &cobra.Command{
	Use:   "carteld",
	Short: "carteld supervises a fleet of locally-defined services, tasks, and checks",
	RunE:  runDaemon,
}

func init() {
	rootCmd.Flags().String("listen", "127.0.0.1:8000", "HTTP API listen address")
	rootCmd.Flags().String("log-dir", "", "Directory for module log files (default ~/.cartel/logs)")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "Output logs in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	jsonOutput, _ := cmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})

	logDir, _ := cmd.Flags().GetString("log-dir")
	if logDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		logDir = filepath.Join(home, ".cartel", "logs")
	}

	metrics.MustRegister()

	ex := executor.New(logDir)
	mon := monitor.NewRuntime()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mon.Start(ctx)
	defer mon.Stop()

	p := planner.New(ex, mon)
	server := api.NewServer(p)

	listen, _ := cmd.Flags().GetString("listen")
	httpServer := &http.Server{Addr: listen, Handler: server.Handler()}

	go func() {
		log.Logger.Info().Str("addr", listen).Msg("daemon listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	daemon.RunSignalLoop(p)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
