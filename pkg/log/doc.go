/*
Package log provides structured logging for cartel using zerolog.

It wraps a single global zerolog.Logger, configured once via Init, with
component- and module-scoped child loggers (WithComponent, WithModule,
WithMonitorKey) for attributing log lines to the executor, monitor
runtime, planner, or API layer without threading a logger through every
call.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	execLog := log.WithComponent("executor")
	execLog.Info().Str("module", name).Msg("module started")
*/
package log
