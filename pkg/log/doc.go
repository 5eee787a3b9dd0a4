/*
Package log provides structured logging for Hutch using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging.

# Usage

Initializing the Logger:

	import "github.com/cuemby/hutch/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("Worker started")
	log.Error("Failed to reach health registry")

Structured Logging:

	log.Logger.Info().
		Str("instance", "app1").
		Int("hosts", 3).
		Msg("Instance scaled")

Component Loggers:

	runnerLog := log.WithComponent("runner")
	runnerLog.Info().Str("job", "instance.provision").Msg("Dispatching job")

# Integration Points

This package integrates with:

  - pkg/jobs: Logs job dispatch, handler failures, rollback attempts
  - pkg/lock: Logs lock contention on the restore sweep
  - pkg/healthreg: Logs health registry API calls
  - pkg/certs: Logs certificate issuance and renewal
*/
package log
