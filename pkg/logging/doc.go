// Package logging provides subsystem-tagged, leveled logging for the whole
// application on top of log/slog.
//
// Every call names the subsystem that produced the entry, so log output from
// the orchestrator, workers, and registries can be filtered without each
// package carrying its own logger instance:
//
//	logging.Info("Orchestrator", "Started instance %s", id)
//	logging.Error("DeviceRegistry", err, "Failed to persist device store")
//
// Init must be called once at startup (the CLI layer does this based on the
// --log-level flag). Calls made before Init fall back to stderr.
package logging
