// Package logging provides a structured logging system for pkgdev built on
// Go's standard slog package.
//
// All log entries carry a subsystem identifier so that output from the
// repository reader, the dependency graph builder and the tracker client can
// be told apart when debugging a run. Human-facing command output does not go
// through this package; it is written directly to the command's stdout.
// Logging is reserved for diagnostics.
//
// Initialize once at startup:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
// and log with a subsystem tag:
//
//	logging.Debug("Graph", "queued %s for expansion", atom)
//	logging.Error("Bugzilla", err, "create request failed")
package logging
