// Package logging provides structured logging utilities for kube-dbmigrate.
//
// It centralizes logging patterns so every package logs with the same
// attribute names, using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "migration.backup")
//	logger.Info("running backup",
//	    logging.Namespace("prod"),
//	    logging.Pod("db-0"),
//	    logging.Command(cmd.Text, cmd.Secrets...))
//
// # Security Considerations
//
//   - Database passwords embedded in shell commands are masked by Command
//     and RedactSecrets before they reach any handler
//   - API server URLs have IP addresses redacted to prevent topology leakage
package logging
