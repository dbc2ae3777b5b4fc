// Package logging constructs the slog loggers used across gristmill and
// provides shared attribute helpers so log fields stay consistent between
// the store, the pressure components, the scheduler, and the CLI.
package logging
