// Package logging assembles the slog loggers shared by the minimill daemon and
// CLI.
//
// Console output goes through tint (coloured only on a terminal) and JSON
// output uses a compact ts/level/msg shape. Context helpers tag log lines with
// the session, job, stage and request correlation id carried on a
// context.Context. NewNop is available for tests and optional wiring.
package logging
