// Package preflight provides readiness checks for the filesystem paths and
// external services minimill depends on.
//
// The daemon runs RunAll at startup and logs failures; the CLI status command
// prints the same results. Checks never block startup.
package preflight
