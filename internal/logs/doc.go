// Package logs tails the daemon's log file for `minimill logs`.
//
// Only complete lines are emitted, so a line being written while the file is
// polled shows up whole on the next poll.
package logs
