// Package daemonrun is the process entry point shared by `minimilld` and
// `minimill serve`: logging setup, pid file, preflight, and service wiring.
package daemonrun
