// Package daemonctl starts and stops a background minimill daemon from the
// CLI. Liveness is judged by the daemon's health endpoint; stopping signals
// the pid the daemon reports and escalates to SIGKILL after a grace period.
package daemonctl
