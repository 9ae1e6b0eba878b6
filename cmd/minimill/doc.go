// Package main hosts the minimill CLI.
//
// Every workflow command is a thin call against the daemon's HTTP API through
// internal/apiclient, acting for one CLI session whose id lives in the data
// directory. `minimill serve` runs the daemon in the foreground.
package main
