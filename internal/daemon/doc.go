// Package daemon coordinates the long-running minimill process.
//
// It ties the session store, the progress manager and the HTTP API into a
// single lifecycle with flock-based locking so only one daemon serves a data
// directory. Stage logic lives in the stage packages; the daemon only starts
// and stops them.
package daemon
