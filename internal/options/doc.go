// Package options implements the second workflow stage: it renders the
// selected files with the current processing options, recomputes the duration
// estimate on every change, and starts a processing job.
package options
