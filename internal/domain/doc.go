// Package domain holds the value types shared by every workflow stage: file
// metadata, processing options, jobs, results, and the notices and
// navigation hints a stage hands back to its caller.
package domain
