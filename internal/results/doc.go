// Package results implements the final workflow stage: loading the
// statistics of the current job, downloading or streaming the processed
// video, sharing a link and starting over.
package results
