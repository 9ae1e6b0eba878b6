// Package fileutil writes downloads to disk without leaving partial files.
package fileutil
