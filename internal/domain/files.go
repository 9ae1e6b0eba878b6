package domain

import (
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FileMetadata describes one selected video. It is never mutated after
// selection; removing a file drops the whole entry.
type FileMetadata struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
	// Path is set only when the file lives on the local filesystem (CLI
	// selections) so a real backend upload can stream its bytes.
	Path string `json:"path,omitempty"`
}

// ModifiedAt returns LastModified as a time value.
func (f FileMetadata) ModifiedAt() time.Time {
	if f.LastModified <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(f.LastModified)
}

// SizeLabel renders the file size for display.
func (f FileMetadata) SizeLabel() string {
	return FormatFileSize(f.Size)
}

// FormatFileSize renders a byte count in binary units, for example "50 MiB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

var extensionTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".avi":  "video/avi",
	".mov":  "video/mov",
	".wmv":  "video/wmv",
	".mkv":  "video/mkv",
	".webm": "video/webm",
}

// TypeFromName infers a MIME type from a file name. Known video extensions map
// to the short video/<ext> names browsers report for picker selections; other
// extensions fall back to the system MIME table.
func TypeFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if idx := strings.IndexByte(t, ';'); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}
