package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"minimill/internal/domain"
)

const MiB = 1024 * 1024

// Video returns metadata for an mp4 of the given size in MiB.
func Video(name string, sizeMiB int64) domain.FileMetadata {
	return domain.FileMetadata{
		Name:         name,
		Size:         sizeMiB * MiB,
		Type:         "video/mp4",
		LastModified: 1700000000000,
	}
}

// WriteFile creates a file of the requested size. A size <= 0 writes a
// single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	// Truncate extends sparsely so multi-hundred MiB fixtures stay cheap.
	if err := f.Truncate(size); err != nil {
		t.Fatalf("size %s: %v", path, err)
	}
}
