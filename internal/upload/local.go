package upload

import (
	"fmt"
	"os"
	"path/filepath"

	"minimill/internal/domain"
)

// MetadataFromPath describes a local file the way a browser picker would:
// base name, size, MIME type from the extension and modification time.
func MetadataFromPath(path string) (domain.FileMetadata, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.FileMetadata{}, fmt.Errorf("%s is a directory", path)
	}
	return domain.FileMetadata{
		Name:         info.Name(),
		Size:         info.Size(),
		Type:         domain.TypeFromName(info.Name()),
		LastModified: info.ModTime().UnixMilli(),
		Path:         abs,
	}, nil
}
