package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteResult describes a completed write.
type WriteResult struct {
	Bytes  int64
	SHA256 string
}

// WriteAtomic streams r into path through a sibling ".part" file and renames
// it into place once the copy succeeds. A failed copy leaves no file behind.
// The digest covers exactly the bytes written.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) (WriteResult, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WriteResult{}, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	tmp := path + ".part"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return WriteResult{}, err
	}

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return WriteResult{Bytes: written}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return WriteResult{Bytes: written}, fmt.Errorf("rename into place: %w", err)
	}
	return WriteResult{Bytes: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SafeFileName reduces a server-supplied name to a single safe path element.
// Empty or dot-only results fall back to fallback.
func SafeFileName(name, fallback string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return fallback
	}
	return name
}
