package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned when an incoming file exceeds the spool limit.
var ErrTooLarge = errors.New("file exceeds upload limit")

// Spool stages incoming multipart files on local disk before they are uploaded.
type Spool struct {
	dir      string
	maxBytes int64
}

// NewSpool returns a spool writing into dir. A non-positive maxBytes disables the limit.
func NewSpool(dir string, maxBytes int64) *Spool {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Spool{dir: dir, maxBytes: maxBytes}
}

// Save copies r into a fresh file that keeps the extension of originalName
// and returns its path.
func (s *Spool) Save(r io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}

	f, err := os.CreateTemp(s.dir, "upload-*"+cleanExt(originalName))
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}

	n, err := io.Copy(f, src)
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(f.Name())
		return "", fmt.Errorf("write spool file: %w", err)
	case closeErr != nil:
		os.Remove(f.Name())
		return "", fmt.Errorf("close spool file: %w", closeErr)
	case s.maxBytes > 0 && n > s.maxBytes:
		os.Remove(f.Name())
		return "", ErrTooLarge
	}

	return f.Name(), nil
}

func cleanExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	for _, r := range ext[min(1, len(ext)):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
