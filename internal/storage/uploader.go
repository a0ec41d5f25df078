package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/streamhub/backend/internal/logging"
)

// ErrNoFile is returned when Upload is called without a spooled file.
var ErrNoFile = errors.New("no file to upload")

// ObjectStore persists uploaded content and returns the hosted location.
type ObjectStore interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
}

// AssetUploader hands spooled files to an ObjectStore. The local copy is
// removed once the upload has been attempted, whatever the outcome.
type AssetUploader struct {
	store  ObjectStore
	prefix string
	newKey func() string
}

// NewAssetUploader constructs an uploader storing objects under prefix.
func NewAssetUploader(store ObjectStore, prefix string) *AssetUploader {
	if store == nil {
		panic("storage: object store must not be nil")
	}
	return &AssetUploader{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		newKey: uuid.NewString,
	}
}

// Upload sends the file at localPath to the object store and returns its URL.
func (u *AssetUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", ErrNoFile
	}
	defer removeSpooled(ctx, localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open spooled file: %w", err)
	}
	defer f.Close()

	key := u.newKey() + strings.ToLower(filepath.Ext(localPath))
	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}

	url, err := u.store.Save(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	return url, nil
}

func removeSpooled(ctx context.Context, localPath string) {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.FromContext(ctx).Warn("remove spooled file", slog.String("path", localPath), slog.Any("error", err))
	}
}
