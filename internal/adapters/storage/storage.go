// Package storage keeps uploaded interview recordings.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/domain"
)

// Store persists one recording and returns where it ended up.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error)
}

// RecordingName is session_<id>_<YYYYMMDD_HHMMSS><ext>, the extension taken
// from the uploaded file name and defaulting to .webm.
func RecordingName(session domain.SessionID, uploaded string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(uploaded))
	if ext == "" {
		ext = ".webm"
	}
	return fmt.Sprintf("session_%s_%s%s", session, now.Format("20060102_150405"), ext)
}

func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "minio", "s3":
		return NewMinioStore(ctx, cfg.Minio)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
