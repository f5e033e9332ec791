package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JaimeStill/ratesheet/pkg/lifecycle"
)

type local struct {
	root   string
	logger *slog.Logger
}

func newLocal(cfg *LocalConfig, logger *slog.Logger) (System, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &local{
		root:   root,
		logger: logger,
	}, nil
}

// NewLocal creates a filesystem-backed storage system rooted at root.
func NewLocal(root string, logger *slog.Logger) (System, error) {
	return newLocal(&LocalConfig{Root: root}, logger.With("system", "storage", "provider", ProviderLocal))
}

func (l *local) Start(lc *lifecycle.Coordinator) error {
	l.logger.Info("starting storage system")

	lc.OnStartup(func() {
		if err := os.MkdirAll(l.root, 0o755); err != nil {
			l.logger.Error("storage root initialization failed", "error", err)
			return
		}
		l.logger.Info("storage root ready", "root", l.root)
	})

	return nil
}

func (l *local) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	full, err := l.fullPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}

	return nil
}

func (l *local) Download(ctx context.Context, key string) (*BlobResult, error) {
	full, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, mapFSError(key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapFSError(key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}

	return &BlobResult{
		Body:          f,
		ContentType:   contentTypeFor(key),
		ContentLength: info.Size(),
	}, nil
}

func (l *local) Find(ctx context.Context, key string) (*BlobMeta, error) {
	full, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, mapFSError(key, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	return l.meta(key, info), nil
}

func (l *local) List(ctx context.Context, prefix, marker string, maxResults int32) (*BlobList, error) {
	keys, err := l.collectKeys(prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Strings(keys)

	start := 0
	if marker != "" {
		start = sort.SearchStrings(keys, marker)
		for start < len(keys) && keys[start] <= marker {
			start++
		}
	}

	end := min(start+int(maxResults), len(keys))

	result := &BlobList{Blobs: make([]BlobMeta, 0, end-start)}
	for _, key := range keys[start:end] {
		info, err := os.Stat(filepath.Join(l.root, filepath.FromSlash(key)))
		if err != nil {
			continue
		}
		result.Blobs = append(result.Blobs, *l.meta(key, info))
	}

	if end < len(keys) && end > start {
		result.NextMarker = keys[end-1]
	}

	return result, nil
}

func (l *local) Delete(ctx context.Context, key string) error {
	full, err := l.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		return mapFSError(key, err)
	}
	return nil
}

func (l *local) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := l.Find(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *local) fullPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "" {
		return "", ErrEmptyKey
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// collectKeys walks the deepest directory implied by prefix and keeps keys that match it.
func (l *local) collectKeys(prefix string) ([]string, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	dir := l.root
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = filepath.Join(l.root, filepath.FromSlash(prefix[:i]))
	}

	keys := make([]string, 0)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return keys, nil
}

func (l *local) meta(key string, info fs.FileInfo) *BlobMeta {
	return &BlobMeta{
		Key:           key,
		ContentType:   contentTypeFor(key),
		ContentLength: info.Size(),
		CreatedAt:     info.ModTime(),
		LastModified:  info.ModTime(),
	}
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func mapFSError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("storage %s: %w", key, err)
}
