package extractions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/JaimeStill/ratesheet/pkg/formatting"
	"github.com/JaimeStill/ratesheet/pkg/storage"
)

const artifactContentType = "application/json"

// ArtifactInfo describes one stored artifact of a job.
type ArtifactInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// ArtifactListing is the response body for a job's artifact listing.
type ArtifactListing struct {
	JobID           string         `json:"jobId"`
	OutputDirectory string         `json:"outputDirectory"`
	Files           []ArtifactInfo `json:"files"`
}

// Artifacts stores job output files under a per-job key prefix.
type Artifacts struct {
	store  storage.System
	logger *slog.Logger
}

// NewArtifacts wraps a storage system for job artifacts.
func NewArtifacts(store storage.System, logger *slog.Logger) *Artifacts {
	return &Artifacts{
		store:  store,
		logger: logger.With("component", "artifacts"),
	}
}

// OutputDirectory returns the key prefix for a job started at t. Colons and
// dots in the timestamp are replaced so the prefix is safe on any provider.
func OutputDirectory(prefix, tenantID, contractID string, t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return path.Join(prefix, tenantID, contractID, stamp)
}

// ValidateName rejects artifact names that could escape the job directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidArtifact
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidArtifact
	}
	return nil
}

// Write stores data as the named artifact of dir.
func (a *Artifacts) Write(ctx context.Context, dir, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	key := path.Join(dir, name)
	if err := a.store.Upload(ctx, key, bytes.NewReader(data), artifactContentType); err != nil {
		return fmt.Errorf("write artifact %s: %w", key, err)
	}

	a.logger.Debug("artifact written", "key", key, "size", formatting.FormatBytes(int64(len(data)), 1))
	return nil
}

// WriteJSON stores v as indented JSON.
func (a *Artifacts) WriteJSON(ctx context.Context, dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", name, err)
	}
	return a.Write(ctx, dir, name, data)
}

// Open returns a stream for the named artifact. The caller must close Body.
func (a *Artifacts) Open(ctx context.Context, dir, name string) (*storage.BlobResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	blob, err := a.store.Download(ctx, path.Join(dir, name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("open artifact %s: %w", name, err)
	}
	return blob, nil
}

// Stat returns size and timestamps for the named artifact.
func (a *Artifacts) Stat(ctx context.Context, dir, name string) (*ArtifactInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	meta, err := a.store.Find(ctx, path.Join(dir, name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("stat artifact %s: %w", name, err)
	}

	info := toInfo(name, *meta)
	return &info, nil
}

// List returns the artifacts directly under dir sorted by name. A non-empty
// pattern keeps only names matching the doublestar glob.
func (a *Artifacts) List(ctx context.Context, dir, pattern string) ([]ArtifactInfo, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, ErrInvalidPattern
	}

	prefix := strings.TrimSuffix(dir, "/") + "/"
	files := make([]ArtifactInfo, 0)
	marker := ""

	for {
		page, err := a.store.List(ctx, prefix, marker, storage.MaxListCap)
		if err != nil {
			return nil, fmt.Errorf("list artifacts %s: %w", dir, err)
		}

		for _, blob := range page.Blobs {
			name := strings.TrimPrefix(blob.Key, prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			if pattern != "" {
				if ok, _ := doublestar.Match(pattern, name); !ok {
					continue
				}
			}
			files = append(files, toInfo(name, blob))
		}

		if page.NextMarker == "" {
			break
		}
		marker = page.NextMarker
	}

	return files, nil
}

// Names returns the names of every artifact under dir.
func (a *Artifacts) Names(ctx context.Context, dir string) ([]string, error) {
	files, err := a.List(ctx, dir, "")
	if err != nil {
		return nil, err
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names, nil
}

func toInfo(name string, meta storage.BlobMeta) ArtifactInfo {
	created := meta.CreatedAt
	if created.IsZero() {
		created = meta.LastModified
	}
	return ArtifactInfo{
		Name:       name,
		Size:       meta.ContentLength,
		CreatedAt:  created,
		ModifiedAt: meta.LastModified,
	}
}
