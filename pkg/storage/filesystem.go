package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactStore keeps rendered call-list files on local disk. Files are
// grouped by the month they were generated in so cleanup runs stay cheap.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore ensures the base directory exists and returns a handle.
func NewArtifactStore(baseDir string) (*ArtifactStore, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &ArtifactStore{baseDir: baseDir}, nil
}

// Save writes data under a month bucket and returns the relative path the
// file can later be opened with.
func (s *ArtifactStore) Save(filename string, data []byte) (string, error) {
	rel := filepath.Join(time.Now().UTC().Format("2006-01"), filename)
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for a stored artifact.
func (s *ArtifactStore) Open(relPath string) (*os.File, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return file, nil
}

// Delete removes a stored artifact if present.
func (s *ArtifactStore) Delete(relPath string) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete export file: %w", err)
	}
	return nil
}

// CleanupOlderThan removes artifacts older than ttl and returns their
// relative names. Emptied month buckets are removed along the way.
func (s *ArtifactStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			rel = path
		}
		deleted = append(deleted, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup exports: %w", err)
	}
	for _, rel := range deleted {
		dir := filepath.Dir(filepath.Join(s.baseDir, rel))
		if dir != s.baseDir {
			// Fails while the bucket still holds newer files, which is fine.
			_ = os.Remove(dir)
		}
	}
	return deleted, nil
}

// resolve keeps every artifact inside the base directory. Relative paths come
// back from signed download tokens, so traversal escapes are rejected rather
// than joined.
func (s *ArtifactStore) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact path %q", relPath)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
