// Package storage persists generated assets and ZIP artifacts on the local
// filesystem. Layout under the base path:
//
//	tmp/jobs/<job_id>/   per-job scratch assets, removed after every run
//	tmp/zips/            archive scratch location
//	downloads/           public download directory, served statically
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	jobsPrefix    = "tmp/jobs"
	zipScratchDir = "tmp/zips"
	downloadsDir  = "downloads"
)

// FileStore is rooted at a single base path; keys are cleaned to prevent
// directory traversal.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath and creates the
// scratch and download directories.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	for _, dir := range []string{basePath, filepath.Join(basePath, zipScratchDir), filepath.Join(basePath, downloadsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure %s: %w", dir, err)
		}
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// DownloadsPath returns the absolute public download directory.
func (s *FileStore) DownloadsPath() string {
	return filepath.Join(s.basePath, downloadsDir)
}

// ZipScratchPath returns the absolute archive scratch directory.
func (s *FileStore) ZipScratchPath() string {
	return filepath.Join(s.basePath, zipScratchDir)
}

// JobsPath returns the absolute root of the per-job temp directories.
func (s *FileStore) JobsPath() string {
	return filepath.Join(s.basePath, filepath.FromSlash(jobsPrefix))
}

// JobKey builds the storage key for one asset of a batch job.
func JobKey(jobID, filename string) string {
	return path.Join(jobsPrefix, jobID, filename)
}

// JobDirPath returns the absolute per-job temp directory without creating it.
func (s *FileStore) JobDirPath(jobID string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(jobsPrefix), jobID)
}

// EnsureJobDir creates the per-job temp directory.
func (s *FileStore) EnsureJobDir(jobID string) (string, error) {
	dir := s.JobDirPath(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure job dir: %w", err)
	}
	return dir, nil
}

// RemoveJobDir deletes the per-job temp directory and everything in it.
func (s *FileStore) RemoveJobDir(jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" || strings.ContainsAny(jobID, "/\\") {
		return errors.New("storage: invalid job id")
	}
	return os.RemoveAll(s.JobDirPath(jobID))
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// PublishDownload copies a finished artifact from srcPath into the public
// download directory under name and returns its absolute path. The download
// directory is append-only shared storage: an existing file is never
// overwritten.
func (s *FileStore) PublishDownload(srcPath, name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		return "", errors.New("storage: download name is required")
	}
	dst := filepath.Join(s.DownloadsPath(), name)

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("storage: open artifact: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("storage: download %s already published", name)
		}
		return "", fmt.Errorf("storage: create download: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("storage: copy download: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("storage: close download: %w", err)
	}
	return dst, nil
}

// RemoveOlderThan deletes regular files in dir whose modification time is
// before cutoff and returns how many were removed. Subdirectories are left
// alone.
func RemoveOlderThan(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: scan %s: %w", dir, err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// RemoveDirsOlderThan deletes immediate subdirectories of dir whose
// modification time is before cutoff and returns how many were removed.
// Regular files are left alone.
func RemoveDirsOlderThan(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: scan %s: %w", dir, err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
