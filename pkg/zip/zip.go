// Package zip writes archives to disk, streaming entries from files so large
// batches never have to fit in memory at once.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Builder accumulates entries into a zip file on disk. Close must be called
// to flush the central directory.
type Builder struct {
	f  *os.File
	zw *zip.Writer
}

// Create opens a new archive at path, truncating any previous file.
func Create(path string) (*Builder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("zip: create archive: %w", err)
	}
	return &Builder{f: f, zw: zip.NewWriter(f)}, nil
}

// AddFile streams the file at srcPath into the archive under name.
func (b *Builder) AddFile(name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("zip: open %s: %w", srcPath, err)
	}
	defer src.Close()

	w, err := b.zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip: add entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("zip: write entry %s: %w", name, err)
	}
	return nil
}

// AddBytes writes an in-memory entry, used for generated manifests.
func (b *Builder) AddBytes(name string, data []byte) error {
	w, err := b.zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip: add entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("zip: write entry %s: %w", name, err)
	}
	return nil
}

// AddDir adds every regular file directly inside dir, in lexical order. A
// missing directory adds nothing.
func (b *Builder) AddDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("zip: read dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	added := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := b.AddFile(entry.Name(), filepath.Join(dir, entry.Name())); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Close flushes the archive and closes the underlying file.
func (b *Builder) Close() error {
	zerr := b.zw.Close()
	ferr := b.f.Close()
	if zerr != nil {
		return fmt.Errorf("zip: finalize archive: %w", zerr)
	}
	if ferr != nil {
		return fmt.Errorf("zip: close archive file: %w", ferr)
	}
	return nil
}
