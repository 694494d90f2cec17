// Package local provides a local filesystem storage backend for development.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lumenlabs/mediakit/internal/storage"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string `json:"root_path"`
	PublicBase string `json:"public_base"`
	CreateDirs bool   `json:"create_dirs"`
}

// Backend implements storage.Backend using the local filesystem.
type Backend struct {
	rootPath   string
	publicBase string
	createDirs bool
}

// New creates a new local filesystem backend.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Backend{
		rootPath:   cfg.RootPath,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
		createDirs: cfg.CreateDirs,
	}, nil
}

func (b *Backend) fullPath(key string) string {
	return filepath.Join(b.rootPath, filepath.FromSlash(key))
}

// Put writes content to the filesystem atomically (temp file + rename).
func (b *Backend) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	path := b.fullPath(key)
	dir := filepath.Dir(path)

	if b.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", key, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".mediakit-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}

	return nil
}

// Get reads a file from the filesystem.
func (b *Backend) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, storage.ErrNotFound
		}
		return nil, 0, fmt.Errorf("open %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", key, err)
	}
	return f, info.Size(), nil
}

// Delete removes a file. Missing files map to storage.ErrNotFound.
func (b *Backend) Delete(_ context.Context, key string) error {
	path := b.fullPath(strings.TrimSuffix(key, "/"))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		// Only empty directories; recursive deletion is orchestrated above.
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List enumerates the immediate children of prefix.
func (b *Backend) List(_ context.Context, prefix string) ([]storage.Entry, error) {
	dir := b.fullPath(strings.TrimSuffix(prefix, "/"))
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	entries := make([]storage.Entry, 0, len(dirents))
	for _, de := range dirents {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, storage.Entry{
			Name:       de.Name(),
			IsDir:      de.IsDir(),
			Size:       info.Size(),
			CreatedAt:  info.ModTime(),
			ModifiedAt: info.ModTime(),
		})
	}
	return entries, nil
}

// PublicURL derives the delivery URL for key.
func (b *Backend) PublicURL(key string) string {
	return b.publicBase + "/" + strings.TrimPrefix(key, "/")
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *Backend) Close() error { return nil }
