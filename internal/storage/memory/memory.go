// Package memory provides an in-memory storage backend. It backs unit tests
// and local development, and mirrors the remote store's semantics: flat keys,
// prefix listing with directory hints, idempotent-unfriendly deletes.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumenlabs/mediakit/internal/storage"
)

// Config holds memory backend settings.
type Config struct {
	PublicBase string `json:"public_base"`
}

type object struct {
	data        []byte
	contentType string
	createdAt   time.Time
	modifiedAt  time.Time
}

// Backend implements storage.Backend with a mutex-guarded map.
type Backend struct {
	mu         sync.RWMutex
	objects    map[string]object
	failDelete map[string]error
	failPut    map[string]error
	failList   map[string]error
	publicBase string
}

// New creates an empty in-memory backend.
func New(cfg Config) *Backend {
	base := strings.TrimRight(cfg.PublicBase, "/")
	if base == "" {
		base = "https://cdn.test"
	}
	return &Backend{
		objects:    make(map[string]object),
		failDelete: make(map[string]error),
		failPut:    make(map[string]error),
		failList:   make(map[string]error),
		publicBase: base,
	}
}

// FailDelete forces subsequent deletes of key to fail. Test hook.
func (b *Backend) FailDelete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failDelete[key] = fmt.Errorf("delete %s: injected failure", key)
}

// FailPut forces subsequent puts of key to fail. Test hook.
func (b *Backend) FailPut(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPut[key] = fmt.Errorf("put %s: injected failure", key)
}

// FailList forces subsequent listings of prefix to fail. Test hook.
func (b *Backend) FailList(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failList[prefix] = fmt.Errorf("list %s: injected failure", prefix)
}

// Len returns the number of stored objects. Test hook.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Put stores body at key.
func (b *Backend) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failPut[key]; ok {
		return err
	}
	now := time.Now()
	created := now
	if existing, ok := b.objects[key]; ok {
		created = existing.createdAt
	}
	b.objects[key] = object{data: data, contentType: contentType, createdAt: created, modifiedAt: now}
	return nil
}

// Get reads the object at key.
func (b *Backend) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), int64(len(obj.data)), nil
}

// Delete removes the object at key.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failDelete[key]; ok {
		return err
	}
	if _, ok := b.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(b.objects, key)
	return nil
}

// List enumerates the immediate children of prefix, inferring directory
// entries from deeper keys the way the remote store does.
func (b *Backend) List(_ context.Context, prefix string) ([]storage.Entry, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if err, ok := b.failList[prefix]; ok {
		return nil, err
	}

	files := make(map[string]object)
	dirs := make(map[string]bool)
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			dirs[rest[:i]] = true
		} else {
			files[rest] = obj
		}
	}

	entries := make([]storage.Entry, 0, len(files)+len(dirs))
	for name := range dirs {
		entries = append(entries, storage.Entry{Name: name, IsDir: true})
	}
	for name, obj := range files {
		entries = append(entries, storage.Entry{
			Name:       name,
			Size:       int64(len(obj.data)),
			CreatedAt:  obj.createdAt,
			ModifiedAt: obj.modifiedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// PublicURL derives the delivery URL for key.
func (b *Backend) PublicURL(key string) string {
	return b.publicBase + "/" + strings.TrimPrefix(key, "/")
}

// Type returns "memory".
func (b *Backend) Type() string { return "memory" }

// Close is a no-op for memory backends.
func (b *Backend) Close() error { return nil }
