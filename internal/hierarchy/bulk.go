package hierarchy

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lumenlabs/mediakit/internal/metrics"
	"github.com/lumenlabs/mediakit/internal/storage"
)

// BulkResult aggregates a bulk deletion. Not transactional: completed
// deletions stay gone, and FailedItems names exactly the keys the user
// should retry individually.
type BulkResult struct {
	DeletedCount int      `json:"deletedCount"`
	FailedItems  []string `json:"failedItems"`
}

// Coordinator executes bulk deletions over a mixed selection of file keys
// and folder prefixes.
type Coordinator struct {
	store  storage.Backend
	engine *Engine
}

// NewCoordinator creates a bulk coordinator over the given store.
func NewCoordinator(store storage.Backend) *Coordinator {
	return &Coordinator{store: store, engine: NewEngine(store)}
}

// DeleteSelection partitions keys into files and folders (trailing slash),
// expands folders through the recursive engine, deletes files as one
// concurrent batch, and folds everything into a single aggregate.
func (c *Coordinator) DeleteSelection(ctx context.Context, keys []string) BulkResult {
	var files, folders []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if strings.HasSuffix(key, "/") {
			folders = append(folders, key)
		} else {
			files = append(files, key)
		}
	}

	res := BulkResult{FailedItems: []string{}}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range files {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			err := c.store.Delete(ctx, k)
			success := err == nil || errors.Is(err, storage.ErrNotFound)
			metrics.RecordDelete(success)

			mu.Lock()
			defer mu.Unlock()
			if success {
				res.DeletedCount++
			} else {
				res.FailedItems = append(res.FailedItems, k)
			}
		}(key)
	}
	wg.Wait()

	for _, folder := range folders {
		r := c.engine.DeleteTree(ctx, folder)
		res.DeletedCount += len(r.Succeeded)
		res.FailedItems = append(res.FailedItems, r.Failed...)
	}

	return res
}
