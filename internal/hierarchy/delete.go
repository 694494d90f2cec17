package hierarchy

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lumenlabs/mediakit/internal/logging"
	"github.com/lumenlabs/mediakit/internal/metrics"
	"github.com/lumenlabs/mediakit/internal/storage"
)

// Result aggregates the outcome of a recursive deletion. Partial failure is
// a valid, expected result shape, not an error: the caller decides what to
// do with the keys that remain.
type Result struct {
	Succeeded []string
	Failed    []string
}

// Engine deletes a folder prefix and everything beneath it, depth-first,
// children before parents. A node's descendants are always gone before the
// node itself; siblings at one level are deleted concurrently.
type Engine struct {
	store storage.Backend
}

// NewEngine creates a recursive deletion engine over the given store.
func NewEngine(store storage.Backend) *Engine {
	return &Engine{store: store}
}

// DeleteTree removes every descendant of prefix, then the folder itself.
// Individual failures are collected, never fatal to the walk.
func (e *Engine) DeleteTree(ctx context.Context, prefix string) Result {
	prefix = NormalizePrefix(prefix)
	var res Result
	walked := e.deleteLevel(ctx, prefix, &res)

	// The folder's own listable entry. Some stores model an empty directory
	// as an entry distinct from its marker; removing it is best-effort. The
	// marker deletion above already erased the folder's required evidence of
	// existence, so once the walk ran this counts as succeeded either way.
	// An unlistable prefix was already recorded as failed and must not also
	// count as deleted.
	if walked {
		if err := e.store.Delete(ctx, strings.TrimSuffix(prefix, "/")); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logging.Debug("folder entry delete failed (ignored)",
				zap.String("prefix", prefix), zap.Error(err))
		}
		res.Succeeded = append(res.Succeeded, prefix)
	}

	metrics.RecordBulkFailures(len(res.Failed))
	return res
}

// deleteLevel reports whether the level's listing succeeded; on failure the
// prefix is recorded in res.Failed and nothing beneath it is touched.
func (e *Engine) deleteLevel(ctx context.Context, prefix string, res *Result) bool {
	entries, err := e.store.List(ctx, prefix)
	if err != nil {
		res.Failed = append(res.Failed, prefix)
		return false
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir {
			// Descendants first, then the child folder's own entry.
			child := prefix + entry.Name + "/"
			if e.deleteLevel(ctx, child, res) {
				if err := e.store.Delete(ctx, strings.TrimSuffix(child, "/")); err != nil && !errors.Is(err, storage.ErrNotFound) {
					logging.Debug("folder entry delete failed (ignored)",
						zap.String("prefix", child), zap.Error(err))
				}
			}
		} else {
			files = append(files, prefix+entry.Name)
		}
	}

	// Sibling files go out as one concurrent batch with a single join.
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, key := range files {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			err := e.store.Delete(ctx, k)
			success := err == nil || errors.Is(err, storage.ErrNotFound)
			metrics.RecordDelete(success)

			mu.Lock()
			defer mu.Unlock()
			if success {
				res.Succeeded = append(res.Succeeded, k)
			} else {
				res.Failed = append(res.Failed, k)
				logging.Warn("delete failed during recursive walk",
					zap.String("key", k), zap.Error(err))
			}
		}(key)
	}
	wg.Wait()
	return true
}
