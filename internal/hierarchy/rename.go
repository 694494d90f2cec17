package hierarchy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/lumenlabs/mediakit/internal/logging"
	"github.com/lumenlabs/mediakit/internal/storage"
)

// RenameResult reports a completed rename. Warning is set when the old key
// could not be removed: the content is reachable under the new name, so the
// operation still succeeded, but an orphaned copy remains.
type RenameResult struct {
	OldKey  string `json:"oldKey"`
	NewKey  string `json:"key"`
	URL     string `json:"url"`
	Warning string `json:"warning,omitempty"`
}

// Renamer synthesizes an atomic-seeming rename from the store's non-atomic
// primitives. The steps run strictly in order (read, write new, delete old)
// so readers may transiently see both keys but never neither.
type Renamer struct {
	store storage.Backend
}

// NewRenamer creates a renamer over the given store.
func NewRenamer(store storage.Backend) *Renamer {
	return &Renamer{store: store}
}

// Rename moves the asset at key to the sanitized new name in the same
// folder, keeping the original extension.
func (r *Renamer) Rename(ctx context.Context, key, newName string) (*RenameResult, error) {
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("rename: %q is not a file key", key)
	}

	ext := path.Ext(key)
	clean := SanitizeName(strings.TrimSuffix(newName, path.Ext(newName)))
	if clean == "" {
		return nil, fmt.Errorf("rename: invalid new name %q", newName)
	}

	newKey := clean + ext
	if dir := path.Dir(key); dir != "." {
		newKey = dir + "/" + newKey
	}
	if newKey == key {
		return &RenameResult{OldKey: key, NewKey: key, URL: r.store.PublicURL(key)}, nil
	}

	// Step 1: read the old bytes. Failure aborts with no side effects.
	body, _, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	// Step 2: write the new key. Failure aborts with the old key untouched.
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := r.store.Put(ctx, newKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("write %s: %w", newKey, err)
	}

	result := &RenameResult{
		OldKey: key,
		NewKey: newKey,
		URL:    r.store.PublicURL(newKey),
	}

	// Step 3: remove the old key, only now that the new copy exists. A
	// failure here leaves an orphan but the rename itself succeeded.
	if err := r.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		result.Warning = fmt.Sprintf("renamed, but the old key %s was not removed: %v", key, err)
		logging.Warn("rename left an orphaned key",
			zap.String("old_key", key),
			zap.String("new_key", newKey),
			zap.Error(err))
	}

	return result, nil
}
