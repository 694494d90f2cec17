// Package hierarchy emulates a folder tree on top of a flat-key object
// store that offers only PUT, DELETE and prefix-LIST. Folders are key
// prefixes; an otherwise-empty folder is kept enumerable by a zero-byte
// marker object at <prefix>/.keep. There is no folder registry: a folder
// exists exactly when listing its prefix returns at least one child.
package hierarchy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lumenlabs/mediakit/internal/storage"
)

// ErrFolderExists rejects duplicate folder names under one parent.
var ErrFolderExists = errors.New("hierarchy: folder already exists")

// MarkerName is the zero-byte object that keeps an empty folder listable.
const MarkerName = ".keep"

var (
	unsafeChars    = regexp.MustCompile(`[^a-z0-9._-]+`)
	repeatedDashes = regexp.MustCompile(`-{2,}`)
)

// SanitizeName normalizes a user-chosen name into a safe key segment:
// lower-cased, spaces to dashes, restricted to [a-z0-9._-].
func SanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "-")
	s = repeatedDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-.")
}

// NormalizePrefix turns a folder path into a clean key prefix: no leading
// slash, exactly one trailing slash, empty for the root.
func NormalizePrefix(folder string) string {
	f := strings.Trim(folder, "/")
	if f == "" {
		return ""
	}
	return f + "/"
}

// Item is one entry of a listed folder, as exposed to the admin UI.
type Item struct {
	Name       string    `json:"name"`
	Key        string    `json:"key"`
	IsDir      bool      `json:"isDirectory"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	URL        *string   `json:"url"`
}

// Manager creates and lists emulated folders.
type Manager struct {
	store storage.Backend
}

// NewManager creates a folder manager over the given store.
func NewManager(store storage.Backend) *Manager {
	return &Manager{store: store}
}

// CreateFolder materializes a folder by writing its marker object.
// The sanitized name is checked against the parent's current children first.
func (m *Manager) CreateFolder(ctx context.Context, parent, name string) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", fmt.Errorf("invalid folder name %q", name)
	}

	parentPrefix := NormalizePrefix(parent)
	entries, err := m.store.List(ctx, parentPrefix)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", parentPrefix, err)
	}
	for _, e := range entries {
		if e.Name == clean {
			return "", ErrFolderExists
		}
	}

	prefix := parentPrefix + clean + "/"
	marker := prefix + MarkerName
	if err := m.store.Put(ctx, marker, bytes.NewReader(nil), 0, "application/octet-stream"); err != nil {
		return "", fmt.Errorf("write marker %s: %w", marker, err)
	}
	return prefix, nil
}

// List enumerates the immediate children of folder. Marker objects are an
// implementation detail and are hidden; directories carry no URL.
func (m *Manager) List(ctx context.Context, folder string) ([]Item, error) {
	prefix := NormalizePrefix(folder)
	entries, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir && e.Name == MarkerName {
			continue
		}
		item := Item{
			Name:       e.Name,
			Key:        prefix + e.Name,
			IsDir:      e.IsDir,
			Size:       e.Size,
			CreatedAt:  e.CreatedAt,
			ModifiedAt: e.ModifiedAt,
		}
		if e.IsDir {
			item.Key += "/"
		} else {
			url := m.store.PublicURL(item.Key)
			item.URL = &url
		}
		items = append(items, item)
	}
	return items, nil
}
