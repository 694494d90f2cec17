// Package bunny implements storage.Backend against a Bunny-style storage
// HTTP API: PUT and DELETE on {endpoint}/{zone}/{key} with an AccessKey
// header, and prefix listing via GET returning child descriptors. Reads go
// through the CDN-fronted delivery URL, which is the only read surface the
// store exposes.
package bunny

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumenlabs/mediakit/internal/metrics"
	"github.com/lumenlabs/mediakit/internal/storage"
)

// Config holds bunny backend settings.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Zone      string `json:"zone"`
	AccessKey string `json:"access_key"`
	CDNBase   string `json:"cdn_base"`
	Timeout   time.Duration
}

// Backend talks to the remote store over HTTP.
type Backend struct {
	base      string // endpoint/zone
	accessKey string
	cdnBase   string
	client    *http.Client
}

// New creates a bunny backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" || cfg.Zone == "" {
		return nil, fmt.Errorf("bunny: endpoint and zone are required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("bunny: access key is required")
	}
	if cfg.CDNBase == "" {
		return nil, fmt.Errorf("bunny: cdn base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Backend{
		base:      strings.TrimRight(cfg.Endpoint, "/") + "/" + strings.Trim(cfg.Zone, "/"),
		accessKey: cfg.AccessKey,
		cdnBase:   strings.TrimRight(cfg.CDNBase, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// objectDescriptor is one child entry in the store's listing response.
type objectDescriptor struct {
	ObjectName  string `json:"ObjectName"`
	Length      int64  `json:"Length"`
	IsDirectory bool   `json:"IsDirectory"`
	DateCreated string `json:"DateCreated"`
	LastChanged string `json:"LastChanged"`
}

func (b *Backend) objectURL(key string) string {
	return b.base + "/" + strings.TrimPrefix(key, "/")
}

// Put uploads body to key, overwriting any existing object.
func (b *Backend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := b.put(ctx, key, body, size, contentType)
	metrics.RecordStorageOperation("put", time.Since(start), err == nil)
	return err
}

func (b *Backend) put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.objectURL(key), body)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	req.Header.Set("AccessKey", b.accessKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = size

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("put %s: store returned %s", key, resp.Status)
	}
	return nil
}

// Get fetches the object via its CDN delivery URL.
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()
	rc, size, err := b.get(ctx, key)
	metrics.RecordStorageOperation("get", time.Since(start), err == nil)
	return rc, size, err
}

func (b *Backend) get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.PublicURL(key), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", key, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", key, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return nil, 0, storage.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, 0, fmt.Errorf("get %s: store returned %s", key, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

// Delete removes the object at key. A 404 maps to storage.ErrNotFound.
func (b *Backend) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := b.del(ctx, key)
	metrics.RecordStorageOperation("delete", time.Since(start), err == nil || errors.Is(err, storage.ErrNotFound))
	return err
}

func (b *Backend) del(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	req.Header.Set("AccessKey", b.accessKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return storage.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete %s: store returned %s", key, resp.Status)
	}
	return nil
}

// List enumerates the immediate children of prefix.
func (b *Backend) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	start := time.Now()
	entries, err := b.list(ctx, prefix)
	metrics.RecordStorageOperation("list", time.Since(start), err == nil)
	return entries, err
}

func (b *Backend) list(ctx context.Context, prefix string) ([]storage.Entry, error) {
	url := b.objectURL(prefix)
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	req.Header.Set("AccessKey", b.accessKey)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// An unknown prefix is an empty folder, not an error.
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("list %s: store returned %s", prefix, resp.Status)
	}

	var descriptors []objectDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&descriptors); err != nil {
		return nil, fmt.Errorf("list %s: decode response: %w", prefix, err)
	}

	entries := make([]storage.Entry, 0, len(descriptors))
	for _, d := range descriptors {
		entries = append(entries, storage.Entry{
			Name:       d.ObjectName,
			IsDir:      d.IsDirectory,
			Size:       d.Length,
			CreatedAt:  parseStoreTime(d.DateCreated),
			ModifiedAt: parseStoreTime(d.LastChanged),
		})
	}
	return entries, nil
}

// PublicURL derives the CDN delivery URL for key. No network call.
func (b *Backend) PublicURL(key string) string {
	return b.cdnBase + "/" + strings.TrimPrefix(key, "/")
}

// Type returns "bunny".
func (b *Backend) Type() string { return "bunny" }

// Close is a no-op; the HTTP client holds no pinned resources.
func (b *Backend) Close() error { return nil }

// parseStoreTime parses the store's timestamp format, which omits the zone.
func parseStoreTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.999", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
