package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/lumenlabs/mediakit/internal/storage"
)

func TestPutGetRoundTrip(t *testing.T) {
	b := New(Config{})
	ctx := context.Background()

	content := []byte("hello")
	if err := b.Put(ctx, "uploads/a.jpg", bytes.NewReader(content), int64(len(content)), "image/jpeg"); err != nil {
		t.Fatal(err)
	}

	body, size, err := b.Get(ctx, "uploads/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	got, _ := io.ReadAll(body)
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	b := New(Config{})
	_, _, err := b.Get(context.Background(), "nope.jpg")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	b := New(Config{})
	ctx := context.Background()

	if err := b.Put(ctx, "a.jpg", bytes.NewReader([]byte("x")), 1, "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, "a.jpg"); err != nil {
		t.Fatal(err)
	}
	// Second delete of the same key reports the missing key.
	if err := b.Delete(ctx, "a.jpg"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestListDirectoryHints(t *testing.T) {
	b := New(Config{})
	ctx := context.Background()

	for _, key := range []string{
		"uploads/a.jpg",
		"uploads/b.jpg",
		"uploads/sub/c.jpg",
		"uploads/sub/deep/d.jpg",
		"other/e.jpg",
	} {
		if err := b.Put(ctx, key, bytes.NewReader([]byte("x")), 1, "image/jpeg"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := b.List(ctx, "uploads/")
	if err != nil {
		t.Fatal(err)
	}
	// Immediate children only: a.jpg, b.jpg and the sub dir. The deeper
	// deep/ dir must not leak into this level.
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}
	if entries[0].Name != "a.jpg" || entries[0].IsDir {
		t.Errorf("entry 0 = %+v, want file a.jpg", entries[0])
	}
	if entries[1].Name != "b.jpg" || entries[1].IsDir {
		t.Errorf("entry 1 = %+v, want file b.jpg", entries[1])
	}
	if entries[2].Name != "sub" || !entries[2].IsDir {
		t.Errorf("entry 2 = %+v, want dir sub", entries[2])
	}
}

func TestListEmptyPrefix(t *testing.T) {
	b := New(Config{})
	entries, err := b.List(context.Background(), "ghost/")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestInjectedFailures(t *testing.T) {
	b := New(Config{})
	ctx := context.Background()

	b.FailPut("blocked.jpg")
	if err := b.Put(ctx, "blocked.jpg", bytes.NewReader([]byte("x")), 1, "image/jpeg"); err == nil {
		t.Fatal("expected injected put failure")
	}

	if err := b.Put(ctx, "stuck.jpg", bytes.NewReader([]byte("x")), 1, "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	b.FailDelete("stuck.jpg")
	if err := b.Delete(ctx, "stuck.jpg"); err == nil {
		t.Fatal("expected injected delete failure")
	}
	if b.Len() != 1 {
		t.Errorf("object vanished despite failed delete")
	}

	b.FailList("dark/")
	if _, err := b.List(ctx, "dark/"); err == nil {
		t.Fatal("expected injected list failure")
	}
}

func TestPublicURL(t *testing.T) {
	b := New(Config{PublicBase: "https://cdn.example.com/"})
	if got := b.PublicURL("uploads/a.jpg"); got != "https://cdn.example.com/uploads/a.jpg" {
		t.Errorf("PublicURL = %q", got)
	}
}
