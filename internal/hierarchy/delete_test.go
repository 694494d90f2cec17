package hierarchy

import (
	"bytes"
	"context"
	"testing"

	"github.com/lumenlabs/mediakit/internal/storage/memory"
)

func seed(t *testing.T, store *memory.Backend, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if err := store.Put(context.Background(), key, bytes.NewReader([]byte("x")), 1, "application/octet-stream"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDeleteTreeMarkerOnlyFolder(t *testing.T) {
	store := memory.New(memory.Config{})
	e := NewEngine(store)

	seed(t, store, "empty/"+MarkerName)

	res := e.DeleteTree(context.Background(), "empty/")
	if len(res.Failed) != 0 {
		t.Fatalf("failed = %v, want none", res.Failed)
	}
	if store.Len() != 0 {
		t.Errorf("%d objects remain", store.Len())
	}
	// The marker plus the folder itself.
	if len(res.Succeeded) != 2 {
		t.Errorf("succeeded = %v, want 2 entries", res.Succeeded)
	}
}

func TestDeleteTreeNested(t *testing.T) {
	store := memory.New(memory.Config{})
	e := NewEngine(store)

	seed(t, store,
		"root/a.jpg",
		"root/b.jpg",
		"root/sub/c.jpg",
		"root/sub/deep/d.jpg",
		"root/sub/deep/"+MarkerName,
		"outside.jpg",
	)

	res := e.DeleteTree(context.Background(), "root/")
	if len(res.Failed) != 0 {
		t.Fatalf("failed = %v, want none", res.Failed)
	}
	if store.Len() != 1 {
		t.Errorf("%d objects remain, want only the outside key", store.Len())
	}
	if _, _, err := store.Get(context.Background(), "outside.jpg"); err != nil {
		t.Error("sibling outside the prefix was deleted")
	}
}

func TestDeleteTreeCollectsFailuresAndContinues(t *testing.T) {
	store := memory.New(memory.Config{})
	e := NewEngine(store)

	seed(t, store,
		"root/a.jpg",
		"root/stuck.jpg",
		"root/sub/b.jpg",
	)
	store.FailDelete("root/stuck.jpg")

	res := e.DeleteTree(context.Background(), "root/")

	if len(res.Failed) != 1 || res.Failed[0] != "root/stuck.jpg" {
		t.Fatalf("failed = %v, want [root/stuck.jpg]", res.Failed)
	}
	// The walk kept going: everything else is gone.
	if store.Len() != 1 {
		t.Errorf("%d objects remain, want only the stuck one", store.Len())
	}
}

func TestDeleteTreeUnlistablePrefix(t *testing.T) {
	store := memory.New(memory.Config{})
	e := NewEngine(store)

	seed(t, store, "broken/a.jpg")
	store.FailList("broken/")

	// Nothing could be deleted, so the folder is a failure and only a
	// failure: it must not also show up as deleted.
	res := e.DeleteTree(context.Background(), "broken/")
	if len(res.Succeeded) != 0 {
		t.Errorf("succeeded = %v, want none", res.Succeeded)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "broken/" {
		t.Errorf("failed = %v, want [broken/]", res.Failed)
	}
	if store.Len() != 1 {
		t.Errorf("%d objects, want the untouched one", store.Len())
	}
}

func TestDeleteTreeUnlistableSubfolder(t *testing.T) {
	store := memory.New(memory.Config{})
	e := NewEngine(store)

	seed(t, store,
		"root/a.jpg",
		"root/sub/b.jpg",
	)
	store.FailList("root/sub/")

	res := e.DeleteTree(context.Background(), "root/")

	// The walk above the broken level still ran, so the top folder and its
	// listable file are deleted; the unlistable subfolder is the failure.
	if len(res.Failed) != 1 || res.Failed[0] != "root/sub/" {
		t.Errorf("failed = %v, want [root/sub/]", res.Failed)
	}
	if len(res.Succeeded) != 2 {
		t.Errorf("succeeded = %v, want root/a.jpg and root/", res.Succeeded)
	}
	if _, _, err := store.Get(context.Background(), "root/sub/b.jpg"); err != nil {
		t.Error("file under the unlistable subfolder should be untouched")
	}
}

func TestDeleteTreeMissingPrefix(t *testing.T) {
	store := memory.New(memory.Config{})
	e := NewEngine(store)

	// Deleting a folder that never existed is not a failure.
	res := e.DeleteTree(context.Background(), "ghost/")
	if len(res.Failed) != 0 {
		t.Errorf("failed = %v, want none", res.Failed)
	}
}
