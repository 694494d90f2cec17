package hierarchy

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/lumenlabs/mediakit/internal/storage/memory"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Banners", "banners"},
		{"Summer Sale 2026", "summer-sale-2026"},
		{"  padded  ", "padded"},
		{"weird!!chars##here", "weird-chars-here"},
		{"UPPER.case.PNG", "upper.case.png"},
		{"a---b", "a-b"},
		{"---", ""},
		{"...", ""},
		{"é日本", ""},
		{"mixed é stuff", "mixed-stuff"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"uploads", "uploads/"},
		{"uploads/", "uploads/"},
		{"/uploads/", "uploads/"},
		{"a/b/c", "a/b/c/"},
	}
	for _, tt := range tests {
		if got := NormalizePrefix(tt.in); got != tt.want {
			t.Errorf("NormalizePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateFolderWritesMarker(t *testing.T) {
	store := memory.New(memory.Config{})
	m := NewManager(store)
	ctx := context.Background()

	prefix, err := m.CreateFolder(ctx, "", "Summer Sale")
	if err != nil {
		t.Fatal(err)
	}
	if prefix != "summer-sale/" {
		t.Errorf("prefix = %q, want summer-sale/", prefix)
	}

	// The marker makes the otherwise empty folder listable.
	if _, _, err := store.Get(ctx, "summer-sale/"+MarkerName); err != nil {
		t.Fatalf("marker object missing: %v", err)
	}

	items, err := m.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !items[0].IsDir || items[0].Name != "summer-sale" {
		t.Fatalf("root listing = %+v, want the one folder", items)
	}
}

func TestCreateFolderDuplicate(t *testing.T) {
	store := memory.New(memory.Config{})
	m := NewManager(store)
	ctx := context.Background()

	if _, err := m.CreateFolder(ctx, "", "banners"); err != nil {
		t.Fatal(err)
	}
	// Same sanitized name collides even when the raw input differs.
	if _, err := m.CreateFolder(ctx, "", "BANNERS"); !errors.Is(err, ErrFolderExists) {
		t.Fatalf("got %v, want ErrFolderExists", err)
	}
}

func TestCreateFolderNested(t *testing.T) {
	store := memory.New(memory.Config{})
	m := NewManager(store)
	ctx := context.Background()

	if _, err := m.CreateFolder(ctx, "", "campaigns"); err != nil {
		t.Fatal(err)
	}
	prefix, err := m.CreateFolder(ctx, "campaigns", "q3")
	if err != nil {
		t.Fatal(err)
	}
	if prefix != "campaigns/q3/" {
		t.Errorf("prefix = %q, want campaigns/q3/", prefix)
	}
}

func TestCreateFolderInvalidName(t *testing.T) {
	store := memory.New(memory.Config{})
	m := NewManager(store)

	if _, err := m.CreateFolder(context.Background(), "", "---"); err == nil {
		t.Fatal("expected error for a name that sanitizes to nothing")
	}
}

func TestListHidesMarkerAndShapesItems(t *testing.T) {
	store := memory.New(memory.Config{PublicBase: "https://cdn.test"})
	m := NewManager(store)
	ctx := context.Background()

	if _, err := m.CreateFolder(ctx, "", "assets"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateFolder(ctx, "assets", "icons"); err != nil {
		t.Fatal(err)
	}
	content := []byte("img")
	if err := store.Put(ctx, "assets/logo.png", bytes.NewReader(content), 3, "image/png"); err != nil {
		t.Fatal(err)
	}

	items, err := m.List(ctx, "assets")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (marker hidden): %+v", len(items), items)
	}

	dir := items[0]
	if dir.Name != "icons" || !dir.IsDir || dir.Key != "assets/icons/" {
		t.Errorf("dir item = %+v", dir)
	}
	if dir.URL != nil {
		t.Errorf("dir URL = %v, want nil", *dir.URL)
	}

	file := items[1]
	if file.Name != "logo.png" || file.IsDir || file.Key != "assets/logo.png" {
		t.Errorf("file item = %+v", file)
	}
	if file.URL == nil || *file.URL != "https://cdn.test/assets/logo.png" {
		t.Errorf("file URL = %v", file.URL)
	}
	if file.Size != 3 {
		t.Errorf("file size = %d, want 3", file.Size)
	}
}
