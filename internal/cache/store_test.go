package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestStorePutAndGet(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: DeriveKey(`\frac{1}{2}`, ModeInline), Format: FormatSVG}

	if store.Exists(context.Background(), locator) {
		t.Fatalf("empty store should not report entry")
	}

	payload := []byte("<svg/>")
	entry, err := store.Put(context.Background(), locator, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("put error: %v", err)
	}
	if entry.SizeBytes != int64(len(payload)) {
		t.Fatalf("size mismatch: %d", entry.SizeBytes)
	}
	if filepath.Base(entry.FilePath) != store.FileName(locator) {
		t.Fatalf("unexpected file path %s", entry.FilePath)
	}
	if !store.Exists(context.Background(), locator) {
		t.Fatalf("entry should exist after put")
	}

	result, err := store.Get(context.Background(), locator)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	defer result.Reader.Close()

	body, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read cached body error: %v", err)
	}
	if string(body) != string(payload) {
		t.Fatalf("cached payload mismatch: %s", string(body))
	}
}

func TestStoreFileNameLayout(t *testing.T) {
	store := newTestStore(t)
	key := DeriveKey("x", ModeDisplay)
	name := store.FileName(Locator{Key: key, Format: FormatPNG})
	if name != string(key)+".png" {
		t.Fatalf("unexpected file name %s", name)
	}
	if !strings.HasPrefix(name, "display_") {
		t.Fatalf("file name should carry the mode prefix: %s", name)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), Locator{Key: DeriveKey("missing", ModeInline), Format: FormatSVG})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsInvalidLocator(t *testing.T) {
	store := newTestStore(t)
	cases := []Locator{
		{Key: "", Format: FormatSVG},
		{Key: "../escape", Format: FormatSVG},
		{Key: "inline_abc", Format: "gif"},
	}
	for _, locator := range cases {
		if _, err := store.Put(context.Background(), locator, strings.NewReader("x")); !errors.Is(err, ErrInvalidLocator) {
			t.Fatalf("expected ErrInvalidLocator for %+v, got %v", locator, err)
		}
		if store.Exists(context.Background(), locator) {
			t.Fatalf("invalid locator should never exist: %+v", locator)
		}
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: DeriveKey("dir", ModeInline), Format: FormatSVG}

	fs, ok := store.(*fileStore)
	if !ok {
		t.Fatalf("unexpected store type %T", store)
	}

	filePath, err := fs.entryPath(locator)
	if err != nil {
		t.Fatalf("path error: %v", err)
	}
	if err := os.MkdirAll(filePath, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	if store.Exists(context.Background(), locator) {
		t.Fatalf("directory should not count as an entry")
	}
	if _, err := store.Get(context.Background(), locator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestStorePutFailureLeavesNoTempFile(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: DeriveKey("broken", ModeInline), Format: FormatSVG}

	if _, err := store.Put(context.Background(), locator, failingReader{}); err == nil {
		t.Fatalf("expected put error")
	}
	if store.Exists(context.Background(), locator) {
		t.Fatalf("failed put must not create the entry")
	}
	assertNoTempFiles(t, store)
}

func TestStoreConcurrentPutsLeaveOneCompleteFile(t *testing.T) {
	store := newTestStore(t)
	locator := Locator{Key: DeriveKey(`\sum_{i=0}^n i`, ModeDisplay), Format: FormatSVG}

	const writers = 16
	const size = 256 * 1024
	payloads := make([][]byte, writers)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, size)
	}

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		payload := payloads[i]
		g.Go(func() error {
			_, err := store.Put(context.Background(), locator, bytes.NewReader(payload))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent put error: %v", err)
	}

	result, err := store.Get(context.Background(), locator)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	defer result.Reader.Close()
	body, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}

	matched := false
	for _, payload := range payloads {
		if bytes.Equal(body, payload) {
			matched = true
			break
		}
	}
	if !matched {
		t.Fatalf("final file is not a complete copy of any writer (len=%d)", len(body))
	}
	assertNoTempFiles(t, store)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}

func assertNoTempFiles(t *testing.T, store Store) {
	t.Helper()
	fs := store.(*fileStore)
	matches, err := filepath.Glob(filepath.Join(fs.basePath, "*.tmp"))
	if err != nil {
		t.Fatalf("glob error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

// newTestStore returns a Store backed by a temporary directory.
func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
