// manager_test.go - Tests for export storage
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates export directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "exports")
		store, err := NewLocalStore(dir)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Error("Expected export directory to be created")
		}
	})
}

func TestLocalStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	content := "File name;File size\nx.png;1.00 KB\n"

	info, err := store.Save("scan.csv", "session-1", 1, strings.NewReader(content))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if info.ID == "" {
		t.Error("Expected an ID")
	}
	if info.Size != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), info.Size)
	}
	if info.Rows != 1 || info.SessionID != "session-1" {
		t.Errorf("Unexpected metadata: %+v", info)
	}

	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "scan.csv" {
		t.Errorf("Expected name scan.csv, got %s", got.Name)
	}

	path, err := store.GetFilePath(info.ID)
	if err != nil {
		t.Fatalf("GetFilePath failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Reading export: %v", err)
	}
	if string(data) != content {
		t.Errorf("Content mismatch: %q", data)
	}
}

func TestLocalStore_NotFound(t *testing.T) {
	store := createTestStore(t)

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetFilePath("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFilePath: expected ErrNotFound, got %v", err)
	}
	if err := store.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_ListNewestFirst(t *testing.T) {
	store := createTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		info, err := store.Save("scan.csv", "", 0, strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, info.ID)
		time.Sleep(2 * time.Millisecond)
	}

	list, err := store.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 exports, got %d", len(list))
	}
	if list[0].ID != ids[2] {
		t.Errorf("Expected newest export first")
	}

	limited, _ := store.List(2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 exports with limit, got %d", len(limited))
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)
	info, _ := store.Save("scan.csv", "", 0, strings.NewReader("x"))
	path, _ := store.GetFilePath(info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}
	if _, err := store.Get(info.ID); !errors.Is(err, ErrNotFound) {
		t.Error("Expected metadata to be removed")
	}
}

func TestLocalStore_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	info, err := store.Save("scan.csv", "s", 2, strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store.Close()

	reopened, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(info.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Rows != 2 {
		t.Errorf("Expected 2 rows, got %d", got.Rows)
	}
}

type fakeMirror struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (f *fakeMirror) Upload(_ context.Context, key string, body io.Reader, size int64) error {
	if f.fail {
		return errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeMirror) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func TestMirroredStore(t *testing.T) {
	mirror := &fakeMirror{objects: map[string][]byte{}}
	store := NewMirroredStore(createTestStore(t), mirror, "exports", nil)

	info, err := store.Save("scan.csv", "s", 1, bytes.NewBufferString("a;b\n"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !info.Mirrored {
		t.Error("Expected export to be marked mirrored")
	}
	key := "exports/" + info.ID + ".csv"
	if string(mirror.objects[key]) != "a;b\n" {
		t.Errorf("Expected mirrored object at %s", key)
	}

	got, _ := store.Get(info.ID)
	if !got.Mirrored {
		t.Error("Expected mirrored flag to be persisted")
	}

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := mirror.objects[key]; ok {
		t.Error("Expected mirrored object to be removed")
	}
}

func TestMirroredStore_MirrorFailureKeepsLocalExport(t *testing.T) {
	mirror := &fakeMirror{objects: map[string][]byte{}, fail: true}
	store := NewMirroredStore(createTestStore(t), mirror, "", nil)

	info, err := store.Save("scan.csv", "s", 1, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if info.Mirrored {
		t.Error("Expected export not to be marked mirrored")
	}
	if _, err := store.Get(info.ID); err != nil {
		t.Errorf("Expected local export to exist: %v", err)
	}
}

func TestNewS3Mirror_RequiresBucket(t *testing.T) {
	if _, err := NewS3Mirror(context.Background(), S3Options{}, nil); err == nil {
		t.Error("Expected error without bucket")
	}
}
