package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/image-inspector/backend/internal/testutil"
)

func TestWatcher_NotifiesOnImageChange(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 10)
	errs := make(chan error, 1)
	w := New(dir, nil, 50*time.Millisecond, nil)
	go func() {
		errs <- w.Run(ctx, func() { changes <- struct{}{} })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(dir, "notes.txt", []byte("ignored"))
	testutil.WriteFile(dir, "a.png", testutil.PNG(2, 2))
	testutil.WriteFile(dir, "b.png", testutil.PNG(2, 2))

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	select {
	case err := <-errs:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	called := false
	w := New(dir, []string{".png"}, 20*time.Millisecond, nil)
	go func() {
		time.Sleep(100 * time.Millisecond)
		testutil.WriteFile(dir, "scan.tif", []byte("x"))
	}()

	require.NoError(t, w.Run(ctx, func() { called = true }))
	assert.False(t, called)
}

func TestWatcher_MissingFolder(t *testing.T) {
	w := New(t.TempDir()+"/missing", nil, 0, nil)
	assert.Error(t, w.Run(context.Background(), func() {}))
}
