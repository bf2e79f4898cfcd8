package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blobbridge/blobbridge/internal/storage"
)

func newManager(t *testing.T, store storage.Adapter, root string) *Manager {
	t.Helper()
	m, err := NewManager(store, root, Patterns{})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	return m
}

func readLocal(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func TestSyncTo_UploadsAndSkips(t *testing.T) {
	store := storage.NewMemoryStore()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	writeFile(t, root, "sub/b.txt", "beta")

	m := newManager(t, store, root)
	ctx := context.Background()

	report, err := m.SyncTo(ctx)
	if err != nil {
		t.Fatalf("SyncTo() error: %v", err)
	}
	if report.Uploaded != 2 {
		t.Errorf("expected 2 uploads, got %d", report.Uploaded)
	}

	// A second pass with no changes transfers nothing.
	report, err = m.SyncTo(ctx)
	if err != nil {
		t.Fatalf("second SyncTo() error: %v", err)
	}
	if report.Uploaded != 0 || report.Skipped != 2 {
		t.Errorf("expected 0 uploads 2 skips, got %+v", report)
	}
}

func TestSyncTo_PrunesDeletedFiles(t *testing.T) {
	store := storage.NewMemoryStore()
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "stays")
	writeFile(t, root, "gone.txt", "goes")

	m := newManager(t, store, root)
	ctx := context.Background()

	if _, err := m.SyncTo(ctx); err != nil {
		t.Fatalf("SyncTo() error: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "gone.txt")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := m.SyncTo(ctx); err != nil {
		t.Fatalf("second SyncTo() error: %v", err)
	}

	man, err := m.loadManifest(ctx)
	if err != nil {
		t.Fatalf("loadManifest() error: %v", err)
	}
	if _, ok := man.Entries["gone.txt"]; ok {
		t.Error("deleted file still listed in the manifest")
	}
	if _, ok := man.Entries["keep.txt"]; !ok {
		t.Error("surviving file dropped from the manifest")
	}
}

func TestSyncFrom_FetchesChangedLeavesUnchanged(t *testing.T) {
	// Local pushes A and B; the remote side pulls them, mutates A, and
	// pushes back. A subsequent local SyncFrom must fetch the new A and
	// must not re-transfer the untouched B.
	store := storage.NewMemoryStore()
	localRoot := t.TempDir()
	remoteRoot := t.TempDir()
	ctx := context.Background()

	writeFile(t, localRoot, "a.txt", "alpha v1")
	writeFile(t, localRoot, "b.txt", "beta")

	local := newManager(t, store, localRoot)
	remote := newManager(t, store, remoteRoot)

	if _, err := local.SyncTo(ctx); err != nil {
		t.Fatalf("local SyncTo() error: %v", err)
	}
	if _, err := remote.SyncFrom(ctx); err != nil {
		t.Fatalf("remote SyncFrom() error: %v", err)
	}
	if got := readLocal(t, remoteRoot, "a.txt"); got != "alpha v1" {
		t.Fatalf("remote copy of a.txt = %q", got)
	}

	// Remote-side mutation, pushed back. Bump the mtime explicitly so
	// the test does not depend on filesystem timestamp granularity.
	writeFile(t, remoteRoot, "a.txt", "alpha v2")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(remoteRoot, "a.txt"), future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := remote.SyncTo(ctx); err != nil {
		t.Fatalf("remote SyncTo() error: %v", err)
	}

	report, err := local.SyncFrom(ctx)
	if err != nil {
		t.Fatalf("local SyncFrom() error: %v", err)
	}
	if report.Downloaded != 1 {
		t.Errorf("expected exactly 1 download, got %d", report.Downloaded)
	}
	if got := readLocal(t, localRoot, "a.txt"); got != "alpha v2" {
		t.Errorf("a.txt = %q, expected mutated content", got)
	}
	if got := readLocal(t, localRoot, "b.txt"); got != "beta" {
		t.Errorf("b.txt = %q, must be untouched", got)
	}
}

func TestSyncFrom_AbsentLocalFile(t *testing.T) {
	store := storage.NewMemoryStore()
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()
	ctx := context.Background()

	writeFile(t, srcRoot, "deep/nested/file.txt", "content")
	src := newManager(t, store, srcRoot)
	dst := newManager(t, store, dstRoot)

	if _, err := src.SyncTo(ctx); err != nil {
		t.Fatalf("SyncTo() error: %v", err)
	}
	report, err := dst.SyncFrom(ctx)
	if err != nil {
		t.Fatalf("SyncFrom() error: %v", err)
	}
	if report.Downloaded != 1 {
		t.Errorf("expected 1 download, got %d", report.Downloaded)
	}
	if got := readLocal(t, dstRoot, "deep/nested/file.txt"); got != "content" {
		t.Errorf("unexpected content %q; directories must be created as needed", got)
	}
}

func TestSyncFrom_EmptyRemote(t *testing.T) {
	store := storage.NewMemoryStore()
	m := newManager(t, store, t.TempDir())

	report, err := m.SyncFrom(context.Background())
	if err != nil {
		t.Fatalf("SyncFrom() error: %v", err)
	}
	if report.Downloaded != 0 {
		t.Errorf("expected nothing to download, got %d", report.Downloaded)
	}
}

func TestSyncBoth_MergesReports(t *testing.T) {
	store := storage.NewMemoryStore()
	root := t.TempDir()
	writeFile(t, root, "x.txt", "x")

	m := newManager(t, store, root)
	report, err := m.SyncBoth(context.Background())
	if err != nil {
		t.Fatalf("SyncBoth() error: %v", err)
	}
	if report.Uploaded != 1 {
		t.Errorf("expected 1 upload, got %d", report.Uploaded)
	}
	if report.Downloaded != 0 {
		t.Errorf("expected 0 downloads, got %d", report.Downloaded)
	}
}

func TestSync_RespectsPatterns(t *testing.T) {
	store := storage.NewMemoryStore()
	root := t.TempDir()
	writeFile(t, root, "keep.py", "print()")
	writeFile(t, root, "drop.pyc", "binary")

	m, err := NewManager(store, root, Patterns{Include: []string{"*.py"}})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	report, err := m.SyncTo(context.Background())
	if err != nil {
		t.Fatalf("SyncTo() error: %v", err)
	}
	if report.Uploaded != 1 {
		t.Errorf("expected only keep.py uploaded, got %d uploads", report.Uploaded)
	}
}
