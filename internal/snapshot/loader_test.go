package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/wstszx/LicStats/internal/metrics"
)

func dump(inUse int) string {
	return fmt.Sprintf("Users of solid:  (Total of 10 licenses issued;  Total of %d licenses in use)\n", inUse)
}

// failingFs fails every open of one file name.
type failingFs struct {
	afero.Fs
	name string
}

func (f failingFs) Open(name string) (afero.File, error) {
	if filepath.Base(name) == f.name {
		return nil, &os.PathError{Op: "open", Path: name, Err: errors.New("input/output error")}
	}
	return f.Fs.Open(name)
}

func newTestLoader(t *testing.T, store *Store) *Loader {
	t.Helper()
	loader, err := NewLoader(store, nil, LoaderConfig{CacheSize: 8, Workers: 2}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	return loader
}

func TestLoader_LoadWindowAscending(t *testing.T) {
	store, _ := newTestStore(t)
	for i := 1; i <= 3; i++ {
		writeAt(t, store, now.Add(-time.Duration(i)*time.Hour), dump(i))
	}

	snapshots, err := newTestLoader(t, store).Load(context.Background(), Week)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(snapshots))
	}
	for i, want := range []int{3, 2, 1} {
		if got := snapshots[i].Features[0].InUse; got != want {
			t.Errorf("Snapshot %d: expected in_use %d, got %d", i, want, got)
		}
	}
	if !snapshots[0].CapturedAt.Before(snapshots[2].CapturedAt) {
		t.Error("Expected snapshots in ascending capture order")
	}
}

func TestLoader_NoData(t *testing.T) {
	store, _ := newTestStore(t)
	writeAt(t, store, now.AddDate(0, 0, -9), dump(1))

	loader := newTestLoader(t, store)
	if _, err := loader.Load(context.Background(), Week); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for empty week, got %v", err)
	}
	if _, err := loader.Load(context.Background(), Month); err != nil {
		t.Errorf("Expected month to contain data, got %v", err)
	}
}

func TestLoader_SkipsUnreadable(t *testing.T) {
	mem := afero.NewMemMapFs()
	bad := NameFor(now.Add(-time.Hour))
	store, err := NewStore(failingFs{Fs: mem, name: bad}, "logs")
	if err != nil {
		t.Fatal(err)
	}
	store.SetLocation(time.UTC)
	store.SetClock(&TestClock{CurrentTime: now})

	writeAt(t, store, now.Add(-2*time.Hour), dump(2))
	if err := afero.WriteFile(mem, filepath.Join("logs", bad), []byte(dump(1)), 0644); err != nil {
		t.Fatal(err)
	}

	before := testutil.ToFloat64(metrics.SnapshotReadFailures)
	snapshots, err := newTestLoader(t, store).Load(context.Background(), Week)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Features[0].InUse != 2 {
		t.Errorf("Expected only the readable snapshot, got %+v", snapshots)
	}
	if got := testutil.ToFloat64(metrics.SnapshotReadFailures) - before; got != 1 {
		t.Errorf("Expected 1 read failure recorded, got %v", got)
	}

}

func TestLoader_LatestFallsBackToReadable(t *testing.T) {
	mem := afero.NewMemMapFs()
	bad := NameFor(now.Add(-time.Hour))
	store, err := NewStore(failingFs{Fs: mem, name: bad}, "logs")
	if err != nil {
		t.Fatal(err)
	}
	store.SetLocation(time.UTC)
	store.SetClock(&TestClock{CurrentTime: now})

	if err := afero.WriteFile(mem, filepath.Join("logs", bad), []byte(dump(1)), 0644); err != nil {
		t.Fatal(err)
	}

	// Only the unreadable snapshot exists.
	if _, err := newTestLoader(t, store).Load(context.Background(), Latest); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData when every snapshot fails, got %v", err)
	}
	if _, err := newTestLoader(t, store).Latest(context.Background()); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData from Latest, got %v", err)
	}

	older := writeAt(t, store, now.Add(-2*time.Hour), dump(2))

	snapshots, err := newTestLoader(t, store).Load(context.Background(), Latest)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].ID != older.Name {
		t.Errorf("Expected fallback to %s, got %+v", older.Name, snapshots)
	}

	doc, err := newTestLoader(t, store).Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if doc.Info.Name != older.Name || doc.Raw != dump(2) {
		t.Errorf("Expected latest readable document %s, got %+v", older.Name, doc.Info)
	}
}

func TestLoader_CacheInvalidatedOnRewrite(t *testing.T) {
	store, fs := newTestStore(t)
	at := now.Add(-time.Minute)
	info := writeAt(t, store, at, dump(1))
	loader := newTestLoader(t, store)

	first, err := loader.Load(context.Background(), Latest)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Features[0].InUse != 1 {
		t.Fatalf("Unexpected first parse: %+v", first)
	}

	// Rewrite with different size and mtime.
	if err := afero.WriteFile(fs, info.Path, []byte(dump(12)), 0644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	_ = fs.Chtimes(info.Path, later, later)

	second, err := loader.Load(context.Background(), Latest)
	if err != nil {
		t.Fatal(err)
	}
	if second[0].Features[0].InUse != 12 {
		t.Errorf("Expected rewritten file to be re-parsed, got in_use %d", second[0].Features[0].InUse)
	}
}

func TestLoader_OpenAndLatest(t *testing.T) {
	store, _ := newTestStore(t)
	loader := newTestLoader(t, store)

	if _, err := loader.Latest(context.Background()); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData from empty store, got %v", err)
	}

	info := writeAt(t, store, now.Add(-time.Minute), dump(4))
	doc, err := loader.Open(context.Background(), info.Name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if doc.Raw != dump(4) || doc.Snapshot.ID != info.Name || len(doc.Snapshot.Features) != 1 {
		t.Errorf("Unexpected document: %+v", doc)
	}

	latest, err := loader.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.Info.Name != info.Name {
		t.Errorf("Expected latest %s, got %s", info.Name, latest.Info.Name)
	}

	if _, err := loader.Open(context.Background(), "missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
