package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/aether-kv/kvs/internal/kvserr"
)

func testOpts() Options {
	return Options{Threshold: 1 << 20, BatchSize: 4096, SyncInterval: time.Hour}
}

func TestOpenAutoPicksKvsOnFreshDirectory(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(dir, KindAuto, testOpts())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer e.Close()

	kind, err := ReadMarker(dir)
	if err != nil || kind != KindLogStructured {
		t.Errorf("marker after auto-open = %q, %v, want %q, nil", kind, err, KindLogStructured)
	}
	if _, ok := e.(*KvStore); !ok {
		t.Errorf("Open(auto) on fresh dir returned %T, want *KvStore", e)
	}
}

func TestOpenAutoMatchesExistingMarker(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, KindTree, testOpts())
	if err != nil {
		t.Fatalf("Open(sled) error = %v", err)
	}
	first.Close()

	second, err := Open(dir, KindAuto, testOpts())
	if err != nil {
		t.Fatalf("Open(auto) on sled-owned dir error = %v", err)
	}
	defer second.Close()

	if _, ok := second.(*BoltStore); !ok {
		t.Errorf("Open(auto) on sled-owned dir returned %T, want *BoltStore", second)
	}
}

func TestOpenMismatchedSelectorFails(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, KindLogStructured, testOpts())
	if err != nil {
		t.Fatalf("Open(kvs) error = %v", err)
	}
	first.Close()

	_, err = Open(dir, KindTree, testOpts())
	if !errors.Is(err, kvserr.ErrParseEngine) {
		t.Errorf("Open(sled) on kvs-owned dir error = %v, want kvserr.ErrParseEngine", err)
	}
}

func TestOpenRejectsUnknownSelector(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(dir, "bogus", testOpts())
	if !errors.Is(err, kvserr.ErrParseEngine) {
		t.Errorf("Open(bogus) error = %v, want kvserr.ErrParseEngine", err)
	}
}
