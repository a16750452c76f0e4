package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aether-kv/kvs/internal/format"
)

func openTestLog(t *testing.T) *LogFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log")
	f, err := Open(path, 4096, 5*time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAppendReturnsOffsetConsistentWithSize(t *testing.T) {
	f := openTestLog(t)

	ref1, err := f.Append(format.NewSet("k1", "v1"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref1.Offset != 0 {
		t.Errorf("first record offset = %d, want 0", ref1.Offset)
	}

	ref2, err := f.Append(format.NewSet("k2", "v2"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref2.Offset != ref1.Offset+ref1.Length {
		t.Errorf("second record offset = %d, want %d", ref2.Offset, ref1.Offset+ref1.Length)
	}

	if got := f.Size(); got != ref2.Offset+ref2.Length {
		t.Errorf("Size() = %d, want %d", got, ref2.Offset+ref2.Length)
	}
}

func TestAppendThenReadRecordRoundTrips(t *testing.T) {
	f := openTestLog(t)

	rec := format.NewSet("key1", "value1")
	ref, err := f.Append(rec)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := f.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got, err := f.ReadRecord(ref)
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	if got != rec {
		t.Errorf("ReadRecord() = %+v, want %+v", got, rec)
	}
}

func TestReadRawReturnsVerbatimBytes(t *testing.T) {
	f := openTestLog(t)

	rec := format.NewSet("key1", "value1")
	ref, err := f.Append(rec)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	f.Flush()

	raw, err := f.ReadRaw(ref)
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}

	want, _ := format.Encode(rec)
	if string(raw) != string(want) {
		t.Errorf("ReadRaw() = %q, want %q", raw, want)
	}
}

func TestReadRecordSeesAppendAfterFlush(t *testing.T) {
	// ReadRecord reads the underlying *os.File directly, so a record
	// still sitting in the buffered writer is not visible to it; one
	// small record stays below batchSize and is not flushed by Append.
	// The engine's Get flushes before it reads, and this test does the
	// same before reading through the shared *os.File.
	f := openTestLog(t)
	rec := format.NewSet("key1", "value1")
	ref, err := f.Append(rec)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	got, err := f.ReadRecord(ref)
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	if got != rec {
		t.Errorf("ReadRecord() = %+v, want %+v", got, rec)
	}
}

func TestReopenPreservesSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log")

	f, err := Open(path, 4096, 5*time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ref, err := f.Append(format.NewSet("k1", "v1"))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path, 4096, 5*time.Second)
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	defer reopened.Close()

	if got := reopened.Size(); got != ref.Offset+ref.Length {
		t.Errorf("Size() after reopen = %d, want %d", got, ref.Offset+ref.Length)
	}
}
