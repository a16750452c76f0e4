package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aether-kv/kvs/internal/kvserr"
)

func TestMarkerRoundTrips(t *testing.T) {
	dir := t.TempDir()

	kind, err := ReadMarker(dir)
	if err != nil || kind != "" {
		t.Fatalf("ReadMarker() on fresh dir = %q, %v, want \"\", nil", kind, err)
	}

	if err := WriteMarker(dir, KindLogStructured); err != nil {
		t.Fatalf("WriteMarker() error = %v", err)
	}

	kind, err = ReadMarker(dir)
	if err != nil || kind != KindLogStructured {
		t.Errorf("ReadMarker() = %q, %v, want %q, nil", kind, err, KindLogStructured)
	}
}

func TestMarkerRejectsUnrecognizedContents(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, markerFileName), []byte("bogus"), 0644); err != nil {
		t.Fatalf("write marker file: %v", err)
	}

	_, err := ReadMarker(dir)
	if !errors.Is(err, kvserr.ErrParseEngine) {
		t.Errorf("ReadMarker() error = %v, want kvserr.ErrParseEngine", err)
	}
}
