package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aether-kv/kvs/internal/kvserr"
)

const markerFileName = "db.type"

// Kind names accepted both on the command line/config (as selectors, plus
// "auto") and as the contents of a directory's db.type marker file (as a
// hard record, "kvs" or "sled" only).
const (
	KindLogStructured = "kvs"
	KindTree          = "sled"
	KindAuto          = "auto"
)

// ReadMarker returns the engine kind recorded in dir/db.type, or "" if
// the directory has no marker yet (a brand new data directory).
func ReadMarker(dir string) (string, error) {
	path := filepath.Join(dir, markerFileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read engine marker %s: %v", kvserr.ErrIo, path, err)
	}
	kind := strings.TrimSpace(string(raw))
	if kind != KindLogStructured && kind != KindTree {
		return "", fmt.Errorf("%w: marker file %s contains unrecognized engine kind %q", kvserr.ErrParseEngine, path, kind)
	}
	return kind, nil
}

// WriteMarker records kind as dir's engine type. Called once, the first
// time a directory is opened.
func WriteMarker(dir, kind string) error {
	path := filepath.Join(dir, markerFileName)
	if err := os.WriteFile(path, []byte(kind), 0644); err != nil {
		return fmt.Errorf("%w: write engine marker %s: %v", kvserr.ErrIo, path, err)
	}
	return nil
}
