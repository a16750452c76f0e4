// Package engine implements the log-structured key-value store and the
// abstract interface that lets it be swapped for an embedded tree-backed
// alternative. A directory holds exactly one engine implementation's
// data, recorded in its db.type marker file.
package engine

import (
	"fmt"
	"time"

	"github.com/aether-kv/kvs/internal/kvserr"
)

// Engine is the abstract storage interface both backends satisfy.
type Engine interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	Remove(key string) error
	Scan() []string
	SaveIndex() error
	Close() error
}

// Options configures Open. BatchSize/SyncInterval/Threshold only matter
// for the log-structured backend; BoltStore ignores them.
type Options struct {
	Threshold    uint64
	BatchSize    uint32
	SyncInterval time.Duration
}

// Open resolves selector ("kvs", "sled", or "auto") against dir's db.type
// marker and returns the matching Engine. "auto" picks "kvs" for a fresh
// directory (no marker yet) and otherwise matches the existing marker.
// Any other mismatch between selector and marker is a fatal
// configuration error.
func Open(dir, selector string, opts Options) (Engine, error) {
	existing, err := ReadMarker(dir)
	if err != nil {
		return nil, err
	}

	kind := selector
	if selector == KindAuto {
		if existing == "" {
			kind = KindLogStructured
		} else {
			kind = existing
		}
	}
	if kind != KindLogStructured && kind != KindTree {
		return nil, fmt.Errorf("%w: unrecognized engine selector %q", kvserr.ErrParseEngine, selector)
	}
	if existing != "" && existing != kind {
		return nil, fmt.Errorf("%w: directory %s is owned by engine %q, selector requested %q", kvserr.ErrParseEngine, dir, existing, kind)
	}
	if existing == "" {
		if err := WriteMarker(dir, kind); err != nil {
			return nil, err
		}
	}

	switch kind {
	case KindLogStructured:
		return OpenKvStore(dir, opts.Threshold, opts.BatchSize, opts.SyncInterval)
	case KindTree:
		return OpenBolt(dir)
	default:
		return nil, fmt.Errorf("%w: unrecognized engine selector %q", kvserr.ErrParseEngine, selector)
	}
}
