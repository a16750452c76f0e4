package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/aether-kv/kvs/internal/format"
	"github.com/aether-kv/kvs/internal/kvserr"
)

// Index is the in-memory key directory: key -> location of its most
// recent live record in the active log. All access goes through its own
// mutex, held only for the duration of one map operation and never while
// another lock is acquired. The index lock is not taken before
// KvStore.writerMu: KvStore calls into the index while already holding
// writerMu, so writerMu is always the outer lock.
type Index struct {
	mu sync.RWMutex
	m  map[string]format.RecordRef
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{m: make(map[string]format.RecordRef)}
}

// Insert records ref as key's current location, returning the previous
// ref and whether one existed. Callers use the previous ref's length to
// update the redundancy counter.
func (i *Index) Insert(key string, ref format.RecordRef) (format.RecordRef, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	prev, ok := i.m[key]
	i.m[key] = ref
	return prev, ok
}

// Remove drops key from the index, returning its last ref and whether it
// was present.
func (i *Index) Remove(key string) (format.RecordRef, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	prev, ok := i.m[key]
	delete(i.m, key)
	return prev, ok
}

// Get returns key's current ref, if any.
func (i *Index) Get(key string) (format.RecordRef, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ref, ok := i.m[key]
	return ref, ok
}

// Keys returns a snapshot of all live keys, in no particular order.
func (i *Index) Keys() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	keys := make([]string, 0, len(i.m))
	for k := range i.m {
		keys = append(keys, k)
	}
	return keys
}

// Len reports the number of live keys.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.m)
}

// Persist writes the whole index as one JSON object to w. Used to save a
// snapshot on clean shutdown so the next open can skip replay.
func (i *Index) Persist(w io.Writer) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if err := json.NewEncoder(w).Encode(i.m); err != nil {
		return fmt.Errorf("%w: persist index: %v", kvserr.ErrIo, err)
	}
	return nil
}

// Load replaces the index's contents with the snapshot read from r. A
// malformed snapshot is reported as kvserr.ErrCorruption so the caller
// can fall back to a full replay.
func (i *Index) Load(r io.Reader) error {
	m := make(map[string]format.RecordRef)
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return fmt.Errorf("%w: load index snapshot: %v", kvserr.ErrCorruption, err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.m = m
	return nil
}
