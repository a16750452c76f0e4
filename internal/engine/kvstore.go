package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aether-kv/kvs/internal/format"
	"github.com/aether-kv/kvs/internal/kvserr"
	"github.com/aether-kv/kvs/internal/storage"
)

const (
	maxKeySize   = 256
	maxValueSize = 4096

	logFileName   = "log"
	tmpFileName   = "log.tmp"
	indexFileName = "index"
)

// KvStore is the log-structured engine: an append-only log plus an
// in-memory index of each live key's most recent location. Opening a
// directory that already holds a log replays it (or loads a snapshot
// left by a clean shutdown) to rebuild the index before serving requests.
//
// KvStore is itself a cheap handle: callers share one engine by sharing
// the *KvStore pointer rather than cloning any internal state.
type KvStore struct {
	dir string

	logMu sync.RWMutex // guards the log field itself, for the compaction handle swap
	log   *storage.LogFile

	writerMu sync.Mutex // serializes Set/Remove against each other and against compaction

	index *Index

	redundancyMu sync.Mutex
	redundancy   uint64
	threshold    uint64

	batchSize    uint32
	syncInterval time.Duration

	closeOnce sync.Once
}

// OpenKvStore opens (or creates) a log-structured store rooted at dir.
func OpenKvStore(dir string, threshold uint64, batchSize uint32, syncInterval time.Duration) (*KvStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create data dir %s: %v", kvserr.ErrIo, dir, err)
	}

	logPath := filepath.Join(dir, logFileName)
	tmpPath := filepath.Join(dir, tmpFileName)
	indexPath := filepath.Join(dir, indexFileName)

	tmpExists := fileExists(tmpPath)
	logExists := fileExists(logPath)
	skipSnapshot := tmpExists

	switch {
	case tmpExists && !logExists:
		// Crashed after the old log was removed but before the tmp file
		// was renamed into place: finish the rename.
		slog.Warn("engine: resuming interrupted compaction, finishing rename", "dir", dir)
		if err := os.Rename(tmpPath, logPath); err != nil {
			return nil, fmt.Errorf("%w: finish interrupted compaction: %v", kvserr.ErrIo, err)
		}
	case tmpExists && logExists:
		// Crashed while the rebuild was still copying into log.tmp, or
		// before the old log was removed: the original log is intact,
		// discard the half-built side file.
		slog.Warn("engine: discarding interrupted compaction side file", "dir", dir)
		if err := os.Remove(tmpPath); err != nil {
			return nil, fmt.Errorf("%w: discard interrupted compaction: %v", kvserr.ErrIo, err)
		}
	}

	log, err := storage.Open(logPath, batchSize, syncInterval)
	if err != nil {
		return nil, err
	}

	index, err := loadOrReplay(log, indexPath, skipSnapshot)
	if err != nil {
		log.Close()
		return nil, err
	}
	if skipSnapshot {
		os.Remove(indexPath)
	}

	return &KvStore{
		dir:          dir,
		log:          log,
		index:        index,
		threshold:    threshold,
		batchSize:    batchSize,
		syncInterval: syncInterval,
	}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadOrReplay(log *storage.LogFile, indexPath string, skipSnapshot bool) (*Index, error) {
	if !skipSnapshot {
		if f, err := os.Open(indexPath); err == nil {
			defer f.Close()
			idx := NewIndex()
			if err := idx.Load(f); err == nil {
				slog.Debug("engine: loaded index snapshot", "path", indexPath)
				return idx, nil
			}
			slog.Warn("engine: index snapshot unreadable, replaying log instead", "path", indexPath)
		}
	}
	return replay(log)
}

// replay rebuilds the index by scanning the log from the start. A
// truncated trailing record (a partial write left by an unclean
// shutdown) stops the scan instead of failing it; everything up to that
// point is still valid.
func replay(log *storage.LogFile) (*Index, error) {
	r, err := log.NewStreamReader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	idx := NewIndex()
	dec := format.NewStreamDecoder(r)
	var offset int64
	for {
		rec, next, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("engine: stopping replay at truncated trailing record", "offset", offset, "error", err)
			}
			break
		}
		ref := format.RecordRef{Offset: uint64(offset), Length: uint64(next - offset)}
		if rec.IsRemove() {
			idx.Remove(rec.Key)
		} else {
			idx.Insert(rec.Key, ref)
		}
		offset = next
	}
	return idx, nil
}

// Set stores key -> value, appending a Set record and updating the
// index. If the accumulated redundant bytes pass the compaction
// threshold, compaction runs before Set returns.
func (e *KvStore) Set(key, value string) error {
	if len(key) > maxKeySize {
		return fmt.Errorf("%w: key is %d bytes", kvserr.ErrInvalidKeySize, len(key))
	}
	if len(value) > maxValueSize {
		return fmt.Errorf("%w: value is %d bytes", kvserr.ErrInvalidValueSize, len(value))
	}

	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	log := e.currentLog()
	ref, err := log.Append(format.NewSet(key, value))
	if err != nil {
		return err
	}

	prev, had := e.index.Insert(key, ref)
	if had {
		e.addRedundancy(prev.Length)
	}
	return e.maybeCompactLocked()
}

// Get returns key's current value. A missing key is reported as
// (_, false, nil), never an error. A Remove tombstone found through a
// live index entry is an invariant violation and is reported as
// kvserr.ErrCorruption rather than as a miss.
//
// The flush, the index lookup and the positional read happen under the
// same writerMu section, not separate ones: compaction holds writerMu
// for its entire rebuild, including the moment it rewrites each index
// entry to its new-log offset, the moment it swaps the log pointer and
// the moment it closes the old log. Holding writerMu across all three
// steps means Get can never observe a ref that compaction has already
// rewritten paired with the log the rewrite hasn't swapped in yet (or
// vice versa) — it either runs entirely before that compaction starts,
// seeing the old ref and the old (still-open) log, or it blocks until
// the compaction, swap included, has fully finished.
func (e *KvStore) Get(key string) (string, bool, error) {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	log := e.currentLog()
	if err := log.Flush(); err != nil {
		return "", false, err
	}
	ref, ok := e.index.Get(key)
	if !ok {
		return "", false, nil
	}

	rec, err := log.ReadRecord(ref)
	if err != nil {
		return "", false, err
	}
	if rec.IsRemove() {
		return "", false, fmt.Errorf("%w: index points at a tombstone for key %q", kvserr.ErrCorruption, key)
	}
	return rec.Value, true, nil
}

// Remove deletes key, appending a tombstone record. Returns
// kvserr.ErrKeyNotFound if the key has no live entry.
func (e *KvStore) Remove(key string) error {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	prevRef, had := e.index.Get(key)
	if !had {
		return kvserr.ErrKeyNotFound
	}

	log := e.currentLog()
	tombRef, err := log.Append(format.NewRemove(key))
	if err != nil {
		return err
	}

	e.index.Remove(key)
	e.addRedundancy(prevRef.Length + tombRef.Length)
	return e.maybeCompactLocked()
}

// Scan returns every live key, in no particular order.
func (e *KvStore) Scan() []string {
	return e.index.Keys()
}

// SaveIndex writes a snapshot of the index so the next Open can skip
// replay. Called on clean shutdown.
func (e *KvStore) SaveIndex() error {
	path := filepath.Join(e.dir, indexFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create index snapshot %s: %v", kvserr.ErrIo, path, err)
	}
	defer f.Close()
	return e.index.Persist(f)
}

// Close saves the index and closes the active log. Safe to call more
// than once.
func (e *KvStore) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if saveErr := e.SaveIndex(); saveErr != nil {
			slog.Warn("engine: failed to save index snapshot on close", "error", saveErr)
		}
		err = e.currentLog().Close()
	})
	return err
}

func (e *KvStore) currentLog() *storage.LogFile {
	e.logMu.RLock()
	defer e.logMu.RUnlock()
	return e.log
}

func (e *KvStore) addRedundancy(n uint64) {
	e.redundancyMu.Lock()
	e.redundancy += n
	e.redundancyMu.Unlock()
}

// maybeCompactLocked runs compaction if the redundancy threshold has
// been crossed. Callers must already hold writerMu.
func (e *KvStore) maybeCompactLocked() error {
	e.redundancyMu.Lock()
	over := e.redundancy >= e.threshold
	e.redundancyMu.Unlock()
	if !over {
		return nil
	}
	if err := e.compactLocked(); err != nil {
		return err
	}
	e.redundancyMu.Lock()
	e.redundancy = 0
	e.redundancyMu.Unlock()
	return nil
}

// compactLocked rebuilds the log into a side file containing only live
// records, then swaps it in. Callers must already hold writerMu, which
// blocks new Set/Remove calls for the duration: that is what keeps a
// concurrent write from landing in the old log after compaction has
// already decided that key's fate.
//
// Get takes writerMu across its flush, its index lookup and its read (see
// Get's comment), so it is excluded for this entire call, including the
// per-key index rewrite below and the final log-pointer swap: it never
// observes a ref already rewritten to the new log paired with the old,
// soon-to-be-closed log, or vice versa.
func (e *KvStore) compactLocked() error {
	oldLog := e.log
	if err := oldLog.Flush(); err != nil {
		return err
	}

	indexPath := filepath.Join(e.dir, indexFileName)
	tmpPath := filepath.Join(e.dir, tmpFileName)
	logPath := filepath.Join(e.dir, logFileName)

	// Invalidate the snapshot before touching the log: if this process
	// crashes mid-rebuild, the next Open must not trust a snapshot that
	// describes offsets in a log that's about to be rewritten.
	os.Remove(indexPath)

	newLog, err := storage.Create(tmpPath, e.batchSize, e.syncInterval)
	if err != nil {
		return fmt.Errorf("%w: create compaction side file: %v", kvserr.ErrIo, err)
	}

	for _, key := range e.index.Keys() {
		ref, ok := e.index.Get(key)
		if !ok {
			continue
		}
		raw, err := oldLog.ReadRaw(ref)
		if err != nil {
			newLog.Close()
			os.Remove(tmpPath)
			return err
		}
		newRef, err := newLog.AppendRaw(raw)
		if err != nil {
			newLog.Close()
			os.Remove(tmpPath)
			return err
		}
		e.index.Insert(key, newRef)
	}

	if err := newLog.Flush(); err != nil {
		newLog.Close()
		os.Remove(tmpPath)
		return err
	}

	e.logMu.Lock()
	e.log = newLog
	e.logMu.Unlock()

	if err := oldLog.Close(); err != nil {
		slog.Warn("engine: closing old log after compaction", "error", err)
	}
	if err := os.Remove(logPath); err != nil {
		return fmt.Errorf("%w: remove old log after compaction: %v", kvserr.ErrIo, err)
	}
	if err := os.Rename(tmpPath, logPath); err != nil {
		return fmt.Errorf("%w: rename compaction side file into place: %v", kvserr.ErrIo, err)
	}

	slog.Debug("engine: compaction complete", "dir", e.dir, "live_keys", e.index.Len())
	return nil
}
