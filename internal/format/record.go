// Package format encodes and decodes the log records the engine appends.
// Records are self-delimited JSON objects concatenated back to back with
// no separator; a streaming json.Decoder is what makes that framing
// practical, since it reports the exact byte offset after each value it
// consumes without requiring a length prefix or a terminator byte.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aether-kv/kvs/internal/kvserr"
)

// Record kinds. A Record is always exactly one of these.
const (
	KindSet    = "set"
	KindRemove = "remove"
)

// Record is the tagged union the log stores: Set{key,value} or
// Remove{key}. Value is empty (and omitted on the wire) for Remove.
type Record struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// NewSet builds a Set record.
func NewSet(key, value string) Record {
	return Record{Type: KindSet, Key: key, Value: value}
}

// NewRemove builds a Remove record.
func NewRemove(key string) Record {
	return Record{Type: KindRemove, Key: key}
}

// IsSet reports whether r is a Set record.
func (r Record) IsSet() bool { return r.Type == KindSet }

// IsRemove reports whether r is a Remove record.
func (r Record) IsRemove() bool { return r.Type == KindRemove }

// Encode produces the self-delimited byte encoding of r.
func Encode(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("format: encode record: %w", err)
	}
	return b, nil
}

// RecordRef identifies a byte range in the active log that decodes to
// exactly one record.
type RecordRef struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// StreamDecoder reads records sequentially from a byte stream, reporting
// the cumulative byte offset immediately after each decoded record.
type StreamDecoder struct {
	dec *json.Decoder
}

// NewStreamDecoder wraps r for sequential record-at-a-time decoding.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{dec: json.NewDecoder(r)}
}

// Next decodes the next record and returns it along with the stream's
// cumulative byte offset immediately after it. Returns io.EOF once the
// stream is exhausted between records; any other error, including a
// partial/truncated trailing record, is reported as kvserr.ErrCorruption.
func (d *StreamDecoder) Next() (Record, int64, error) {
	var rec Record
	err := d.dec.Decode(&rec)
	if errors.Is(err, io.EOF) {
		return Record{}, d.dec.InputOffset(), io.EOF
	}
	if err != nil {
		return Record{}, 0, fmt.Errorf("%w: %v", kvserr.ErrCorruption, err)
	}
	return rec, d.dec.InputOffset(), nil
}

// DecodeAt seeks to offset, reads exactly length bytes from r, and
// decodes one record. Truncated or invalid input is reported as
// kvserr.ErrCorruption.
func DecodeAt(r io.ReaderAt, ref RecordRef) (Record, error) {
	buf := make([]byte, ref.Length)
	n, err := r.ReadAt(buf, int64(ref.Offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return Record{}, fmt.Errorf("%w: read record at offset %d: %v", kvserr.ErrIo, ref.Offset, err)
	}
	if uint64(n) != ref.Length {
		return Record{}, fmt.Errorf("%w: truncated record at offset %d: got %d of %d bytes", kvserr.ErrCorruption, ref.Offset, n, ref.Length)
	}

	var rec Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode record at offset %d: %v", kvserr.ErrCorruption, ref.Offset, err)
	}
	if rec.Type != KindSet && rec.Type != KindRemove {
		return Record{}, fmt.Errorf("%w: unknown record type %q at offset %d", kvserr.ErrCorruption, rec.Type, ref.Offset)
	}
	return rec, nil
}
