// Package metadata implements the source metadata store: source_id -> (filesize, file_hash).
// Grounded on internal/kv's ordered unique-key store.
package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rpcpool/hashdb/internal/kv"
)

// ErrAlreadyPresent is returned by Insert when sourceID already has a
// metadata entry with a different value, per spec.md §4.4.
var ErrAlreadyPresent = errors.New("metadata: already present")

// Entry is a source's recorded size and whole-file digest.
type Entry struct {
	Filesize uint64
	FileHash []byte
}

// Store is the source metadata store. It is independent of the name
// interner: a source may exist with hash references but no metadata row,
// and vice versa (SPEC_FULL.md SUPPLEMENTED FEATURES §2).
type Store struct {
	kv *kv.Store
}

// Open opens or creates the metadata store under dir.
func Open(dir string) (*Store, error) {
	k, err := kv.Open(dir, "source_metadata_store", 1)
	if err != nil {
		return nil, err
	}
	return &Store{kv: k}, nil
}

func (s *Store) Close() error { return s.kv.Close() }

// sourceIDKey encodes source_id big-endian so that byte-lexicographic
// order over keys matches numeric order, which Iterate relies on to walk
// source ids ascending.
func sourceIDKey(sourceID uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, sourceID)
	return buf
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, 8+len(e.FileHash))
	binary.LittleEndian.PutUint64(buf[:8], e.Filesize)
	copy(buf[8:], e.FileHash)
	return buf
}

func decodeEntry(b []byte) Entry {
	return Entry{
		Filesize: binary.LittleEndian.Uint64(b[:8]),
		FileHash: append([]byte(nil), b[8:]...),
	}
}

// Insert records metadata for sourceID. Re-inserting an identical value
// is a no-op (idempotent); inserting a different value for an
// already-present source is rejected with ErrAlreadyPresent.
func (s *Store) Insert(sourceID uint64, e Entry) error {
	key := sourceIDKey(sourceID)
	existing, ok, err := s.kv.Find(key)
	if err != nil {
		return err
	}
	newVal := encodeEntry(e)
	if ok {
		if bytesEqual(existing, newVal) {
			return nil
		}
		return fmt.Errorf("%w: source %d", ErrAlreadyPresent, sourceID)
	}
	return s.kv.Insert(key, newVal)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Lookup returns the metadata for sourceID, if any.
func (s *Store) Lookup(sourceID uint64) (Entry, bool, error) {
	v, ok, err := s.kv.Find(sourceIDKey(sourceID))
	if err != nil || !ok {
		return Entry{}, false, err
	}
	return decodeEntry(v), true, nil
}

// Iterate walks every (sourceID, Entry) pair in source id ascending
// order.
func (s *Store) Iterate(fn func(sourceID uint64, e Entry) error) error {
	return s.kv.Iterate(func(key, value []byte) error {
		return fn(binary.BigEndian.Uint64(key), decodeEntry(value))
	})
}

// Len returns the number of sources with recorded metadata.
func (s *Store) Len() int { return s.kv.Len() }
