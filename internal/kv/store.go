// Package kv is the generalized ordered-map / ordered-multimap engine
// backing the hash store, hash duplicates store, source metadata store,
// and source interner. It keeps the teacher's append-only log plus
// replay-on-open design (store/primary/gsfaprimary.go, store/index) but
// drops the file cache, CID-shaped index keys, and background flush
// scheduler, none of which this domain needs: every store here is small
// enough to hold its sorted index fully in memory, matching spec.md §9's
// invitation to "pick a single best container and drop the enum".
package kv

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store is an ordered map with unique keys: insert requires absence,
// replace requires presence, matching spec.md §4.5's Hash store contract
// (and doubling as the §4.4 source metadata store and the forward/reverse
// maps in the interner).
type Store struct {
	dir        string
	name       string
	shardCount int
	shards     []*uniqueShard
}

type uniqueShard struct {
	mu     sync.RWMutex
	file   *os.File
	writer *bufio.Writer
	keys   [][]byte // sorted ascending
	values map[string][]byte
}

// Open opens or creates a unique-key ordered store rooted at
// dir/name.0 .. dir/name.<shardCount-1> (a single file dir/name when
// shardCount is 1), replaying each shard's log into memory.
func Open(dir, name string, shardCount int) (*Store, error) {
	shardCount = clampShardCount(shardCount)
	s := &Store{dir: dir, name: name, shardCount: shardCount}
	for i := 0; i < shardCount; i++ {
		sh, err := openUniqueShard(shardPath(dir, name, i, shardCount))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("kv: open shard %d of %q: %w", i, name, err)
		}
		s.shards = append(s.shards, sh)
	}
	return s, nil
}

func shardPath(dir, name string, i, shardCount int) string {
	if shardCount == 1 {
		return filepath.Join(dir, name)
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%d", name, i))
}

func openUniqueShard(path string) (*uniqueShard, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	sh := &uniqueShard{
		file:   f,
		values: make(map[string][]byte),
	}
	if err := sh.replay(); err != nil {
		f.Close()
		return nil, err
	}
	sh.writer = bufio.NewWriter(f)
	return sh, nil
}

func (sh *uniqueShard) replay() error {
	if _, err := sh.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(sh.file)
	for {
		op, key, value, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("kv: replay: %w", err)
		}
		switch op {
		case opPut:
			if _, exists := sh.values[string(key)]; !exists {
				sh.insertKeySorted(key)
			}
			sh.values[string(key)] = value
		case opDelete:
			if _, exists := sh.values[string(key)]; exists {
				delete(sh.values, string(key))
				sh.removeKeySorted(key)
			}
		default:
			return fmt.Errorf("kv: replay: unknown opcode %d", op)
		}
	}
	if _, err := sh.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}

func (sh *uniqueShard) insertKeySorted(key []byte) {
	i := sort.Search(len(sh.keys), func(i int) bool { return bytes.Compare(sh.keys[i], key) >= 0 })
	sh.keys = append(sh.keys, nil)
	copy(sh.keys[i+1:], sh.keys[i:])
	sh.keys[i] = append([]byte(nil), key...)
}

func (sh *uniqueShard) removeKeySorted(key []byte) {
	i := sort.Search(len(sh.keys), func(i int) bool { return bytes.Compare(sh.keys[i], key) >= 0 })
	if i < len(sh.keys) && bytes.Equal(sh.keys[i], key) {
		sh.keys = append(sh.keys[:i], sh.keys[i+1:]...)
	}
}

func (s *Store) shard(key []byte) *uniqueShard {
	return s.shards[shardFor(key, s.shardCount)]
}

// Find returns the value for key, or ok=false if absent.
func (s *Store) Find(key []byte) (value []byte, ok bool, err error) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.values[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Insert adds (key, value). It is an error for key to already be present;
// callers (the database manager) are expected to check Find first, but
// Insert double-checks under lock to stay safe against races.
func (s *Store) Insert(key, value []byte) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.values[string(key)]; exists {
		return fmt.Errorf("kv: insert: key already present")
	}
	if err := writeRecord(sh.writer, opPut, key, value); err != nil {
		return err
	}
	if err := sh.writer.Flush(); err != nil {
		return err
	}
	sh.insertKeySorted(key)
	sh.values[string(key)] = append([]byte(nil), value...)
	return nil
}

// Replace overwrites the value for an existing key. It is an error if key
// is absent.
func (s *Store) Replace(key, value []byte) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.values[string(key)]; !exists {
		return fmt.Errorf("kv: replace: key not present")
	}
	if err := writeRecord(sh.writer, opPut, key, value); err != nil {
		return err
	}
	if err := sh.writer.Flush(); err != nil {
		return err
	}
	sh.values[string(key)] = append([]byte(nil), value...)
	return nil
}

// Erase removes key. It is an error if key is absent.
func (s *Store) Erase(key []byte) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.values[string(key)]; !exists {
		return fmt.Errorf("kv: erase: key not present")
	}
	if err := writeRecord(sh.writer, opDelete, key, nil); err != nil {
		return err
	}
	if err := sh.writer.Flush(); err != nil {
		return err
	}
	delete(sh.values, string(key))
	sh.removeKeySorted(key)
	return nil
}

// Len returns the number of keys across all shards.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.keys)
		sh.mu.RUnlock()
	}
	return n
}

// Iterate walks every (key, value) pair in ascending key order within
// each shard, shard by shard (shard 0's keys first, then shard 1's, and
// so on). For a single-shard store (the common case for small to medium
// databases) this is a total order over all keys; fn returning an error
// stops iteration and the error is returned.
func (s *Store) Iterate(fn func(key, value []byte) error) error {
	for _, sh := range s.shards {
		sh.mu.RLock()
		keys := make([][]byte, len(sh.keys))
		copy(keys, sh.keys)
		sh.mu.RUnlock()
		for _, k := range keys {
			sh.mu.RLock()
			v, ok := sh.values[string(k)]
			sh.mu.RUnlock()
			if !ok {
				continue // concurrently erased since the snapshot was taken
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes and closes every shard file.
func (s *Store) Close() error {
	var firstErr error
	for _, sh := range s.shards {
		if sh == nil {
			continue
		}
		sh.mu.Lock()
		if sh.writer != nil {
			if err := sh.writer.Flush(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := sh.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		sh.mu.Unlock()
	}
	return firstErr
}
