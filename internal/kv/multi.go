package kv

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// MultiStore is an ordered multimap: duplicate keys are allowed, but not
// duplicate (key, value) pairs. It backs spec.md §4.6's hash duplicates
// store. Grounded on the same append-only log + in-memory sorted index
// design as Store, generalized to hold a slice of values per key.
type MultiStore struct {
	dir        string
	name       string
	shardCount int
	shards     []*multiShard
}

type multiShard struct {
	mu     sync.RWMutex
	file   *os.File
	writer *bufio.Writer
	keys   [][]byte // sorted ascending, deduplicated
	values map[string][][]byte
}

// OpenMulti opens or creates a multimap store analogous to Open.
func OpenMulti(dir, name string, shardCount int) (*MultiStore, error) {
	shardCount = clampShardCount(shardCount)
	s := &MultiStore{dir: dir, name: name, shardCount: shardCount}
	for i := 0; i < shardCount; i++ {
		sh, err := openMultiShard(shardPath(dir, name, i, shardCount))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("kv: open multi shard %d of %q: %w", i, name, err)
		}
		s.shards = append(s.shards, sh)
	}
	return s, nil
}

func openMultiShard(path string) (*multiShard, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	sh := &multiShard{
		file:   f,
		values: make(map[string][][]byte),
	}
	if err := sh.replay(); err != nil {
		f.Close()
		return nil, err
	}
	sh.writer = bufio.NewWriter(f)
	return sh, nil
}

func (sh *multiShard) replay() error {
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
			if _, existed := sh.values[string(key)]; !existed {
				sh.insertKeySorted(key)
			}
			sh.values[string(key)] = appendDistinct(sh.values[string(key)], value)
		case opDelete:
			vs, existed := sh.values[string(key)]
			if !existed {
				continue
			}
			vs = removeValue(vs, value)
			if len(vs) == 0 {
				delete(sh.values, string(key))
				sh.removeKeySorted(key)
			} else {
				sh.values[string(key)] = vs
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

func appendDistinct(vs [][]byte, v []byte) [][]byte {
	for _, existing := range vs {
		if bytes.Equal(existing, v) {
			return vs
		}
	}
	return append(vs, append([]byte(nil), v...))
}

func removeValue(vs [][]byte, v []byte) [][]byte {
	for i, existing := range vs {
		if bytes.Equal(existing, v) {
			return append(vs[:i], vs[i+1:]...)
		}
	}
	return vs
}

func (sh *multiShard) insertKeySorted(key []byte) {
	i := sort.Search(len(sh.keys), func(i int) bool { return bytes.Compare(sh.keys[i], key) >= 0 })
	sh.keys = append(sh.keys, nil)
	copy(sh.keys[i+1:], sh.keys[i:])
	sh.keys[i] = append([]byte(nil), key...)
}

func (sh *multiShard) removeKeySorted(key []byte) {
	i := sort.Search(len(sh.keys), func(i int) bool { return bytes.Compare(sh.keys[i], key) >= 0 })
	if i < len(sh.keys) && bytes.Equal(sh.keys[i], key) {
		sh.keys = append(sh.keys[:i], sh.keys[i+1:]...)
	}
}

func (s *MultiStore) shard(key []byte) *multiShard {
	return s.shards[shardFor(key, s.shardCount)]
}

// Contains reports whether (key, value) is present.
func (s *MultiStore) Contains(key, value []byte) (bool, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	for _, v := range sh.values[string(key)] {
		if bytes.Equal(v, value) {
			return true, nil
		}
	}
	return false, nil
}

// Insert adds (key, value). It is an error if the pair already exists.
func (s *MultiStore) Insert(key, value []byte) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for _, v := range sh.values[string(key)] {
		if bytes.Equal(v, value) {
			return fmt.Errorf("kv: multi insert: pair already present")
		}
	}
	if err := writeRecord(sh.writer, opPut, key, value); err != nil {
		return err
	}
	if err := sh.writer.Flush(); err != nil {
		return err
	}
	if _, existed := sh.values[string(key)]; !existed {
		sh.insertKeySorted(key)
	}
	sh.values[string(key)] = append(sh.values[string(key)], append([]byte(nil), value...))
	return nil
}

// Erase removes (key, value). It is an error if the pair is absent.
func (s *MultiStore) Erase(key, value []byte) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	vs, existed := sh.values[string(key)]
	found := false
	for _, v := range vs {
		if bytes.Equal(v, value) {
			found = true
			break
		}
	}
	if !existed || !found {
		return fmt.Errorf("kv: multi erase: pair not present")
	}
	if err := writeRecord(sh.writer, opDelete, key, value); err != nil {
		return err
	}
	if err := sh.writer.Flush(); err != nil {
		return err
	}
	vs = removeValue(vs, value)
	if len(vs) == 0 {
		delete(sh.values, string(key))
		sh.removeKeySorted(key)
	} else {
		sh.values[string(key)] = vs
	}
	return nil
}

// MatchCount returns the number of values stored under key.
func (s *MultiStore) MatchCount(key []byte) (int, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.values[string(key)]), nil
}

// ValuesFor returns every value stored under key. internal/hashdb calls it
// for hashes whose primary record is in count shape, including the erase
// path where one value has just been removed and a single survivor is
// expected; ValuesFor itself just returns what is there and lets the
// caller decide how to treat the number of values.
func (s *MultiStore) ValuesFor(key []byte) ([][]byte, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	vs := sh.values[string(key)]
	out := make([][]byte, len(vs))
	for i, v := range vs {
		out[i] = append([]byte(nil), v...)
	}
	return out, nil
}

// Close flushes and closes every shard file.
func (s *MultiStore) Close() error {
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
