package kv

import "io"

// Iterator is a forward-only, single-pass walk over a snapshot of a
// Store's keys taken at NewIterator time, matching the teacher's
// store/iterator.go design (snapshot then walk, no consistency guarantee
// against concurrent writers) and spec.md §4.7's iterator contract.
type Iterator struct {
	s       *Store
	shardIx int
	keys    [][]byte
	pos     int
}

// NewIterator snapshots the current key order and returns a pull-style
// iterator over it.
func (s *Store) NewIterator() *Iterator {
	it := &Iterator{s: s}
	it.loadShard(0)
	return it
}

func (it *Iterator) loadShard(i int) {
	if i >= len(it.s.shards) {
		it.keys = nil
		return
	}
	sh := it.s.shards[i]
	sh.mu.RLock()
	keys := make([][]byte, len(sh.keys))
	copy(keys, sh.keys)
	sh.mu.RUnlock()
	it.shardIx = i
	it.keys = keys
	it.pos = 0
}

// Next returns the next (key, value) pair in order, or io.EOF when
// exhausted. A key erased since the snapshot was taken is skipped
// silently, matching Store.Iterate's behavior.
func (it *Iterator) Next() (key, value []byte, err error) {
	for {
		for it.pos >= len(it.keys) {
			if it.shardIx+1 >= len(it.s.shards) {
				return nil, nil, io.EOF
			}
			it.loadShard(it.shardIx + 1)
		}
		k := it.keys[it.pos]
		it.pos++
		sh := it.s.shards[it.shardIx]
		sh.mu.RLock()
		v, ok := sh.values[string(k)]
		sh.mu.RUnlock()
		if !ok {
			continue
		}
		return k, append([]byte(nil), v...), nil
	}
}
