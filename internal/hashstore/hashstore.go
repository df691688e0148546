// Package hashstore pairs the primary hash store (spec.md §4.5, unique
// keys) with the hash duplicates store (§4.6, multimap), translating
// between raw hash bytes / uint64 packed words and the byte-slice keys
// and values internal/kv operates on. The joint invariants between the
// two stores (singleton has zero duplicates, count-N has exactly N
// duplicates) are enforced one level up, in internal/hashdb, which is
// the only thing allowed to call both halves of a single logical
// operation.
package hashstore

import (
	"encoding/binary"
	"fmt"

	"github.com/rpcpool/hashdb/internal/kv"
)

// Primary is the unique-key hash -> packed-word map.
type Primary struct {
	store *kv.Store
}

// Duplicates is the hash -> packed-word multimap, used only once a
// hash's count reaches 2 or more.
type Duplicates struct {
	store *kv.MultiStore
}

// Open opens or creates both stores under dir, sharded by shardCount
// files each (spec.md §4.5: "sharding ... by the top byte of H ... is
// permitted and transparent").
func Open(dir string, shardCount int) (*Primary, *Duplicates, error) {
	p, err := kv.Open(dir, "hash_store", shardCount)
	if err != nil {
		return nil, nil, fmt.Errorf("hashstore: open primary: %w", err)
	}
	d, err := kv.OpenMulti(dir, "hash_duplicates_store", shardCount)
	if err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("hashstore: open duplicates: %w", err)
	}
	return &Primary{store: p}, &Duplicates{store: d}, nil
}

func encodeWord(w uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, w)
	return buf
}

func decodeWord(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// FindEncoding returns the packed word stored for H, if present.
func (p *Primary) FindEncoding(h []byte) (word uint64, ok bool, err error) {
	v, ok, err := p.store.Find(h)
	if err != nil || !ok {
		return 0, ok, err
	}
	return decodeWord(v), true, nil
}

// Insert adds H with packed word e. H must not already be present.
func (p *Primary) Insert(h []byte, e uint64) error {
	return p.store.Insert(h, encodeWord(e))
}

// Replace overwrites H's packed word. H must already be present.
func (p *Primary) Replace(h []byte, e uint64) error {
	return p.store.Replace(h, encodeWord(e))
}

// Erase removes H. H must already be present.
func (p *Primary) Erase(h []byte) error {
	return p.store.Erase(h)
}

// Len returns the number of distinct hashes in the primary store.
func (p *Primary) Len() int { return p.store.Len() }

// Iterate walks the primary store in key order, yielding (H, word).
func (p *Primary) Iterate(fn func(h []byte, word uint64) error) error {
	return p.store.Iterate(func(key, value []byte) error {
		return fn(key, decodeWord(value))
	})
}

func (p *Primary) Close() error { return p.store.Close() }

// PrimaryIterator is a forward-only, single-pass cursor over the primary
// store in key order, used both by Manager's public Iterator (which
// additionally expands count-shape entries via Duplicates) and by
// rebuild_bloom (which only needs the keys).
type PrimaryIterator struct {
	inner *kv.Iterator
}

// NewIterator returns a PrimaryIterator snapshotting the current primary
// store contents.
func (p *Primary) NewIterator() *PrimaryIterator {
	return &PrimaryIterator{inner: p.store.NewIterator()}
}

// Next returns the next (H, word) pair, or io.EOF when exhausted.
func (it *PrimaryIterator) Next() (h []byte, word uint64, err error) {
	k, v, err := it.inner.Next()
	if err != nil {
		return nil, 0, err
	}
	return k, decodeWord(v), nil
}

// Contains reports whether (H, e) is present in the duplicates store.
func (d *Duplicates) Contains(h []byte, e uint64) (bool, error) {
	return d.store.Contains(h, encodeWord(e))
}

// Insert adds (H, e). The pair must not already exist.
func (d *Duplicates) Insert(h []byte, e uint64) error {
	return d.store.Insert(h, encodeWord(e))
}

// Erase removes (H, e). The pair must exist.
func (d *Duplicates) Erase(h []byte, e uint64) error {
	return d.store.Erase(h, encodeWord(e))
}

// MatchCount returns the number of values stored under H.
func (d *Duplicates) MatchCount(h []byte) (int, error) {
	return d.store.MatchCount(h)
}

// ValuesFor returns every packed word stored under H.
func (d *Duplicates) ValuesFor(h []byte) ([]uint64, error) {
	vs, err := d.store.ValuesFor(h)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(vs))
	for i, v := range vs {
		out[i] = decodeWord(v)
	}
	return out, nil
}

func (d *Duplicates) Close() error { return d.store.Close() }
