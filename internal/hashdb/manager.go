// Package hashdb implements the database manager: the component that owns
// the five stores and the (up to two) Bloom filters and enforces the joint
// invariants that span them. Nothing else is allowed to call both the
// primary hash store and the duplicates store for one logical operation;
// Manager is where that rule lives.
package hashdb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rpcpool/hashdb/internal/bloom"
	"github.com/rpcpool/hashdb/internal/changelog"
	"github.com/rpcpool/hashdb/internal/digest"
	"github.com/rpcpool/hashdb/internal/hashstore"
	"github.com/rpcpool/hashdb/internal/interner"
	"github.com/rpcpool/hashdb/internal/metadata"
	"github.com/rpcpool/hashdb/internal/packedenc"
	"github.com/rpcpool/hashdb/internal/settings"
)

const (
	bloom1FileName = "bloom_filter_1"
	bloom2FileName = "bloom_filter_2"
)

// Manager is single-writer: Insert and Erase hold mu for their entire
// critical section, matching spec.md §5's coarse-lock model. Find and Scan
// also take mu, since the in-memory kv stores are not intrinsically safe
// for concurrent read/write.
type Manager struct {
	mu sync.Mutex

	dir      string
	settings settings.Settings

	counters   changelog.Counters
	interner   *interner.Interner
	metadata   *metadata.Store
	primary    *hashstore.Primary
	duplicates *hashstore.Duplicates
	bloom1     *bloom.Writer
	bloom2     *bloom.Writer

	// bloom1ro/bloom2ro are set only by OpenReadOnly, in place of the
	// mutable bloom1/bloom2 above. They back the scan-only server's
	// lock-free bloom read path (spec.md §5: "memory-mapped Bloom region
	// accessed without a lock on the read path").
	bloom1ro *bloom.Reader
	bloom2ro *bloom.Reader
}

// Create materializes a new, empty database directory with the given
// settings and zero-length store files.
func Create(dir string, s settings.Settings) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("hashdb: create dir: %w", err)
	}
	if err := settings.Save(dir, s); err != nil {
		return nil, fmt.Errorf("hashdb: save settings: %w", err)
	}
	m, err := openWithSettings(dir, s)
	if err != nil {
		return nil, err
	}
	if s.Bloom1.Used {
		if err := m.bloom1.WriteFile(filepath.Join(dir, bloom1FileName)); err != nil {
			return nil, fmt.Errorf("hashdb: write bloom_filter_1: %w", err)
		}
	}
	if s.Bloom2.Used {
		if err := m.bloom2.WriteFile(filepath.Join(dir, bloom2FileName)); err != nil {
			return nil, fmt.Errorf("hashdb: write bloom_filter_2: %w", err)
		}
	}
	return m, nil
}

// Open opens an existing database directory, reading settings.xml and
// every store file. Configuration errors (missing/unreadable settings,
// out-of-range fields) are fatal, per spec.md §7.
func Open(dir string) (*Manager, error) {
	s, err := settings.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open: %w", err)
	}
	return openWithSettings(dir, s)
}

func openWithSettings(dir string, s settings.Settings) (*Manager, error) {
	m := &Manager{dir: dir, settings: s}

	in, err := interner.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open interner: %w", err)
	}
	m.interner = in

	md, err := metadata.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open metadata store: %w", err)
	}
	m.metadata = md

	primary, dup, err := hashstore.Open(dir, 1)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open hash stores: %w", err)
	}
	m.primary = primary
	m.duplicates = dup

	if s.Bloom1.Used {
		m.bloom1, err = openOrInitBloom(dir, bloom1FileName, s.Bloom1.MHashSize, s.Bloom1.KHashFunctions)
		if err != nil {
			return nil, fmt.Errorf("hashdb: open bloom_filter_1: %w", err)
		}
	}
	if s.Bloom2.Used {
		m.bloom2, err = openOrInitBloom(dir, bloom2FileName, s.Bloom2.MHashSize, s.Bloom2.KHashFunctions)
		if err != nil {
			return nil, fmt.Errorf("hashdb: open bloom_filter_2: %w", err)
		}
	}
	return m, nil
}

func openOrInitBloom(dir, name string, m, k uint32) (*bloom.Writer, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return bloom.LoadWriter(path)
	}
	return bloom.NewWriter(m, k)
}

// OpenReadOnly opens an existing database directory for the scan-only
// server (cmd-server.go/internal/scanserver). Unlike Open, the Bloom
// filters are memory-mapped through bloom.Reader rather than loaded into
// a mutable bloom.Writer: Scan tests these mmap readers before ever
// taking mu, so only the primary-store lookup that follows a bloom hit is
// serialized by the coarse lock, matching spec.md §5's "memory-mapped
// Bloom region accessed without a lock on the read path". A Manager
// opened this way must never have Insert, Erase, or RebuildBloom called
// on it: there is no in-memory bloom.Writer to mutate or flush.
func OpenReadOnly(dir string) (*Manager, error) {
	s, err := settings.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open read-only: %w", err)
	}

	m := &Manager{dir: dir, settings: s}

	in, err := interner.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open interner: %w", err)
	}
	m.interner = in

	md, err := metadata.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open metadata store: %w", err)
	}
	m.metadata = md

	primary, dup, err := hashstore.Open(dir, 1)
	if err != nil {
		return nil, fmt.Errorf("hashdb: open hash stores: %w", err)
	}
	m.primary = primary
	m.duplicates = dup

	if s.Bloom1.Used {
		m.bloom1ro, err = bloom.Open(filepath.Join(dir, bloom1FileName))
		if err != nil {
			return nil, fmt.Errorf("hashdb: open bloom_filter_1: %w", err)
		}
	}
	if s.Bloom2.Used {
		m.bloom2ro, err = bloom.Open(filepath.Join(dir, bloom2FileName))
		if err != nil {
			return nil, fmt.Errorf("hashdb: open bloom_filter_2: %w", err)
		}
	}
	return m, nil
}

// Close flushes the Bloom filters to disk (§4.2: crash recovery relies on
// whatever was last flushed) and closes every store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.bloom1 != nil {
		record(m.bloom1.WriteFile(filepath.Join(m.dir, bloom1FileName)))
	}
	if m.bloom2 != nil {
		record(m.bloom2.WriteFile(filepath.Join(m.dir, bloom2FileName)))
	}
	if m.bloom1ro != nil {
		record(m.bloom1ro.Close())
	}
	if m.bloom2ro != nil {
		record(m.bloom2ro.Close())
	}
	record(m.primary.Close())
	record(m.duplicates.Close())
	record(m.metadata.Close())
	record(m.interner.Close())
	return firstErr
}

// Settings returns the database's immutable parameters.
func (m *Manager) Settings() settings.Settings { return m.settings }

// Counters returns a point-in-time snapshot of the change-log counters.
func (m *Manager) Counters() changelog.Snapshot { return m.counters.Snapshot() }

// InternSource resolves (repositoryName, filename) to a dense source id,
// interning it on first sight.
func (m *Manager) InternSource(repositoryName, filename []byte) (sourceID uint64, wasNew bool, err error) {
	return m.interner.GetOrInsert(repositoryName, filename)
}

// LookupSource resolves a source id back to its (repositoryName, filename)
// pair.
func (m *Manager) LookupSource(sourceID uint64) (repositoryName, filename []byte, err error) {
	return m.interner.LookupSource(sourceID)
}

// SetMetadata records (filesize, fileHash) for sourceID. An existing entry,
// equal or conflicting, is left unchanged and counted as
// source_metadata_not_inserted_already_present.
func (m *Manager) SetMetadata(sourceID uint64, e metadata.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok, err := m.metadata.Lookup(sourceID); err != nil {
		return fmt.Errorf("hashdb: set metadata: %w", err)
	} else if ok {
		m.counters.SourceMetadataNotInsertedAlreadyPresent.Add(1)
		return nil
	}
	err := m.metadata.Insert(sourceID, e)
	if err == nil {
		m.counters.SourceMetadataInserted.Add(1)
		return nil
	}
	if errors.Is(err, metadata.ErrAlreadyPresent) {
		m.counters.SourceMetadataNotInsertedAlreadyPresent.Add(1)
		return nil
	}
	return fmt.Errorf("hashdb: set metadata: %w", err)
}

// Metadata returns the recorded metadata for sourceID, if any.
func (m *Manager) Metadata(sourceID uint64) (metadata.Entry, bool, error) {
	return m.metadata.Lookup(sourceID)
}

func (m *Manager) addToBlooms(h []byte) {
	if m.bloom1 != nil {
		m.bloom1.Add(h)
	}
	if m.bloom2 != nil {
		m.bloom2.Add(h)
	}
}

// maxCountCeiling is the largest legal count-shape value (spec.md §9's
// resolution of the undefined 2^32-1 ceiling behavior): a count may reach
// 2^32-2 but never pass it; once n is at that value, a further insert is
// rejected as exceeding the limit rather than attempted.
const maxCountCeiling = 0xFFFFFFFE

// Insert implements spec.md §4.7's insert protocol. blockSize is the
// caller's notion of hash_block_size, checked against the database's
// configured value; byteOffset is the offset within the source, which
// Insert converts to a block-aligned offset before packing.
func (m *Manager) Insert(h []byte, sourceID uint64, blockSize, byteOffset uint64) error {
	if err := digest.ValidateWidth(m.settings.HashDigestType, h); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if blockSize != m.settings.HashBlockSize {
		m.counters.HashesNotInsertedMismatchedHashBlockSize.Add(1)
		return nil
	}
	if byteOffset%m.settings.HashBlockSize != 0 {
		m.counters.HashesNotInsertedInvalidByteAlignment.Add(1)
		return nil
	}
	blockOffset := byteOffset / m.settings.HashBlockSize

	eNew, err := packedenc.EncodeSingleton(m.settings.NumberOfIndexBits, sourceID, blockOffset)
	if err != nil {
		return fmt.Errorf("hashdb: insert: %w", err)
	}

	eOld, present, err := m.primary.FindEncoding(h)
	if err != nil {
		return fmt.Errorf("hashdb: insert: find encoding: %w", err)
	}

	if !present {
		if err := m.primary.Insert(h, eNew); err != nil {
			return fmt.Errorf("hashdb: insert: %w", err)
		}
		m.addToBlooms(h)
		m.counters.HashesInserted.Add(1)
		return nil
	}

	if eOld == eNew {
		m.counters.HashesNotInsertedDuplicateElement.Add(1)
		return nil
	}

	decoded, err := packedenc.Decode(eOld, m.settings.NumberOfIndexBits)
	if err != nil {
		return fmt.Errorf("hashdb: insert: decode existing: %w", err)
	}

	switch decoded.Shape {
	case packedenc.ShapeSingleton:
		if m.settings.MaximumHashDuplicates == 2 {
			m.counters.HashesNotInsertedExceedsMaxDuplicates.Add(1)
			return nil
		}
		if err := m.duplicates.Insert(h, eOld); err != nil {
			return fmt.Errorf("hashdb: insert: demote existing into duplicates: %w", err)
		}
		if err := m.duplicates.Insert(h, eNew); err != nil {
			return fmt.Errorf("hashdb: insert: insert new into duplicates: %w", err)
		}
		countWord, err := packedenc.EncodeCount(2)
		if err != nil {
			return fmt.Errorf("hashdb: insert: %w", err)
		}
		if err := m.primary.Replace(h, countWord); err != nil {
			return fmt.Errorf("hashdb: insert: %w", err)
		}
		m.counters.HashesInserted.Add(1)
		return nil

	case packedenc.ShapeCount:
		n := decoded.Count
		if m.settings.MaximumHashDuplicates != 0 && uint64(n) >= uint64(m.settings.MaximumHashDuplicates) {
			m.counters.HashesNotInsertedExceedsMaxDuplicates.Add(1)
			return nil
		}
		if n >= maxCountCeiling {
			m.counters.HashesNotInsertedExceedsMaxDuplicates.Add(1)
			return nil
		}
		already, err := m.duplicates.Contains(h, eNew)
		if err != nil {
			return fmt.Errorf("hashdb: insert: %w", err)
		}
		if already {
			m.counters.HashesNotInsertedDuplicateElement.Add(1)
			return nil
		}
		if err := m.duplicates.Insert(h, eNew); err != nil {
			return fmt.Errorf("hashdb: insert: %w", err)
		}
		countWord, err := packedenc.EncodeCount(n + 1)
		if err != nil {
			return fmt.Errorf("hashdb: insert: %w", err)
		}
		if err := m.primary.Replace(h, countWord); err != nil {
			return fmt.Errorf("hashdb: insert: %w", err)
		}
		m.counters.HashesInserted.Add(1)
		return nil

	default:
		return fmt.Errorf("hashdb: insert: unknown shape %v", decoded.Shape)
	}
}

// Erase implements spec.md §4.7's erase protocol.
func (m *Manager) Erase(h []byte, sourceID uint64, blockSize, byteOffset uint64) error {
	if err := digest.ValidateWidth(m.settings.HashDigestType, h); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if blockSize != m.settings.HashBlockSize {
		m.counters.HashesNotRemovedMismatchedHashBlockSize.Add(1)
		return nil
	}
	if byteOffset%m.settings.HashBlockSize != 0 {
		m.counters.HashesNotRemovedInvalidByteAlignment.Add(1)
		return nil
	}
	blockOffset := byteOffset / m.settings.HashBlockSize

	eTarget, err := packedenc.EncodeSingleton(m.settings.NumberOfIndexBits, sourceID, blockOffset)
	if err != nil {
		return fmt.Errorf("hashdb: erase: %w", err)
	}

	eOld, present, err := m.primary.FindEncoding(h)
	if err != nil {
		return fmt.Errorf("hashdb: erase: %w", err)
	}
	if !present {
		m.counters.HashesNotRemovedNoHash.Add(1)
		return nil
	}

	decoded, err := packedenc.Decode(eOld, m.settings.NumberOfIndexBits)
	if err != nil {
		return fmt.Errorf("hashdb: erase: decode existing: %w", err)
	}

	switch decoded.Shape {
	case packedenc.ShapeSingleton:
		if eOld != eTarget {
			m.counters.HashesNotRemovedNoElement.Add(1)
			return nil
		}
		if err := m.primary.Erase(h); err != nil {
			return fmt.Errorf("hashdb: erase: %w", err)
		}
		m.counters.HashesRemoved.Add(1)
		return nil

	case packedenc.ShapeCount:
		n := decoded.Count
		contains, err := m.duplicates.Contains(h, eTarget)
		if err != nil {
			return fmt.Errorf("hashdb: erase: %w", err)
		}
		if !contains {
			m.counters.HashesNotRemovedNoElement.Add(1)
			return nil
		}
		if err := m.duplicates.Erase(h, eTarget); err != nil {
			return fmt.Errorf("hashdb: erase: %w", err)
		}
		if n == 2 {
			survivors, err := m.duplicates.ValuesFor(h)
			if err != nil {
				return fmt.Errorf("hashdb: erase: %w", err)
			}
			if len(survivors) != 1 {
				return fmt.Errorf("hashdb: erase: structural invariant violation: count=2 but %d survivors remain for promoted hash", len(survivors))
			}
			survivor := survivors[0]
			if err := m.duplicates.Erase(h, survivor); err != nil {
				return fmt.Errorf("hashdb: erase: promote survivor: %w", err)
			}
			if err := m.primary.Replace(h, survivor); err != nil {
				return fmt.Errorf("hashdb: erase: promote survivor: %w", err)
			}
		} else {
			countWord, err := packedenc.EncodeCount(n - 1)
			if err != nil {
				return fmt.Errorf("hashdb: erase: %w", err)
			}
			if err := m.primary.Replace(h, countWord); err != nil {
				return fmt.Errorf("hashdb: erase: %w", err)
			}
		}
		m.counters.HashesRemoved.Add(1)
		return nil

	default:
		return fmt.Errorf("hashdb: erase: unknown shape %v", decoded.Shape)
	}
}

// Reference is one (source_id, block_offset_in_blocks) pair resolved for a
// hash.
type Reference struct {
	SourceID uint64
	Offset   uint64
}

// Find returns every (source_id, block_offset) reference recorded for H.
func (m *Manager) Find(h []byte) ([]Reference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(h)
}

func (m *Manager) findLocked(h []byte) ([]Reference, error) {
	word, present, err := m.primary.FindEncoding(h)
	if err != nil {
		return nil, fmt.Errorf("hashdb: find: %w", err)
	}
	if !present {
		return nil, nil
	}
	decoded, err := packedenc.Decode(word, m.settings.NumberOfIndexBits)
	if err != nil {
		return nil, fmt.Errorf("hashdb: find: %w", err)
	}
	if decoded.Shape == packedenc.ShapeSingleton {
		return []Reference{{SourceID: decoded.SourceID, Offset: decoded.Offset}}, nil
	}
	words, err := m.duplicates.ValuesFor(h)
	if err != nil {
		return nil, fmt.Errorf("hashdb: find: %w", err)
	}
	out := make([]Reference, 0, len(words))
	for _, w := range words {
		d, err := packedenc.Decode(w, m.settings.NumberOfIndexBits)
		if err != nil {
			return nil, fmt.Errorf("hashdb: find: decode duplicate: %w", err)
		}
		out = append(out, Reference{SourceID: d.SourceID, Offset: d.Offset})
	}
	return out, nil
}

// ScanResult is one matched entry from a Scan request: index is the
// zero-based position of the matched hash in the request slice, per
// spec.md §6's wire protocol.
type ScanResult struct {
	Index int
	Count uint32
}

// Scan answers, for a vector of requested hashes, which are present and
// how many references each has, short-circuited by the Bloom filters
// where enabled (spec.md §4.7's composed scan operation). Unmatched
// hashes are omitted from the result, matching the wire protocol. Against
// a Manager opened with OpenReadOnly, the Bloom test runs straight off the
// memory-mapped bit array without mu, per spec.md §5; only the
// primary-store lookup that follows a bloom hit takes the coarse lock.
func (m *Manager) Scan(hashes [][]byte) ([]ScanResult, error) {
	var out []ScanResult
	for i, h := range hashes {
		present, err := m.testBlooms(h)
		if err != nil {
			return nil, fmt.Errorf("hashdb: scan: %w", err)
		}
		if !present {
			continue
		}
		count, found, err := m.lookupCount(h)
		if err != nil {
			return nil, fmt.Errorf("hashdb: scan: %w", err)
		}
		if !found {
			continue
		}
		out = append(out, ScanResult{Index: i, Count: count})
	}
	return out, nil
}

// testBlooms reports whether h passes every bloom filter this Manager has
// enabled. A Manager opened with OpenReadOnly holds only bloom1ro/bloom2ro,
// mmap readers that are never mutated by this process, so those are tested
// without mu: this is the lock-free read path spec.md §5 describes. A
// Manager opened with Open or Create holds the mutable bloom1/bloom2
// instead, and those bit arrays are written by Insert under mu, so testing
// them must stay serialized the same way. The two cases never overlap on
// one Manager.
func (m *Manager) testBlooms(h []byte) (bool, error) {
	if m.bloom1ro != nil || m.bloom2ro != nil {
		return bloom.TestAll([]*bloom.Reader{m.bloom1ro, m.bloom2ro}, h)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return testWriters(m.bloom1, m.bloom2, h)
}

func testWriters(w1, w2 *bloom.Writer, h []byte) (bool, error) {
	if w1 != nil && !w1.Test(h) {
		return false, nil
	}
	if w2 != nil && !w2.Test(h) {
		return false, nil
	}
	return true, nil
}

// lookupCount takes the coarse lock for the primary-store point lookup
// only, per spec.md §5's "coarse mutex around the critical section that
// consults the hash store and duplicates store".
func (m *Manager) lookupCount(h []byte) (count uint32, present bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	word, present, err := m.primary.FindEncoding(h)
	if err != nil || !present {
		return 0, present, err
	}
	return packedenc.CountOf(word), true, nil
}

// SampleBloomFalsePositiveRate estimates the enabled Bloom filters'
// observed false-positive rate by testing random, (with overwhelming
// probability) absent hashes against them, per spec.md §8
// scenario 5 ("a sample of 10,000 random hashes returns true for no more
// than ≈6%"). It exercises only the bloom test path, never the primary
// store, so it is safe to call against a Manager opened with
// OpenReadOnly.
func (m *Manager) SampleBloomFalsePositiveRate(samples int) (float64, error) {
	if samples <= 0 {
		return 0, nil
	}
	hits := 0
	for i := 0; i < samples; i++ {
		h, err := digest.Random(m.settings.HashDigestType)
		if err != nil {
			return 0, fmt.Errorf("hashdb: sample false positive rate: %w", err)
		}
		present, err := m.testBlooms(h)
		if err != nil {
			return 0, fmt.Errorf("hashdb: sample false positive rate: %w", err)
		}
		if present {
			hits++
		}
	}
	return float64(hits) / float64(samples), nil
}

// RebuildBloom regenerates the Bloom filter(s) from scratch by walking the
// primary store and re-inserting every key, per spec.md §4.2's "rewrites
// bloom files from hash store" contract. An mSize of zero leaves that slot
// disabled; a nonzero mSize with k of zero is an error.
func (m *Manager) RebuildBloom(m1Size, k1, m2Size, k2 uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var w1, w2 *bloom.Writer
	var err error
	if m1Size > 0 {
		w1, err = bloom.NewWriter(m1Size, k1)
		if err != nil {
			return fmt.Errorf("hashdb: rebuild_bloom: %w", err)
		}
	}
	if m2Size > 0 {
		w2, err = bloom.NewWriter(m2Size, k2)
		if err != nil {
			return fmt.Errorf("hashdb: rebuild_bloom: %w", err)
		}
	}

	it := m.primary.NewIterator()
	for {
		h, _, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("hashdb: rebuild_bloom: %w", err)
		}
		if w1 != nil {
			w1.Add(h)
		}
		if w2 != nil {
			w2.Add(h)
		}
	}

	if w1 != nil {
		if err := w1.WriteFile(filepath.Join(m.dir, bloom1FileName)); err != nil {
			return fmt.Errorf("hashdb: rebuild_bloom: %w", err)
		}
		m.bloom1 = w1
		m.settings.Bloom1 = settings.BloomConfig{Used: true, KHashFunctions: k1, MHashSize: m1Size}
	} else {
		m.bloom1 = nil
		m.settings.Bloom1 = settings.BloomConfig{Used: false}
	}
	if w2 != nil {
		if err := w2.WriteFile(filepath.Join(m.dir, bloom2FileName)); err != nil {
			return fmt.Errorf("hashdb: rebuild_bloom: %w", err)
		}
		m.bloom2 = w2
		m.settings.Bloom2 = settings.BloomConfig{Used: true, KHashFunctions: k2, MHashSize: m2Size}
	} else {
		m.bloom2 = nil
		m.settings.Bloom2 = settings.BloomConfig{Used: false}
	}
	return settings.Save(m.dir, m.settings)
}

// Iterator walks the primary store in key order, expanding count-shape
// entries into one Triple per duplicate, matching spec.md §4.7's
// iteration contract: forward-only, single-pass, no snapshot guarantee
// under concurrent mutation.
type Iterator struct {
	m        *Manager
	inner    *hashstore.PrimaryIterator
	pending  []uint64
	pendingH []byte
	k        uint8
}

// Triple is one expanded (hash, source_id, block_offset) record yielded
// by Iterator.
type Triple struct {
	Hash     []byte
	SourceID uint64
	Offset   uint64
}

// NewIterator returns a fresh Iterator snapshotting the primary store's
// current key order.
func (m *Manager) NewIterator() *Iterator {
	return &Iterator{m: m, inner: m.primary.NewIterator(), k: m.settings.NumberOfIndexBits}
}

// Next returns the next expanded triple, or io.EOF when exhausted.
func (it *Iterator) Next() (Triple, error) {
	for len(it.pending) == 0 {
		h, word, err := it.inner.Next()
		if err != nil {
			return Triple{}, err
		}
		decoded, err := packedenc.Decode(word, it.k)
		if err != nil {
			return Triple{}, fmt.Errorf("hashdb: iterate: %w", err)
		}
		if decoded.Shape == packedenc.ShapeSingleton {
			return Triple{Hash: h, SourceID: decoded.SourceID, Offset: decoded.Offset}, nil
		}
		words, err := it.m.duplicates.ValuesFor(h)
		if err != nil {
			return Triple{}, fmt.Errorf("hashdb: iterate: %w", err)
		}
		it.pending = words
		it.pendingH = h
	}
	next := it.pending[0]
	it.pending = it.pending[1:]
	d, err := packedenc.Decode(next, it.k)
	if err != nil {
		return Triple{}, fmt.Errorf("hashdb: iterate: decode duplicate: %w", err)
	}
	return Triple{Hash: it.pendingH, SourceID: d.SourceID, Offset: d.Offset}, nil
}
