package hashdb

import (
	"io"
	"testing"

	"github.com/rpcpool/hashdb/internal/digest"
	"github.com/rpcpool/hashdb/internal/metadata"
	"github.com/rpcpool/hashdb/internal/settings"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	s := settings.Default()
	s.HashDigestType = digest.Straight16
	s.HashBlockSize = 4096
	s.ByteAlignment = 4096
	s.NumberOfIndexBits = 34
	s.Bloom1 = settings.BloomConfig{Used: false}
	s.Bloom2 = settings.BloomConfig{Used: false}
	m, err := Create(dir, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testHash(b byte) []byte {
	h := make([]byte, 16)
	h[0] = b
	return h
}

func TestSingletonThenDemote(t *testing.T) {
	m := newTestManager(t)
	h := testHash(0xAA)

	srcA, wasNew, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)
	require.True(t, wasNew)
	require.Equal(t, uint64(1), srcA)

	require.NoError(t, m.Insert(h, srcA, 4096, 5*4096))
	refs, err := m.Find(h)
	require.NoError(t, err)
	require.Equal(t, []Reference{{SourceID: 1, Offset: 5}}, refs)
	require.Equal(t, uint64(1), m.Counters().HashesInserted)

	srcB, wasNew, err := m.InternSource([]byte("r"), []byte("b"))
	require.NoError(t, err)
	require.True(t, wasNew)
	require.Equal(t, uint64(2), srcB)

	require.NoError(t, m.Insert(h, srcB, 4096, 0))
	refs, err = m.Find(h)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, uint64(2), m.Counters().HashesInserted)

	count, err := m.duplicates.MatchCount(h)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestPromotionBackToSingleton(t *testing.T) {
	m := newTestManager(t)
	h := testHash(0xAA)

	srcA, _, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)
	srcB, _, err := m.InternSource([]byte("r"), []byte("b"))
	require.NoError(t, err)

	require.NoError(t, m.Insert(h, srcA, 4096, 5*4096))
	require.NoError(t, m.Insert(h, srcB, 4096, 0))

	require.NoError(t, m.Erase(h, srcA, 4096, 5*4096))

	count, err := m.duplicates.MatchCount(h)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	refs, err := m.Find(h)
	require.NoError(t, err)
	require.Equal(t, []Reference{{SourceID: srcB, Offset: 0}}, refs)
	require.Equal(t, uint64(1), m.Counters().HashesRemoved)
}

func TestLimitEnforcement(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.HashDigestType = digest.Straight16
	s.HashBlockSize = 4096
	s.ByteAlignment = 4096
	s.NumberOfIndexBits = 34
	s.MaximumHashDuplicates = 3
	s.Bloom1 = settings.BloomConfig{Used: false}
	s.Bloom2 = settings.BloomConfig{Used: false}
	m, err := Create(dir, s)
	require.NoError(t, err)
	defer m.Close()

	h := testHash(0xBB)
	for i := uint64(0); i < 3; i++ {
		src, _, err := m.InternSource([]byte("r"), []byte{byte('a' + i)})
		require.NoError(t, err)
		require.NoError(t, m.Insert(h, src, 4096, i*4096))
	}
	refs, err := m.Find(h)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	srcFourth, _, err := m.InternSource([]byte("r"), []byte("d"))
	require.NoError(t, err)
	require.NoError(t, m.Insert(h, srcFourth, 4096, 99*4096))

	refs, err = m.Find(h)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	require.Equal(t, uint64(1), m.Counters().HashesNotInsertedExceedsMaxDuplicates)
}

func TestDuplicateRejection(t *testing.T) {
	m := newTestManager(t)
	h := testHash(0xCC)
	src, _, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)

	require.NoError(t, m.Insert(h, src, 4096, 4096))
	require.NoError(t, m.Insert(h, src, 4096, 4096))

	require.Equal(t, uint64(1), m.Counters().HashesInserted)
	require.Equal(t, uint64(1), m.Counters().HashesNotInsertedDuplicateElement)

	word, present, err := m.primary.FindEncoding(h)
	require.NoError(t, err)
	require.True(t, present)
	_ = word
}

func TestBloomIntegrityUnderRebuild(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.HashDigestType = digest.Straight16
	s.HashBlockSize = 4096
	s.ByteAlignment = 4096
	s.NumberOfIndexBits = 34
	s.Bloom1 = settings.BloomConfig{Used: false}
	s.Bloom2 = settings.BloomConfig{Used: false}
	m, err := Create(dir, s)
	require.NoError(t, err)
	defer m.Close()

	const n = 500
	for i := 0; i < n; i++ {
		h := make([]byte, 16)
		h[0] = byte(i)
		h[1] = byte(i >> 8)
		src, _, err := m.InternSource([]byte("r"), []byte{byte(i), byte(i >> 8)})
		require.NoError(t, err)
		require.NoError(t, m.Insert(h, src, 4096, 0))
	}

	require.NoError(t, m.RebuildBloom(16, 3, 0, 0))
	require.NotNil(t, m.bloom1)
	require.Nil(t, m.bloom2)

	for i := 0; i < n; i++ {
		h := make([]byte, 16)
		h[0] = byte(i)
		h[1] = byte(i >> 8)
		require.True(t, m.bloom1.Test(h))
	}
}

func TestScanServerRoundTrip(t *testing.T) {
	m := newTestManager(t)
	hA := testHash(0x01)
	hB := testHash(0x02)
	hMissing := testHash(0x03)
	hCount := testHash(0x04)
	hCount2 := testHash(0x05)

	srcA, _, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)
	srcB, _, err := m.InternSource([]byte("r"), []byte("b"))
	require.NoError(t, err)

	require.NoError(t, m.Insert(hA, srcA, 4096, 0))

	require.NoError(t, m.Insert(hCount, srcA, 4096, 0))
	for i := 1; i < 5; i++ {
		src, _, err := m.InternSource([]byte("r"), []byte{byte('c' + i)})
		require.NoError(t, err)
		require.NoError(t, m.Insert(hCount, src, 4096, uint64(i)*4096))
	}
	refs, err := m.Find(hCount)
	require.NoError(t, err)
	require.Len(t, refs, 5)

	results, err := m.Scan([][]byte{hA, hB, hMissing, hCount, hCount2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, ScanResult{Index: 0, Count: 1}, results[0])
	require.Equal(t, ScanResult{Index: 3, Count: 5}, results[1])
	require.NotZero(t, srcB)
}

func TestIteratorExpandsCountShape(t *testing.T) {
	m := newTestManager(t)
	h1 := testHash(0x10)
	h2 := testHash(0x20)

	src1, _, err := m.InternSource([]byte("r"), []byte("one"))
	require.NoError(t, err)
	src2, _, err := m.InternSource([]byte("r"), []byte("two"))
	require.NoError(t, err)
	src3, _, err := m.InternSource([]byte("r"), []byte("three"))
	require.NoError(t, err)

	require.NoError(t, m.Insert(h1, src1, 4096, 0))

	require.NoError(t, m.Insert(h2, src2, 4096, 0))
	require.NoError(t, m.Insert(h2, src3, 4096, 4096))

	it := m.NewIterator()
	var triples []Triple
	for {
		tr, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		triples = append(triples, tr)
	}
	require.Len(t, triples, 3)
}

func TestInsertAlignmentAndBlockSizeRejections(t *testing.T) {
	m := newTestManager(t)
	h := testHash(0xEE)
	src, _, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)

	require.NoError(t, m.Insert(h, src, 8192, 0))
	require.Equal(t, uint64(1), m.Counters().HashesNotInsertedMismatchedHashBlockSize)

	require.NoError(t, m.Insert(h, src, 4096, 100))
	require.Equal(t, uint64(1), m.Counters().HashesNotInsertedInvalidByteAlignment)
}

func TestSetMetadataIdempotentAndConflict(t *testing.T) {
	m := newTestManager(t)
	src, _, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)

	entry := metadata.Entry{Filesize: 4096, FileHash: testHash(0x01)}
	require.NoError(t, m.SetMetadata(src, entry))
	require.Equal(t, uint64(1), m.Counters().SourceMetadataInserted)

	require.NoError(t, m.SetMetadata(src, entry))
	require.Equal(t, uint64(1), m.Counters().SourceMetadataInserted)
	require.Equal(t, uint64(1), m.Counters().SourceMetadataNotInsertedAlreadyPresent)

	conflicting := metadata.Entry{Filesize: 8192, FileHash: testHash(0x02)}
	require.NoError(t, m.SetMetadata(src, conflicting))
	require.Equal(t, uint64(2), m.Counters().SourceMetadataNotInsertedAlreadyPresent)

	got, ok, err := m.Metadata(src)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry, got)
}

func TestEraseOfNeverInsertedTripleCountsOnly(t *testing.T) {
	m := newTestManager(t)
	h := testHash(0xFF)
	src, _, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)

	require.NoError(t, m.Erase(h, src, 4096, 0))
	require.Equal(t, uint64(1), m.Counters().HashesNotRemovedNoHash)
	require.Equal(t, uint64(0), m.Counters().HashesRemoved)
}
