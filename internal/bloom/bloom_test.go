package bloom

import (
	"path/filepath"
	"testing"

	"github.com/rpcpool/hashdb/internal/digest"
	"github.com/stretchr/testify/require"
)

func TestWriterAddTestNoFalseNegatives(t *testing.T) {
	w, err := NewWriter(16, 3)
	require.NoError(t, err)

	hashes := make([][]byte, 0, 200)
	for i := 0; i < 200; i++ {
		hashes = append(hashes, []byte{byte(i), byte(i >> 8), 0xAA, 0xBB})
	}
	for _, h := range hashes {
		w.Add(h)
	}
	for _, h := range hashes {
		require.True(t, w.Test(h), "no false negatives allowed")
	}
}

func TestWriterReadRoundTrip(t *testing.T) {
	w, err := NewWriter(16, 3)
	require.NoError(t, err)
	h1 := []byte{1, 2, 3, 4}
	h2 := []byte{5, 6, 7, 8}
	w.Add(h1)

	path := filepath.Join(t.TempDir(), "bloom_filter_1")
	require.NoError(t, w.WriteFile(path))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint32(16), r.Header().MHashSize)
	require.Equal(t, uint32(3), r.Header().KHashFunctions)

	ok, err := r.Test(h1)
	require.NoError(t, err)
	require.True(t, ok)

	// h2 may or may not test positive (it was never added), but the API
	// must not error.
	_, err = r.Test(h2)
	require.NoError(t, err)
}

func TestResetClearsBits(t *testing.T) {
	w, err := NewWriter(10, 3)
	require.NoError(t, err)
	h := []byte{9, 9, 9}
	w.Add(h)
	require.True(t, w.Test(h))
	w.Reset()
	require.False(t, w.Test(h))
	require.Equal(t, uint64(0), w.Header().AddedItems)
}

func TestSizeForCapacityGrowsWithN(t *testing.T) {
	small := SizeForCapacity(100, 0.06)
	large := SizeForCapacity(1_000_000, 0.06)
	require.LessOrEqual(t, small, large)
}

// TestFalsePositiveRateWithRandomSamples matches spec.md §8 scenario 5:
// populate a filter with 10,000 distinct hashes, confirm all return true,
// then confirm a sample of 10,000 random (certainly absent) hashes comes
// back true no more often than roughly the sizing target allows.
func TestFalsePositiveRateWithRandomSamples(t *testing.T) {
	const n = 10_000
	const targetFPRate = 0.06

	m := SizeForCapacity(n, targetFPRate)
	k := RecommendedK(m, n)
	w, err := NewWriter(m, k)
	require.NoError(t, err)

	members := make([][]byte, n)
	for i := range members {
		h, err := digest.Random(digest.MD5)
		require.NoError(t, err)
		members[i] = h
		w.Add(h)
	}
	for _, h := range members {
		require.True(t, w.Test(h), "no false negatives allowed")
	}

	falsePositives := 0
	for i := 0; i < n; i++ {
		h, err := digest.Random(digest.MD5)
		require.NoError(t, err)
		if w.Test(h) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(n)
	require.Less(t, rate, 2*targetFPRate, "observed false positive rate should stay near the sizing target")
}
