package packedenc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingletonRoundTrip(t *testing.T) {
	const k = 34
	word, err := EncodeSingleton(k, 1, 5)
	require.NoError(t, err)

	dec, err := Decode(word, k)
	require.NoError(t, err)
	require.Equal(t, ShapeSingleton, dec.Shape)
	require.Equal(t, uint64(1), dec.SourceID)
	require.Equal(t, uint64(5), dec.Offset)
	require.Equal(t, uint32(1), CountOf(word))
	require.False(t, IsCountShape(word))
}

func TestSingletonBounds(t *testing.T) {
	const k = 32
	// offset must fit in 64-k bits.
	_, err := EncodeSingleton(k, 1, uint64(1)<<(64-k))
	require.ErrorIs(t, err, ErrOffsetTooLarge)

	// source id must fit in k bits.
	_, err = EncodeSingleton(k, uint64(1)<<k, 0)
	require.ErrorIs(t, err, ErrSourceIDTooLarge)
}

func TestCountRoundTrip(t *testing.T) {
	word, err := EncodeCount(5)
	require.NoError(t, err)
	require.True(t, IsCountShape(word))
	require.Equal(t, uint32(5), CountOf(word))

	dec, err := Decode(word, 34)
	require.NoError(t, err)
	require.Equal(t, ShapeCount, dec.Shape)
	require.Equal(t, uint32(5), dec.Count)
}

func TestCountBounds(t *testing.T) {
	_, err := EncodeCount(1)
	require.ErrorIs(t, err, ErrCountOutOfRange)

	_, err = EncodeCount(0xFFFFFFFF)
	require.ErrorIs(t, err, ErrCountOutOfRange)

	_, err = EncodeCount(0xFFFFFFFE)
	require.NoError(t, err)
}

func TestSentinelNeverProducedBySingleton(t *testing.T) {
	// Any legal singleton with k<=40 leaves at least 24 high bits zero, so
	// it can never collide with the all-ones count sentinel.
	for _, k := range []uint8{32, 34, 36, 40} {
		maxSource := uint64(1)<<k - 1
		word, err := EncodeSingleton(k, maxSource, 0)
		require.NoError(t, err)
		require.False(t, IsCountShape(word))
	}
}
