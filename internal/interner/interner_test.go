package interner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrInsertBijection(t *testing.T) {
	dir := t.TempDir()
	in, err := Open(dir)
	require.NoError(t, err)
	defer in.Close()

	id1, wasNew, err := in.GetOrInsert([]byte("repo"), []byte("a.img"))
	require.NoError(t, err)
	require.True(t, wasNew)
	require.Equal(t, uint64(1), id1)

	id1Again, wasNew, err := in.GetOrInsert([]byte("repo"), []byte("a.img"))
	require.NoError(t, err)
	require.False(t, wasNew)
	require.Equal(t, id1, id1Again)

	id2, wasNew, err := in.GetOrInsert([]byte("repo"), []byte("b.img"))
	require.NoError(t, err)
	require.True(t, wasNew)
	require.NotEqual(t, id1, id2)

	rn, fn, err := in.LookupSource(id1)
	require.NoError(t, err)
	require.Equal(t, []byte("repo"), rn)
	require.Equal(t, []byte("a.img"), fn)

	_, _, err = in.LookupSource(999)
	require.Error(t, err)
}

func TestReopenPreservesIDsAndCounters(t *testing.T) {
	dir := t.TempDir()
	in, err := Open(dir)
	require.NoError(t, err)
	id1, _, err := in.GetOrInsert([]byte("repo"), []byte("a.img"))
	require.NoError(t, err)
	require.NoError(t, in.Close())

	in2, err := Open(dir)
	require.NoError(t, err)
	defer in2.Close()

	id1Again, wasNew, err := in2.GetOrInsert([]byte("repo"), []byte("a.img"))
	require.NoError(t, err)
	require.False(t, wasNew)
	require.Equal(t, id1, id1Again)

	id2, wasNew, err := in2.GetOrInsert([]byte("repo"), []byte("c.img"))
	require.NoError(t, err)
	require.True(t, wasNew)
	require.Equal(t, uint64(2), id2)
}
