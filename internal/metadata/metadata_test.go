package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertIdempotentAndConflict(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	e := Entry{Filesize: 4096, FileHash: []byte{1, 2, 3, 4}}
	require.NoError(t, s.Insert(1, e))
	require.NoError(t, s.Insert(1, e)) // idempotent

	conflict := Entry{Filesize: 8192, FileHash: []byte{5, 6, 7, 8}}
	require.ErrorIs(t, s.Insert(1, conflict), ErrAlreadyPresent)

	got, ok, err := s.Lookup(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, e, got)

	_, ok, err = s.Lookup(2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIterateAscendingBySourceID(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	ids := []uint64{300, 1, 42, 5}
	for _, id := range ids {
		require.NoError(t, s.Insert(id, Entry{Filesize: id, FileHash: []byte{byte(id)}}))
	}

	var seen []uint64
	require.NoError(t, s.Iterate(func(id uint64, e Entry) error {
		seen = append(seen, id)
		return nil
	}))
	require.Equal(t, []uint64{1, 5, 42, 300}, seen)
}
