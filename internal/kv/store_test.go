package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreInsertFindReplaceErase(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "hash_store", 1)
	require.NoError(t, err)
	defer s.Close()

	key := []byte{0xAA, 0xBB, 0xCC}
	_, ok, err := s.Find(key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Insert(key, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.Error(t, s.Insert(key, []byte{0})) // already present

	v, ok, err := s.Find(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, v)

	require.NoError(t, s.Replace(key, []byte{9, 9, 9, 9, 9, 9, 9, 9}))
	v, ok, err = s.Find(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{9, 9, 9, 9, 9, 9, 9, 9}, v)

	require.NoError(t, s.Erase(key))
	_, ok, err = s.Find(key)
	require.NoError(t, err)
	require.False(t, ok)
	require.Error(t, s.Erase(key))
}

func TestStoreReplayOnReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "hash_store", 1)
	require.NoError(t, err)

	keys := [][]byte{{0x01}, {0x10}, {0x05}, {0xFF}}
	for i, k := range keys {
		require.NoError(t, s.Insert(k, []byte{byte(i)}))
	}
	require.NoError(t, s.Erase([]byte{0x10}))
	require.NoError(t, s.Close())

	s2, err := Open(dir, "hash_store", 1)
	require.NoError(t, err)
	defer s2.Close()

	require.Equal(t, 3, s2.Len())

	var seen [][]byte
	require.NoError(t, s2.Iterate(func(key, value []byte) error {
		seen = append(seen, append([]byte(nil), key...))
		return nil
	}))
	require.Equal(t, [][]byte{{0x01}, {0x05}, {0xFF}}, seen)
}

func TestMultiStoreInsertContainsErase(t *testing.T) {
	dir := t.TempDir()
	m, err := OpenMulti(dir, "hash_duplicates_store", 1)
	require.NoError(t, err)
	defer m.Close()

	key := []byte{0xAA}
	require.NoError(t, m.Insert(key, []byte{1}))
	require.NoError(t, m.Insert(key, []byte{2}))
	require.Error(t, m.Insert(key, []byte{1})) // duplicate pair

	ok, err := m.Contains(key, []byte{2})
	require.NoError(t, err)
	require.True(t, ok)

	n, err := m.MatchCount(key)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, m.Erase(key, []byte{1}))
	n, err = m.MatchCount(key)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	vs, err := m.ValuesFor(key)
	require.NoError(t, err)
	require.Equal(t, [][]byte{{2}}, vs)
}

func TestShardingByTopByte(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "hash_store", 4)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert([]byte{0x00, 1}, []byte{1}))
	require.NoError(t, s.Insert([]byte{0x01, 1}, []byte{2}))
	require.NoError(t, s.Insert([]byte{0x04, 1}, []byte{3}))
	require.Equal(t, 3, s.Len())
}
