package main

import (
	"testing"

	"github.com/rpcpool/hashdb/internal/dfxmlio"
	"github.com/rpcpool/hashdb/internal/digest"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/rpcpool/hashdb/internal/settings"
	"github.com/stretchr/testify/require"
)

func newVerifyTestDB(t *testing.T) *hashdb.Manager {
	t.Helper()
	dir := t.TempDir()
	s := settings.Default()
	s.HashDigestType = digest.MD5
	s.HashBlockSize = 512
	s.Bloom1 = settings.BloomConfig{Used: false}
	s.Bloom2 = settings.BloomConfig{Used: false}
	m, err := hashdb.Create(dir, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestVerifyRecordMatched(t *testing.T) {
	m := newVerifyTestDB(t)
	src, _, err := m.InternSource([]byte("repo"), []byte("image.img"))
	require.NoError(t, err)
	h := make([]byte, 16)
	h[0] = 0xAB
	require.NoError(t, m.Insert(h, src, 512, 1024))

	rec := dfxmlio.Record{Filename: "image.img", FileOffset: 1024, HashHex: "ab000000000000000000000000000000"}
	var rpt verifyReport
	require.NoError(t, verifyRecord(rec, m, &rpt))
	require.Equal(t, verifyReport{matched: 1}, rpt)
}

func TestVerifyRecordMismatchedOffset(t *testing.T) {
	m := newVerifyTestDB(t)
	src, _, err := m.InternSource([]byte("repo"), []byte("image.img"))
	require.NoError(t, err)
	h := make([]byte, 16)
	h[0] = 0xAB
	require.NoError(t, m.Insert(h, src, 512, 1024))

	rec := dfxmlio.Record{Filename: "image.img", FileOffset: 2048, HashHex: "ab000000000000000000000000000000"}
	var rpt verifyReport
	require.NoError(t, verifyRecord(rec, m, &rpt))
	require.Equal(t, verifyReport{mismatched: 1}, rpt)
}

func TestVerifyRecordNotFound(t *testing.T) {
	m := newVerifyTestDB(t)

	rec := dfxmlio.Record{Filename: "image.img", FileOffset: 1024, HashHex: "ff000000000000000000000000000000"}
	var rpt verifyReport
	require.NoError(t, verifyRecord(rec, m, &rpt))
	require.Equal(t, verifyReport{notFound: 1}, rpt)
}

func TestVerifyRecordUnalignedOffset(t *testing.T) {
	m := newVerifyTestDB(t)

	rec := dfxmlio.Record{Filename: "image.img", FileOffset: 100, HashHex: "ff000000000000000000000000000000"}
	var rpt verifyReport
	require.NoError(t, verifyRecord(rec, m, &rpt))
	require.Equal(t, verifyReport{mismatched: 1}, rpt)
}
