package scanserver

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/rpcpool/hashdb/internal/digest"
	"github.com/rpcpool/hashdb/internal/hashdb"
	"github.com/rpcpool/hashdb/internal/settings"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *hashdb.Manager {
	t.Helper()
	dir := t.TempDir()
	s := settings.Default()
	s.HashDigestType = digest.MD5
	s.HashBlockSize = 4096
	s.ByteAlignment = 4096
	s.NumberOfIndexBits = 34
	s.Bloom1 = settings.BloomConfig{Used: false}
	s.Bloom2 = settings.BloomConfig{Used: false}
	m, err := hashdb.Create(dir, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func md5Hash(b byte) []byte {
	h := make([]byte, 16)
	h[0] = b
	return h
}

// TestScanServerWireRoundTrip drives spec.md §8 scenario 6 over the actual
// TCP wire protocol: two stored hashes (one singleton, one count=5),
// scan five requested hashes, two of which are present.
func TestScanServerWireRoundTrip(t *testing.T) {
	m := newTestManager(t)

	hA := md5Hash(0x01)
	hCount := md5Hash(0x04)
	hMissing1 := md5Hash(0x02)
	hMissing2 := md5Hash(0x03)
	hMissing3 := md5Hash(0x05)

	srcA, _, err := m.InternSource([]byte("r"), []byte("a"))
	require.NoError(t, err)
	require.NoError(t, m.Insert(hA, srcA, 4096, 0))

	require.NoError(t, m.Insert(hCount, srcA, 4096, 0))
	for i := 1; i < 5; i++ {
		src, _, err := m.InternSource([]byte("r"), []byte{byte('b' + i)})
		require.NoError(t, err)
		require.NoError(t, m.Insert(hCount, src, 4096, uint64(i)*4096))
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	srv := New(m)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- srv.ListenAndServe(ctx, addr) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	requested := [][]byte{hA, hMissing1, hMissing2, hCount, hMissing3}
	hdr := make([]byte, 8)
	binary.NativeEndian.PutUint32(hdr[0:4], RequestMD5)
	binary.NativeEndian.PutUint32(hdr[4:8], uint32(len(requested)))
	_, err = conn.Write(hdr)
	require.NoError(t, err)
	for _, h := range requested {
		_, err = conn.Write(h)
		require.NoError(t, err)
	}

	respHdr := make([]byte, 4)
	_, err = readFull(conn, respHdr)
	require.NoError(t, err)
	count := binary.NativeEndian.Uint32(respHdr)
	require.Equal(t, uint32(2), count)

	type result struct {
		Index uint32
		Count uint32
	}
	results := make([]result, count)
	entry := make([]byte, 8)
	for i := range results {
		_, err = readFull(conn, entry)
		require.NoError(t, err)
		results[i] = result{
			Index: binary.NativeEndian.Uint32(entry[0:4]),
			Count: binary.NativeEndian.Uint32(entry[4:8]),
		}
	}
	require.Equal(t, []result{{Index: 0, Count: 1}, {Index: 3, Count: 5}}, results)

	cancel()
	conn.Close()
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
