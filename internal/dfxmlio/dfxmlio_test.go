package dfxmlio

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0"?>
<dfxml>
  <fileobject>
    <filename>images/a.jpg</filename>
    <byte_runs>
      <byte_run file_offset="0"><hashdigest type="md5">aabbccdd</hashdigest></byte_run>
      <byte_run file_offset="4096"><hashdigest type="md5">11223344</hashdigest></byte_run>
    </byte_runs>
  </fileobject>
  <fileobject>
    <filename>images/b.jpg</filename>
    <byte_runs>
      <byte_run file_offset="0"><hashdigest type="md5">55667788</hashdigest></byte_run>
    </byte_runs>
  </fileobject>
</dfxml>
`

func TestReaderStreamsRecords(t *testing.T) {
	r := NewReader(strings.NewReader(sampleDoc), "repo1")
	var got []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	require.Equal(t, "repo1", got[0].RepositoryName)
	require.Equal(t, "images/a.jpg", got[0].Filename)
	require.Equal(t, uint64(0), got[0].FileOffset)
	require.Equal(t, "aabbccdd", got[0].HashHex)
	require.Equal(t, uint64(4096), got[1].FileOffset)
	require.Equal(t, "images/b.jpg", got[2].Filename)
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Record{Filename: "x.jpg", FileOffset: 0, HashHex: "deadbeef"}, "MD5"))
	require.NoError(t, w.Close())

	r := NewReader(&buf, "repo2")
	rec, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "x.jpg", rec.Filename)
	require.Equal(t, "deadbeef", rec.HashHex)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestRecordHashDecodesHex(t *testing.T) {
	rec := Record{HashHex: "aabb"}
	b, err := rec.Hash()
	require.NoError(t, err)
	require.Equal(t, []byte{0xaa, 0xbb}, b)
}
