package bloom

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Writer builds a bloom filter in memory and flushes it to disk. Used by
// `create` (empty filter) and `rebuild_bloom` (walks the hash store and
// re-inserts every key).
type Writer struct {
	header Header
	bits   []byte
}

// NewWriter allocates an empty filter with 2^m bits and k hash functions.
func NewWriter(m, k uint32) (*Writer, error) {
	if m == 0 || m > 48 {
		return nil, fmt.Errorf("bloom: m=%d out of range", m)
	}
	if k == 0 {
		return nil, fmt.Errorf("bloom: k must be >= 1")
	}
	h := Header{MHashSize: m, KHashFunctions: k}
	return &Writer{header: h, bits: make([]byte, h.ByteLen())}, nil
}

// Add sets the k bits for hash h. It never fails.
func (w *Writer) Add(h []byte) {
	already := true
	for _, pos := range positions(h, w.header) {
		byteIdx := pos / 8
		bitMask := byte(1) << (pos % 8)
		if w.bits[byteIdx]&bitMask == 0 {
			already = false
		}
		w.bits[byteIdx] |= bitMask
	}
	w.header.AddedItems++
	if already {
		w.header.AliasedAdds++
	} else {
		w.header.UniqueAddedItems++
	}
}

// Test reports whether all k bits for h are set.
func (w *Writer) Test(h []byte) bool {
	for _, pos := range positions(h, w.header) {
		byteIdx := pos / 8
		bitMask := byte(1) << (pos % 8)
		if w.bits[byteIdx]&bitMask == 0 {
			return false
		}
	}
	return true
}

// Reset zeroes the bit array and statistics, keeping M and k. Manager's
// RebuildBloom does not call it; it builds fresh writers with NewWriter.
func (w *Writer) Reset() {
	for i := range w.bits {
		w.bits[i] = 0
	}
	w.header.AddedItems = 0
	w.header.UniqueAddedItems = 0
	w.header.AliasedAdds = 0
	w.header.Hits = 0
}

// WriteFile writes the header and bit array to path, truncating any
// existing file.
func (w *Writer) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	hdr := w.header.encode()
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := bw.Write(w.bits); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// Header returns the current header, for reporting.
func (w *Writer) Header() Header {
	return w.header
}

// LoadWriter reads an existing filter file fully into memory for
// mutation: the manager's insert path needs to set bits live, which
// golang.org/x/exp/mmap's read-only mapping cannot do, so the read-write
// path works against a plain in-memory copy instead (flushed back with
// WriteFile). The mmap.Reader in reader.go remains the high-throughput
// path for the scan-only server, which never mutates the filter.
func LoadWriter(path string) (*Writer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, hdrBuf); err != nil {
		return nil, fmt.Errorf("bloom: read header: %w", err)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	bits := make([]byte, hdr.ByteLen())
	if _, err := io.ReadFull(f, bits); err != nil {
		return nil, fmt.Errorf("bloom: read bit array: %w", err)
	}
	return &Writer{header: hdr, bits: bits}, nil
}
