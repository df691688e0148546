package bloom

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

// Reader is the read-only, memory-mapped serving path for a bloom filter
// file, matching spec.md §5's "memory-mapped Bloom region accessed
// without a lock on the read path". Grounded on bucketteer/read.go's
// OpenMMAP + Fadvise idiom.
type Reader struct {
	ra     io.ReaderAt
	header Header
	hits   atomic.Uint64
}

// Open memory-maps path read-only and validates its header.
func Open(path string) (*Reader, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if stat.Size() < HeaderSize {
		return nil, fmt.Errorf("bloom: file too small: %s", path)
	}
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bloom: mmap open: %w", err)
	}
	hdrBuf := make([]byte, HeaderSize)
	if _, err := ra.ReadAt(hdrBuf, 0); err != nil {
		ra.Close()
		return nil, fmt.Errorf("bloom: read header: %w", err)
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		ra.Close()
		return nil, err
	}
	wantSize := HeaderSize + hdr.ByteLen()
	if stat.Size() < wantSize {
		ra.Close()
		return nil, fmt.Errorf("bloom: truncated file: have %d bytes, want %d", stat.Size(), wantSize)
	}

	type fd interface {
		Fd() uintptr
	}
	if f, ok := ra.(fd); ok {
		if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
			klog.Warningf("bloom: fadvise(RANDOM) failed: %v", err)
		}
	}

	return &Reader{ra: ra, header: hdr}, nil
}

// Header returns the filter's parameters and lifetime statistics.
func (r *Reader) Header() Header {
	return r.header
}

// Test reports whether all k bits for h are set. False positives are
// expected; false negatives are a contract violation.
func (r *Reader) Test(h []byte) (bool, error) {
	buf := make([]byte, 1)
	for _, pos := range positions(h, r.header) {
		byteIdx := int64(pos / 8)
		bitMask := byte(1) << (pos % 8)
		if _, err := r.ra.ReadAt(buf, HeaderSize+byteIdx); err != nil {
			return false, fmt.Errorf("bloom: read bit word: %w", err)
		}
		if buf[0]&bitMask == 0 {
			return false, nil
		}
	}
	r.hits.Add(1)
	return true, nil
}

// Close unmaps the filter file.
func (r *Reader) Close() error {
	if closer, ok := r.ra.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// TestAll reports whether H is present in every one of the given
// readers, per spec.md §4.2's "a scan considers a hash present only if
// all enabled filters return true" and §5's up-to-two-filter rule. An
// empty filter list means Bloom is disabled and everything passes.
func TestAll(readers []*Reader, h []byte) (bool, error) {
	for _, r := range readers {
		if r == nil {
			continue
		}
		ok, err := r.Test(h)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
