// Package bloom implements the on-disk Bloom filter in front of the hash
// store: a fixed 128-byte header followed by a bit array, memory-mapped
// for the read-only serving path. Grounded on the teacher's bucketteer
// package (golang.org/x/exp/mmap reader, unix.Fadvise random-access hint,
// xxhash-derived positions) but a true Bloom filter rather than
// bucketteer's exact-membership Eytzinger sketch: bucketteer never admits
// false positives by design, which is the wrong shape for §4.2's bit
// array plus k-hash-function contract.
package bloom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic identifies a bloom filter file on disk.
var Magic = [8]byte{'b', 'l', 'o', 'o', 'm', 0, 0, 0}

// Version is the current on-disk format version.
const Version uint32 = 1

// HeaderSize is the fixed header size in bytes, per spec.md §6.
const HeaderSize = 128

// Header is the fixed 128-byte file header.
type Header struct {
	MHashSize        uint32 // log2 of bit count
	KHashFunctions   uint32
	AddedItems       uint64
	UniqueAddedItems uint64
	AliasedAdds      uint64
	Hits             uint64
}

// NumBits returns 2^MHashSize.
func (h Header) NumBits() uint64 {
	return uint64(1) << h.MHashSize
}

// ByteLen returns ceil(NumBits()/8).
func (h Header) ByteLen() int64 {
	return int64((h.NumBits() + 7) / 8)
}

func (h Header) encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	copy(buf[0:8], Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], Version)
	binary.LittleEndian.PutUint32(buf[12:16], h.MHashSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.KHashFunctions)
	binary.LittleEndian.PutUint64(buf[20:28], h.AddedItems)
	binary.LittleEndian.PutUint64(buf[28:36], h.UniqueAddedItems)
	binary.LittleEndian.PutUint64(buf[36:44], h.AliasedAdds)
	binary.LittleEndian.PutUint64(buf[44:52], h.Hits)
	// remaining bytes reserved, left zero.
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("bloom: header too short: %d bytes", len(buf))
	}
	if !bytes.Equal(buf[0:8], Magic[:]) {
		return Header{}, errors.New("bloom: bad magic")
	}
	version := binary.LittleEndian.Uint32(buf[8:12])
	if version != Version {
		return Header{}, fmt.Errorf("bloom: unsupported version %d", version)
	}
	h := Header{
		MHashSize:        binary.LittleEndian.Uint32(buf[12:16]),
		KHashFunctions:   binary.LittleEndian.Uint32(buf[16:20]),
		AddedItems:       binary.LittleEndian.Uint64(buf[20:28]),
		UniqueAddedItems: binary.LittleEndian.Uint64(buf[28:36]),
		AliasedAdds:      binary.LittleEndian.Uint64(buf[36:44]),
		Hits:             binary.LittleEndian.Uint64(buf[44:52]),
	}
	if h.MHashSize == 0 || h.MHashSize > 63 {
		return Header{}, fmt.Errorf("bloom: invalid M exponent %d", h.MHashSize)
	}
	if h.KHashFunctions == 0 {
		return Header{}, errors.New("bloom: invalid k")
	}
	return h, nil
}

// positions derives the k independent bit positions for hash bytes b
// using the Kirsch-Mitzenmacher double-hashing technique seeded by
// xxhash, the same hash family the teacher uses for bucket assignment in
// compactindexsized and bucketteer.
func positions(b []byte, m Header) []uint64 {
	h1 := xxhashSum(b, 0)
	h2 := xxhashSum(b, 1)
	numBits := m.NumBits()
	out := make([]uint64, m.KHashFunctions)
	for i := uint32(0); i < m.KHashFunctions; i++ {
		combined := h1 + uint64(i)*h2
		out[i] = combined % numBits
	}
	return out
}
