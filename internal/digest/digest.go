// Package digest identifies and validates the cryptographic hash kinds a
// hashdb database can be built around, and carries the one helper the
// database itself needs for generating sample hashes (used by bloom filter
// false-positive sampling and by tests).
package digest

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
)

// Kind identifies the hash algorithm a database is built around. A
// database holds exactly one Kind for its lifetime.
type Kind string

const (
	MD5       Kind = "MD5"
	SHA1      Kind = "SHA1"
	SHA256    Kind = "SHA256"
	Straight16 Kind = "STRAIGHT16"
	Straight64 Kind = "STRAIGHT64"
)

// Width returns the fixed byte width of a digest of this kind.
func (k Kind) Width() (int, error) {
	switch k {
	case MD5:
		return md5.Size, nil
	case SHA1:
		return sha1.Size, nil
	case SHA256:
		return sha256.Size, nil
	case Straight16:
		return 16, nil
	case Straight64:
		return 64, nil
	default:
		return 0, fmt.Errorf("digest: unknown kind %q", k)
	}
}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	_, err := k.Width()
	return err == nil
}

// Sum computes the digest of data for cryptographic kinds. STRAIGHT16 and
// STRAIGHT64 are not computed digests (they are used when block content is
// stored verbatim as its own "hash"); Sum rejects them.
func Sum(k Kind, data []byte) ([]byte, error) {
	switch k {
	case MD5:
		sum := md5.Sum(data)
		return sum[:], nil
	case SHA1:
		sum := sha1.Sum(data)
		return sum[:], nil
	case SHA256:
		sum := sha256.Sum256(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("digest: %q has no computed sum", k)
	}
}

// Random returns a cryptographically random byte string of the width for
// kind k. It is used for bloom filter false-positive-rate sampling and in
// tests that need arbitrary hash-shaped keys.
func Random(k Kind) ([]byte, error) {
	w, err := k.Width()
	if err != nil {
		return nil, err
	}
	b := make([]byte, w)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("digest: random: %w", err)
	}
	return b, nil
}

// ValidateWidth returns an error if b is not exactly the width required by
// k. Used at every store boundary that accepts a raw hash key.
func ValidateWidth(k Kind, b []byte) error {
	w, err := k.Width()
	if err != nil {
		return err
	}
	if len(b) != w {
		return fmt.Errorf("digest: %q requires %d-byte hash, got %d", k, w, len(b))
	}
	return nil
}
