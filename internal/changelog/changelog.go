// Package changelog implements the stable, enumerated change-log counter
// set from spec.md §7: every recoverable policy rejection and every
// successful mutation increments exactly one counter, never an error.
// Grounded on the root metrics.go init()-registration idiom, generalized
// from ad hoc RPC counters to the spec's fixed counter names.
package changelog

import "sync/atomic"

// Counters holds one atomic counter per enumerated change-log field.
// Zero value is a fresh, all-zero set, matching a newly opened database
// or a fresh per-invocation log.
type Counters struct {
	HashesInserted                             atomic.Uint64
	HashesNotInsertedMismatchedHashBlockSize   atomic.Uint64
	HashesNotInsertedInvalidByteAlignment      atomic.Uint64
	HashesNotInsertedExceedsMaxDuplicates      atomic.Uint64
	HashesNotInsertedDuplicateElement          atomic.Uint64
	HashesRemoved                              atomic.Uint64
	HashesNotRemovedMismatchedHashBlockSize    atomic.Uint64
	HashesNotRemovedInvalidByteAlignment       atomic.Uint64
	HashesNotRemovedNoHash                     atomic.Uint64
	HashesNotRemovedNoElement                  atomic.Uint64
	SourceMetadataInserted                     atomic.Uint64
	SourceMetadataNotInsertedAlreadyPresent    atomic.Uint64
}

// Snapshot is a point-in-time, plain-value copy of Counters, used for
// history.xml entries and the `info` command's report.
type Snapshot struct {
	HashesInserted                           uint64
	HashesNotInsertedMismatchedHashBlockSize  uint64
	HashesNotInsertedInvalidByteAlignment     uint64
	HashesNotInsertedExceedsMaxDuplicates     uint64
	HashesNotInsertedDuplicateElement         uint64
	HashesRemoved                             uint64
	HashesNotRemovedMismatchedHashBlockSize   uint64
	HashesNotRemovedInvalidByteAlignment      uint64
	HashesNotRemovedNoHash                    uint64
	HashesNotRemovedNoElement                 uint64
	SourceMetadataInserted                    uint64
	SourceMetadataNotInsertedAlreadyPresent   uint64
}

// Snapshot reads every counter's current value.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		HashesInserted:                           c.HashesInserted.Load(),
		HashesNotInsertedMismatchedHashBlockSize:  c.HashesNotInsertedMismatchedHashBlockSize.Load(),
		HashesNotInsertedInvalidByteAlignment:     c.HashesNotInsertedInvalidByteAlignment.Load(),
		HashesNotInsertedExceedsMaxDuplicates:     c.HashesNotInsertedExceedsMaxDuplicates.Load(),
		HashesNotInsertedDuplicateElement:         c.HashesNotInsertedDuplicateElement.Load(),
		HashesRemoved:                             c.HashesRemoved.Load(),
		HashesNotRemovedMismatchedHashBlockSize:    c.HashesNotRemovedMismatchedHashBlockSize.Load(),
		HashesNotRemovedInvalidByteAlignment:       c.HashesNotRemovedInvalidByteAlignment.Load(),
		HashesNotRemovedNoHash:                     c.HashesNotRemovedNoHash.Load(),
		HashesNotRemovedNoElement:                  c.HashesNotRemovedNoElement.Load(),
		SourceMetadataInserted:                     c.SourceMetadataInserted.Load(),
		SourceMetadataNotInsertedAlreadyPresent:    c.SourceMetadataNotInsertedAlreadyPresent.Load(),
	}
}

// AsFields returns the counter set as an ordered name/value list, the
// shape both the history.xml writer and the `info` command want.
func (s Snapshot) AsFields() []struct {
	Name  string
	Value uint64
} {
	return []struct {
		Name  string
		Value uint64
	}{
		{"hashes_inserted", s.HashesInserted},
		{"hashes_not_inserted_mismatched_hash_block_size", s.HashesNotInsertedMismatchedHashBlockSize},
		{"hashes_not_inserted_invalid_byte_alignment", s.HashesNotInsertedInvalidByteAlignment},
		{"hashes_not_inserted_exceeds_max_duplicates", s.HashesNotInsertedExceedsMaxDuplicates},
		{"hashes_not_inserted_duplicate_element", s.HashesNotInsertedDuplicateElement},
		{"hashes_removed", s.HashesRemoved},
		{"hashes_not_removed_mismatched_hash_block_size", s.HashesNotRemovedMismatchedHashBlockSize},
		{"hashes_not_removed_invalid_byte_alignment", s.HashesNotRemovedInvalidByteAlignment},
		{"hashes_not_removed_no_hash", s.HashesNotRemovedNoHash},
		{"hashes_not_removed_no_element", s.HashesNotRemovedNoElement},
		{"source_metadata_inserted", s.SourceMetadataInserted},
		{"source_metadata_not_inserted_already_present", s.SourceMetadataNotInsertedAlreadyPresent},
	}
}
