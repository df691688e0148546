package changelog

import "github.com/prometheus/client_golang/prometheus"

// RegisterPrometheus exposes every counter as a GaugeFunc under the
// hashdb_changelog namespace, so an operator can scrape per-counter
// values the same way the root metrics.go registers command counters: one
// named metric per field, read live rather than copied into a separate
// Prometheus counter (these are already atomics shared with the
// database manager).
func RegisterPrometheus(c *Counters) error {
	fields := []struct {
		name string
		get  func() uint64
	}{
		{"hashes_inserted", c.HashesInserted.Load},
		{"hashes_not_inserted_mismatched_hash_block_size", c.HashesNotInsertedMismatchedHashBlockSize.Load},
		{"hashes_not_inserted_invalid_byte_alignment", c.HashesNotInsertedInvalidByteAlignment.Load},
		{"hashes_not_inserted_exceeds_max_duplicates", c.HashesNotInsertedExceedsMaxDuplicates.Load},
		{"hashes_not_inserted_duplicate_element", c.HashesNotInsertedDuplicateElement.Load},
		{"hashes_removed", c.HashesRemoved.Load},
		{"hashes_not_removed_mismatched_hash_block_size", c.HashesNotRemovedMismatchedHashBlockSize.Load},
		{"hashes_not_removed_invalid_byte_alignment", c.HashesNotRemovedInvalidByteAlignment.Load},
		{"hashes_not_removed_no_hash", c.HashesNotRemovedNoHash.Load},
		{"hashes_not_removed_no_element", c.HashesNotRemovedNoElement.Load},
		{"source_metadata_inserted", c.SourceMetadataInserted.Load},
		{"source_metadata_not_inserted_already_present", c.SourceMetadataNotInsertedAlreadyPresent.Load},
	}
	for _, f := range fields {
		getFn := f.get
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hashdb",
			Subsystem: "changelog",
			Name:      f.name,
			Help:      "hashdb change-log counter: " + f.name,
		}, func() float64 { return float64(getFn()) })
		if err := prometheus.Register(gauge); err != nil {
			return err
		}
	}
	return nil
}
