package kv

// clampShardCount returns the number of shard files a store with n
// configured shards should keep, clamped to a sane [1,256] range. Open and
// OpenMulti apply it; sharding is otherwise transparent to callers of
// Store/MultiStore, and only shardFor picks a shard for a key.
func clampShardCount(n int) int {
	if n <= 0 {
		return 1
	}
	if n > 256 {
		return 256
	}
	return n
}

// shardFor partitions by the top byte of the key, matching the "shard by
// top byte of H" rule: with fewer shards than 256, several top-byte values
// fold onto the same shard file, which is still a valid partition.
func shardFor(key []byte, shardCount int) int {
	if len(key) == 0 {
		return 0
	}
	return int(key[0]) % shardCount
}
