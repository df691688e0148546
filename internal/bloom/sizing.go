package bloom

import "math"

// SizeForCapacity returns the smallest M exponent (M = 1<<m) that keeps
// the false-positive rate at or below targetFPRate for an expected n
// unique inserted items, using the standard optimal-bit-count relation
// m_bits = ceil(n * -ln(p) / (ln2)^2). Restored from the original
// implementation's approximate_M_to_n sizing table (SPEC_FULL.md
// SUPPLEMENTED FEATURES); spec.md's own default target is roughly 6%.
func SizeForCapacity(n uint64, targetFPRate float64) uint32 {
	if n == 0 {
		n = 1
	}
	if targetFPRate <= 0 || targetFPRate >= 1 {
		targetFPRate = 0.06
	}
	ln2 := math.Ln2
	bits := math.Ceil(float64(n) * -math.Log(targetFPRate) / (ln2 * ln2))
	m := uint32(math.Ceil(math.Log2(bits)))
	if m < 1 {
		m = 1
	}
	if m > 48 {
		m = 48
	}
	return m
}

// RecommendedK returns the hash-function count k that minimizes the
// false-positive rate for a filter sized to m bits and n expected items:
// k = round((M/n) * ln2). spec.md notes k is "typically 3"; this derives
// it when no explicit value is configured.
func RecommendedK(m uint32, n uint64) uint32 {
	if n == 0 {
		return 3
	}
	numBits := float64(uint64(1) << m)
	k := math.Round(numBits / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	return uint32(k)
}
