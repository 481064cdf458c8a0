// Package filter implements the approximate URL membership filter: a
// Redis-backed bit array with double hashing, zero false negatives and a
// bounded false-positive rate. It never resizes once constructed; inserting
// past its configured capacity degrades epsilon rather than growing.
package filter

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/jonesrussell/crawld/internal/coordination"
)

// key is the stable coordination-store key for the filter's bit array.
const key = "filter"

// Filter answers possibly-contains/insert against a fixed-size bit array.
type Filter struct {
	store *coordination.Store
	m     uint64 // bit width
	k     uint64 // hash count
}

// Sizing computes the bit width m and hash count k for n expected unique
// URLs and a target false-positive rate epsilon, per the standard Bloom
// filter sizing formulas:
//
//	m = ceil(-n * ln(epsilon) / (ln 2)^2)
//	k = ceil((m/n) * ln 2)
func Sizing(n uint64, epsilon float64) (m, k uint64) {
	if n == 0 {
		n = 1
	}
	if epsilon <= 0 || epsilon >= 1 {
		epsilon = 0.001
	}
	ln2 := math.Ln2
	mf := math.Ceil(-float64(n) * math.Log(epsilon) / (ln2 * ln2))
	kf := math.Ceil((mf / float64(n)) * ln2)
	if kf < 1 {
		kf = 1
	}
	return uint64(mf), uint64(kf)
}

// New constructs a Filter sized for n expected unique URLs at false-positive
// rate epsilon, backed by store.
func New(store *coordination.Store, n uint64, epsilon float64) *Filter {
	m, k := Sizing(n, epsilon)
	return &Filter{store: store, m: m, k: k}
}

// indices derives k bit offsets from a normalized URL via double hashing:
// hᵢ = (a + i·b) mod m, where a and b are the high and low 32-bit halves of
// a single 64-bit xxhash digest (a non-cryptographic hash, per the component
// design's MurmurHash3 reference — xxhash is the pack's equivalent general-
// purpose hash and avoids pulling in an extra dependency for the same role).
func (f *Filter) indices(normalized string) []uint64 {
	sum := xxhash.Sum64String(normalized)
	a := sum >> 32
	b := sum & 0xFFFFFFFF
	if b == 0 {
		b = 1
	}
	offsets := make([]uint64, f.k)
	for i := uint64(0); i < f.k; i++ {
		offsets[i] = (a + i*b) % f.m
	}
	return offsets
}

// Contains reports whether normalizedURL has possibly been inserted. Callers
// are responsible for normalizing the URL first (see internal/frontier) so
// that this package has no dependency on URL parsing. False negatives never
// occur; false positives are bounded by the configured epsilon as long as
// the number of inserts stays at or below the sizing capacity n.
func (f *Filter) Contains(ctx context.Context, normalizedURL string) (bool, error) {
	bits, err := f.store.BitfieldGetBits(ctx, key, f.indices(normalizedURL))
	if err != nil {
		return false, err
	}
	for _, set := range bits {
		if !set {
			return false, nil
		}
	}
	return true, nil
}

// Insert marks normalizedURL as seen. Idempotent: inserting the same URL
// repeatedly only ever sets bits that are already 1.
func (f *Filter) Insert(ctx context.Context, normalizedURL string) error {
	return f.store.BitfieldSetBits(ctx, key, f.indices(normalizedURL))
}

// SizeEstimate returns an estimate of the number of distinct items inserted,
// derived from the fraction of set bits: -(m/k) * ln(1 - ones/m).
func (f *Filter) SizeEstimate(ctx context.Context) (float64, error) {
	ones, err := f.store.BitfieldPopCount(ctx, key)
	if err != nil {
		return 0, err
	}
	fraction := float64(ones) / float64(f.m)
	if fraction >= 1 {
		return math.Inf(1), nil
	}
	return -(float64(f.m) / float64(f.k)) * math.Log(1-fraction), nil
}
