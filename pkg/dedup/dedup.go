package dedup

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultCapacity is the expected number of distinct ids a single
	// fan-out can see. Sized for the largest observed audiences.
	DefaultCapacity = 7_364_181

	// DefaultFalsePositiveRate is the accepted odds of wrongly treating a
	// fresh id as already seen.
	DefaultFalsePositiveRate = 0.0001
)

// Filter is a thread-safe approximate membership set over string ids.
// The zero value is not usable; construct with NewFilter.
type Filter struct {
	mu    sync.Mutex
	bloom *bloom.BloomFilter
}

// NewFilter creates a filter sized for DefaultCapacity ids at
// DefaultFalsePositiveRate.
func NewFilter() *Filter {
	return NewFilterWithEstimates(DefaultCapacity, DefaultFalsePositiveRate)
}

// NewFilterWithEstimates creates a filter sized for n ids at false
// positive rate fp.
func NewFilterWithEstimates(n uint, fp float64) *Filter {
	return &Filter{bloom: bloom.NewWithEstimates(n, fp)}
}

// Seen records id and reports whether it was already present. The first
// call for an id returns false, later calls return true.
func (f *Filter) Seen(id string) bool {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], xxhash.Sum64String(id))

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bloom.TestAndAdd(key[:])
}
