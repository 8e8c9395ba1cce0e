package registry

import "sync/atomic"

// Allocator produces strictly increasing, process-unique correlation ids.
// It is safe for concurrent use from any number of goroutines.
type Allocator struct {
	next atomic.Int64
}

// NewAllocator creates an allocator whose first Next returns start+1.
func NewAllocator(start int64) *Allocator {
	a := &Allocator{}
	a.next.Store(start)

	return a
}

// Next returns the next id in the sequence.
func (a *Allocator) Next() int64 {
	return a.next.Add(1)
}

// Seed raises the sequence floor so that subsequent Next calls return
// values above v. Lower seeds are ignored; the sequence never goes
// backwards.
func (a *Allocator) Seed(v int64) {
	for {
		cur := a.next.Load()
		if cur >= v {
			return
		}
		if a.next.CompareAndSwap(cur, v) {
			return
		}
	}
}
