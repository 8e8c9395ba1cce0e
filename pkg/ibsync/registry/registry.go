// Package registry provides correlation id allocation and the pending
// request registry: the mapping from in-flight correlation ids to the
// waiters blocked on them.
//
// The registry's mutex guards only the id-to-entry map. Result buffers
// are written exclusively by the dispatcher goroutine and read by the
// owning caller only after the completion signal fires; the one-shot
// channel close establishes the required ordering without a second lock.
package registry

import (
	"encoding/json"
	"sync"
	"time"
)

// Shape is the expected structure of a request's result.
type Shape int

const (
	// Scalar expects a single value; the first fragment resolves the
	// request.
	Scalar Shape = iota
	// ListUntilEnd accumulates fragments until the end-of-stream
	// sentinel arrives.
	ListUntilEnd
	// FirstOfMany expects a stream but resolves on the first fragment;
	// the dispatcher sends a best-effort cancel so no further fragments
	// are produced.
	FirstOfMany
)

// String returns the shape name for logging.
func (s Shape) String() string {
	switch s {
	case Scalar:
		return "scalar"
	case ListUntilEnd:
		return "list_until_end"
	case FirstOfMany:
		return "first_of_many"
	default:
		return "unknown"
	}
}

// Pending is the record a blocked caller waits on. It is created by the
// issuing operation, mutated only by the dispatcher, and destroyed by
// whichever of dispatcher or timeout path resolves it first.
type Pending struct {
	id      int64
	shape   Shape
	timeout time.Duration
	issued  time.Time

	// fragments is written only by the dispatcher before the signal
	// fires; ListUntilEnd appends, Scalar and FirstOfMany store once.
	fragments []json.RawMessage
	err       error

	done chan struct{}
	once sync.Once
}

// ID returns the correlation id.
func (p *Pending) ID() int64 { return p.id }

// Shape returns the expected result shape.
func (p *Pending) Shape() Shape { return p.shape }

// Timeout returns the caller-specified bound for this request.
func (p *Pending) Timeout() time.Duration { return p.timeout }

// Done returns the completion signal channel. It is closed at most once.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request resolves or the timeout elapses.
// It returns true if the completion signal fired.
func (p *Pending) Wait() bool {
	t := time.NewTimer(p.timeout)
	defer t.Stop()

	select {
	case <-p.done:
		return true
	case <-t.C:
		return false
	}
}

// Fragments returns the buffered result. Valid only after the completion
// signal fired.
func (p *Pending) Fragments() []json.RawMessage { return p.fragments }

// Err returns the recorded error, if any. Valid only after the completion
// signal fired.
func (p *Pending) Err() error { return p.err }

// resolve runs fn and fires the completion signal, exactly once.
func (p *Pending) resolve(fn func()) {
	p.once.Do(func() {
		if fn != nil {
			fn()
		}
		close(p.done)
	})
}

// AppendOutcome reports what Append did with a fragment.
type AppendOutcome int

const (
	// AppendDropped means no entry exists for the id; the fragment was
	// discarded.
	AppendDropped AppendOutcome = iota
	// AppendBuffered means the fragment was stored and the request is
	// still in flight.
	AppendBuffered
	// AppendResolved means the fragment completed the request
	// (Scalar and FirstOfMany shapes).
	AppendResolved
)

// Registry maps in-flight correlation ids to pending request records.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*Pending
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[int64]*Pending)}
}

// Register inserts a pending entry for id and returns its handle.
// Registering an id that is already in flight returns the existing
// handle and false; correlation ids must not be reused while active.
func (r *Registry) Register(id int64, shape Shape, timeout time.Duration) (*Pending, bool) {
	p := &Pending{
		id:      id,
		shape:   shape,
		timeout: timeout,
		issued:  time.Now(),
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[id]; ok {
		return existing, false
	}
	r.entries[id] = p

	return p, true
}

// Append routes one data fragment to the entry for id. For ListUntilEnd
// the fragment is buffered; for Scalar and FirstOfMany it resolves the
// request and detaches the entry. Fragments for unknown ids are dropped.
func (r *Registry) Append(id int64, fragment json.RawMessage) (Shape, AppendOutcome) {
	r.mu.Lock()
	p, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()

		return 0, AppendDropped
	}

	if p.shape == ListUntilEnd {
		r.mu.Unlock()
		// Sole writer is the dispatcher; the completion signal
		// publishes the buffer to the caller.
		p.fragments = append(p.fragments, fragment)

		return p.shape, AppendBuffered
	}

	delete(r.entries, id)
	r.mu.Unlock()

	p.resolve(func() { p.fragments = []json.RawMessage{fragment} })

	return p.shape, AppendResolved
}

// Resolve completes the entry for id with a single value.
func (r *Registry) Resolve(id int64, value json.RawMessage) bool {
	p := r.detach(id)
	if p == nil {
		return false
	}
	p.resolve(func() { p.fragments = []json.RawMessage{value} })

	return true
}

// Complete fires the completion signal for id, delivering whatever
// fragments were appended before it. Completing an unknown id is a no-op.
func (r *Registry) Complete(id int64) bool {
	p := r.detach(id)
	if p == nil {
		return false
	}
	p.resolve(nil)

	return true
}

// Fail resolves the entry for id with an error.
func (r *Registry) Fail(id int64, err error) bool {
	p := r.detach(id)
	if p == nil {
		return false
	}
	p.resolve(func() { p.err = err })

	return true
}

// Remove detaches the entry for id without firing its signal. Used by
// the timeout path, where the caller has already given up; a later
// terminal event for the id becomes a no-op.
func (r *Registry) Remove(id int64) bool {
	return r.detach(id) != nil
}

// BroadcastFatal resolves every currently registered entry with err and
// empties the registry, so no caller deadlocks on a dead session.
// It returns the number of entries resolved.
func (r *Registry) BroadcastFatal(err error) int {
	r.mu.Lock()
	detached := make([]*Pending, 0, len(r.entries))
	for id, p := range r.entries {
		detached = append(detached, p)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, p := range detached {
		p.resolve(func() { p.err = err })
	}

	return len(detached)
}

// Len returns the number of in-flight entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

func (r *Registry) detach(id int64) *Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(r.entries, id)

	return p
}
