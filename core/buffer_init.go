package core

// InitRange is a half-open byte range [Start, End) of a buffer or texture
// subresource.
type InitRange struct {
	Start uint64
	End   uint64
}

// BufferInitTracker tracks which byte ranges of a buffer have been written
// by the application. Lazily-allocated buffer memory is uninitialized until
// the first write; the transfer encoder consults this tracker to decide
// whether a copy source range needs a zero-fill pass before the copy runs.
//
// Callers are expected to serialize access externally (Buffer already does
// so via its own mutex); BufferInitTracker itself does no locking.
type BufferInitTracker struct {
	// uninitialized holds sorted, disjoint, non-empty ranges that have not
	// yet been written. A nil/empty slice means the whole buffer is
	// initialized.
	uninitialized []InitRange
}

// NewBufferInitTracker creates a tracker for a buffer of the given size,
// with the entire buffer considered uninitialized.
func NewBufferInitTracker(size uint64) *BufferInitTracker {
	t := &BufferInitTracker{}
	if size > 0 {
		t.uninitialized = []InitRange{{Start: 0, End: size}}
	}
	return t
}

// IsInitialized reports whether every byte in [offset, offset+size) has
// been written. A nil tracker or a zero-length range is always initialized.
func (t *BufferInitTracker) IsInitialized(offset, size uint64) bool {
	if t == nil || size == 0 {
		return true
	}
	end := offset + size
	for _, r := range t.uninitialized {
		if r.Start < end && r.End > offset {
			return false
		}
	}
	return true
}

// MarkInitialized records [offset, offset+size) as written, removing it
// from the tracked uninitialized set. Safe to call on a nil tracker or
// with a zero-length range.
func (t *BufferInitTracker) MarkInitialized(offset, size uint64) {
	if t == nil || size == 0 {
		return
	}
	end := offset + size
	next := t.uninitialized[:0:0]
	for _, r := range t.uninitialized {
		if r.End <= offset || r.Start >= end {
			next = append(next, r)
			continue
		}
		if r.Start < offset {
			next = append(next, InitRange{Start: r.Start, End: offset})
		}
		if r.End > end {
			next = append(next, InitRange{Start: end, End: r.End})
		}
	}
	t.uninitialized = next
}

// UninitializedRanges returns the uninitialized sub-ranges overlapping
// [offset, offset+size), clipped to that window. The transfer encoder uses
// this to emit zero-fill clears before a copy reads from these bytes.
func (t *BufferInitTracker) UninitializedRanges(offset, size uint64) []InitRange {
	if t == nil || size == 0 {
		return nil
	}
	end := offset + size
	var out []InitRange
	for _, r := range t.uninitialized {
		start := r.Start
		if start < offset {
			start = offset
		}
		stop := r.End
		if stop > end {
			stop = end
		}
		if start < stop {
			out = append(out, InitRange{Start: start, End: stop})
		}
	}
	return out
}
