// Package ring provides a fixed-capacity circular buffer that never
// blocks a writer: pushing into a full buffer silently overwrites the
// oldest element. The backing storage is allocated once at construction
// and never grows.
//
// A Buffer is not safe for concurrent use; callers sharing one across
// goroutines must serialize access themselves. Fill exists for exactly
// that situation: it moves at most the spare capacity of a caller-owned
// slice, so a lock around it is held for a bounded, caller-chosen time.
package ring

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCapacity is returned by New for capacities < 1.
var ErrInvalidCapacity = errors.New("ring: capacity must be positive")

// Buffer is a fixed-capacity FIFO of T with overwrite-oldest semantics.
// Reads are destructive: Next and Fill remove the elements they return.
type Buffer[T any] struct {
	slots []T
	r     int // index of the oldest element, meaningful while count > 0
	w     int // index the next Push writes to
	count int
}

// New returns an empty Buffer holding at most capacity elements.
// The backing storage is allocated here and never again.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Buffer[T]{slots: make([]T, capacity)}, nil
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.slots)
}

// Len returns the number of elements currently held.
func (b *Buffer[T]) Len() int {
	return b.count
}

// IsEmpty reports whether the buffer holds no elements.
func (b *Buffer[T]) IsEmpty() bool {
	return b.count == 0
}

// IsFull reports whether the next Push will overwrite the oldest element.
func (b *Buffer[T]) IsFull() bool {
	return b.count == len(b.slots)
}

// Push stores v as the newest element. If the buffer is full the oldest
// element is discarded to make room. Push never blocks, never fails and
// never allocates. It returns the number of free slots remaining after
// the push, 0 when the buffer is full.
func (b *Buffer[T]) Push(v T) int {
	b.slots[b.w] = v
	b.w = (b.w + 1) % len(b.slots)
	if b.count == len(b.slots) {
		// Full: the slot just written held the oldest element,
		// so the read cursor moves with the write cursor.
		b.r = b.w
	} else {
		b.count++
	}
	return len(b.slots) - b.count
}

// Next removes and returns the oldest element. The second return value
// is false when the buffer is empty. Repeated calls drain the buffer
// oldest-to-newest; elements pushed between calls are seen by later
// calls, since Next reads live state rather than a snapshot.
func (b *Buffer[T]) Next() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	v := b.slots[b.r]
	b.slots[b.r] = zero // the caller owns v now
	b.r = (b.r + 1) % len(b.slots)
	b.count--
	return v, true
}

// Fill moves the oldest elements into dst, appending in order, using
// only dst's existing spare capacity: it transfers
// min(cap(*dst)-len(*dst), Len()) elements and never reallocates dst's
// backing array. A full dst or an empty buffer is not an error, just a
// zero transfer. Returns the number of elements moved.
func (b *Buffer[T]) Fill(dst *[]T) int {
	moved := 0
	for cap(*dst)-len(*dst) > 0 {
		v, ok := b.Next()
		if !ok {
			break
		}
		*dst = append(*dst, v)
		moved++
	}
	return moved
}

// String renders the retained elements oldest-to-newest without
// consuming them.
func (b *Buffer[T]) String() string {
	if b.count == 0 {
		return "Buffer(<empty>)"
	}
	var sb strings.Builder
	sb.WriteString("Buffer(")
	for i := 0; i < b.count; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", b.slots[(b.r+i)%len(b.slots)])
	}
	sb.WriteString(")")
	return sb.String()
}
