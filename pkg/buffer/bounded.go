package buffer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFull is returned when a write would exceed the buffer capacity.
	ErrFull = errors.New("buffer: capacity exceeded")
	// ErrInvalidCapacity is returned by NewBounded for capacities below 1.
	ErrInvalidCapacity = errors.New("buffer: capacity must be at least 1")
)

// rebalanceSlack is how many levels a rope may grow beyond a balanced tree of
// the same length. Byte-at-a-time appends grow the right spine.
const rebalanceSlack = 4

// Bounded is a mutable text buffer that never holds more than its capacity.
// It is not safe for concurrent use.
type Bounded struct {
	rope     *Rope
	capacity int
}

var _ Text = (*Bounded)(nil)

// NewBounded returns an empty buffer holding at most capacity bytes.
func NewBounded(capacity int) (*Bounded, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Bounded{capacity: capacity}, nil
}

func (b *Bounded) Len() int { return b.rope.Length() }

func (b *Bounded) Cap() int { return b.capacity }

// Full reports whether another byte would exceed the capacity.
func (b *Bounded) Full() bool { return b.Len() >= b.capacity }

func (b *Bounded) String() string { return b.rope.String() }

// Append adds c to the end. A full buffer is left unchanged and ErrFull returned.
func (b *Bounded) Append(c byte) error {
	if b.Full() {
		return ErrFull
	}
	b.rope = b.rope.Append(string([]byte{c}))
	if b.rope.Depth() > balancedDepth(b.rope.Length())+rebalanceSlack {
		b.rope = b.rope.Rebalance()
	}
	return nil
}

// balancedDepth is the depth NewRope produces for n bytes.
func balancedDepth(n int) int {
	d := 1
	for leaves := maxLeafLength; leaves < n; leaves *= 2 {
		d++
	}
	return d
}

// Set replaces the whole content with s.
func (b *Bounded) Set(s string) error {
	if len(s) > b.capacity {
		return fmt.Errorf("%w: %d bytes into capacity %d", ErrFull, len(s), b.capacity)
	}
	if s == "" {
		b.rope = nil
		return nil
	}
	b.rope = NewRope(s)
	return nil
}

// Reset empties the buffer.
func (b *Bounded) Reset() {
	b.rope = nil
}

// Contains reports whether sub occurs as a contiguous, case-sensitive run.
func (b *Bounded) Contains(sub string) bool {
	return b.IndexOf(sub) >= 0
}

// IndexOf returns the position of the first occurrence of sub, or -1.
func (b *Bounded) IndexOf(sub string) int {
	return strings.Index(b.rope.String(), sub)
}

// CharAt returns the byte at position i.
func (b *Bounded) CharAt(i int) (byte, error) {
	return b.rope.Index(i)
}

// Substring returns the bytes in [start, end).
func (b *Bounded) Substring(start, end int) (string, error) {
	return b.rope.Substring(start, end)
}
