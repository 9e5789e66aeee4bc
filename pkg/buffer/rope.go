package buffer

import (
	"fmt"
)

// Rope is an immutable binary tree of byte strings. Every operation returns
// a new rope and leaves the receiver untouched. A nil *Rope is the empty rope.
type Rope struct {
	left   *Rope
	right  *Rope
	data   string
	weight int // length of the left subtree (or of data for a leaf)
	length int
}

const (
	maxLeafLength = 8 // maximum length of a leaf node
)

// NewRope creates a new rope from a string
func NewRope(s string) *Rope {
	if len(s) <= maxLeafLength {
		return &Rope{
			data:   s,
			weight: len(s),
			length: len(s),
		}
	}

	mid := len(s) / 2
	return Concat(NewRope(s[:mid]), NewRope(s[mid:]))
}

// Length returns the total length of the rope
func (r *Rope) Length() int {
	if r == nil {
		return 0
	}
	return r.length
}

// Depth returns the height of the tree. A leaf has depth 1.
func (r *Rope) Depth() int {
	if r == nil {
		return 0
	}
	if r.isLeaf() {
		return 1
	}
	return 1 + max(r.left.Depth(), r.right.Depth())
}

// String flattens the rope
func (r *Rope) String() string {
	if r == nil {
		return ""
	}
	if r.isLeaf() {
		return r.data
	}
	return r.left.String() + r.right.String()
}

func (r *Rope) isLeaf() bool {
	return r.left == nil && r.right == nil
}

// Index returns the byte at position i
func (r *Rope) Index(i int) (byte, error) {
	if i < 0 || i >= r.Length() {
		return 0, fmt.Errorf("index %d out of bounds [0, %d)", i, r.Length())
	}

	if r.isLeaf() {
		return r.data[i], nil
	}
	if i < r.weight {
		return r.left.Index(i)
	}
	return r.right.Index(i - r.weight)
}

// Concat joins two ropes under a new parent
func Concat(r1, r2 *Rope) *Rope {
	if r1.Length() == 0 {
		return r2
	}
	if r2.Length() == 0 {
		return r1
	}

	return &Rope{
		left:   r1,
		right:  r2,
		weight: r1.length,
		length: r1.length + r2.length,
	}
}

// Append returns a rope with s added at the end. Short appends are merged into
// the rightmost leaf while it has room, copying only the nodes on that path.
func (r *Rope) Append(s string) *Rope {
	if s == "" {
		return r
	}
	if r.Length() == 0 {
		return NewRope(s)
	}

	if r.isLeaf() {
		if len(r.data)+len(s) <= maxLeafLength {
			return NewRope(r.data + s)
		}
		return Concat(r, NewRope(s))
	}

	return &Rope{
		left:   r.left,
		right:  r.right.Append(s),
		weight: r.weight,
		length: r.length + len(s),
	}
}

// Split splits the rope at index i into [0, i) and [i, len)
func (r *Rope) Split(i int) (*Rope, *Rope, error) {
	length := r.Length()
	if i < 0 || i > length {
		return nil, nil, fmt.Errorf("index %d out of bounds [0, %d]", i, length)
	}

	if i == 0 {
		return nil, r, nil
	}
	if i == length {
		return r, nil, nil
	}

	if r.isLeaf() {
		return NewRope(r.data[:i]), NewRope(r.data[i:]), nil
	}

	switch {
	case i < r.weight:
		left, right, err := r.left.Split(i)
		if err != nil {
			return nil, nil, err
		}
		return left, Concat(right, r.right), nil
	case i > r.weight:
		left, right, err := r.right.Split(i - r.weight)
		if err != nil {
			return nil, nil, err
		}
		return Concat(r.left, left), right, nil
	}

	return r.left, r.right, nil
}

// Substring returns the bytes in [start, end)
func (r *Rope) Substring(start, end int) (string, error) {
	length := r.Length()
	if start < 0 || end > length || start > end {
		return "", fmt.Errorf("invalid range [%d, %d) for length %d", start, end, length)
	}

	if start == end {
		return "", nil
	}

	_, temp, err := r.Split(start)
	if err != nil {
		return "", err
	}

	sub, _, err := temp.Split(end - start)
	if err != nil {
		return "", err
	}

	return sub.String(), nil
}

// Rebalance rebuilds the rope as a balanced tree
func (r *Rope) Rebalance() *Rope {
	if r == nil {
		return nil
	}
	return NewRope(r.String())
}
