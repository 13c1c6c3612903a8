package btree

import (
	"cmp"
)

import (
	"github.com/timtadh/iobtree/codec"
)

// Aug is what a parent keeps about each child: the minimum key of the
// child's subtree and the child's user augment.
type Aug[K, A any] struct {
	Key   K
	Value A
}

// Empty is the augment of trees that do not need one.
type Empty struct{}

// Augmenter computes the augment of one node from its content.
type Augmenter[T, A any] func(v *View[T, A]) A

// View is a read only snapshot of a node handed to an Augmenter. A leaf
// view has values, an internal view has the augments of its children.
type View[T, A any] struct {
	leaf   bool
	values []T
	augs   []A
}

func (v *View[T, A]) IsLeaf() bool { return v.leaf }

func (v *View[T, A]) Count() int {
	if v.leaf {
		return len(v.values)
	}
	return len(v.augs)
}

// Value is the i'th value of a leaf.
func (v *View[T, A]) Value(i int) T { return v.values[i] }

// Augment is the augment of the i'th child of an internal node.
func (v *View[T, A]) Augment(i int) A { return v.augs[i] }

func Identity[T any](v T) T { return v }

func Ordered[K cmp.Ordered](a, b K) int { return cmp.Compare(a, b) }

// Reverse flips a comparator.
func Reverse[K any](c func(a, b K) int) func(a, b K) int {
	return func(a, b K) int { return c(b, a) }
}

type augCodec[K, A any] struct {
	key codec.Codec[K]
	aug codec.Codec[A]
}

// AugCodec encodes an Aug as the key followed by the augment. It is fixed
// width when both parts are.
func AugCodec[K, A any](key codec.Codec[K], aug codec.Codec[A]) codec.Codec[Aug[K, A]] {
	return &augCodec[K, A]{key: key, aug: aug}
}

func (c *augCodec[K, A]) Size() int {
	ks, as := c.key.Size(), c.aug.Size()
	if ks < 0 || as < 0 {
		return -1
	}
	return ks + as
}

func (c *augCodec[K, A]) Append(dst []byte, a Aug[K, A]) []byte {
	dst = c.key.Append(dst, a.Key)
	return c.aug.Append(dst, a.Value)
}

func (c *augCodec[K, A]) Decode(src []byte) (Aug[K, A], int, error) {
	var a Aug[K, A]
	k, n, err := c.key.Decode(src)
	if err != nil {
		return a, 0, err
	}
	v, m, err := c.aug.Decode(src[n:])
	if err != nil {
		return a, 0, err
	}
	a.Key = k
	a.Value = v
	return a, n + m, nil
}

// EmptyCodec is the codec of the Empty augment.
func EmptyCodec() codec.Codec[Empty] {
	return codec.Empty[Empty]()
}
