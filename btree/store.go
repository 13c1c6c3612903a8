package btree

import (
	"github.com/timtadh/iobtree/errors"
)

// Leaf is a backend handle to a leaf node. Zero is never a valid handle.
type Leaf uint64

// Internal is a backend handle to an internal node. Zero is never a valid
// handle.
type Internal uint64

// Store is the contract every backend implements. T is the value type and
// S the per child slot augment the store persists next to each child
// handle (the tree uses Aug[K, A]).
//
// The tree only talks to nodes through these calls. Move is the one
// primitive used for shifting, splitting, borrowing and merging. A store
// never interprets T or S beyond encoding them.
type Store[T, S any] interface {
	CreateLeaf() (Leaf, error)
	CreateInternal() (Internal, error)
	DestroyLeaf(n Leaf) error
	DestroyInternal(n Internal) error

	LeafCount(n Leaf) (int, error)
	InternalCount(n Internal) (int, error)
	SetLeafCount(n Leaf, count int) error
	SetInternalCount(n Internal, count int) error

	Value(n Leaf, i int) (T, error)
	SetValue(n Leaf, i int, v T) error
	SetChildLeaf(n Internal, i int, c Leaf) error
	SetChildInternal(n Internal, i int, c Internal) error

	MoveLeaf(src Leaf, si int, dst Leaf, di int) error
	MoveInternal(src Internal, si int, dst Internal, di int) error

	ChildLeaf(n Internal, i int) (Leaf, error)
	ChildInternal(n Internal, i int) (Internal, error)
	CountChildLeaf(n Internal, i int) (int, error)
	CountChildInternal(n Internal, i int) (int, error)

	// IndexLeaf and IndexInternal find a child in its parent by linear
	// scan. A missing child is an invariant error.
	IndexLeaf(c Leaf, p Internal) (int, error)
	IndexInternal(c Internal, p Internal) (int, error)

	SetAugmentLeaf(c Leaf, p Internal, s S) error
	SetAugmentInternal(c Internal, p Internal, s S) error
	Augment(p Internal, i int) (S, error)

	SetRootLeaf(n Leaf) error
	SetRootInternal(n Internal) error
	RootLeaf() Leaf
	RootInternal() Internal

	SetHeight(h int) error
	Height() int
	SetSize(n int) error
	Size() int

	Flush() error
	FinalizeBuild() error
	SetMetadata(data []byte) error
	Metadata() ([]byte, error)

	MinLeafSize() int
	MaxLeafSize() int
	MinInternalSize() int
	MaxInternalSize() int
}

// Static is implemented by stores that can only be written once, in
// order. A Builder fills their nodes completely.
type Static interface {
	Static() bool
}

func isStatic(s interface{}) bool {
	st, ok := s.(Static)
	return ok && st.Static()
}

// CheckFanout validates a min/max occupancy pair for a store.
func CheckFanout(min, max int) error {
	if min < 1 {
		return errors.Misusef("minimum fanout must be at least 1, got %d", min)
	}
	if max < 2*min {
		return errors.Misusef("maximum fanout %d must be at least twice the minimum %d", max, min)
	}
	return nil
}
