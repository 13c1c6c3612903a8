package btree

import (
	"github.com/timtadh/iobtree/errors"
)

// Node navigates a tree from the root down and back up. It is either a
// leaf (values) or an internal node (children with their augments).
// Moving returns a new Node; the receiver is unchanged.
type Node[T, K, A any] struct {
	tree   *Tree[T, K, A]
	path   []Internal
	leaf   Leaf
	isLeaf bool
}

func (self *Node[T, K, A]) IsLeaf() bool { return self.isLeaf }

// HasParent is false at the root.
func (self *Node[T, K, A]) HasParent() bool {
	if self.isLeaf {
		return len(self.path) > 0
	}
	return len(self.path) > 1
}

func (self *Node[T, K, A]) Parent() (*Node[T, K, A], error) {
	if !self.HasParent() {
		return nil, errors.Misusef("the root has no parent")
	}
	if self.isLeaf {
		return &Node[T, K, A]{tree: self.tree, path: self.path}, nil
	}
	return &Node[T, K, A]{tree: self.tree, path: self.path[:len(self.path)-1:len(self.path)-1]}, nil
}

func (self *Node[T, K, A]) Child(i int) (*Node[T, K, A], error) {
	if self.isLeaf {
		return nil, errors.Misusef("a leaf has no children")
	}
	z, err := self.Count()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= z {
		return nil, errors.Misusef("child %d out of range [0, %d)", i, z)
	}
	store := self.tree.store
	n := self.path[len(self.path)-1]
	path := append(make([]Internal, 0, len(self.path)+1), self.path...)
	if len(self.path)+1 == store.Height() {
		l, err := store.ChildLeaf(n, i)
		if err != nil {
			return nil, err
		}
		return &Node[T, K, A]{tree: self.tree, path: path, leaf: l, isLeaf: true}, nil
	}
	c, err := store.ChildInternal(n, i)
	if err != nil {
		return nil, err
	}
	return &Node[T, K, A]{tree: self.tree, path: append(path, c)}, nil
}

// Count is the number of values of a leaf or children of an internal node.
func (self *Node[T, K, A]) Count() (int, error) {
	if self.isLeaf {
		return self.tree.store.LeafCount(self.leaf)
	}
	return self.tree.store.InternalCount(self.path[len(self.path)-1])
}

// Augment is the augment of the i'th child.
func (self *Node[T, K, A]) Augment(i int) (a A, err error) {
	if self.isLeaf {
		return a, errors.Misusef("a leaf has no child augments")
	}
	s, err := self.tree.store.Augment(self.path[len(self.path)-1], i)
	if err != nil {
		return a, err
	}
	return s.Value, nil
}

// MinKey is the key of the i'th value of a leaf, or the minimum key under
// the i'th child of an internal node.
func (self *Node[T, K, A]) MinKey(i int) (K, error) {
	if self.isLeaf {
		return self.tree.valueKey(self.leaf, i)
	}
	return self.tree.slotKey(self.path[len(self.path)-1], i)
}

func (self *Node[T, K, A]) Value(i int) (v T, err error) {
	if !self.isLeaf {
		return v, errors.Misusef("an internal node has no values")
	}
	return self.tree.store.Value(self.leaf, i)
}

// Index is the position of this node in its parent.
func (self *Node[T, K, A]) Index() (int, error) {
	if !self.HasParent() {
		return 0, errors.Misusef("the root has no parent")
	}
	if self.isLeaf {
		return self.tree.store.IndexLeaf(self.leaf, self.path[len(self.path)-1])
	}
	return self.tree.store.IndexInternal(self.path[len(self.path)-1], self.path[len(self.path)-2])
}
