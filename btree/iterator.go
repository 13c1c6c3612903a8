package btree

import (
	"github.com/timtadh/iobtree/errors"
)

// Iterator is a position in a tree: the path of internal nodes from the
// root, a leaf and an index in that leaf. Any Insert or Erase invalidates
// every iterator of the tree.
type Iterator[T, K, A any] struct {
	tree  *Tree[T, K, A]
	path  []Internal
	leaf  Leaf
	index int
}

// Equal is true when both iterators are at the same slot.
func (self *Iterator[T, K, A]) Equal(o *Iterator[T, K, A]) bool {
	return self.leaf == o.leaf && self.index == o.index
}

func (self *Iterator[T, K, A]) Index() int { return self.index }

func (self *Iterator[T, K, A]) Clone() *Iterator[T, K, A] {
	return &Iterator[T, K, A]{
		tree:  self.tree,
		path:  append([]Internal(nil), self.path...),
		leaf:  self.leaf,
		index: self.index,
	}
}

// AtEnd is true when the iterator equals the tree's End.
func (self *Iterator[T, K, A]) AtEnd() (bool, error) {
	if self.tree.store.Height() == 0 {
		return true, nil
	}
	z, err := self.tree.store.LeafCount(self.leaf)
	if err != nil {
		return false, err
	}
	return self.index >= z, nil
}

func (self *Iterator[T, K, A]) Value() (v T, err error) {
	if end, err := self.AtEnd(); err != nil {
		return v, err
	} else if end {
		return v, errors.Misusef("dereference of the end iterator")
	}
	return self.tree.store.Value(self.leaf, self.index)
}

func (self *Iterator[T, K, A]) Key() (k K, err error) {
	v, err := self.Value()
	if err != nil {
		return k, err
	}
	return self.tree.key(v), nil
}

// Node is the leaf the iterator is in, with the path to it, for walking
// up through the augments.
func (self *Iterator[T, K, A]) Node() *Node[T, K, A] {
	return &Node[T, K, A]{
		tree:   self.tree,
		path:   append([]Internal(nil), self.path...),
		leaf:   self.leaf,
		isLeaf: true,
	}
}

func (self *Iterator[T, K, A]) gotoEnd() error {
	store := self.tree.store
	self.path = nil
	h := store.Height()
	if h == 0 {
		self.leaf = 0
		self.index = 0
		return nil
	}
	if h == 1 {
		self.leaf = store.RootLeaf()
		z, err := store.LeafCount(self.leaf)
		if err != nil {
			return err
		}
		self.index = z
		return nil
	}
	n := store.RootInternal()
	for level := 2; ; level++ {
		self.path = append(self.path, n)
		z, err := store.InternalCount(n)
		if err != nil {
			return err
		}
		if level == h {
			l, err := store.ChildLeaf(n, z-1)
			if err != nil {
				return err
			}
			lz, err := store.LeafCount(l)
			if err != nil {
				return err
			}
			self.leaf = l
			self.index = lz
			return nil
		}
		if n, err = store.ChildInternal(n, z-1); err != nil {
			return err
		}
	}
}

// Next steps to the following value, or to End after the last one.
// Stepping past End is an error.
func (self *Iterator[T, K, A]) Next() error {
	store := self.tree.store
	if store.Height() == 0 {
		return errors.Misusef("Next past the end")
	}
	z, err := store.LeafCount(self.leaf)
	if err != nil {
		return err
	}
	if self.index >= z {
		return errors.Misusef("Next past the end")
	}
	if self.index+1 < z || len(self.path) == 0 {
		self.index++
		return nil
	}

	path := append([]Internal(nil), self.path...)
	i, err := store.IndexLeaf(self.leaf, path[len(path)-1])
	if err != nil {
		return err
	}
	x := 0
	for {
		pz, err := store.InternalCount(path[len(path)-1])
		if err != nil {
			return err
		}
		if i+1 != pz {
			break
		}
		n := path[len(path)-1]
		path = path[:len(path)-1]
		if len(path) == 0 {
			return self.gotoEnd()
		}
		if i, err = store.IndexInternal(n, path[len(path)-1]); err != nil {
			return err
		}
		x++
	}
	i++
	for ; x > 0; x-- {
		c, err := store.ChildInternal(path[len(path)-1], i)
		if err != nil {
			return err
		}
		path = append(path, c)
		i = 0
	}
	l, err := store.ChildLeaf(path[len(path)-1], i)
	if err != nil {
		return err
	}
	self.path = path
	self.leaf = l
	self.index = 0
	return nil
}

// Prev steps to the preceding value. Stepping back from Begin is an error.
func (self *Iterator[T, K, A]) Prev() error {
	store := self.tree.store
	if store.Height() == 0 {
		return errors.Misusef("Prev before the beginning")
	}
	if self.index > 0 {
		self.index--
		return nil
	}
	if len(self.path) == 0 {
		return errors.Misusef("Prev before the beginning")
	}

	path := append([]Internal(nil), self.path...)
	i, err := store.IndexLeaf(self.leaf, path[len(path)-1])
	if err != nil {
		return err
	}
	x := 0
	for i == 0 {
		if len(path) == 1 {
			return errors.Misusef("Prev before the beginning")
		}
		n := path[len(path)-1]
		path = path[:len(path)-1]
		if i, err = store.IndexInternal(n, path[len(path)-1]); err != nil {
			return err
		}
		x++
	}
	i--
	for ; x > 0; x-- {
		c, err := store.ChildInternal(path[len(path)-1], i)
		if err != nil {
			return err
		}
		path = append(path, c)
		z, err := store.InternalCount(c)
		if err != nil {
			return err
		}
		i = z - 1
	}
	l, err := store.ChildLeaf(path[len(path)-1], i)
	if err != nil {
		return err
	}
	z, err := store.LeafCount(l)
	if err != nil {
		return err
	}
	self.path = path
	self.leaf = l
	self.index = z - 1
	return nil
}
