package btree

import (
	"github.com/timtadh/iobtree/errors"
)

// findLeaf descends from the root to the leaf k belongs in, recording the
// internal nodes it passes. It takes the last child whose minimum key is
// <= k, or with strict the last child whose minimum key is < k, so that
// the first of several equal keys is reached.
func (self *Tree[T, K, A]) findLeaf(k K, strict bool) (path []Internal, l Leaf, err error) {
	h := self.store.Height()
	if h == 0 {
		return nil, 0, errors.Invariantf("descent into the empty tree")
	}
	if h == 1 {
		return nil, self.store.RootLeaf(), nil
	}
	n := self.store.RootInternal()
	path = make([]Internal, 0, h-1)
	for level := 2; ; level++ {
		path = append(path, n)
		z, err := self.store.InternalCount(n)
		if err != nil {
			return nil, 0, err
		}
		j := 0
		for ; j+1 < z; j++ {
			next, err := self.slotKey(n, j+1)
			if err != nil {
				return nil, 0, err
			}
			c := self.cmp(k, next)
			if c < 0 || (strict && c == 0) {
				break
			}
		}
		if level == h {
			l, err = self.store.ChildLeaf(n, j)
			return path, l, err
		}
		if n, err = self.store.ChildInternal(n, j); err != nil {
			return nil, 0, err
		}
	}
}

// Begin is positioned at the smallest value.
func (self *Tree[T, K, A]) Begin() (*Iterator[T, K, A], error) {
	it := &Iterator[T, K, A]{tree: self}
	h := self.store.Height()
	if h == 0 {
		return it, nil
	} else if h == 1 {
		it.leaf = self.store.RootLeaf()
		return it, nil
	}
	n := self.store.RootInternal()
	for level := 2; ; level++ {
		it.path = append(it.path, n)
		if level == h {
			l, err := self.store.ChildLeaf(n, 0)
			if err != nil {
				return nil, err
			}
			it.leaf = l
			return it, nil
		}
		c, err := self.store.ChildInternal(n, 0)
		if err != nil {
			return nil, err
		}
		n = c
	}
}

// End is positioned one past the largest value: the last leaf at index
// equal to its count. The End of the empty tree is leaf 0 at index 0.
func (self *Tree[T, K, A]) End() (*Iterator[T, K, A], error) {
	it := &Iterator[T, K, A]{tree: self}
	if err := it.gotoEnd(); err != nil {
		return nil, err
	}
	return it, nil
}

// Find is positioned at the first value whose key equals k, or at End.
func (self *Tree[T, K, A]) Find(k K) (*Iterator[T, K, A], error) {
	it, err := self.LowerBound(k)
	if err != nil {
		return nil, err
	}
	end, err := it.AtEnd()
	if err != nil {
		return nil, err
	} else if end {
		return it, nil
	}
	found, err := it.Key()
	if err != nil {
		return nil, err
	}
	if self.cmp(found, k) != 0 {
		return self.End()
	}
	return it, nil
}

// LowerBound is positioned at the first value whose key is >= k.
func (self *Tree[T, K, A]) LowerBound(k K) (*Iterator[T, K, A], error) {
	return self.bound(k, true, func(c int) bool { return c >= 0 })
}

// UpperBound is positioned at the first value whose key is > k.
func (self *Tree[T, K, A]) UpperBound(k K) (*Iterator[T, K, A], error) {
	return self.bound(k, false, func(c int) bool { return c > 0 })
}

func (self *Tree[T, K, A]) bound(k K, strict bool, accept func(c int) bool) (*Iterator[T, K, A], error) {
	if self.store.Height() == 0 {
		return self.End()
	}
	path, l, err := self.findLeaf(k, strict)
	if err != nil {
		return nil, err
	}
	z, err := self.store.LeafCount(l)
	if err != nil {
		return nil, err
	}
	if z == 0 {
		return nil, errors.Invariantf("empty leaf %d in a non empty tree", l)
	}
	for i := 0; i < z; i++ {
		key, err := self.valueKey(l, i)
		if err != nil {
			return nil, err
		}
		if accept(self.cmp(key, k)) {
			return &Iterator[T, K, A]{tree: self, path: path, leaf: l, index: i}, nil
		}
	}
	// nothing in this leaf qualifies so the answer is the successor of
	// its last value.
	it := &Iterator[T, K, A]{tree: self, path: path, leaf: l, index: z - 1}
	if err := it.Next(); err != nil {
		return nil, err
	}
	return it, nil
}

// Has reports whether some value has key k.
func (self *Tree[T, K, A]) Has(k K) (bool, error) {
	it, err := self.Find(k)
	if err != nil {
		return false, err
	}
	end, err := it.AtEnd()
	return !end, err
}
