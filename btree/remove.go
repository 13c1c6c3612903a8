package btree

import (
	"github.com/timtadh/iobtree/errors"
)

// Erase removes the value it is positioned at. it, and every other
// iterator of the tree, is invalid afterwards.
func (self *Tree[T, K, A]) Erase(it *Iterator[T, K, A]) error {
	if it == nil || it.tree != self {
		return errors.Misusef("iterator does not belong to this tree")
	}
	if self.store.Height() == 0 {
		return errors.Misusef("erase from the empty tree")
	}
	path := append([]Internal(nil), it.path...)
	l := it.leaf
	z, err := self.store.LeafCount(l)
	if err != nil {
		return err
	}
	if it.index < 0 || it.index >= z {
		return errors.Misusef("erase at end")
	}

	if err := self.store.SetSize(self.store.Size() - 1); err != nil {
		return err
	}
	z--
	for i := it.index; i != z; i++ {
		if err := self.store.MoveLeaf(l, i+1, l, i); err != nil {
			return err
		}
	}
	if err := self.store.SetLeafCount(l, z); err != nil {
		return err
	}

	if z >= self.leaves.min {
		if len(path) == 0 {
			return nil
		}
		if err := self.augmentLeaf(l, path[len(path)-1]); err != nil {
			return err
		}
		return self.augmentPath(path)
	}

	if len(path) == 0 {
		if z == 0 {
			if err := self.store.DestroyLeaf(l); err != nil {
				return err
			}
			return self.store.SetHeight(0)
		}
		return nil
	}

	ok, err := fixup(self.internals, path[len(path)-1], l, self.leaves)
	if err != nil {
		return err
	}
	if ok {
		return self.augmentPath(path)
	}

	if len(path) == 1 {
		r := path[0]
		rz, err := self.store.InternalCount(r)
		if err != nil {
			return err
		}
		if rz == 1 {
			c, err := self.store.ChildLeaf(r, 0)
			if err != nil {
				return err
			}
			if err := self.collapseRoot(r); err != nil {
				return err
			}
			if err := self.store.SetHeight(1); err != nil {
				return err
			}
			return self.store.SetRootLeaf(c)
		}
		return nil
	}

	for {
		p := path[len(path)-1]
		path = path[:len(path)-1]
		ok, err := fixup(self.internals, path[len(path)-1], p, self.internals)
		if err != nil {
			return err
		}
		if ok {
			return self.augmentPath(path)
		}
		if len(path) == 1 {
			r := path[0]
			rz, err := self.store.InternalCount(r)
			if err != nil {
				return err
			}
			if rz == 1 {
				c, err := self.store.ChildInternal(r, 0)
				if err != nil {
					return err
				}
				if err := self.collapseRoot(r); err != nil {
					return err
				}
				if err := self.store.SetHeight(self.store.Height() - 1); err != nil {
					return err
				}
				return self.store.SetRootInternal(c)
			}
			return nil
		}
	}
}

func (self *Tree[T, K, A]) collapseRoot(r Internal) error {
	if err := self.store.SetInternalCount(r, 0); err != nil {
		return err
	}
	return self.store.DestroyInternal(r)
}

// EraseKey removes every value with key k and returns how many there were.
func (self *Tree[T, K, A]) EraseKey(k K) (int, error) {
	count := 0
	for {
		it, err := self.Find(k)
		if err != nil {
			return count, err
		}
		end, err := it.AtEnd()
		if err != nil {
			return count, err
		} else if end {
			return count, nil
		}
		if err := self.Erase(it); err != nil {
			return count, err
		}
		count++
	}
}
