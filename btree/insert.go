package btree

// insertValue puts v into the leaf l, which has room, after any equal keys.
func (self *Tree[T, K, A]) insertValue(l Leaf, v T) error {
	z, err := self.store.LeafCount(l)
	if err != nil {
		return err
	}
	i, err := self.leaves.shiftRight(l, z, self.key(v))
	if err != nil {
		return err
	}
	if err := self.store.SetValue(l, i, v); err != nil {
		return err
	}
	return self.store.SetLeafCount(l, z+1)
}

func (self *Tree[T, K, A]) splitAndInsertValue(l Leaf, v T) (Leaf, error) {
	l2, err := self.leaves.split(l)
	if err != nil {
		return 0, err
	}
	k2, err := self.leaves.minKey(l2)
	if err != nil {
		return 0, err
	}
	if self.cmp(self.key(v), k2) < 0 {
		err = self.insertValue(l, v)
	} else {
		err = self.insertValue(l2, v)
	}
	return l2, err
}

// newRoot makes an internal root over the two halves of the old root.
func newRoot[T, K, A any, C node](self *Tree[T, K, A], n1, n2 C, co *kind[K, C]) error {
	r, err := self.store.CreateInternal()
	if err != nil {
		return err
	}
	if err := self.store.SetInternalCount(r, 2); err != nil {
		return err
	}
	if err := co.setChild(r, 0, n1); err != nil {
		return err
	}
	if err := co.setChild(r, 1, n2); err != nil {
		return err
	}
	if err := self.store.SetRootInternal(r); err != nil {
		return err
	}
	if err := self.store.SetHeight(self.store.Height() + 1); err != nil {
		return err
	}
	if err := co.augment(n1, r); err != nil {
		return err
	}
	return co.augment(n2, r)
}

// Insert adds v. Values with equal keys are kept in insertion order.
func (self *Tree[T, K, A]) Insert(v T) error {
	if err := self.store.SetSize(self.store.Size() + 1); err != nil {
		return err
	}

	if self.store.Height() == 0 {
		l, err := self.store.CreateLeaf()
		if err != nil {
			return err
		}
		if err := self.store.SetLeafCount(l, 1); err != nil {
			return err
		}
		if err := self.store.SetValue(l, 0, v); err != nil {
			return err
		}
		if err := self.store.SetHeight(1); err != nil {
			return err
		}
		return self.store.SetRootLeaf(l)
	}

	path, l, err := self.findLeaf(self.key(v), false)
	if err != nil {
		return err
	}
	z, err := self.store.LeafCount(l)
	if err != nil {
		return err
	}
	if z != self.leaves.max {
		if err := self.insertValue(l, v); err != nil {
			return err
		}
		if len(path) > 0 {
			if err := self.augmentLeaf(l, path[len(path)-1]); err != nil {
				return err
			}
		}
		return self.augmentPath(path)
	}

	l2, err := self.splitAndInsertValue(l, v)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return newRoot(self, l, l2, self.leaves)
	}

	p := path[len(path)-1]
	if err := self.augmentLeaf(l, p); err != nil {
		return err
	}
	pz, err := self.store.InternalCount(p)
	if err != nil {
		return err
	}
	if pz != self.internals.max {
		if err := insertChild(self.internals, p, l, l2, self.leaves); err != nil {
			return err
		}
		return self.augmentPath(path)
	}

	path = path[:len(path)-1]
	n2, err := splitAndInsertChild(self.internals, p, l, l2, self.leaves)
	if err != nil {
		return err
	}
	n1 := p
	for len(path) > 0 {
		p := path[len(path)-1]
		if err := self.augmentInternal(n1, p); err != nil {
			return err
		}
		pz, err := self.store.InternalCount(p)
		if err != nil {
			return err
		}
		if pz != self.internals.max {
			if err := insertChild(self.internals, p, n1, n2, self.internals); err != nil {
				return err
			}
			return self.augmentPath(path)
		}
		path = path[:len(path)-1]
		if n2, err = splitAndInsertChild(self.internals, p, n1, n2, self.internals); err != nil {
			return err
		}
		n1 = p
	}
	return newRoot(self, n1, n2, self.internals)
}
