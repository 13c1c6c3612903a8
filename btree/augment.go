package btree

import (
	"github.com/timtadh/iobtree/errors"
)

func (self *Tree[T, K, A]) compute(v *View[T, A]) A {
	if self.augmenter == nil {
		var a A
		return a
	}
	return self.augmenter(v)
}

func (self *Tree[T, K, A]) leafValues(n Leaf) ([]T, error) {
	z, err := self.store.LeafCount(n)
	if err != nil {
		return nil, err
	}
	values := make([]T, z)
	for i := range values {
		if values[i], err = self.store.Value(n, i); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (self *Tree[T, K, A]) childAugs(n Internal) ([]Aug[K, A], error) {
	z, err := self.store.InternalCount(n)
	if err != nil {
		return nil, err
	}
	augs := make([]Aug[K, A], z)
	for i := range augs {
		if augs[i], err = self.store.Augment(n, i); err != nil {
			return nil, err
		}
	}
	return augs, nil
}

// leafAug is what a parent stores about the leaf n.
func (self *Tree[T, K, A]) leafAug(n Leaf) (a Aug[K, A], err error) {
	values, err := self.leafValues(n)
	if err != nil {
		return a, err
	}
	if len(values) == 0 {
		return a, errors.Invariantf("augment of empty leaf %d", n)
	}
	a.Key = self.key(values[0])
	a.Value = self.compute(&View[T, A]{leaf: true, values: values})
	return a, nil
}

// internalAug is what a parent stores about the internal node n.
func (self *Tree[T, K, A]) internalAug(n Internal) (a Aug[K, A], err error) {
	augs, err := self.childAugs(n)
	if err != nil {
		return a, err
	}
	if len(augs) == 0 {
		return a, errors.Invariantf("augment of empty internal node %d", n)
	}
	user := make([]A, len(augs))
	for i := range augs {
		user[i] = augs[i].Value
	}
	a.Key = augs[0].Key
	a.Value = self.compute(&View[T, A]{augs: user})
	return a, nil
}

func (self *Tree[T, K, A]) augmentLeaf(c Leaf, p Internal) error {
	a, err := self.leafAug(c)
	if err != nil {
		return err
	}
	return self.store.SetAugmentLeaf(c, p, a)
}

func (self *Tree[T, K, A]) augmentInternal(c Internal, p Internal) error {
	a, err := self.internalAug(c)
	if err != nil {
		return err
	}
	return self.store.SetAugmentInternal(c, p, a)
}

// augmentPath recomputes each node of path in its parent, deepest first.
func (self *Tree[T, K, A]) augmentPath(path []Internal) error {
	for len(path) >= 2 {
		c := path[len(path)-1]
		path = path[:len(path)-1]
		if err := self.augmentInternal(c, path[len(path)-1]); err != nil {
			return err
		}
	}
	return nil
}
