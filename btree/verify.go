package btree

import (
	"reflect"
)

import (
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/errors"
)

type verifier[T, K, A any] struct {
	tree   *Tree[T, K, A]
	height int
	count  int
	prev   *K
}

// Verify walks the whole tree and checks its structural invariants: key
// order, node occupancy, the child counts and augments stored in parents
// against the children themselves, the recorded size and a uniform height.
// It reports corruption from bugs or from the medium, but cannot detect a
// flipped bit inside a value that leaves the tree well formed.
func (self *Tree[T, K, A]) Verify() error {
	v := &verifier[T, K, A]{tree: self, height: self.store.Height()}
	size := self.store.Size()
	if v.height == 0 {
		if size != 0 {
			return v.fail(zap.Int("size", size))("empty tree with size %d", size)
		}
		return nil
	}
	var err error
	if v.height == 1 {
		_, err = v.leaf(self.store.RootLeaf(), true)
	} else {
		_, err = v.internal(self.store.RootInternal(), 1, true)
	}
	if err != nil {
		return err
	}
	if v.count != size {
		return v.fail(zap.Int("size", size), zap.Int("found", v.count))(
			"tree size %d but %d values reachable", size, v.count)
	}
	return nil
}

func (v *verifier[T, K, A]) fail(fields ...zap.Field) func(format string, args ...interface{}) error {
	return func(format string, args ...interface{}) error {
		err := errors.Invariantf(format, args...)
		v.tree.logger.Error("verify failed", append(fields, zap.Error(err))...)
		return err
	}
}

func occupancy(count, min, max int, root bool, least int) bool {
	if root {
		return count >= least && count <= max
	}
	return count >= min && count <= max
}

func (v *verifier[T, K, A]) leaf(n Leaf, root bool) (a Aug[K, A], err error) {
	t := v.tree
	z, err := t.store.LeafCount(n)
	if err != nil {
		return a, err
	}
	if !occupancy(z, t.leaves.min, t.leaves.max, root, 1) {
		return a, v.fail(zap.Uint64("leaf", uint64(n)), zap.Int("count", z))(
			"leaf %d holds %d values, outside [%d, %d]", n, z, t.leaves.min, t.leaves.max)
	}
	for i := 0; i < z; i++ {
		k, err := t.valueKey(n, i)
		if err != nil {
			return a, err
		}
		if v.prev != nil && t.cmp(*v.prev, k) > 0 {
			return a, v.fail(zap.Uint64("leaf", uint64(n)), zap.Int("index", i))(
				"leaf %d is out of order at %d", n, i)
		}
		v.prev = &k
	}
	v.count += z
	return t.leafAug(n)
}

func (v *verifier[T, K, A]) internal(n Internal, depth int, root bool) (a Aug[K, A], err error) {
	t := v.tree
	z, err := t.store.InternalCount(n)
	if err != nil {
		return a, err
	}
	if !occupancy(z, t.internals.min, t.internals.max, root, 2) {
		return a, v.fail(zap.Uint64("internal", uint64(n)), zap.Int("count", z))(
			"internal node %d holds %d children, outside [%d, %d]", n, z, t.internals.min, t.internals.max)
	}
	for i := 0; i < z; i++ {
		stored, err := t.store.Augment(n, i)
		if err != nil {
			return a, err
		}
		var actual Aug[K, A]
		var count, want, index int
		if depth+1 == v.height {
			c, err := t.store.ChildLeaf(n, i)
			if err != nil {
				return a, err
			}
			if actual, err = v.leaf(c, false); err != nil {
				return a, err
			}
			if count, err = t.store.CountChildLeaf(n, i); err != nil {
				return a, err
			}
			if want, err = t.store.LeafCount(c); err != nil {
				return a, err
			}
			if index, err = t.store.IndexLeaf(c, n); err != nil {
				return a, err
			}
		} else {
			c, err := t.store.ChildInternal(n, i)
			if err != nil {
				return a, err
			}
			if actual, err = v.internal(c, depth+1, false); err != nil {
				return a, err
			}
			if count, err = t.store.CountChildInternal(n, i); err != nil {
				return a, err
			}
			if want, err = t.store.InternalCount(c); err != nil {
				return a, err
			}
			if index, err = t.store.IndexInternal(c, n); err != nil {
				return a, err
			}
		}
		fail := v.fail(zap.Uint64("internal", uint64(n)), zap.Int("child", i))
		if count != want {
			return a, fail("child count of %d/%d is %d, the child holds %d", n, i, count, want)
		}
		if index != i {
			return a, fail("child %d of %d is found at %d", i, n, index)
		}
		if t.cmp(stored.Key, actual.Key) != 0 {
			return a, fail("stale minimum key for child %d of %d", i, n)
		}
		if !reflect.DeepEqual(stored.Value, actual.Value) {
			return a, fail("stale augment for child %d of %d", i, n)
		}
	}
	return t.internalAug(n)
}
