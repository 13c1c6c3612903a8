package btree

import (
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/errors"
)

type summary[K, A any, N node] struct {
	node N
	aug  Aug[K, A]
}

// Builder makes a tree bottom up from values pushed in key order. Nodes
// are written once and never rebalanced: leaves get the midpoint between
// minimum and maximum occupancy, or are filled completely when the store
// is static or the builder is packed.
//
// The order of pushed values is not checked.
type Builder[T, K, A any] struct {
	tree   *Tree[T, K, A]
	items  []T
	leaves []summary[K, A, Leaf]
	levels [][]summary[K, A, Internal]
	built  bool

	desiredLeaf, leafTip         int
	desiredInternal, internalTip int
}

// NewBuilder needs an empty store. packed fills every node to its maximum
// instead of the midpoint.
func NewBuilder[T, K, A any](store Store[T, Aug[K, A]], cfg Config[T, K, A], packed bool) (*Builder[T, K, A], error) {
	tree, err := New(store, cfg)
	if err != nil {
		return nil, err
	}
	if store.Height() != 0 || store.Size() != 0 {
		return nil, errors.Misusef("a builder needs an empty store, this one has %d values", store.Size())
	}
	packed = packed || isStatic(store)
	b := &Builder[T, K, A]{tree: tree}
	if packed {
		b.desiredLeaf = store.MaxLeafSize()
		b.desiredInternal = store.MaxInternalSize()
	} else {
		b.desiredLeaf = (store.MinLeafSize() + store.MaxLeafSize()) / 2
		b.desiredInternal = (store.MinInternalSize() + store.MaxInternalSize()) / 2
	}
	b.leafTip = b.desiredLeaf + store.MinLeafSize()
	b.internalTip = b.desiredInternal + store.MinInternalSize()
	tree.logger.Debug("builder",
		zap.Int("desired_leaf", b.desiredLeaf),
		zap.Int("desired_internal", b.desiredInternal),
		zap.Bool("packed", packed))
	return b, nil
}

// Push adds the next value. Values must arrive in key order.
func (self *Builder[T, K, A]) Push(v T) error {
	if self.built {
		return errors.Misusef("Push after Build")
	}
	store := self.tree.store
	self.items = append(self.items, v)
	if err := store.SetSize(store.Size() + 1); err != nil {
		return err
	}
	if len(self.items) < self.leafTip {
		return nil
	}
	return self.extract()
}

func (self *Builder[T, K, A]) extract() error {
	if err := self.constructLeaf(self.desiredLeaf); err != nil {
		return err
	}
	if len(self.leaves) < self.internalTip {
		return nil
	}
	if err := self.fromLeaves(self.desiredInternal); err != nil {
		return err
	}
	for i := 0; i < len(self.levels); i++ {
		if len(self.levels[i]) < self.internalTip {
			return nil
		}
		if err := self.fromLevel(self.desiredInternal, i); err != nil {
			return err
		}
	}
	return nil
}

func (self *Builder[T, K, A]) constructLeaf(size int) error {
	store := self.tree.store
	l, err := store.CreateLeaf()
	if err != nil {
		return err
	}
	if err := store.SetLeafCount(l, size); err != nil {
		return err
	}
	for i := 0; i < size; i++ {
		if err := store.SetValue(l, i, self.items[i]); err != nil {
			return err
		}
	}
	self.items = self.items[:copy(self.items, self.items[size:])]
	aug, err := self.tree.leafAug(l)
	if err != nil {
		return err
	}
	if err := store.Flush(); err != nil {
		return err
	}
	self.leaves = append(self.leaves, summary[K, A, Leaf]{node: l, aug: aug})
	return nil
}

// construct takes size nodes from the front of children and makes an
// internal node over them.
func construct[T, K, A any, C node](
	self *Builder[T, K, A],
	children *[]summary[K, A, C],
	size int,
	setChild func(Internal, int, C) error,
	setAug func(C, Internal, Aug[K, A]) error,
) (s summary[K, A, Internal], err error) {
	store := self.tree.store
	n, err := store.CreateInternal()
	if err != nil {
		return s, err
	}
	if err := store.SetInternalCount(n, size); err != nil {
		return s, err
	}
	kids := *children
	for i := 0; i < size; i++ {
		if err := setChild(n, i, kids[i].node); err != nil {
			return s, err
		}
		if err := setAug(kids[i].node, n, kids[i].aug); err != nil {
			return s, err
		}
	}
	*children = kids[:copy(kids, kids[size:])]
	aug, err := self.tree.internalAug(n)
	if err != nil {
		return s, err
	}
	if err := store.Flush(); err != nil {
		return s, err
	}
	return summary[K, A, Internal]{node: n, aug: aug}, nil
}

func (self *Builder[T, K, A]) push(level int, s summary[K, A, Internal]) {
	for len(self.levels) < level+1 {
		self.levels = append(self.levels, nil)
	}
	self.levels[level] = append(self.levels[level], s)
}

func (self *Builder[T, K, A]) fromLeaves(size int) error {
	store := self.tree.store
	s, err := construct(self, &self.leaves, size, store.SetChildLeaf, store.SetAugmentLeaf)
	if err != nil {
		return err
	}
	self.push(0, s)
	return nil
}

func (self *Builder[T, K, A]) fromLevel(size, level int) error {
	store := self.tree.store
	s, err := construct(self, &self.levels[level], size, store.SetChildInternal, store.SetAugmentInternal)
	if err != nil {
		return err
	}
	self.push(level+1, s)
	return nil
}

// Build emits the partial nodes still buffered, sets the root and height,
// writes metadata when there is any and finalizes the store. The Builder
// cannot be used afterwards.
func (self *Builder[T, K, A]) Build(metadata []byte) (*Tree[T, K, A], error) {
	if self.built {
		return nil, errors.Misusef("Build called twice")
	}
	self.built = true
	store := self.tree.store
	maxLeaf := store.MaxLeafSize()
	maxInternal := store.MaxInternalSize()

	if len(self.items) > 0 {
		if len(self.items) > maxLeaf {
			if err := self.constructLeaf(len(self.items) / 2); err != nil {
				return nil, err
			}
		}
		if err := self.constructLeaf(len(self.items)); err != nil {
			return nil, err
		}
	}

	if (len(self.levels) == 0 && len(self.leaves) > 1) || (len(self.levels) > 0 && len(self.leaves) > 0) {
		if len(self.leaves) > 2*maxInternal {
			if err := self.fromLeaves(len(self.leaves) / 3); err != nil {
				return nil, err
			}
		}
		if len(self.leaves) > maxInternal {
			if err := self.fromLeaves(len(self.leaves) / 2); err != nil {
				return nil, err
			}
		}
		if err := self.fromLeaves(len(self.leaves)); err != nil {
			return nil, err
		}
	}

	for i := 0; i < len(self.levels); i++ {
		top := len(self.levels) == i+1
		if (top && len(self.levels[i]) > 1) || (!top && len(self.levels[i]) > 0) {
			if len(self.levels[i]) > 2*maxInternal {
				if err := self.fromLevel(len(self.levels[i])/3, i); err != nil {
					return nil, err
				}
			}
			if len(self.levels[i]) > maxInternal {
				if err := self.fromLevel(len(self.levels[i])/2, i); err != nil {
					return nil, err
				}
			}
			if err := self.fromLevel(len(self.levels[i]), i); err != nil {
				return nil, err
			}
		}
	}

	if len(self.levels) == 0 && len(self.leaves) == 0 {
		if err := store.SetHeight(0); err != nil {
			return nil, err
		}
	} else {
		if err := store.SetHeight(len(self.levels) + 1); err != nil {
			return nil, err
		}
		if len(self.leaves) == 1 {
			if err := store.SetRootLeaf(self.leaves[0].node); err != nil {
				return nil, err
			}
		} else {
			top := self.levels[len(self.levels)-1]
			if len(top) != 1 || len(self.leaves) != 0 {
				return nil, errors.Invariantf("build left %d roots and %d loose leaves", len(top), len(self.leaves))
			}
			if err := store.SetRootInternal(top[0].node); err != nil {
				return nil, err
			}
		}
	}
	if len(metadata) > 0 {
		if err := store.Flush(); err != nil {
			return nil, err
		}
		if err := store.SetMetadata(metadata); err != nil {
			return nil, err
		}
	}
	if err := store.FinalizeBuild(); err != nil {
		return nil, err
	}
	self.tree.logger.Info("built tree",
		zap.Int("size", store.Size()),
		zap.Int("height", store.Height()))
	return self.tree, nil
}
