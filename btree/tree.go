package btree

import (
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/errors"
)

type Config[T, K, A any] struct {
	// Key extracts the sort key of a value. Use Identity when the value
	// is its own key.
	Key func(T) K
	// Compare orders keys: negative, zero or positive.
	Compare func(a, b K) int
	// Augment computes a node's augment. nil means every augment is the
	// zero A.
	Augment Augmenter[T, A]
	Logger  *zap.Logger
}

// Tree is an augmented B-tree over a Store. The store holds the whole tree
// state (root, height, size, metadata) so a Tree can be dropped and made
// again over the same store.
type Tree[T, K, A any] struct {
	store     Store[T, Aug[K, A]]
	key       func(T) K
	cmp       func(a, b K) int
	augmenter Augmenter[T, A]
	logger    *zap.Logger
	leaves    *kind[K, Leaf]
	internals *kind[K, Internal]
}

func New[T, K, A any](store Store[T, Aug[K, A]], cfg Config[T, K, A]) (*Tree[T, K, A], error) {
	if store == nil {
		return nil, errors.Misusef("nil store")
	}
	if cfg.Key == nil || cfg.Compare == nil {
		return nil, errors.Misusef("Config needs both Key and Compare")
	}
	if err := CheckFanout(store.MinLeafSize(), store.MaxLeafSize()); err != nil {
		return nil, err
	}
	if err := CheckFanout(store.MinInternalSize(), store.MaxInternalSize()); err != nil {
		return nil, err
	}
	self := &Tree[T, K, A]{
		store:     store,
		key:       cfg.Key,
		cmp:       cfg.Compare,
		augmenter: cfg.Augment,
		logger:    cfg.Logger,
	}
	if self.logger == nil {
		self.logger = zap.NewNop()
	}
	self.leaves = &kind[K, Leaf]{
		name:       "leaf",
		min:        store.MinLeafSize(),
		max:        store.MaxLeafSize(),
		cmp:        cfg.Compare,
		create:     store.CreateLeaf,
		destroy:    store.DestroyLeaf,
		count:      store.LeafCount,
		setCount:   store.SetLeafCount,
		move:       store.MoveLeaf,
		child:      store.ChildLeaf,
		countChild: store.CountChildLeaf,
		index:      store.IndexLeaf,
		setChild:   store.SetChildLeaf,
		keyAt:      self.valueKey,
		augment:    self.augmentLeaf,
	}
	self.internals = &kind[K, Internal]{
		name:       "internal",
		min:        store.MinInternalSize(),
		max:        store.MaxInternalSize(),
		cmp:        cfg.Compare,
		create:     store.CreateInternal,
		destroy:    store.DestroyInternal,
		count:      store.InternalCount,
		setCount:   store.SetInternalCount,
		move:       store.MoveInternal,
		child:      store.ChildInternal,
		countChild: store.CountChildInternal,
		index:      store.IndexInternal,
		setChild:   store.SetChildInternal,
		keyAt:      self.slotKey,
		augment:    self.augmentInternal,
	}
	return self, nil
}

func (self *Tree[T, K, A]) Store() Store[T, Aug[K, A]] { return self.store }

func (self *Tree[T, K, A]) Size() int { return self.store.Size() }

// Height is 0 for the empty tree, 1 when the root is a leaf.
func (self *Tree[T, K, A]) Height() int { return self.store.Height() }

func (self *Tree[T, K, A]) Empty() bool { return self.store.Size() == 0 }

func (self *Tree[T, K, A]) Flush() error { return self.store.Flush() }

func (self *Tree[T, K, A]) SetMetadata(data []byte) error {
	return self.store.SetMetadata(data)
}

func (self *Tree[T, K, A]) Metadata() ([]byte, error) {
	return self.store.Metadata()
}

// Root is a Node positioned at the root. The tree must not be empty.
func (self *Tree[T, K, A]) Root() (*Node[T, K, A], error) {
	switch h := self.store.Height(); {
	case h == 0:
		return nil, errors.Misusef("the empty tree has no root")
	case h == 1:
		return &Node[T, K, A]{tree: self, leaf: self.store.RootLeaf(), isLeaf: true}, nil
	default:
		return &Node[T, K, A]{tree: self, path: []Internal{self.store.RootInternal()}}, nil
	}
}

// Compare exposes the tree's key order.
func (self *Tree[T, K, A]) Compare(a, b K) int { return self.cmp(a, b) }

func (self *Tree[T, K, A]) Key(v T) K { return self.key(v) }

func (self *Tree[T, K, A]) valueKey(n Leaf, i int) (K, error) {
	v, err := self.store.Value(n, i)
	if err != nil {
		var k K
		return k, err
	}
	return self.key(v), nil
}

func (self *Tree[T, K, A]) slotKey(n Internal, i int) (K, error) {
	a, err := self.store.Augment(n, i)
	if err != nil {
		var k K
		return k, err
	}
	return a.Key, nil
}
