// Package memstore keeps tree nodes in memory. Nodes live in two arenas,
// one per node kind, and a handle is an arena index plus one. Destroyed
// nodes go to a free list and are reused by the next create.
package memstore

import (
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/errors"
)

const (
	DefaultMin = 16
	DefaultMax = 64
)

type config struct {
	minLeaf, maxLeaf         int
	minInternal, maxInternal int
	logger                   *zap.Logger
}

type Option func(*config)

// Fanout sets the occupancy bounds of both node kinds.
func Fanout(min, max int) Option {
	return func(c *config) {
		c.minLeaf, c.maxLeaf = min, max
		c.minInternal, c.maxInternal = min, max
	}
}

func LeafFanout(min, max int) Option {
	return func(c *config) {
		c.minLeaf, c.maxLeaf = min, max
	}
}

func InternalFanout(min, max int) Option {
	return func(c *config) {
		c.minInternal, c.maxInternal = min, max
	}
}

func Logger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

type leaf[T any] struct {
	live   bool
	count  int
	values []T
}

type internal[S any] struct {
	live     bool
	count    int
	children []uint64
	augs     []S
}

var _ btree.Store[int, btree.Aug[int, btree.Empty]] = (*Store[int, btree.Aug[int, btree.Empty]])(nil)

type Store[T, S any] struct {
	config
	leaves        []leaf[T]
	internals     []internal[S]
	freeLeaves    []btree.Leaf
	freeInternals []btree.Internal
	root          uint64
	height        int
	size          int
	metadata      []byte
}

func New[T, S any](opts ...Option) (*Store[T, S], error) {
	c := config{
		minLeaf:     DefaultMin,
		maxLeaf:     DefaultMax,
		minInternal: DefaultMin,
		maxInternal: DefaultMax,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := btree.CheckFanout(c.minLeaf, c.maxLeaf); err != nil {
		return nil, err
	}
	if err := btree.CheckFanout(c.minInternal, c.maxInternal); err != nil {
		return nil, err
	}
	return &Store[T, S]{config: c}, nil
}

func (self *Store[T, S]) leaf(n btree.Leaf) (*leaf[T], error) {
	if n == 0 || int(n) > len(self.leaves) || !self.leaves[n-1].live {
		return nil, errors.Invariantf("no live leaf %d", n)
	}
	return &self.leaves[n-1], nil
}

func (self *Store[T, S]) internal(n btree.Internal) (*internal[S], error) {
	if n == 0 || int(n) > len(self.internals) || !self.internals[n-1].live {
		return nil, errors.Invariantf("no live internal node %d", n)
	}
	return &self.internals[n-1], nil
}

func slot(i, max int) error {
	if i < 0 || i >= max {
		return errors.Invariantf("slot %d out of range [0, %d)", i, max)
	}
	return nil
}

func (self *Store[T, S]) CreateLeaf() (btree.Leaf, error) {
	if len(self.freeLeaves) > 0 {
		n := self.freeLeaves[len(self.freeLeaves)-1]
		self.freeLeaves = self.freeLeaves[:len(self.freeLeaves)-1]
		self.leaves[n-1] = leaf[T]{live: true, values: self.leaves[n-1].values}
		return n, nil
	}
	self.leaves = append(self.leaves, leaf[T]{live: true, values: make([]T, self.maxLeaf)})
	return btree.Leaf(len(self.leaves)), nil
}

func (self *Store[T, S]) CreateInternal() (btree.Internal, error) {
	if len(self.freeInternals) > 0 {
		n := self.freeInternals[len(self.freeInternals)-1]
		self.freeInternals = self.freeInternals[:len(self.freeInternals)-1]
		old := self.internals[n-1]
		for i := range old.children {
			old.children[i] = 0
		}
		self.internals[n-1] = internal[S]{live: true, children: old.children, augs: old.augs}
		return n, nil
	}
	self.internals = append(self.internals, internal[S]{
		live:     true,
		children: make([]uint64, self.maxInternal),
		augs:     make([]S, self.maxInternal),
	})
	return btree.Internal(len(self.internals)), nil
}

func (self *Store[T, S]) DestroyLeaf(n btree.Leaf) error {
	l, err := self.leaf(n)
	if err != nil {
		return err
	}
	var zero T
	for i := range l.values {
		l.values[i] = zero
	}
	l.live = false
	l.count = 0
	self.freeLeaves = append(self.freeLeaves, n)
	return nil
}

func (self *Store[T, S]) DestroyInternal(n btree.Internal) error {
	in, err := self.internal(n)
	if err != nil {
		return err
	}
	var zero S
	for i := range in.augs {
		in.augs[i] = zero
	}
	in.live = false
	in.count = 0
	self.freeInternals = append(self.freeInternals, n)
	return nil
}

func (self *Store[T, S]) LeafCount(n btree.Leaf) (int, error) {
	l, err := self.leaf(n)
	if err != nil {
		return 0, err
	}
	return l.count, nil
}

func (self *Store[T, S]) InternalCount(n btree.Internal) (int, error) {
	in, err := self.internal(n)
	if err != nil {
		return 0, err
	}
	return in.count, nil
}

func (self *Store[T, S]) SetLeafCount(n btree.Leaf, count int) error {
	l, err := self.leaf(n)
	if err != nil {
		return err
	}
	if count < 0 || count > self.maxLeaf {
		return errors.Invariantf("leaf count %d out of range [0, %d]", count, self.maxLeaf)
	}
	l.count = count
	return nil
}

func (self *Store[T, S]) SetInternalCount(n btree.Internal, count int) error {
	in, err := self.internal(n)
	if err != nil {
		return err
	}
	if count < 0 || count > self.maxInternal {
		return errors.Invariantf("internal count %d out of range [0, %d]", count, self.maxInternal)
	}
	in.count = count
	return nil
}

func (self *Store[T, S]) Value(n btree.Leaf, i int) (v T, err error) {
	l, err := self.leaf(n)
	if err != nil {
		return v, err
	}
	if err := slot(i, l.count); err != nil {
		return v, err
	}
	return l.values[i], nil
}

func (self *Store[T, S]) SetValue(n btree.Leaf, i int, v T) error {
	l, err := self.leaf(n)
	if err != nil {
		return err
	}
	if err := slot(i, self.maxLeaf); err != nil {
		return err
	}
	l.values[i] = v
	return nil
}

func (self *Store[T, S]) setChild(n btree.Internal, i int, c uint64) error {
	in, err := self.internal(n)
	if err != nil {
		return err
	}
	if err := slot(i, self.maxInternal); err != nil {
		return err
	}
	in.children[i] = c
	return nil
}

func (self *Store[T, S]) SetChildLeaf(n btree.Internal, i int, c btree.Leaf) error {
	return self.setChild(n, i, uint64(c))
}

func (self *Store[T, S]) SetChildInternal(n btree.Internal, i int, c btree.Internal) error {
	return self.setChild(n, i, uint64(c))
}

func (self *Store[T, S]) MoveLeaf(src btree.Leaf, si int, dst btree.Leaf, di int) error {
	s, err := self.leaf(src)
	if err != nil {
		return err
	}
	d, err := self.leaf(dst)
	if err != nil {
		return err
	}
	if err := slot(si, self.maxLeaf); err != nil {
		return err
	}
	if err := slot(di, self.maxLeaf); err != nil {
		return err
	}
	d.values[di] = s.values[si]
	return nil
}

func (self *Store[T, S]) MoveInternal(src btree.Internal, si int, dst btree.Internal, di int) error {
	s, err := self.internal(src)
	if err != nil {
		return err
	}
	d, err := self.internal(dst)
	if err != nil {
		return err
	}
	if err := slot(si, self.maxInternal); err != nil {
		return err
	}
	if err := slot(di, self.maxInternal); err != nil {
		return err
	}
	d.children[di] = s.children[si]
	d.augs[di] = s.augs[si]
	return nil
}

func (self *Store[T, S]) child(n btree.Internal, i int) (uint64, error) {
	in, err := self.internal(n)
	if err != nil {
		return 0, err
	}
	if err := slot(i, in.count); err != nil {
		return 0, err
	}
	return in.children[i], nil
}

func (self *Store[T, S]) ChildLeaf(n btree.Internal, i int) (btree.Leaf, error) {
	c, err := self.child(n, i)
	return btree.Leaf(c), err
}

func (self *Store[T, S]) ChildInternal(n btree.Internal, i int) (btree.Internal, error) {
	c, err := self.child(n, i)
	return btree.Internal(c), err
}

func (self *Store[T, S]) CountChildLeaf(n btree.Internal, i int) (int, error) {
	c, err := self.ChildLeaf(n, i)
	if err != nil {
		return 0, err
	}
	return self.LeafCount(c)
}

func (self *Store[T, S]) CountChildInternal(n btree.Internal, i int) (int, error) {
	c, err := self.ChildInternal(n, i)
	if err != nil {
		return 0, err
	}
	return self.InternalCount(c)
}

func (self *Store[T, S]) index(c uint64, p btree.Internal) (int, error) {
	in, err := self.internal(p)
	if err != nil {
		return 0, err
	}
	for i := 0; i < in.count; i++ {
		if in.children[i] == c {
			return i, nil
		}
	}
	return 0, errors.Invariantf("node %d not found in parent %d", c, p)
}

func (self *Store[T, S]) IndexLeaf(c btree.Leaf, p btree.Internal) (int, error) {
	return self.index(uint64(c), p)
}

func (self *Store[T, S]) IndexInternal(c btree.Internal, p btree.Internal) (int, error) {
	return self.index(uint64(c), p)
}

func (self *Store[T, S]) setAugment(c uint64, p btree.Internal, s S) error {
	i, err := self.index(c, p)
	if err != nil {
		return err
	}
	self.internals[p-1].augs[i] = s
	return nil
}

func (self *Store[T, S]) SetAugmentLeaf(c btree.Leaf, p btree.Internal, s S) error {
	return self.setAugment(uint64(c), p, s)
}

func (self *Store[T, S]) SetAugmentInternal(c btree.Internal, p btree.Internal, s S) error {
	return self.setAugment(uint64(c), p, s)
}

func (self *Store[T, S]) Augment(p btree.Internal, i int) (s S, err error) {
	in, err := self.internal(p)
	if err != nil {
		return s, err
	}
	if err := slot(i, in.count); err != nil {
		return s, err
	}
	return in.augs[i], nil
}

func (self *Store[T, S]) SetRootLeaf(n btree.Leaf) error {
	self.root = uint64(n)
	return nil
}

func (self *Store[T, S]) SetRootInternal(n btree.Internal) error {
	self.root = uint64(n)
	return nil
}

func (self *Store[T, S]) RootLeaf() btree.Leaf { return btree.Leaf(self.root) }

func (self *Store[T, S]) RootInternal() btree.Internal { return btree.Internal(self.root) }

func (self *Store[T, S]) SetHeight(h int) error {
	self.height = h
	return nil
}

func (self *Store[T, S]) Height() int { return self.height }

func (self *Store[T, S]) SetSize(n int) error {
	self.size = n
	return nil
}

func (self *Store[T, S]) Size() int { return self.size }

func (self *Store[T, S]) Flush() error { return nil }

func (self *Store[T, S]) FinalizeBuild() error {
	self.logger.Debug("memstore built",
		zap.Int("leaves", len(self.leaves)-len(self.freeLeaves)),
		zap.Int("internals", len(self.internals)-len(self.freeInternals)))
	return nil
}

func (self *Store[T, S]) SetMetadata(data []byte) error {
	self.metadata = append([]byte(nil), data...)
	return nil
}

func (self *Store[T, S]) Metadata() ([]byte, error) {
	return append([]byte(nil), self.metadata...), nil
}

func (self *Store[T, S]) MinLeafSize() int     { return self.minLeaf }
func (self *Store[T, S]) MaxLeafSize() int     { return self.maxLeaf }
func (self *Store[T, S]) MinInternalSize() int { return self.minInternal }
func (self *Store[T, S]) MaxInternalSize() int { return self.maxInternal }

// Live is the number of nodes not destroyed, leaves and internal nodes.
func (self *Store[T, S]) Live() (leaves, internals int) {
	return len(self.leaves) - len(self.freeLeaves), len(self.internals) - len(self.freeInternals)
}
