package serstore

import (
	"encoding/binary"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/errors"
)

// first guess at the encoded size of a node of variable width values
const readAhead = 4096

// node is a decoded node, or the one being written. A decoded node is
// shared through the cache and never changed.
type node[T, S any] struct {
	leaf     bool
	count    int
	values   []T
	children []uint64
	augs     []S
}

func (self *Store[T, S]) encode(n *node[T, S], dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(n.count))
	for i := 0; i < n.count; i++ {
		if n.leaf {
			dst = self.values.Append(dst, n.values[i])
		} else {
			dst = binary.LittleEndian.AppendUint64(dst, n.children[i])
			dst = self.augs.Append(dst, n.augs[i])
		}
	}
	return dst
}

func (self *Store[T, S]) decode(src []byte, leaf bool) (*node[T, S], int, error) {
	if len(src) < 8 {
		return nil, 0, errors.Storagef("node header needs 8 bytes, got %d", len(src))
	}
	count := binary.LittleEndian.Uint64(src[0:8])
	if count > uint64(self.max) {
		return nil, 0, errors.Storagef("node of %d slots, the maximum is %d", count, self.max)
	}
	n := &node[T, S]{leaf: leaf, count: int(count)}
	off := 8
	if leaf {
		n.values = make([]T, n.count)
		for i := range n.values {
			v, used, err := self.values.Decode(src[off:])
			if err != nil {
				return nil, 0, err
			}
			n.values[i] = v
			off += used
		}
		return n, off, nil
	}
	n.children = make([]uint64, n.count)
	n.augs = make([]S, n.count)
	for i := range n.children {
		if len(src)-off < 8 {
			return nil, 0, errors.Storagef("child offset needs 8 bytes, got %d", len(src)-off)
		}
		n.children[i] = binary.LittleEndian.Uint64(src[off : off+8])
		off += 8
		a, used, err := self.augs.Decode(src[off:])
		if err != nil {
			return nil, 0, err
		}
		n.augs[i] = a
		off += used
	}
	return n, off, nil
}

// guess is how many bytes to read for a node at first.
func (self *Store[T, S]) guess(leaf bool) int64 {
	slot := self.values.Size()
	if !leaf {
		slot = -1
		if s := self.augs.Size(); s >= 0 {
			slot = 8 + s
		}
	}
	if slot < 0 {
		return readAhead
	}
	return int64(8 + self.max*slot)
}

// load returns the node at off: the current node, a cached node, or one
// read from the file. Nodes of variable width are read with a growing
// buffer until they decode or the buffer reaches the end of the file.
func (self *Store[T, S]) load(off uint64, leaf bool) (*node[T, S], error) {
	if off < HeaderSize {
		return nil, errors.Invariantf("no node at offset %d", off)
	}
	if self.cur != nil && off == self.curOff {
		return self.kind(self.cur, off, leaf)
	}
	if n, has := self.nodes.Get(off); has {
		return self.kind(n, off, leaf)
	}
	avail := self.f.Size() - int64(off)
	if avail <= 0 {
		return nil, errors.Storagef("node offset %d is past the end of %v", off, self.f.Path())
	}
	for want := self.guess(leaf); ; want *= 2 {
		size := want
		if size > avail {
			size = avail
		}
		buf := make([]byte, size)
		if err := self.f.ReadAt(buf, int64(off)); err != nil {
			return nil, err
		}
		n, used, err := self.decode(buf, leaf)
		if err == nil {
			self.nodes.Set(off, n, int64(used))
			return n, nil
		}
		if size == avail {
			return nil, errors.Storage(err, "node at %d", off)
		}
	}
}

func (self *Store[T, S]) kind(n *node[T, S], off uint64, leaf bool) (*node[T, S], error) {
	if n.leaf != leaf {
		return nil, errors.Invariantf("node at %d is not the kind asked for", off)
	}
	return n, nil
}

// current returns the node under construction, which is the only node a
// write may touch.
func (self *Store[T, S]) current(off uint64, leaf bool, op string) (*node[T, S], error) {
	if err := self.mutable(op); err != nil {
		return nil, err
	}
	if self.cur == nil || off != self.curOff {
		return nil, self.misuse(op + " of a node already written")
	}
	return self.kind(self.cur, off, leaf)
}

func slot(i, max int) error {
	if i < 0 || i >= max {
		return errors.Invariantf("slot %d out of range [0, %d)", i, max)
	}
	return nil
}

func (self *Store[T, S]) create(leaf bool) (uint64, error) {
	if err := self.mutable("Create"); err != nil {
		return 0, err
	}
	if err := self.Flush(); err != nil {
		return 0, err
	}
	n := &node[T, S]{leaf: leaf}
	if leaf {
		n.values = make([]T, self.max)
	} else {
		n.children = make([]uint64, self.max)
		n.augs = make([]S, self.max)
	}
	self.cur = n
	self.curOff = uint64(self.f.Size())
	return self.curOff, nil
}

func (self *Store[T, S]) CreateLeaf() (btree.Leaf, error) {
	off, err := self.create(true)
	return btree.Leaf(off), err
}

func (self *Store[T, S]) CreateInternal() (btree.Internal, error) {
	off, err := self.create(false)
	return btree.Internal(off), err
}

func (self *Store[T, S]) DestroyLeaf(n btree.Leaf) error {
	return self.misuse("Destroy")
}

func (self *Store[T, S]) DestroyInternal(n btree.Internal) error {
	return self.misuse("Destroy")
}

func (self *Store[T, S]) LeafCount(n btree.Leaf) (int, error) {
	l, err := self.load(uint64(n), true)
	if err != nil {
		return 0, err
	}
	return l.count, nil
}

func (self *Store[T, S]) InternalCount(n btree.Internal) (int, error) {
	in, err := self.load(uint64(n), false)
	if err != nil {
		return 0, err
	}
	return in.count, nil
}

func (self *Store[T, S]) setCount(off uint64, leaf bool, count int) error {
	n, err := self.current(off, leaf, "SetCount")
	if err != nil {
		return err
	}
	if count < 0 || count > self.max {
		return errors.Invariantf("count %d out of range [0, %d]", count, self.max)
	}
	n.count = count
	return nil
}

func (self *Store[T, S]) SetLeafCount(n btree.Leaf, count int) error {
	return self.setCount(uint64(n), true, count)
}

func (self *Store[T, S]) SetInternalCount(n btree.Internal, count int) error {
	return self.setCount(uint64(n), false, count)
}

func (self *Store[T, S]) Value(n btree.Leaf, i int) (v T, err error) {
	l, err := self.load(uint64(n), true)
	if err != nil {
		return v, err
	}
	if err := slot(i, l.count); err != nil {
		return v, err
	}
	return l.values[i], nil
}

func (self *Store[T, S]) SetValue(n btree.Leaf, i int, v T) error {
	l, err := self.current(uint64(n), true, "SetValue")
	if err != nil {
		return err
	}
	if err := slot(i, self.max); err != nil {
		return err
	}
	l.values[i] = v
	return nil
}

func (self *Store[T, S]) setChild(n btree.Internal, i int, c uint64) error {
	in, err := self.current(uint64(n), false, "SetChild")
	if err != nil {
		return err
	}
	if err := slot(i, self.max); err != nil {
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
	return self.misuse("Move")
}

func (self *Store[T, S]) MoveInternal(src btree.Internal, si int, dst btree.Internal, di int) error {
	return self.misuse("Move")
}

func (self *Store[T, S]) child(n btree.Internal, i int) (uint64, error) {
	in, err := self.load(uint64(n), false)
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

func index[T, S any](in *node[T, S], c uint64) (int, bool) {
	for i := 0; i < in.count; i++ {
		if in.children[i] == c {
			return i, true
		}
	}
	return 0, false
}

func (self *Store[T, S]) indexOf(c uint64, p btree.Internal) (int, error) {
	in, err := self.load(uint64(p), false)
	if err != nil {
		return 0, err
	}
	i, has := index(in, c)
	if !has {
		return 0, errors.Invariantf("node %d not found in parent %d", c, p)
	}
	return i, nil
}

func (self *Store[T, S]) IndexLeaf(c btree.Leaf, p btree.Internal) (int, error) {
	return self.indexOf(uint64(c), p)
}

func (self *Store[T, S]) IndexInternal(c btree.Internal, p btree.Internal) (int, error) {
	return self.indexOf(uint64(c), p)
}

func (self *Store[T, S]) setAugment(c uint64, p btree.Internal, s S) error {
	in, err := self.current(uint64(p), false, "SetAugment")
	if err != nil {
		return err
	}
	i, has := index(in, c)
	if !has {
		return errors.Invariantf("node %d not found in parent %d", c, p)
	}
	in.augs[i] = s
	return nil
}

func (self *Store[T, S]) SetAugmentLeaf(c btree.Leaf, p btree.Internal, s S) error {
	return self.setAugment(uint64(c), p, s)
}

func (self *Store[T, S]) SetAugmentInternal(c btree.Internal, p btree.Internal, s S) error {
	return self.setAugment(uint64(c), p, s)
}

func (self *Store[T, S]) Augment(p btree.Internal, i int) (s S, err error) {
	in, err := self.load(uint64(p), false)
	if err != nil {
		return s, err
	}
	if err := slot(i, in.count); err != nil {
		return s, err
	}
	return in.augs[i], nil
}
