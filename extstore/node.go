package extstore

import (
	"encoding/binary"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/codec"
	"github.com/timtadh/iobtree/consts"
	"github.com/timtadh/iobtree/errors"
)

type block []byte

func (b block) flag() consts.Flag { return consts.AsFlag(b) }

func (b block) count() int {
	return int(binary.LittleEndian.Uint32(b[4:8]))
}

func (b block) setCount(n int) {
	binary.LittleEndian.PutUint32(b[4:8], uint32(n))
}

// do pins the block at pos for the duration of f. The block is written
// back later when dirty.
func (self *Store[T, S]) do(pos uint64, flag consts.Flag, dirty bool, f func(b block) error) error {
	if self.closed {
		return errors.Misusef("store is closed")
	}
	if pos == 0 {
		return errors.Invariantf("block 0 is not a node")
	}
	bytes, err := self.f.Acquire(int64(pos))
	if err != nil {
		return err
	}
	b := block(bytes)
	if b.flag() != flag {
		err = errors.Invariantf("block %d has flag %d, expected %d", pos, b.flag(), flag)
	} else {
		err = f(b)
	}
	if rerr := self.f.Release(int64(pos), dirty && err == nil); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (self *Store[T, S]) leafSlotAt(b block, i int) []byte {
	off := header + i*self.leafSlot
	return b[off : off+self.leafSlot]
}

func (self *Store[T, S]) internalSlotAt(b block, i int) []byte {
	off := header + i*self.internalSlot
	return b[off : off+self.internalSlot]
}

func slot(i, max int) error {
	if i < 0 || i >= max {
		return errors.Invariantf("slot %d out of range [0, %d)", i, max)
	}
	return nil
}

func (self *Store[T, S]) create(flag consts.Flag) (uint64, error) {
	if self.closed {
		return 0, errors.Misusef("store is closed")
	}
	pos, err := self.f.Allocate()
	if err != nil {
		return 0, err
	}
	bytes, err := self.f.Acquire(pos)
	if err != nil {
		return 0, err
	}
	for i := range bytes {
		bytes[i] = 0
	}
	bytes[0] = byte(flag)
	return uint64(pos), self.f.Release(pos, true)
}

func (self *Store[T, S]) destroy(pos uint64, flag consts.Flag) error {
	err := self.do(pos, flag, false, func(block) error { return nil })
	if err != nil {
		return err
	}
	return self.f.Free(int64(pos))
}

func (self *Store[T, S]) CreateLeaf() (btree.Leaf, error) {
	pos, err := self.create(consts.LEAF)
	return btree.Leaf(pos), err
}

func (self *Store[T, S]) CreateInternal() (btree.Internal, error) {
	pos, err := self.create(consts.INTERNAL)
	return btree.Internal(pos), err
}

func (self *Store[T, S]) DestroyLeaf(n btree.Leaf) error {
	return self.destroy(uint64(n), consts.LEAF)
}

func (self *Store[T, S]) DestroyInternal(n btree.Internal) error {
	return self.destroy(uint64(n), consts.INTERNAL)
}

func (self *Store[T, S]) count(pos uint64, flag consts.Flag) (n int, err error) {
	err = self.do(pos, flag, false, func(b block) error {
		n = b.count()
		return nil
	})
	return n, err
}

func (self *Store[T, S]) setCount(pos uint64, flag consts.Flag, n, max int) error {
	if n < 0 || n > max {
		return errors.Invariantf("count %d out of range [0, %d]", n, max)
	}
	return self.do(pos, flag, true, func(b block) error {
		b.setCount(n)
		return nil
	})
}

func (self *Store[T, S]) LeafCount(n btree.Leaf) (int, error) {
	return self.count(uint64(n), consts.LEAF)
}

func (self *Store[T, S]) InternalCount(n btree.Internal) (int, error) {
	return self.count(uint64(n), consts.INTERNAL)
}

func (self *Store[T, S]) SetLeafCount(n btree.Leaf, count int) error {
	return self.setCount(uint64(n), consts.LEAF, count, self.maxLeaf)
}

func (self *Store[T, S]) SetInternalCount(n btree.Internal, count int) error {
	return self.setCount(uint64(n), consts.INTERNAL, count, self.maxInternal)
}

func (self *Store[T, S]) Value(n btree.Leaf, i int) (v T, err error) {
	err = self.do(uint64(n), consts.LEAF, false, func(b block) error {
		if err := slot(i, b.count()); err != nil {
			return err
		}
		v, _, err = self.values.Decode(self.leafSlotAt(b, i))
		return err
	})
	return v, err
}

func (self *Store[T, S]) SetValue(n btree.Leaf, i int, v T) error {
	if err := slot(i, self.maxLeaf); err != nil {
		return err
	}
	return self.do(uint64(n), consts.LEAF, true, func(b block) error {
		return codec.Put(self.values, self.leafSlotAt(b, i), v)
	})
}

func (self *Store[T, S]) setChild(n btree.Internal, i int, c uint64) error {
	if err := slot(i, self.maxInternal); err != nil {
		return err
	}
	return self.do(uint64(n), consts.INTERNAL, true, func(b block) error {
		binary.LittleEndian.PutUint64(self.internalSlotAt(b, i), c)
		return nil
	})
}

func (self *Store[T, S]) SetChildLeaf(n btree.Internal, i int, c btree.Leaf) error {
	return self.setChild(n, i, uint64(c))
}

func (self *Store[T, S]) SetChildInternal(n btree.Internal, i int, c btree.Internal) error {
	return self.setChild(n, i, uint64(c))
}

// move copies one slot. Source and destination may be the same block.
func (self *Store[T, S]) move(src uint64, si int, dst uint64, di int, flag consts.Flag, max int, at func(block, int) []byte) error {
	if err := slot(si, max); err != nil {
		return err
	}
	if err := slot(di, max); err != nil {
		return err
	}
	if src == dst {
		return self.do(src, flag, true, func(b block) error {
			copy(at(b, di), at(b, si))
			return nil
		})
	}
	return self.do(src, flag, false, func(s block) error {
		return self.do(dst, flag, true, func(d block) error {
			copy(at(d, di), at(s, si))
			return nil
		})
	})
}

func (self *Store[T, S]) MoveLeaf(src btree.Leaf, si int, dst btree.Leaf, di int) error {
	return self.move(uint64(src), si, uint64(dst), di, consts.LEAF, self.maxLeaf, self.leafSlotAt)
}

func (self *Store[T, S]) MoveInternal(src btree.Internal, si int, dst btree.Internal, di int) error {
	return self.move(uint64(src), si, uint64(dst), di, consts.INTERNAL, self.maxInternal, self.internalSlotAt)
}

func (self *Store[T, S]) child(n btree.Internal, i int) (c uint64, err error) {
	err = self.do(uint64(n), consts.INTERNAL, false, func(b block) error {
		if err := slot(i, b.count()); err != nil {
			return err
		}
		c = binary.LittleEndian.Uint64(self.internalSlotAt(b, i))
		return nil
	})
	return c, err
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

func (self *Store[T, S]) index(b block, c uint64) (int, bool) {
	for i := 0; i < b.count(); i++ {
		if binary.LittleEndian.Uint64(self.internalSlotAt(b, i)) == c {
			return i, true
		}
	}
	return 0, false
}

func (self *Store[T, S]) indexOf(c uint64, p btree.Internal) (i int, err error) {
	err = self.do(uint64(p), consts.INTERNAL, false, func(b block) error {
		var has bool
		if i, has = self.index(b, c); !has {
			return errors.Invariantf("block %d not found in parent %d", c, p)
		}
		return nil
	})
	return i, err
}

func (self *Store[T, S]) IndexLeaf(c btree.Leaf, p btree.Internal) (int, error) {
	return self.indexOf(uint64(c), p)
}

func (self *Store[T, S]) IndexInternal(c btree.Internal, p btree.Internal) (int, error) {
	return self.indexOf(uint64(c), p)
}

func (self *Store[T, S]) setAugment(c uint64, p btree.Internal, s S) error {
	return self.do(uint64(p), consts.INTERNAL, true, func(b block) error {
		i, has := self.index(b, c)
		if !has {
			return errors.Invariantf("block %d not found in parent %d", c, p)
		}
		return codec.Put(self.augs, self.internalSlotAt(b, i)[8:], s)
	})
}

func (self *Store[T, S]) SetAugmentLeaf(c btree.Leaf, p btree.Internal, s S) error {
	return self.setAugment(uint64(c), p, s)
}

func (self *Store[T, S]) SetAugmentInternal(c btree.Internal, p btree.Internal, s S) error {
	return self.setAugment(uint64(c), p, s)
}

func (self *Store[T, S]) Augment(p btree.Internal, i int) (s S, err error) {
	err = self.do(uint64(p), consts.INTERNAL, false, func(b block) error {
		if err := slot(i, b.count()); err != nil {
			return err
		}
		s, _, err = self.augs.Decode(self.internalSlotAt(b, i)[8:])
		return err
	})
	return s, err
}
