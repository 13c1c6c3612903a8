package extstore

import (
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/errors"
)

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

func (self *Store[T, S]) MinLeafSize() int     { return self.minLeaf }
func (self *Store[T, S]) MaxLeafSize() int     { return self.maxLeaf }
func (self *Store[T, S]) MinInternalSize() int { return self.minInternal }
func (self *Store[T, S]) MaxInternalSize() int { return self.maxInternal }

// Flush records the tree state in the control data and writes every dirty
// block back to the file.
func (self *Store[T, S]) Flush() error {
	if self.closed {
		return errors.Misusef("store is closed")
	}
	if err := self.writeCtrl(); err != nil {
		return err
	}
	return self.f.Persist()
}

func (self *Store[T, S]) FinalizeBuild() error {
	if err := self.Flush(); err != nil {
		return err
	}
	self.logger.Info("extstore built",
		zap.String("path", self.bf.Path()),
		zap.Int("size", self.size),
		zap.Int("height", self.height))
	return nil
}

func (self *Store[T, S]) metaBlocks(length int) int {
	return (length + self.blockSize - 1) / self.blockSize
}

// SetMetadata writes data to newly allocated contiguous blocks and then
// frees the blocks of the previous metadata.
func (self *Store[T, S]) SetMetadata(data []byte) error {
	if self.closed {
		return errors.Misusef("store is closed")
	}
	oldOff, oldLen := self.metaOff, self.metaLen
	self.metaOff, self.metaLen = 0, 0
	if len(data) > 0 {
		n := self.metaBlocks(len(data))
		pos, err := self.f.AllocateBlocks(n)
		if err != nil {
			return err
		}
		blocks := make([]byte, n*self.blockSize)
		copy(blocks, data)
		if err := self.f.WriteBlocks(pos, blocks); err != nil {
			return err
		}
		self.metaOff, self.metaLen = pos, len(data)
	}
	if err := self.writeCtrl(); err != nil {
		return err
	}
	for i := 0; i < self.metaBlocks(oldLen); i++ {
		if err := self.f.Free(oldOff + int64(i*self.blockSize)); err != nil {
			return err
		}
	}
	return nil
}

func (self *Store[T, S]) Metadata() ([]byte, error) {
	if self.closed {
		return nil, errors.Misusef("store is closed")
	}
	if self.metaLen == 0 {
		return nil, nil
	}
	blocks, err := self.f.ReadBlocks(self.metaOff, self.metaBlocks(self.metaLen))
	if err != nil {
		return nil, err
	}
	return blocks[:self.metaLen], nil
}
