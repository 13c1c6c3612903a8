// Package extstore keeps tree nodes in the fixed size blocks of a
// file.BlockFile, read and written through a shared file.BlockCache.
//
// Block layout:
//
//	0      node flag, consts.LEAF or consts.INTERNAL
//	4:8    slot count, uint32
//	8:     max slots
//
// A leaf slot is the value codec's bytes. An internal slot is the child's
// block offset as a uint64 followed by the augment codec's bytes. Both
// codecs must be fixed width.
//
// Root, height, size and the location of the metadata live in the block
// file's control data. They are written there by Flush and Close so an
// Open after a Close sees the same tree.
package extstore

import (
	"encoding/binary"
	"os"
)

import (
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/codec"
	"github.com/timtadh/iobtree/consts"
	"github.com/timtadh/iobtree/errors"
	"github.com/timtadh/iobtree/file"
)

const (
	magic   = 0x3ee8e0f6a4b7c215
	version = 0

	header = 8

	DefaultBlockSize = consts.BLOCKSIZE

	// blocks in the private cache of a store opened without Cache
	DefaultCacheBlocks = 256
)

/*
Control data layout, little endian:

	0:8    magic
	8:16   version
	16:24  root
	24:32  height
	32:40  size
	40:48  metadata offset
	48:56  metadata length
	56:60  max leaf size
	60:64  max internal size
	64:68  leaf slot size
	68:72  internal slot size
*/
const ctrlSize = 72

type config struct {
	blockSize uint32
	maxFanout int
	cache     *file.BlockCache
	logger    *zap.Logger
}

type Option func(*config)

// BlockSize of a new file. An existing file keeps the block size it was
// made with.
func BlockSize(size uint32) Option {
	return func(c *config) {
		c.blockSize = size
	}
}

// MaxFanout caps the number of slots per node below what a block holds.
func MaxFanout(max int) Option {
	return func(c *config) {
		c.maxFanout = max
	}
}

// Cache shares a block cache between stores.
func Cache(cache *file.BlockCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

func Logger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

var _ btree.Store[uint64, btree.Aug[uint64, btree.Empty]] = (*Store[uint64, btree.Aug[uint64, btree.Empty]])(nil)

type Store[T, S any] struct {
	bf     *file.BlockFile
	f      *file.CachedFile
	values codec.Codec[T]
	augs   codec.Codec[S]
	logger *zap.Logger

	blockSize    int
	leafSlot     int
	internalSlot int
	minLeaf      int
	maxLeaf      int
	minInternal  int
	maxInternal  int

	root    uint64
	height  int
	size    int
	metaOff int64
	metaLen int
	closed  bool
}

func configure(opts []Option) (config, error) {
	c := config{
		blockSize: DefaultBlockSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.cache == nil {
		cache, err := file.NewBlockCache(DefaultCacheBlocks, file.CacheLogger(c.logger))
		if err != nil {
			return c, err
		}
		c.cache = cache
	}
	return c, nil
}

func slotSizes[T, S any](values codec.Codec[T], augs codec.Codec[S]) (leaf, internal int, err error) {
	if !codec.Fixed(values) {
		return 0, 0, errors.Misusef("the value codec must be fixed width")
	}
	if !codec.Fixed(augs) {
		return 0, 0, errors.Misusef("the augment codec must be fixed width")
	}
	return values.Size(), 8 + augs.Size(), nil
}

// occupancy gives min and max for slots of the given size. A slot of zero
// bytes (an empty value) is capped by limit alone.
func occupancy(blockSize, slot, limit int) (min, max int, err error) {
	max = limit
	if slot > 0 {
		max = (blockSize - header) / slot
		if limit > 0 && limit < max {
			max = limit
		}
	}
	if max < 2 {
		return 0, 0, errors.Misusef("a %d byte block holds %d slots of %d bytes, need at least 2", blockSize, max, slot)
	}
	min = (max + 3) / 4
	return min, max, nil
}

// Create makes a new tree file at path, replacing whatever was there.
func Create[T, S any](path string, values codec.Codec[T], augs codec.Codec[S], opts ...Option) (*Store[T, S], error) {
	c, err := configure(opts)
	if err != nil {
		return nil, err
	}
	leafSlot, internalSlot, err := slotSizes(values, augs)
	if err != nil {
		return nil, err
	}
	limit := c.maxFanout
	if leafSlot == 0 && limit == 0 {
		limit = (int(c.blockSize) - header) / 8
	}
	minLeaf, maxLeaf, err := occupancy(int(c.blockSize), leafSlot, limit)
	if err != nil {
		return nil, err
	}
	minInternal, maxInternal, err := occupancy(int(c.blockSize), internalSlot, c.maxFanout)
	if err != nil {
		return nil, err
	}
	bf, err := file.NewBlockFileCustomBlockSize(path, c.blockSize)
	if err != nil {
		return nil, err
	}
	if err := replace(bf); err != nil {
		return nil, err
	}
	if err := bf.Open(); err != nil {
		return nil, err
	}
	self := &Store[T, S]{
		bf:           bf,
		f:            c.cache.Bind(bf),
		values:       values,
		augs:         augs,
		logger:       c.logger,
		blockSize:    int(c.blockSize),
		leafSlot:     leafSlot,
		internalSlot: internalSlot,
		minLeaf:      minLeaf,
		maxLeaf:      maxLeaf,
		minInternal:  minInternal,
		maxInternal:  maxInternal,
	}
	if err := self.writeCtrl(); err != nil {
		bf.Close()
		return nil, err
	}
	self.logger.Info("created extstore",
		zap.String("path", path),
		zap.Int("block_size", self.blockSize),
		zap.Int("max_leaf", maxLeaf),
		zap.Int("max_internal", maxInternal))
	return self, nil
}

// replace removes what is at dev's path so Open starts an empty file.
func replace(dev file.RemovableBlockDevice) error {
	if _, err := os.Stat(dev.Path()); os.IsNotExist(err) {
		return nil
	}
	return dev.Remove()
}

// Open loads a tree file made by Create. The codecs must have the slot
// sizes the file was made with.
func Open[T, S any](path string, values codec.Codec[T], augs codec.Codec[S], opts ...Option) (*Store[T, S], error) {
	c, err := configure(opts)
	if err != nil {
		return nil, err
	}
	leafSlot, internalSlot, err := slotSizes(values, augs)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Storage(err, "open %v", path)
	}
	bf := file.NewBlockFile(path)
	if err := bf.Open(); err != nil {
		return nil, err
	}
	self := &Store[T, S]{
		bf:           bf,
		f:            c.cache.Bind(bf),
		values:       values,
		augs:         augs,
		logger:       c.logger,
		blockSize:    int(bf.BlockSize()),
		leafSlot:     leafSlot,
		internalSlot: internalSlot,
	}
	if err := self.readCtrl(); err != nil {
		bf.Close()
		return nil, err
	}
	self.logger.Info("opened extstore",
		zap.String("path", path),
		zap.Int("size", self.size),
		zap.Int("height", self.height))
	return self, nil
}

func (self *Store[T, S]) writeCtrl() error {
	data := make([]byte, ctrlSize)
	binary.LittleEndian.PutUint64(data[0:8], magic)
	binary.LittleEndian.PutUint64(data[8:16], version)
	binary.LittleEndian.PutUint64(data[16:24], self.root)
	binary.LittleEndian.PutUint64(data[24:32], uint64(self.height))
	binary.LittleEndian.PutUint64(data[32:40], uint64(self.size))
	binary.LittleEndian.PutUint64(data[40:48], uint64(self.metaOff))
	binary.LittleEndian.PutUint64(data[48:56], uint64(self.metaLen))
	binary.LittleEndian.PutUint32(data[56:60], uint32(self.maxLeaf))
	binary.LittleEndian.PutUint32(data[60:64], uint32(self.maxInternal))
	binary.LittleEndian.PutUint32(data[64:68], uint32(self.leafSlot))
	binary.LittleEndian.PutUint32(data[68:72], uint32(self.internalSlot))
	return self.f.SetControlData(data)
}

func (self *Store[T, S]) readCtrl() error {
	data := self.f.ControlData()
	if len(data) < ctrlSize {
		return errors.Storagef("control data too short, %d bytes", len(data))
	}
	if m := binary.LittleEndian.Uint64(data[0:8]); m != magic {
		return errors.Storagef("%v is not a tree file, magic %x", self.bf.Path(), m)
	}
	if v := binary.LittleEndian.Uint64(data[8:16]); v != version {
		return errors.Storagef("unknown version %d", v)
	}
	leafSlot := int(binary.LittleEndian.Uint32(data[64:68]))
	internalSlot := int(binary.LittleEndian.Uint32(data[68:72]))
	if leafSlot != self.leafSlot || internalSlot != self.internalSlot {
		return errors.Misusef("codecs give slots of %d and %d bytes, the file has %d and %d",
			self.leafSlot, self.internalSlot, leafSlot, internalSlot)
	}
	self.root = binary.LittleEndian.Uint64(data[16:24])
	self.height = int(binary.LittleEndian.Uint64(data[24:32]))
	self.size = int(binary.LittleEndian.Uint64(data[32:40]))
	self.metaOff = int64(binary.LittleEndian.Uint64(data[40:48]))
	self.metaLen = int(binary.LittleEndian.Uint64(data[48:56]))
	self.maxLeaf = int(binary.LittleEndian.Uint32(data[56:60]))
	self.maxInternal = int(binary.LittleEndian.Uint32(data[60:64]))
	self.minLeaf = (self.maxLeaf + 3) / 4
	self.minInternal = (self.maxInternal + 3) / 4
	if err := btree.CheckFanout(self.minLeaf, self.maxLeaf); err != nil {
		return errors.Storage(err, "bad leaf fanout in control data")
	}
	if err := btree.CheckFanout(self.minInternal, self.maxInternal); err != nil {
		return errors.Storage(err, "bad internal fanout in control data")
	}
	return nil
}

// Path of the underlying block file.
func (self *Store[T, S]) Path() string { return self.bf.Path() }

func (self *Store[T, S]) BlockSize() int { return self.blockSize }

// Close flushes the tree state and closes the file. The store's blocks are
// dropped from the cache.
func (self *Store[T, S]) Close() error {
	if self.closed {
		return errors.Misusef("store already closed")
	}
	if err := self.writeCtrl(); err != nil {
		return err
	}
	self.closed = true
	self.logger.Debug("closed extstore", zap.String("path", self.bf.Path()))
	return self.f.Close()
}
