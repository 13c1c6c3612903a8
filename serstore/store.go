// Package serstore writes a tree once, bottom up, to an append only file
// and reads it back. It is the store for btree.Builder when the result is
// never modified.
//
// File layout: a 56 byte header of little endian uint64s (magic, version,
// root, height, size, metadata offset, metadata length) followed by the
// nodes in the order they were finished. A node is a uint64 slot count and
// then its slots: the value codec's bytes for a leaf, a uint64 child
// offset and the augment codec's bytes for an internal node. A node's
// handle is its file offset.
//
// Create gives a store in write mode: nodes are made one at a time and
// Flush appends the current one. FinalizeBuild writes the header and the
// store turns read only. Open gives a read only store directly.
package serstore

import (
	"encoding/binary"
)

import (
	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/codec"
	"github.com/timtadh/iobtree/errors"
	"github.com/timtadh/iobtree/file"
)

const (
	Magic      uint64 = 0x8bbd51bfe5e3d477
	Version    uint64 = 0
	HeaderSize        = 56

	DefaultMin = 16
	DefaultMax = 64

	// bytes of decoded nodes kept in memory
	DefaultNodeCache = 64 << 20
)

type config struct {
	min, max  int
	cacheCost int64
	logger    *zap.Logger
}

type Option func(*config)

// Fanout sets the occupancy bounds of every node. A file must be opened
// with the bounds it was built with.
func Fanout(min, max int) Option {
	return func(c *config) {
		c.min, c.max = min, max
	}
}

// NodeCache bounds the decoded node cache, in encoded bytes.
func NodeCache(cost int64) Option {
	return func(c *config) {
		c.cacheCost = cost
	}
}

func Logger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

var _ btree.Store[uint64, btree.Aug[uint64, btree.Empty]] = (*Store[uint64, btree.Aug[uint64, btree.Empty]])(nil)

type Store[T, S any] struct {
	config
	f      *file.ByteFile
	values codec.Codec[T]
	augs   codec.Codec[S]
	nodes  *ristretto.Cache[uint64, *node[T, S]]

	writable bool
	cur      *node[T, S]
	curOff   uint64

	root    uint64
	height  int
	size    int
	metaOff uint64
	metaLen uint64
}

func configure(opts []Option) (config, error) {
	c := config{
		min:       DefaultMin,
		max:       DefaultMax,
		cacheCost: DefaultNodeCache,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := btree.CheckFanout(c.min, c.max); err != nil {
		return c, err
	}
	if c.cacheCost < 1 {
		return c, errors.Misusef("node cache must be positive, got %d", c.cacheCost)
	}
	return c, nil
}

func newStore[T, S any](c config, f *file.ByteFile, values codec.Codec[T], augs codec.Codec[S]) (*Store[T, S], error) {
	counters := c.cacheCost / 64
	if counters < 1000 {
		counters = 1000
	}
	nodes, err := ristretto.NewCache(&ristretto.Config[uint64, *node[T, S]]{
		NumCounters: counters,
		MaxCost:     c.cacheCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Errorf("node cache: %v", err)
	}
	return &Store[T, S]{
		config: c,
		f:      f,
		values: values,
		augs:   augs,
		nodes:  nodes,
	}, nil
}

// Create truncates path and starts a store in write mode.
func Create[T, S any](path string, values codec.Codec[T], augs codec.Codec[S], opts ...Option) (*Store[T, S], error) {
	c, err := configure(opts)
	if err != nil {
		return nil, err
	}
	f, err := file.CreateByteFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Append(make([]byte, HeaderSize)); err != nil {
		f.Close()
		return nil, err
	}
	self, err := newStore(c, f, values, augs)
	if err != nil {
		f.Close()
		return nil, err
	}
	self.writable = true
	self.logger.Info("created serstore", zap.String("path", path), zap.Int("max", c.max))
	return self, nil
}

// Open reads the header of a finalized file.
func Open[T, S any](path string, values codec.Codec[T], augs codec.Codec[S], opts ...Option) (*Store[T, S], error) {
	c, err := configure(opts)
	if err != nil {
		return nil, err
	}
	f, err := file.OpenByteFile(path)
	if err != nil {
		return nil, err
	}
	self, err := newStore(c, f, values, augs)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := self.readHeader(); err != nil {
		self.Close()
		return nil, err
	}
	self.logger.Info("opened serstore",
		zap.String("path", path),
		zap.Int("size", self.size),
		zap.Int("height", self.height))
	return self, nil
}

func (self *Store[T, S]) readHeader() error {
	if self.f.Size() < HeaderSize {
		return errors.Storagef("%v is too short for a header, %d bytes", self.f.Path(), self.f.Size())
	}
	h := make([]byte, HeaderSize)
	if err := self.f.ReadAt(h, 0); err != nil {
		return err
	}
	if m := binary.LittleEndian.Uint64(h[0:8]); m != Magic {
		return errors.Storagef("%v has bad magic %x", self.f.Path(), m)
	}
	if v := binary.LittleEndian.Uint64(h[8:16]); v != Version {
		return errors.Storagef("%v has unknown version %d", self.f.Path(), v)
	}
	self.root = binary.LittleEndian.Uint64(h[16:24])
	self.height = int(binary.LittleEndian.Uint64(h[24:32]))
	self.size = int(binary.LittleEndian.Uint64(h[32:40]))
	self.metaOff = binary.LittleEndian.Uint64(h[40:48])
	self.metaLen = binary.LittleEndian.Uint64(h[48:56])
	if self.metaOff+self.metaLen > uint64(self.f.Size()) {
		return errors.Storagef("metadata [%d, +%d) runs past the end of %v", self.metaOff, self.metaLen, self.f.Path())
	}
	return nil
}

func (self *Store[T, S]) writeHeader() error {
	h := make([]byte, 0, HeaderSize)
	for _, v := range []uint64{
		Magic,
		Version,
		self.root,
		uint64(self.height),
		uint64(self.size),
		self.metaOff,
		self.metaLen,
	} {
		h = binary.LittleEndian.AppendUint64(h, v)
	}
	return self.f.WriteAt(h, 0)
}

// Static makes a Builder fill every node.
func (self *Store[T, S]) Static() bool { return true }

// Writable is true until FinalizeBuild.
func (self *Store[T, S]) Writable() bool { return self.writable }

func (self *Store[T, S]) Path() string { return self.f.Path() }

// FileSize is the number of bytes in the file.
func (self *Store[T, S]) FileSize() int64 { return self.f.Size() }

func (self *Store[T, S]) misuse(op string) error {
	if self.writable {
		return errors.Misusef("%s: a serialized tree is written once, in order", op)
	}
	return errors.Misusef("%s: the serialized tree is read only", op)
}

func (self *Store[T, S]) mutable(op string) error {
	if !self.writable {
		return self.misuse(op)
	}
	return nil
}

func (self *Store[T, S]) SetRootLeaf(n btree.Leaf) error {
	if err := self.mutable("SetRoot"); err != nil {
		return err
	}
	self.root = uint64(n)
	return nil
}

func (self *Store[T, S]) SetRootInternal(n btree.Internal) error {
	if err := self.mutable("SetRoot"); err != nil {
		return err
	}
	self.root = uint64(n)
	return nil
}

func (self *Store[T, S]) RootLeaf() btree.Leaf { return btree.Leaf(self.root) }

func (self *Store[T, S]) RootInternal() btree.Internal { return btree.Internal(self.root) }

func (self *Store[T, S]) SetHeight(h int) error {
	if err := self.mutable("SetHeight"); err != nil {
		return err
	}
	self.height = h
	return nil
}

func (self *Store[T, S]) Height() int { return self.height }

func (self *Store[T, S]) SetSize(n int) error {
	if err := self.mutable("SetSize"); err != nil {
		return err
	}
	self.size = n
	return nil
}

func (self *Store[T, S]) Size() int { return self.size }

func (self *Store[T, S]) MinLeafSize() int     { return self.min }
func (self *Store[T, S]) MaxLeafSize() int     { return self.max }
func (self *Store[T, S]) MinInternalSize() int { return self.min }
func (self *Store[T, S]) MaxInternalSize() int { return self.max }

// Flush appends the current node, if any, at the file's tail. Its handle
// was that offset from the start.
func (self *Store[T, S]) Flush() error {
	if !self.writable || self.cur == nil {
		return nil
	}
	buf := self.encode(self.cur, nil)
	off, err := self.f.Append(buf)
	if err != nil {
		return err
	}
	if uint64(off) != self.curOff {
		return errors.Invariantf("node for offset %d landed at %d", self.curOff, off)
	}
	self.nodes.Set(self.curOff, self.cur, int64(len(buf)))
	self.cur = nil
	self.curOff = 0
	return nil
}

// FinalizeBuild writes the header and makes the store read only.
func (self *Store[T, S]) FinalizeBuild() error {
	if err := self.mutable("FinalizeBuild"); err != nil {
		return err
	}
	if err := self.Flush(); err != nil {
		return err
	}
	if err := self.writeHeader(); err != nil {
		return err
	}
	if err := self.f.Sync(); err != nil {
		return err
	}
	self.writable = false
	self.logger.Info("serstore built",
		zap.String("path", self.f.Path()),
		zap.Int("size", self.size),
		zap.Int("height", self.height),
		zap.Int64("bytes", self.f.Size()))
	return nil
}

// SetMetadata appends data at the tail. Only one call is allowed and it
// must come after the last node was flushed.
func (self *Store[T, S]) SetMetadata(data []byte) error {
	if err := self.mutable("SetMetadata"); err != nil {
		return err
	}
	if self.cur != nil {
		return errors.Misusef("SetMetadata before the current node was flushed")
	}
	if self.metaLen != 0 {
		return self.misuse("SetMetadata twice")
	}
	off, err := self.f.Append(data)
	if err != nil {
		return err
	}
	self.metaOff, self.metaLen = uint64(off), uint64(len(data))
	return nil
}

func (self *Store[T, S]) Metadata() ([]byte, error) {
	if self.metaLen == 0 {
		return nil, nil
	}
	data := make([]byte, self.metaLen)
	if err := self.f.ReadAt(data, int64(self.metaOff)); err != nil {
		return nil, err
	}
	return data, nil
}

// Close releases the file and the node cache. A store closed in write
// mode leaves a file that Open rejects.
func (self *Store[T, S]) Close() error {
	if self.writable {
		self.logger.Warn("serstore closed before FinalizeBuild", zap.String("path", self.f.Path()))
	}
	self.nodes.Close()
	return self.f.Close()
}
