package file

import (
	"container/list"
	"sync"
)

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/errors"
)

type blockKey struct {
	file uuid.UUID
	pos  int64
}

type lru_item struct {
	key   blockKey
	owner *CachedFile
	bytes []byte
	dirty bool
	pins  int
}

type CacheStats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	WriteBacks uint64
}

// BlockCache is an LRU write-back cache of blocks that several files share.
// A block is pinned from Acquire until the matching Release and a pinned
// block is never evicted, so when every resident block is pinned the cache
// grows past its capacity until pins are released. It is safe for use by
// several goroutines.
type BlockCache struct {
	mu       sync.Mutex
	capacity int
	buffer   map[blockKey]*list.Element
	stack    *list.List
	stats    CacheStats
	logger   *zap.Logger
}

type CacheOption func(*BlockCache)

func CacheLogger(logger *zap.Logger) CacheOption {
	return func(c *BlockCache) {
		c.logger = logger
	}
}

// NewBlockCache makes a cache holding up to capacity unpinned blocks.
func NewBlockCache(capacity int, opts ...CacheOption) (*BlockCache, error) {
	if capacity < 1 {
		return nil, errors.Misusef("cache capacity must be positive, got %d", capacity)
	}
	self := &BlockCache{
		capacity: capacity,
		buffer:   make(map[blockKey]*list.Element),
		stack:    list.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(self)
	}
	return self, nil
}

func (self *BlockCache) Capacity() int { return self.capacity }

// Len is the number of resident blocks, pinned or not.
func (self *BlockCache) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.stack.Len()
}

func (self *BlockCache) Stats() CacheStats {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.stats
}

// Bind gives dev its own identity in the cache.
func (self *BlockCache) Bind(dev BlockDevice) *CachedFile {
	return &CachedFile{
		id:    uuid.New(),
		dev:   dev,
		cache: self,
	}
}

func (self *BlockCache) pageout(i *lru_item) error {
	if !i.dirty {
		return nil
	}
	if err := i.owner.dev.WriteBlock(i.key.pos, i.bytes); err != nil {
		return err
	}
	i.dirty = false
	self.stats.WriteBacks++
	return nil
}

// evict drops unpinned blocks from the cold end until the cache fits.
// Callers hold mu.
func (self *BlockCache) evict() error {
	e := self.stack.Back()
	for self.stack.Len() > self.capacity && e != nil {
		prev := e.Prev()
		i := e.Value.(*lru_item)
		if i.pins == 0 {
			if err := self.pageout(i); err != nil {
				return err
			}
			self.logger.Debug("evict block",
				zap.Stringer("file", i.key.file),
				zap.Int64("pos", i.key.pos))
			delete(self.buffer, i.key)
			self.stack.Remove(e)
			self.stats.Evictions++
		}
		e = prev
	}
	return nil
}

func (self *BlockCache) insert(owner *CachedFile, key blockKey, bytes []byte, dirty bool, pins int) *lru_item {
	item := &lru_item{
		key:   key,
		owner: owner,
		bytes: bytes,
		dirty: dirty,
		pins:  pins,
	}
	self.buffer[key] = self.stack.PushFront(item)
	return item
}

// CachedFile is one block device seen through a shared BlockCache.
type CachedFile struct {
	id    uuid.UUID
	dev   BlockDevice
	cache *BlockCache
}

func (self *CachedFile) ID() uuid.UUID { return self.id }

func (self *CachedFile) BlockSize() uint32 { return self.dev.BlockSize() }

func (self *CachedFile) key(pos int64) blockKey {
	return blockKey{file: self.id, pos: pos}
}

func (self *CachedFile) ControlData() (data []byte) {
	return self.dev.ControlData()
}

func (self *CachedFile) SetControlData(data []byte) (err error) {
	return self.dev.SetControlData(data)
}

// Allocate takes a block from the device and caches it zeroed and dirty so
// the first Acquire does not read it back.
func (self *CachedFile) Allocate() (int64, error) {
	pos, err := self.dev.Allocate()
	if err != nil {
		return 0, err
	}
	c := self.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	key := self.key(pos)
	if _, has := c.buffer[key]; has {
		return 0, errors.Invariantf("allocated block %d is still cached", pos)
	}
	c.insert(self, key, make([]byte, self.BlockSize()), true, 0)
	return pos, c.evict()
}

// AllocateBlocks takes n contiguous blocks. They bypass the cache and are
// read and written whole with ReadBlocks and WriteBlocks.
func (self *CachedFile) AllocateBlocks(n int) (int64, error) {
	return self.dev.AllocateBlocks(n)
}

func (self *CachedFile) ReadBlocks(pos int64, n int) ([]byte, error) {
	return self.dev.ReadBlocks(pos, n)
}

func (self *CachedFile) WriteBlocks(pos int64, blocks []byte) error {
	return self.dev.WriteBlock(pos, blocks)
}

// Acquire pins the block at pos and returns its cached bytes. The slice
// stays valid and owned by the caller until Release.
func (self *CachedFile) Acquire(pos int64) ([]byte, error) {
	c := self.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	key := self.key(pos)
	if e, has := c.buffer[key]; has {
		i := e.Value.(*lru_item)
		i.pins++
		c.stack.MoveToFront(e)
		c.stats.Hits++
		return i.bytes, nil
	}
	c.stats.Misses++
	block, err := self.dev.ReadBlock(pos)
	if err != nil {
		return nil, err
	}
	i := c.insert(self, key, block, false, 1)
	if err := c.evict(); err != nil {
		i.pins--
		return nil, err
	}
	return i.bytes, nil
}

// Release unpins a block. dirty marks it for write back.
func (self *CachedFile) Release(pos int64, dirty bool) error {
	c := self.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	e, has := c.buffer[self.key(pos)]
	if !has {
		return errors.Invariantf("release of block %d which is not cached", pos)
	}
	i := e.Value.(*lru_item)
	if i.pins <= 0 {
		return errors.Invariantf("release of block %d which is not pinned", pos)
	}
	i.pins--
	i.dirty = i.dirty || dirty
	return c.evict()
}

// Free drops the block from the cache without writing it and returns it to
// the device.
func (self *CachedFile) Free(pos int64) error {
	c := self.cache
	c.mu.Lock()
	key := self.key(pos)
	if e, has := c.buffer[key]; has {
		if e.Value.(*lru_item).pins > 0 {
			c.mu.Unlock()
			return errors.Invariantf("free of pinned block %d", pos)
		}
		delete(c.buffer, key)
		c.stack.Remove(e)
	}
	c.mu.Unlock()
	return self.dev.Free(pos)
}

// Persist writes back every dirty block of this file and syncs the device.
// The blocks stay cached.
func (self *CachedFile) Persist() error {
	c := self.cache
	c.mu.Lock()
	for e := c.stack.Back(); e != nil; e = e.Prev() {
		i := e.Value.(*lru_item)
		if i.owner != self {
			continue
		}
		if err := c.pageout(i); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.mu.Unlock()
	return self.dev.Sync()
}

// Close persists the file, drops its blocks from the cache and closes the
// device. Blocks still pinned are an error.
func (self *CachedFile) Close() error {
	if err := self.Persist(); err != nil {
		return err
	}
	c := self.cache
	c.mu.Lock()
	var pinned int
	for e := c.stack.Back(); e != nil; {
		prev := e.Prev()
		i := e.Value.(*lru_item)
		if i.owner == self {
			if i.pins > 0 {
				pinned++
			}
			delete(c.buffer, i.key)
			c.stack.Remove(e)
		}
		e = prev
	}
	c.mu.Unlock()
	if pinned > 0 {
		self.dev.Close()
		return errors.Invariantf("closed with %d pinned blocks", pinned)
	}
	return self.dev.Close()
}
