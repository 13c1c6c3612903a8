package file

import (
	"encoding/binary"
	"hash/crc32"
	"os"
)

import (
	"github.com/timtadh/iobtree/consts"
	"github.com/timtadh/iobtree/errors"
)

const BLOCKSIZE = consts.BLOCKSIZE

// The smallest block the file accepts. It must hold the control header and
// leave room for caller control data.
const MINBLOCKSIZE = 128

const baseflag = os.O_RDWR | os.O_CREATE

/*
Control block layout, block 0 of every file:

	0:4    crc32 of bytes 4: of the block
	4:8    block size
	8:16   head of the free list
	16:20  length of the free list
	20:24  unused
	24:    caller control data
*/
const ctrlHeader = 24

type ctrlblk struct {
	back []byte
	user []byte
}

func load_ctrlblk(bytes []byte) (cb *ctrlblk, err error) {
	if len(bytes) < ctrlHeader {
		return nil, errors.Storagef("control block too short %d", len(bytes))
	}
	chksum := binary.LittleEndian.Uint32(bytes[0:4])
	new_chksum := crc32.ChecksumIEEE(bytes[4:])
	if new_chksum != chksum {
		return nil, errors.Storagef("Bad control block checksum %x != %x", new_chksum, chksum)
	}
	return &ctrlblk{back: bytes, user: bytes[ctrlHeader:]}, nil
}

func new_ctrlblk(bytes []byte, blksize uint32) (cb *ctrlblk) {
	for i := range bytes {
		bytes[i] = 0
	}
	cb = &ctrlblk{back: bytes, user: bytes[ctrlHeader:]}
	binary.LittleEndian.PutUint32(bytes[4:8], blksize)
	cb.updateChkSum()
	return cb
}

func (cb *ctrlblk) Block() []byte { return cb.back }

func (cb *ctrlblk) blksize() uint32 {
	return binary.LittleEndian.Uint32(cb.back[4:8])
}

func (cb *ctrlblk) freeHead() uint64 {
	return binary.LittleEndian.Uint64(cb.back[8:16])
}

func (cb *ctrlblk) setFreeHead(h uint64) {
	binary.LittleEndian.PutUint64(cb.back[8:16], h)
}

func (cb *ctrlblk) freeLen() uint32 {
	return binary.LittleEndian.Uint32(cb.back[16:20])
}

func (cb *ctrlblk) setFreeLen(l uint32) {
	binary.LittleEndian.PutUint32(cb.back[16:20], l)
}

func (cb *ctrlblk) updateChkSum() {
	binary.LittleEndian.PutUint32(cb.back[0:4], crc32.ChecksumIEEE(cb.back[4:]))
}

// BlockFile is a file of fixed size blocks. Block 0 is the control block,
// freed blocks are chained into a free list threaded through their first
// eight bytes.
type BlockFile struct {
	path   string
	opened bool
	file   *os.File
	ctrl   *ctrlblk
}

func NewBlockFile(path string) *BlockFile {
	bf, _ := NewBlockFileCustomBlockSize(path, BLOCKSIZE)
	return bf
}

func NewBlockFileCustomBlockSize(path string, size uint32) (*BlockFile, error) {
	if size < MINBLOCKSIZE || size%8 != 0 {
		return nil, errors.Misusef("blocksize must be a multiple of 8 and at least %d, got %d", MINBLOCKSIZE, size)
	}
	cb := new_ctrlblk(make([]byte, size), size)
	return &BlockFile{
		path: path,
		ctrl: cb,
	}, nil
}

// Open creates the file if it is empty, otherwise it loads the control
// block. The block size recorded in an existing file wins over the one the
// BlockFile was made with.
func (self *BlockFile) Open() error {
	if err := self.open(); err != nil {
		return err
	}
	if size, err := self.Size(); err != nil {
		return err
	} else if size == 0 {
		if _, err := self.alloc(1); err != nil {
			return err
		}
		if err := self.write_ctrlblk(); err != nil {
			return err
		}
	} else {
		if err := self.read_ctrlblk(); err != nil {
			self.Close()
			return err
		}
	}
	return nil
}

func (self *BlockFile) open() error {
	f, err := os.OpenFile(self.path, OPENFLAG, 0666)
	if err != nil && os.IsPermission(err) && OPENFLAG != baseflag {
		// O_NOATIME is refused on files the caller does not own.
		f, err = os.OpenFile(self.path, baseflag, 0666)
	}
	if err != nil {
		return errors.Storage(err, "open %v", self.path)
	}
	self.file = f
	self.opened = true
	return nil
}

func (self *BlockFile) Close() error {
	if !self.opened {
		return nil
	}
	err := self.file.Close()
	self.file = nil
	self.opened = false
	return errors.Storage(err, "close %v", self.path)
}

func (self *BlockFile) Remove() error {
	if self.opened {
		return errors.Misusef("Expected file to be closed")
	}
	return errors.Storage(os.Remove(self.Path()), "remove %v", self.path)
}

func (self *BlockFile) Sync() error {
	if !self.opened {
		return errors.Misusef("File is not open")
	}
	return errors.Storage(self.file.Sync(), "sync %v", self.path)
}

func (self *BlockFile) write_ctrlblk() error {
	self.ctrl.updateChkSum()
	return self.WriteBlock(0, self.ctrl.Block())
}

func (self *BlockFile) read_ctrlblk() error {
	head := make([]byte, 8)
	if err := self.readAt(0, head); err != nil {
		return err
	}
	blksize := binary.LittleEndian.Uint32(head[4:8])
	if blksize < MINBLOCKSIZE || blksize%8 != 0 {
		return errors.Storagef("bad block size %d in %v", blksize, self.path)
	}
	bytes := make([]byte, blksize)
	if err := self.readAt(0, bytes); err != nil {
		return err
	}
	cb, err := load_ctrlblk(bytes)
	if err != nil {
		return err
	}
	self.ctrl = cb
	return nil
}

func (self *BlockFile) ControlData() (data []byte) {
	data = make([]byte, len(self.ctrl.user))
	copy(data, self.ctrl.user)
	return data
}

func (self *BlockFile) SetControlData(data []byte) (err error) {
	if len(data) > len(self.ctrl.user) {
		return errors.Misusef("control data was too large, %d > %d", len(data), len(self.ctrl.user))
	}
	copy(self.ctrl.user, data)
	return self.write_ctrlblk()
}

func (self *BlockFile) Path() string {
	return self.path
}

func (self *BlockFile) BlockSize() uint32 {
	return self.ctrl.blksize()
}

func (self *BlockFile) Size() (uint64, error) {
	if !self.opened {
		return 0, errors.Misusef("File is not open")
	}
	dir, err := self.file.Stat()
	if err != nil {
		return 0, errors.Storage(err, "stat %v", self.path)
	}
	return uint64(dir.Size()), nil
}

func (self *BlockFile) resize(size int64) error {
	return errors.Storage(self.file.Truncate(size), "truncate %v", self.path)
}

func (self *BlockFile) Free(pos int64) error {
	if pos <= 0 || pos%int64(self.BlockSize()) != 0 {
		return errors.Invariantf("free of bad block %d", pos)
	}
	head := self.ctrl.freeHead()
	free_bytes := make([]byte, self.BlockSize())
	binary.LittleEndian.PutUint64(free_bytes[0:8], head)
	if err := self.WriteBlock(pos, free_bytes); err != nil {
		return err
	}
	self.ctrl.setFreeHead(uint64(pos))
	self.ctrl.setFreeLen(self.ctrl.freeLen() + 1)
	return self.write_ctrlblk()
}

func (self *BlockFile) pop_free() (pos int64, err error) {
	if self.ctrl.freeHead() == 0 && self.ctrl.freeLen() == 0 {
		return 0, errors.Invariantf("No blocks free")
	}
	pos = int64(self.ctrl.freeHead())
	bytes, err := self.ReadBlock(pos)
	if err != nil {
		return 0, err
	}
	self.ctrl.setFreeHead(binary.LittleEndian.Uint64(bytes[0:8]))
	self.ctrl.setFreeLen(self.ctrl.freeLen() - 1)
	if err := self.write_ctrlblk(); err != nil {
		return 0, err
	}
	return pos, nil
}

func (self *BlockFile) alloc(n int) (pos int64, err error) {
	amt := uint64(self.BlockSize()) * uint64(n)
	size, err := self.Size()
	if err != nil {
		return 0, err
	}
	if err := self.resize(int64(size + amt)); err != nil {
		return 0, err
	}
	return int64(size), nil
}

func (self *BlockFile) Allocate() (pos int64, err error) {
	if self.ctrl.freeLen() == 0 {
		return self.alloc(1)
	}
	return self.pop_free()
}

// AllocateBlocks always extends the file so the n blocks are contiguous.
func (self *BlockFile) AllocateBlocks(n int) (pos int64, err error) {
	if n <= 0 {
		return 0, errors.Misusef("cannot allocate %d blocks", n)
	}
	return self.alloc(n)
}

func (self *BlockFile) WriteBlock(p int64, block []byte) error {
	if !self.opened {
		return errors.Misusef("File is not open")
	}
	if len(block)%int(self.BlockSize()) != 0 {
		return errors.Misusef("block is not a multiple of the block size")
	}
	n, err := self.file.WriteAt(block, p)
	if err != nil {
		return errors.Storage(err, "write block %d", p)
	}
	if n != len(block) {
		return errors.Storagef("could not write the full block %d", p)
	}
	return nil
}

func (self *BlockFile) readAt(p int64, block []byte) error {
	n, err := self.file.ReadAt(block, p)
	if err != nil {
		return errors.Storage(err, "read block %d", p)
	}
	if n != len(block) {
		return errors.Storagef("could not read the full block %d", p)
	}
	return nil
}

func (self *BlockFile) ReadInto(p int64, block []byte) error {
	if len(block)%int(self.BlockSize()) != 0 {
		return errors.Misusef("block is not a multiple of the block size")
	}
	if !self.opened {
		return errors.Misusef("File is not open")
	}
	return self.readAt(p, block)
}

func (self *BlockFile) ReadBlock(p int64) ([]byte, error) {
	block := make([]byte, self.BlockSize())
	if err := self.ReadInto(p, block); err != nil {
		return nil, err
	}
	return block, nil
}

func (self *BlockFile) ReadBlocks(p int64, n int) ([]byte, error) {
	block := make([]byte, int(self.BlockSize())*n)
	if err := self.ReadInto(p, block); err != nil {
		return nil, err
	}
	return block, nil
}
