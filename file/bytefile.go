package file

import (
	"os"
)

import (
	"github.com/timtadh/iobtree/errors"
)

// ByteFile is a random access file that also tracks its own tail so
// records can be appended without a stat per write.
type ByteFile struct {
	path string
	file *os.File
	size int64
}

// CreateByteFile opens path for writing, truncating whatever was there.
func CreateByteFile(path string) (*ByteFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, errors.Storage(err, "create %v", path)
	}
	return &ByteFile{path: path, file: f}, nil
}

// OpenByteFile opens an existing file read only.
func OpenByteFile(path string) (*ByteFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Storage(err, "open %v", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Storage(err, "stat %v", path)
	}
	return &ByteFile{path: path, file: f, size: info.Size()}, nil
}

func (self *ByteFile) Path() string { return self.path }

func (self *ByteFile) Size() int64 { return self.size }

func (self *ByteFile) ReadAt(buf []byte, off int64) error {
	if self.file == nil {
		return errors.Misusef("File is not open")
	}
	n, err := self.file.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err != nil {
		return errors.Storage(err, "read %d bytes at %d of %v", len(buf), off, self.path)
	}
	return errors.Storagef("short read at %d of %v", off, self.path)
}

func (self *ByteFile) WriteAt(buf []byte, off int64) error {
	if self.file == nil {
		return errors.Misusef("File is not open")
	}
	n, err := self.file.WriteAt(buf, off)
	if err != nil {
		return errors.Storage(err, "write %d bytes at %d of %v", len(buf), off, self.path)
	}
	if n != len(buf) {
		return errors.Storagef("short write at %d of %v", off, self.path)
	}
	if end := off + int64(n); end > self.size {
		self.size = end
	}
	return nil
}

// Append writes buf at the tail and returns the offset it landed at.
func (self *ByteFile) Append(buf []byte) (int64, error) {
	off := self.size
	if err := self.WriteAt(buf, off); err != nil {
		return 0, err
	}
	return off, nil
}

func (self *ByteFile) Truncate(size int64) error {
	if self.file == nil {
		return errors.Misusef("File is not open")
	}
	if err := self.file.Truncate(size); err != nil {
		return errors.Storage(err, "truncate %v", self.path)
	}
	self.size = size
	return nil
}

func (self *ByteFile) Sync() error {
	if self.file == nil {
		return errors.Misusef("File is not open")
	}
	return errors.Storage(self.file.Sync(), "sync %v", self.path)
}

func (self *ByteFile) Close() error {
	if self.file == nil {
		return nil
	}
	err := self.file.Close()
	self.file = nil
	return errors.Storage(err, "close %v", self.path)
}
