// Package codec turns values into bytes for the persistent stores.
//
// A codec is either fixed width (Size() >= 0), which the block store needs
// because a block holds a fixed array of slots, or variable width
// (Size() == -1), which only the serialized store accepts.
package codec

import (
	"github.com/timtadh/iobtree/errors"
)

type Codec[T any] interface {
	// Size is the encoded width in bytes, or -1 for variable width.
	Size() int
	// Append encodes v onto the end of dst. Fixed width codecs append
	// exactly Size() bytes.
	Append(dst []byte, v T) []byte
	// Decode reads one value from the front of src and reports how many
	// bytes it consumed.
	Decode(src []byte) (v T, n int, err error)
}

func Fixed[T any](c Codec[T]) bool {
	return c.Size() >= 0
}

// Put encodes v into dst[0:c.Size()] of a fixed width codec without
// allocating.
func Put[T any](c Codec[T], dst []byte, v T) error {
	size := c.Size()
	if size < 0 {
		return errors.Errorf("codec is not fixed width")
	}
	if len(dst) < size {
		return errors.Invariantf("slot too small, %d < %d", len(dst), size)
	}
	out := c.Append(dst[:0:size], v)
	if len(out) != size {
		return errors.Invariantf("codec wrote %d bytes, declared %d", len(out), size)
	}
	return nil
}

func short(want, got int) error {
	return errors.Storagef("short buffer, need %d bytes got %d", want, got)
}
