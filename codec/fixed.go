package codec

import (
	"encoding/binary"
	"math"
)

type uint64Codec struct{}
type int64Codec struct{}
type uint32Codec struct{}
type int32Codec struct{}
type intCodec struct{}
type float64Codec struct{}
type emptyCodec[T any] struct{}

var (
	Uint64  Codec[uint64]  = uint64Codec{}
	Int64   Codec[int64]   = int64Codec{}
	Uint32  Codec[uint32]  = uint32Codec{}
	Int32   Codec[int32]   = int32Codec{}
	Int     Codec[int]     = intCodec{}
	Float64 Codec[float64] = float64Codec{}
)

// Empty encodes nothing. It serves augment types that carry no data.
func Empty[T any]() Codec[T] {
	return emptyCodec[T]{}
}

func (uint64Codec) Size() int { return 8 }

func (uint64Codec) Append(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

func (uint64Codec) Decode(src []byte) (uint64, int, error) {
	if len(src) < 8 {
		return 0, 0, short(8, len(src))
	}
	return binary.LittleEndian.Uint64(src), 8, nil
}

func (int64Codec) Size() int { return 8 }

func (int64Codec) Append(dst []byte, v int64) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(v))
}

func (int64Codec) Decode(src []byte) (int64, int, error) {
	if len(src) < 8 {
		return 0, 0, short(8, len(src))
	}
	return int64(binary.LittleEndian.Uint64(src)), 8, nil
}

func (uint32Codec) Size() int { return 4 }

func (uint32Codec) Append(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func (uint32Codec) Decode(src []byte) (uint32, int, error) {
	if len(src) < 4 {
		return 0, 0, short(4, len(src))
	}
	return binary.LittleEndian.Uint32(src), 4, nil
}

func (int32Codec) Size() int { return 4 }

func (int32Codec) Append(dst []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(v))
}

func (int32Codec) Decode(src []byte) (int32, int, error) {
	if len(src) < 4 {
		return 0, 0, short(4, len(src))
	}
	return int32(binary.LittleEndian.Uint32(src)), 4, nil
}

// int is always stored as 8 bytes so files move between platforms.
func (intCodec) Size() int { return 8 }

func (intCodec) Append(dst []byte, v int) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(int64(v)))
}

func (intCodec) Decode(src []byte) (int, int, error) {
	if len(src) < 8 {
		return 0, 0, short(8, len(src))
	}
	return int(int64(binary.LittleEndian.Uint64(src))), 8, nil
}

func (float64Codec) Size() int { return 8 }

func (float64Codec) Append(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}

func (float64Codec) Decode(src []byte) (float64, int, error) {
	if len(src) < 8 {
		return 0, 0, short(8, len(src))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(src)), 8, nil
}

func (emptyCodec[T]) Size() int { return 0 }

func (emptyCodec[T]) Append(dst []byte, v T) []byte { return dst }

func (emptyCodec[T]) Decode(src []byte) (T, int, error) {
	var v T
	return v, 0, nil
}
