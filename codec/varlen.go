package codec

import (
	"encoding/binary"
)

import (
	"github.com/fxamacker/cbor/v2"
)

import (
	"github.com/timtadh/iobtree/errors"
)

type bytesCodec struct{}
type stringCodec struct{}

type cborCodec[T any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// Bytes is a uvarint length prefix followed by the raw bytes.
var Bytes Codec[[]byte] = bytesCodec{}

// String is encoded like Bytes.
var String Codec[string] = stringCodec{}

// CBOR encodes arbitrary values as length prefixed CBOR items. It uses
// core deterministic encoding so equal values always produce equal bytes.
// A T that CBOR cannot represent (channels, funcs) is a misuse error here,
// checked by encoding T's zero value.
func CBOR[T any]() (Codec[T], error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, errors.Errorf("cbor encoder: %v", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, errors.Errorf("cbor decoder: %v", err)
	}
	var zero T
	if _, err := enc.Marshal(zero); err != nil {
		return nil, errors.Misusef("cbor cannot encode %T: %v", zero, err)
	}
	return &cborCodec[T]{enc: enc, dec: dec}, nil
}

func appendPrefixed(dst, data []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(data)))
	return append(dst, data...)
}

func decodePrefixed(src []byte) ([]byte, int, error) {
	length, n := binary.Uvarint(src)
	if n <= 0 {
		return nil, 0, errors.Storagef("bad length prefix")
	}
	if length > uint64(len(src)-n) {
		return nil, 0, errors.Storagef("length prefix %d runs past the %d bytes left", length, len(src)-n)
	}
	end := n + int(length)
	return src[n:end], end, nil
}

func (bytesCodec) Size() int { return -1 }

func (bytesCodec) Append(dst []byte, v []byte) []byte {
	return appendPrefixed(dst, v)
}

func (bytesCodec) Decode(src []byte) ([]byte, int, error) {
	data, n, err := decodePrefixed(src)
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, n, nil
}

func (stringCodec) Size() int { return -1 }

func (stringCodec) Append(dst []byte, v string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(v)))
	return append(dst, v...)
}

func (stringCodec) Decode(src []byte) (string, int, error) {
	data, n, err := decodePrefixed(src)
	if err != nil {
		return "", 0, err
	}
	return string(data), n, nil
}

func (c *cborCodec[T]) Size() int { return -1 }

// Append panics if v cannot be encoded. CBOR has already rejected a T it
// cannot represent, so this needs a value the zero value did not exercise,
// such as a chan held in an interface field.
func (c *cborCodec[T]) Append(dst []byte, v T) []byte {
	data, err := c.enc.Marshal(v)
	if err != nil {
		panic(errors.Errorf("cbor cannot encode %T: %v", v, err))
	}
	return appendPrefixed(dst, data)
}

func (c *cborCodec[T]) Decode(src []byte) (T, int, error) {
	var v T
	data, n, err := decodePrefixed(src)
	if err != nil {
		return v, 0, err
	}
	if err := c.dec.Unmarshal(data, &v); err != nil {
		return v, 0, errors.Storage(err, "cbor decode")
	}
	return v, n, nil
}
