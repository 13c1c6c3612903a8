package consts

type Flag uint8

const BLOCKSIZE = 4096

const (
	INTERNAL Flag = 1 << iota
	LEAF
)

func AsFlag(bytes []byte) Flag {
	return Flag(bytes[0])
}
