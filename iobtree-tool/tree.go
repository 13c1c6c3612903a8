package main

import (
	"encoding/binary"
	"os"
	"strconv"
	"strings"
)

import (
	"go.uber.org/zap"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/codec"
	"github.com/timtadh/iobtree/errors"
	"github.com/timtadh/iobtree/extstore"
	"github.com/timtadh/iobtree/serstore"
)

type Tree = btree.Tree[uint64, uint64, btree.Empty]

var config = btree.Config[uint64, uint64, btree.Empty]{
	Key:     btree.Identity[uint64],
	Compare: btree.Ordered[uint64],
}

var augs = btree.AugCodec(codec.Uint64, btree.EmptyCodec())

// Opened is a tree over either kind of store.
type Opened struct {
	Tree  *Tree
	Kind  string
	close func() error
	block int
	bytes func() int64
}

func (self *Opened) Close() error { return self.close() }

// fanout parses "min,max".
func fanout(str string) (min, max int, err error) {
	parts := strings.Split(str, ",")
	if len(parts) != 2 {
		return 0, 0, errors.Misusef("fanout must be <min>,<max>, got %q", str)
	}
	if min, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, errors.Misusef("bad minimum fanout %q", parts[0])
	}
	if max, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, errors.Misusef("bad maximum fanout %q", parts[1])
	}
	return min, max, btree.CheckFanout(min, max)
}

func serialized(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Storage(err, "open %v", path)
	}
	defer f.Close()
	head := make([]byte, 8)
	if _, err := f.ReadAt(head, 0); err != nil {
		return false, errors.Storage(err, "read the header of %v", path)
	}
	return binary.LittleEndian.Uint64(head) == serstore.Magic, nil
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// OpenTree opens a tree file of either kind. opts apply to serialized
// trees only.
func OpenTree(log *zap.Logger, path string, opts ...serstore.Option) (*Opened, error) {
	ser, err := serialized(path)
	if err != nil {
		return nil, err
	}
	if ser {
		opts = append([]serstore.Option{serstore.Logger(log)}, opts...)
		store, err := serstore.Open(path, codec.Uint64, augs, opts...)
		if err != nil {
			return nil, err
		}
		tree, err := btree.New(store, withLogger(log))
		if err != nil {
			store.Close()
			return nil, err
		}
		return &Opened{Tree: tree, Kind: "serialized", close: store.Close, bytes: store.FileSize}, nil
	}
	store, err := extstore.Open(path, codec.Uint64, augs, extstore.Logger(log))
	if err != nil {
		return nil, err
	}
	tree, err := btree.New(store, withLogger(log))
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Opened{
		Tree:  tree,
		Kind:  "blocks",
		close: store.Close,
		block: store.BlockSize(),
		bytes: func() int64 { return fileSize(path) },
	}, nil
}

func withLogger(log *zap.Logger) btree.Config[uint64, uint64, btree.Empty] {
	cfg := config
	cfg.Logger = log
	return cfg
}
