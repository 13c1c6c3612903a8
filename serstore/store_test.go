package serstore

import "testing"

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

import (
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

import (
	"github.com/timtadh/iobtree"
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/codec"
	"github.com/timtadh/iobtree/errors"
)

type T testing.T

func (t *T) assert(msg string, oks ...bool) {
	for _, ok := range oks {
		require.True((*testing.T)(t), ok, msg)
	}
}

func (t *T) assert_nil(errs ...error) {
	for _, err := range errs {
		require.NoError((*testing.T)(t), err)
	}
}

type u64Store = Store[uint64, btree.Aug[uint64, btree.Empty]]
type u64Tree = btree.Tree[uint64, uint64, btree.Empty]

var u64Config = btree.Config[uint64, uint64, btree.Empty]{
	Key:     btree.Identity[uint64],
	Compare: btree.Ordered[uint64],
}

var u64Aug = btree.AugCodec(codec.Uint64, btree.EmptyCodec())

func (t *T) build(path string, n int, metadata []byte, opts ...Option) (*u64Store, *u64Tree) {
	opts = append([]Option{Logger(zaptest.NewLogger((*testing.T)(t)))}, opts...)
	store, err := Create(path, codec.Uint64, u64Aug, opts...)
	t.assert_nil(err)
	b, err := btree.NewBuilder(store, u64Config, false)
	t.assert_nil(err)
	for i := 1; i <= n; i++ {
		t.assert_nil(b.Push(uint64(i)))
	}
	tree, err := b.Build(metadata)
	t.assert_nil(err)
	t.assert("read only after build", !store.Writable())
	return store, tree
}

func (t *T) open(path string, opts ...Option) (*u64Store, *u64Tree) {
	store, err := Open(path, codec.Uint64, u64Aug, opts...)
	t.assert_nil(err)
	tree, err := btree.New(store, u64Config)
	t.assert_nil(err)
	return store, tree
}

func (t *T) items(tree *u64Tree) []uint64 {
	items, err := iobtree.Collect(tree.Items())
	t.assert_nil(err)
	return items
}

func (t *T) path(name string) string {
	return filepath.Join((*testing.T)(t).TempDir(), name)
}

func seq(from, to int) []uint64 {
	var s []uint64
	for i := from; i <= to; i++ {
		s = append(s, uint64(i))
	}
	return s
}

func TestRoundTrip(x *testing.T) {
	t := (*T)(x)
	path := t.path("tree")
	store, tree := t.build(path, 1000, []byte("hello"), Fanout(25, 100))
	t.assert("height", tree.Height() == 2)
	t.assert_nil(tree.Verify())
	t.assert_nil(store.Close())

	store, tree = t.open(path, Fanout(25, 100))
	defer store.Close()
	t.assert("size", tree.Size() == 1000, tree.Height() == 2)
	root, err := tree.Root()
	t.assert_nil(err)
	z, err := root.Count()
	t.assert_nil(err)
	t.assert("ten leaves", z == 10)
	t.assert_nil(tree.Verify())
	require.Equal(x, seq(1, 1000), t.items(tree))

	data, err := tree.Metadata()
	t.assert_nil(err)
	t.assert("metadata", string(data) == "hello")

	it, err := tree.LowerBound(500)
	t.assert_nil(err)
	v, err := it.Value()
	t.assert_nil(err)
	t.assert("lower bound", v == 500)
	it, err = tree.Find(1001)
	t.assert_nil(err)
	end, err := it.AtEnd()
	t.assert_nil(err)
	t.assert("absent", end)

	var back []uint64
	t.assert_nil(iobtree.Do(tree.Backward, func(v uint64) error {
		back = append(back, v)
		return nil
	}))
	t.assert("backward", len(back) == 1000, back[0] == 1000, back[999] == 1)
}

func TestDefaultFanout(x *testing.T) {
	t := (*T)(x)
	path := t.path("tree")
	store, tree := t.build(path, 20000, nil, NodeCache(1<<12))
	t.assert("height", tree.Height() == 3)
	t.assert_nil(tree.Verify())
	t.assert_nil(store.Close())

	// a tiny node cache means most reads go to the file
	store, tree = t.open(path, NodeCache(1<<10))
	defer store.Close()
	t.assert_nil(tree.Verify())
	n := 0
	t.assert_nil(tree.DoRange(100, 200, func(v uint64) error {
		t.assert("in range", v >= 100, v < 200)
		n++
		return nil
	}))
	t.assert("range", n == 100)
}

func TestEmptyBuild(x *testing.T) {
	t := (*T)(x)
	path := t.path("empty")
	store, tree := t.build(path, 0, nil)
	t.assert("empty", tree.Empty(), tree.Height() == 0)
	t.assert_nil(store.Close())
	store, tree = t.open(path)
	defer store.Close()
	t.assert("still empty", tree.Empty(), tree.Height() == 0)
	t.assert("no items", len(t.items(tree)) == 0)
}

func TestReadOnly(x *testing.T) {
	t := (*T)(x)
	path := t.path("tree")
	store, tree := t.build(path, 100, nil)
	t.assert("insert after build", errors.IsMisuse(tree.Insert(5)))
	it, err := tree.Find(7)
	t.assert_nil(err)
	t.assert("erase after build", errors.IsMisuse(tree.Erase(it)))
	t.assert("metadata after build", errors.IsMisuse(tree.SetMetadata([]byte("x"))))
	t.assert_nil(tree.Verify())
	t.assert_nil(store.Close())

	store, tree = t.open(path)
	defer store.Close()
	t.assert("insert after open", errors.IsMisuse(tree.Insert(5)))
	_, err = btree.NewBuilder(store, u64Config, false)
	t.assert("builder over a built tree", errors.IsMisuse(err))
}

func TestWriteOnce(x *testing.T) {
	t := (*T)(x)
	store, err := Create(t.path("tree"), codec.Uint64, u64Aug)
	t.assert_nil(err)
	defer store.Close()
	l, err := store.CreateLeaf()
	t.assert_nil(err)
	t.assert("after the header", uint64(l) == HeaderSize)
	t.assert_nil(store.SetLeafCount(l, 1))
	t.assert_nil(store.SetValue(l, 0, 9))
	t.assert_nil(store.Flush())
	t.assert("written nodes are final", errors.IsMisuse(store.SetValue(l, 0, 10)))
	v, err := store.Value(l, 0)
	t.assert_nil(err)
	t.assert("read back", v == 9)
	t.assert("no destroy", errors.IsMisuse(store.DestroyLeaf(l)))
	t.assert("no move", errors.IsMisuse(store.MoveLeaf(l, 0, l, 1)))
}

func TestBadHeader(x *testing.T) {
	t := (*T)(x)
	short := t.path("short")
	t.assert_nil(os.WriteFile(short, []byte("tiny"), 0644))
	_, err := Open(short, codec.Uint64, u64Aug)
	t.assert("short", errors.IsStorage(err))

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], 0xdeadbeef)
	magic := t.path("magic")
	t.assert_nil(os.WriteFile(magic, header, 0644))
	_, err = Open(magic, codec.Uint64, u64Aug)
	t.assert("bad magic", errors.IsStorage(err))

	binary.LittleEndian.PutUint64(header[0:8], Magic)
	binary.LittleEndian.PutUint64(header[8:16], Version+1)
	version := t.path("version")
	t.assert_nil(os.WriteFile(version, header, 0644))
	_, err = Open(version, codec.Uint64, u64Aug)
	t.assert("bad version", errors.IsStorage(err))

	// a build that never finished leaves a zero header
	unfinished := t.path("unfinished")
	store, err := Create(unfinished, codec.Uint64, u64Aug)
	t.assert_nil(err)
	t.assert_nil(store.Close())
	_, err = Open(unfinished, codec.Uint64, u64Aug)
	t.assert("unfinished", errors.IsStorage(err))

	_, err = Open(t.path("missing"), codec.Uint64, u64Aug)
	t.assert("missing", errors.IsStorage(err))
}

type entry struct {
	ID   int
	Name string
	Tags []string
}

func TestVariableWidthValues(x *testing.T) {
	t := (*T)(x)
	values, err := codec.CBOR[entry]()
	t.assert_nil(err)
	augs := btree.AugCodec(codec.Int, btree.EmptyCodec())
	cfg := btree.Config[entry, int, btree.Empty]{
		Key:     func(e entry) int { return e.ID },
		Compare: btree.Ordered[int],
	}
	path := t.path("entries")
	store, err := Create(path, values, augs, Fanout(4, 12))
	t.assert_nil(err)
	b, err := btree.NewBuilder(store, cfg, false)
	t.assert_nil(err)
	for i := 0; i < 500; i++ {
		t.assert_nil(b.Push(entry{
			ID:   i,
			Name: strings.Repeat("n", i%37),
			Tags: []string{fmt.Sprint(i), fmt.Sprint(i * i)},
		}))
	}
	_, err = b.Build(nil)
	t.assert_nil(err)
	t.assert_nil(store.Close())

	store, err = Open(path, values, augs, Fanout(4, 12))
	t.assert_nil(err)
	defer store.Close()
	tree, err := btree.New(store, cfg)
	t.assert_nil(err)
	t.assert_nil(tree.Verify())
	i := 0
	t.assert_nil(tree.DoIterate(func(e entry) error {
		t.assert("id", e.ID == i)
		t.assert("name", e.Name == strings.Repeat("n", i%37))
		t.assert("tags", len(e.Tags) == 2, e.Tags[1] == fmt.Sprint(i*i))
		i++
		return nil
	}))
	t.assert("all", i == 500)
}

func TestCorruptValueLength(x *testing.T) {
	t := (*T)(x)
	augs := btree.AugCodec(codec.String, btree.EmptyCodec())
	cfg := btree.Config[string, string, btree.Empty]{
		Key:     btree.Identity[string],
		Compare: btree.Ordered[string],
	}
	path := t.path("strings")
	store, err := Create(path, codec.String, augs, Fanout(4, 12))
	t.assert_nil(err)
	b, err := btree.NewBuilder(store, cfg, false)
	t.assert_nil(err)
	for i := 0; i < 500; i++ {
		t.assert_nil(b.Push(fmt.Sprintf("value %05d", i)))
	}
	_, err = b.Build(nil)
	t.assert_nil(err)
	t.assert_nil(store.Close())

	// the first leaf follows the header; its first value starts after the
	// slot count
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	t.assert_nil(err)
	_, err = f.WriteAt(binary.AppendUvarint(nil, 1<<63+5), HeaderSize+8)
	t.assert_nil(err)
	t.assert_nil(f.Close())

	store, err = Open(path, codec.String, augs, Fanout(4, 12))
	t.assert_nil(err)
	defer store.Close()
	tree, err := btree.New(store, cfg)
	t.assert_nil(err)
	_, err = iobtree.Collect(tree.Items())
	t.assert("corrupt length", errors.IsStorage(err))
}
