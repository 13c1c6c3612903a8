package extstore

import "testing"

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
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
	"github.com/timtadh/iobtree/file"
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

func (t *T) path(name string) string {
	return filepath.Join((*testing.T)(t).TempDir(), name)
}

type countStore = Store[uint64, btree.Aug[uint64, int]]
type countTree = btree.Tree[uint64, uint64, int]

func count(v *btree.View[uint64, int]) int {
	if v.IsLeaf() {
		return v.Count()
	}
	total := 0
	for i := 0; i < v.Count(); i++ {
		total += v.Augment(i)
	}
	return total
}

var countConfig = btree.Config[uint64, uint64, int]{
	Key:     btree.Identity[uint64],
	Compare: btree.Ordered[uint64],
	Augment: count,
}

var augCodec = btree.AugCodec(codec.Uint64, codec.Int)

func (t *T) create(path string, opts ...Option) (*countStore, *countTree) {
	opts = append([]Option{Logger(zaptest.NewLogger((*testing.T)(t)))}, opts...)
	store, err := Create(path, codec.Uint64, augCodec, opts...)
	t.assert_nil(err)
	tree, err := btree.New(store, countConfig)
	t.assert_nil(err)
	return store, tree
}

func (t *T) open(path string, opts ...Option) (*countStore, *countTree) {
	store, err := Open(path, codec.Uint64, augCodec, opts...)
	t.assert_nil(err)
	tree, err := btree.New(store, countConfig)
	t.assert_nil(err)
	return store, tree
}

func (t *T) items(tree *countTree) []uint64 {
	items, err := iobtree.Collect(tree.Items())
	t.assert_nil(err)
	return items
}

func sorted(values []uint64) []uint64 {
	s := append([]uint64(nil), values...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}

func TestFanoutFromBlockSize(x *testing.T) {
	t := (*T)(x)
	store, err := Create(t.path("fanout"), codec.Uint64, btree.AugCodec(codec.Uint64, btree.EmptyCodec()))
	t.assert_nil(err)
	t.assert("leaf", store.MaxLeafSize() == (4096-8)/8, store.MinLeafSize() == (511+3)/4)
	t.assert("internal", store.MaxInternalSize() == (4096-8)/16, store.MinInternalSize() == (255+3)/4)
	t.assert_nil(store.Close())

	capped, err := Create(t.path("capped"), codec.Uint64, augCodec, BlockSize(256), MaxFanout(6))
	t.assert_nil(err)
	t.assert("capped", capped.MaxLeafSize() == 6, capped.MinLeafSize() == 2, capped.MaxInternalSize() == 6)
	t.assert_nil(capped.Close())
}

func TestVariableCodecRejected(x *testing.T) {
	t := (*T)(x)
	_, err := Create(t.path("var"), codec.String, btree.AugCodec(codec.String, btree.EmptyCodec()))
	t.assert("variable width", errors.IsMisuse(err))
	_, err = Create(t.path("tiny"), codec.Uint64, augCodec, BlockSize(128), MaxFanout(1))
	t.assert("too few slots", errors.IsMisuse(err))
}

func TestInsertEraseReopen(x *testing.T) {
	t := (*T)(x)
	path := t.path("tree")
	r := rand.New(rand.NewSource(5))
	store, tree := t.create(path, BlockSize(256), MaxFanout(6))
	var ref []uint64
	for i := 0; i < 2000; i++ {
		v := uint64(r.Intn(800))
		t.assert_nil(tree.Insert(v))
		ref = append(ref, v)
	}
	t.assert_nil(tree.Verify())
	ref = sorted(ref)
	require.Equal(x, ref, t.items(tree))
	height := tree.Height()
	t.assert_nil(store.Close())

	store, tree = t.open(path)
	t.assert("block size from file", store.BlockSize() == 256)
	t.assert("fanout from file", store.MaxLeafSize() == 6)
	t.assert("size", tree.Size() == 2000, tree.Height() == height)
	t.assert_nil(tree.Verify())
	require.Equal(x, ref, t.items(tree))

	for i := 0; i < 300; i++ {
		k := ref[r.Intn(len(ref))]
		n, err := tree.EraseKey(k)
		t.assert_nil(err)
		kept := ref[:0]
		for _, v := range ref {
			if v != k {
				kept = append(kept, v)
			}
		}
		require.Equal(x, len(ref)-len(kept), n)
		ref = kept
		if len(ref) == 0 {
			break
		}
	}
	t.assert_nil(tree.Verify())
	t.assert_nil(store.Close())

	_, tree = t.open(path)
	require.Equal(x, ref, t.items(tree))
	t.assert_nil(tree.Verify())
}

func TestFlushIsDurable(x *testing.T) {
	t := (*T)(x)
	path := t.path("flush")
	_, tree := t.create(path, BlockSize(512))
	for i := uint64(0); i < 500; i++ {
		t.assert_nil(tree.Insert(i))
	}
	t.assert_nil(tree.Flush())

	// a second store over the same file sees what was flushed
	_, again := t.open(path)
	t.assert("size", again.Size() == 500)
	t.assert_nil(again.Verify())
}

func TestMetadata(x *testing.T) {
	t := (*T)(x)
	path := t.path("meta")
	store, tree := t.create(path, BlockSize(128))
	data, err := tree.Metadata()
	t.assert_nil(err)
	t.assert("none", len(data) == 0)

	big := make([]byte, 1000)
	for i := range big {
		big[i] = byte(i)
	}
	t.assert_nil(tree.SetMetadata(big))
	t.assert_nil(tree.Insert(7))
	t.assert_nil(store.Close())

	store, tree = t.open(path)
	data, err = tree.Metadata()
	t.assert_nil(err)
	require.Equal(x, big, data)

	t.assert_nil(tree.SetMetadata([]byte("small")))
	t.assert_nil(store.Close())
	store, tree = t.open(path)
	data, err = tree.Metadata()
	t.assert_nil(err)
	t.assert("replaced", string(data) == "small")
	t.assert_nil(tree.SetMetadata(nil))
	data, err = tree.Metadata()
	t.assert_nil(err)
	t.assert("cleared", len(data) == 0)
	t.assert_nil(store.Close())
}

func TestSharedCache(x *testing.T) {
	t := (*T)(x)
	cache, err := file.NewBlockCache(4)
	t.assert_nil(err)
	sa, a := t.create(t.path("a"), BlockSize(256), MaxFanout(5), Cache(cache))
	sb, b := t.create(t.path("b"), BlockSize(256), MaxFanout(5), Cache(cache))
	for i := uint64(0); i < 600; i++ {
		t.assert_nil(a.Insert(i))
		t.assert_nil(b.Insert(600 - i))
	}
	t.assert_nil(a.Verify())
	t.assert_nil(b.Verify())
	t.assert("evicted", cache.Stats().Evictions > 0)
	t.assert("nothing left pinned", cache.Len() <= cache.Capacity())
	t.assert_nil(sa.Close())

	items := t.items(b)
	t.assert("b intact", len(items) == 600, items[0] == 1, items[599] == 600)
	t.assert_nil(sb.Close())
	t.assert("empty cache", cache.Len() == 0)
}

func TestBuildThenReopen(x *testing.T) {
	t := (*T)(x)
	path := t.path("built")
	store, err := Create(path, codec.Uint64, augCodec, BlockSize(512))
	t.assert_nil(err)
	b, err := btree.NewBuilder(store, countConfig, false)
	t.assert_nil(err)
	for i := uint64(0); i < 5000; i++ {
		t.assert_nil(b.Push(i))
	}
	tree, err := b.Build([]byte("built"))
	t.assert_nil(err)
	t.assert_nil(tree.Verify())
	t.assert_nil(store.Close())

	_, tree = t.open(path)
	t.assert("size", tree.Size() == 5000)
	t.assert_nil(tree.Verify())
	data, err := tree.Metadata()
	t.assert_nil(err)
	t.assert("metadata", string(data) == "built")
	it, err := tree.Find(4321)
	t.assert_nil(err)
	v, err := it.Value()
	t.assert_nil(err)
	t.assert("found", v == 4321)
}

func TestCreateReplaces(x *testing.T) {
	t := (*T)(x)
	path := t.path("tree")
	store, tree := t.create(path, BlockSize(256))
	for i := uint64(0); i < 300; i++ {
		t.assert_nil(tree.Insert(i))
	}
	t.assert_nil(tree.SetMetadata([]byte("old")))
	t.assert_nil(store.Close())

	store, tree = t.create(path, BlockSize(512))
	t.assert("fresh", tree.Empty(), store.BlockSize() == 512)
	t.assert_nil(store.Close())
	store, tree = t.open(path)
	defer store.Close()
	t.assert("still fresh", tree.Empty(), store.BlockSize() == 512)
	data, err := tree.Metadata()
	t.assert_nil(err)
	t.assert("no metadata", len(data) == 0)
}

func TestOpenErrors(x *testing.T) {
	t := (*T)(x)
	_, err := Open(t.path("missing"), codec.Uint64, augCodec)
	t.assert("missing file", errors.IsStorage(err))

	plain := t.path("plain")
	bf := file.NewBlockFile(plain)
	t.assert_nil(bf.Open())
	t.assert_nil(bf.Close())
	_, err = Open(plain, codec.Uint64, augCodec)
	t.assert("not a tree", errors.IsStorage(err))

	path := t.path("tree")
	store, _ := t.create(path)
	t.assert_nil(store.Close())
	_, err = Open(path, codec.Uint32, btree.AugCodec(codec.Uint32, codec.Int))
	t.assert("wrong codec", errors.IsMisuse(err))

	junk := t.path("junk")
	t.assert_nil(os.WriteFile(junk, []byte("junk"), 0644))
	_, err = Open(junk, codec.Uint64, augCodec)
	t.assert("junk", err != nil)
}

func TestClosed(x *testing.T) {
	t := (*T)(x)
	store, tree := t.create(t.path("closed"))
	t.assert_nil(store.Close())
	t.assert("insert after close", errors.IsMisuse(tree.Insert(1)))
	t.assert("double close", errors.IsMisuse(store.Close()))
}
