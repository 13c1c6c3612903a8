package btree_test

import "testing"

import (
	"math/rand"
	"sort"
)

import (
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

import (
	"github.com/timtadh/iobtree"
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/memstore"
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

type U64Tree = btree.Tree[uint64, uint64, btree.Empty]

func u64Config() btree.Config[uint64, uint64, btree.Empty] {
	return btree.Config[uint64, uint64, btree.Empty]{
		Key:     btree.Identity[uint64],
		Compare: btree.Ordered[uint64],
	}
}

func (t *T) tree(min, max int) *U64Tree {
	store, err := memstore.New[uint64, btree.Aug[uint64, btree.Empty]](memstore.Fanout(min, max))
	t.assert_nil(err)
	cfg := u64Config()
	cfg.Logger = zaptest.NewLogger((*testing.T)(t))
	tree, err := btree.New(store, cfg)
	t.assert_nil(err)
	return tree
}

func (t *T) items(tree *U64Tree) []uint64 {
	items, err := iobtree.Collect(tree.Items())
	t.assert_nil(err)
	return items
}

// walk collects the values by stepping an Iterator from Begin to End.
func (t *T) walk(tree *U64Tree) []uint64 {
	var items []uint64
	it, err := tree.Begin()
	t.assert_nil(err)
	for {
		end, err := it.AtEnd()
		t.assert_nil(err)
		if end {
			break
		}
		v, err := it.Value()
		t.assert_nil(err)
		items = append(items, v)
		t.assert_nil(it.Next())
	}
	return items
}

func (t *T) at(it *btree.Iterator[uint64, uint64, btree.Empty]) uint64 {
	v, err := it.Value()
	t.assert_nil(err)
	return v
}

func (t *T) atEnd(it *btree.Iterator[uint64, uint64, btree.Empty]) bool {
	end, err := it.AtEnd()
	t.assert_nil(err)
	return end
}

func sorted(values []uint64) []uint64 {
	s := append([]uint64(nil), values...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}

func remove(ref []uint64, k uint64) ([]uint64, int) {
	out := ref[:0]
	n := 0
	for _, v := range ref {
		if v == k {
			n++
		} else {
			out = append(out, v)
		}
	}
	return out, n
}

func shuffled(r *rand.Rand, n int) []uint64 {
	values := make([]uint64, n)
	for i := range values {
		values[i] = uint64(i)
	}
	r.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })
	return values
}
