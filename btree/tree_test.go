package btree_test

import "testing"

import (
	"math/rand"
)

import (
	"github.com/stretchr/testify/require"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/errors"
	"github.com/timtadh/iobtree/memstore"
)

func TestSmallScenario(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	for _, v := range []uint64{5, 3, 8, 1, 4, 7, 9, 2, 6, 0} {
		t.assert_nil(tree.Insert(v))
		t.assert_nil(tree.Verify())
	}
	t.assert("size", tree.Size() == 10)
	t.assert("height grew", tree.Height() > 1)
	require.Equal(x, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, t.items(tree))
	require.Equal(x, t.items(tree), t.walk(tree))

	n, err := tree.EraseKey(5)
	t.assert_nil(err)
	t.assert("erased one", n == 1)
	it, err := tree.Find(5)
	t.assert_nil(err)
	t.assert("5 is gone", t.atEnd(it))
	end, err := tree.End()
	t.assert_nil(err)
	t.assert("find gives End", it.Equal(end))
	t.assert("size", tree.Size() == 9)
	t.assert_nil(tree.Verify())
	require.Equal(x, []uint64{0, 1, 2, 3, 4, 6, 7, 8, 9}, t.items(tree))
}

func TestEmptyTree(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	t.assert("empty", tree.Empty(), tree.Height() == 0)
	begin, err := tree.Begin()
	t.assert_nil(err)
	end, err := tree.End()
	t.assert_nil(err)
	t.assert("begin == end", begin.Equal(end), t.atEnd(begin))
	_, err = tree.Root()
	t.assert("no root", errors.IsMisuse(err))
	t.assert("next", errors.IsMisuse(end.Next()))
	t.assert("prev", errors.IsMisuse(end.Prev()))
	it, err := tree.LowerBound(7)
	t.assert_nil(err)
	t.assert("lower bound is end", t.atEnd(it))
	t.assert_nil(tree.Verify())
}

func TestInsertEraseRandom(x *testing.T) {
	t := (*T)(x)
	r := rand.New(rand.NewSource(7))
	for _, fanout := range [][2]int{{2, 4}, {2, 5}, {3, 8}, {16, 64}} {
		tree := t.tree(fanout[0], fanout[1])
		var ref []uint64
		for i := 0; i < 1234; i++ {
			v := uint64(r.Intn(500))
			t.assert_nil(tree.Insert(v))
			ref = append(ref, v)
			if i%97 == 0 {
				t.assert_nil(tree.Verify())
			}
		}
		t.assert_nil(tree.Verify())
		ref = sorted(ref)
		require.Equal(x, ref, t.items(tree))
		t.assert("size", tree.Size() == len(ref))

		for i := 0; len(ref) > 0; i++ {
			k := ref[r.Intn(len(ref))]
			if i%2 == 0 {
				var want int
				ref, want = remove(ref, k)
				n, err := tree.EraseKey(k)
				t.assert_nil(err)
				require.Equal(x, want, n)
			} else {
				it, err := tree.Find(k)
				t.assert_nil(err)
				t.assert("found", !t.atEnd(it))
				t.assert_nil(tree.Erase(it))
				for j, v := range ref {
					if v == k {
						ref = append(ref[:j], ref[j+1:]...)
						break
					}
				}
			}
			t.assert("size", tree.Size() == len(ref))
			if i%53 == 0 {
				t.assert_nil(tree.Verify())
				require.Equal(x, len(ref), len(t.items(tree)))
			}
		}
		t.assert("empty", tree.Empty(), tree.Height() == 0)
		t.assert_nil(tree.Verify())
		store := tree.Store().(*memstore.Store[uint64, btree.Aug[uint64, btree.Empty]])
		leaves, internals := store.Live()
		t.assert("every node was destroyed", leaves == 0, internals == 0)
	}
}

// Few distinct keys make runs of equal values span several leaves. A
// split must keep the new sibling next to the node it came from.
func TestDuplicateRunsStaySorted(x *testing.T) {
	t := (*T)(x)
	for seed := int64(0); seed < 8; seed++ {
		r := rand.New(rand.NewSource(seed))
		tree := t.tree(2, 4)
		var ref []uint64
		for op := 0; op < 400; op++ {
			if len(ref) == 0 || r.Intn(3) != 0 {
				v := uint64(r.Intn(6))
				t.assert_nil(tree.Insert(v))
				ref = append(ref, v)
			} else {
				k := ref[r.Intn(len(ref))]
				it, err := tree.Find(k)
				t.assert_nil(err)
				t.assert("found", !t.atEnd(it), t.at(it) == k)
				t.assert_nil(tree.Erase(it))
				for j, v := range ref {
					if v == k {
						ref = append(ref[:j], ref[j+1:]...)
						break
					}
				}
			}
			t.assert_nil(tree.Verify())
			ref = sorted(ref)
			require.Equal(x, ref, t.items(tree))
		}
	}
}

func TestEraseAbsentKey(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	for i := uint64(0); i < 100; i += 2 {
		t.assert_nil(tree.Insert(i))
	}
	before := t.items(tree)
	n, err := tree.EraseKey(51)
	t.assert_nil(err)
	t.assert("nothing erased", n == 0)
	require.Equal(x, before, t.items(tree))
	t.assert("size", tree.Size() == 50)
}

func TestEraseEnd(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	t.assert_nil(tree.Insert(1))
	end, err := tree.End()
	t.assert_nil(err)
	t.assert("erase end", errors.IsMisuse(tree.Erase(end)))
	other := t.tree(2, 4)
	t.assert_nil(other.Insert(1))
	begin, err := other.Begin()
	t.assert_nil(err)
	t.assert("foreign iterator", errors.IsMisuse(tree.Erase(begin)))
}

func TestDuplicates(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	for round := 0; round < 3; round++ {
		for k := uint64(0); k < 40; k++ {
			t.assert_nil(tree.Insert(k))
		}
	}
	t.assert_nil(tree.Verify())
	for k := uint64(0); k < 40; k++ {
		it, err := tree.Find(k)
		t.assert_nil(err)
		t.assert("found", t.at(it) == k)
		if k > 0 {
			// Find gives the first of the equal keys.
			prev := it.Clone()
			t.assert_nil(prev.Prev())
			t.assert("first of its kind", t.at(prev) == k-1)
		}
		c, err := tree.Count(k)
		t.assert_nil(err)
		t.assert("three copies", c == 3)

		ub, err := tree.UpperBound(k)
		t.assert_nil(err)
		if k == 39 {
			t.assert("upper bound of the max is end", t.atEnd(ub))
		} else {
			t.assert("upper bound", t.at(ub) == k+1)
		}
	}
	n, err := tree.EraseKey(20)
	t.assert_nil(err)
	t.assert("three erased", n == 3)
	has, err := tree.Has(20)
	t.assert_nil(err)
	t.assert("gone", !has)
	t.assert_nil(tree.Verify())
}

func TestBounds(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	for k := uint64(10); k <= 200; k += 10 {
		t.assert_nil(tree.Insert(k))
	}
	lb, err := tree.LowerBound(35)
	t.assert_nil(err)
	t.assert("lower bound between keys", t.at(lb) == 40)
	lb, err = tree.LowerBound(40)
	t.assert_nil(err)
	t.assert("lower bound on a key", t.at(lb) == 40)
	ub, err := tree.UpperBound(40)
	t.assert_nil(err)
	t.assert("upper bound on a key", t.at(ub) == 50)
	lb, err = tree.LowerBound(0)
	t.assert_nil(err)
	t.assert("lower bound below min", t.at(lb) == 10)
	lb, err = tree.LowerBound(201)
	t.assert_nil(err)
	t.assert("lower bound above max", t.atEnd(lb))
	f, err := tree.Find(45)
	t.assert_nil(err)
	t.assert("find absent", t.atEnd(f))
}

func TestIterator(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	r := rand.New(rand.NewSource(3))
	for _, v := range shuffled(r, 300) {
		t.assert_nil(tree.Insert(v))
	}
	it, err := tree.Begin()
	t.assert_nil(err)
	for i := uint64(0); i < 300; i++ {
		t.assert("forward", t.at(it) == i)
		t.assert_nil(it.Next())
	}
	t.assert("at end", t.atEnd(it))
	t.assert("past end", errors.IsMisuse(it.Next()))

	end, err := tree.End()
	t.assert_nil(err)
	t.assert("walked to End", it.Equal(end))
	for i := 299; i >= 0; i-- {
		t.assert_nil(it.Prev())
		t.assert("backward", t.at(it) == uint64(i))
	}
	begin, err := tree.Begin()
	t.assert_nil(err)
	t.assert("walked to Begin", it.Equal(begin))
	t.assert("before begin", errors.IsMisuse(it.Prev()))
	t.assert("still at begin", t.at(it) == 0)
	_, err = end.Value()
	t.assert("dereference end", errors.IsMisuse(err))
}

type record struct {
	id   int
	name string
}

func TestKeyExtractorReverse(x *testing.T) {
	t := (*T)(x)
	store, err := memstore.New[record, btree.Aug[int, btree.Empty]](memstore.Fanout(2, 4))
	t.assert_nil(err)
	tree, err := btree.New(store, btree.Config[record, int, btree.Empty]{
		Key:     func(r record) int { return r.id },
		Compare: btree.Reverse(btree.Ordered[int]),
	})
	t.assert_nil(err)
	for _, id := range []int{4, 9, 1, 7, 3, 8, 2, 6, 5, 0} {
		t.assert_nil(tree.Insert(record{id: id, name: string(rune('a' + id))}))
	}
	t.assert_nil(tree.Verify())
	var ids []int
	t.assert_nil(tree.DoIterate(func(r record) error {
		t.assert("name travels with the key", r.name == string(rune('a'+r.id)))
		ids = append(ids, r.id)
		return nil
	}))
	require.Equal(x, []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, ids)

	ub, err := tree.UpperBound(6)
	t.assert_nil(err)
	v, err := ub.Value()
	t.assert_nil(err)
	t.assert("upper bound follows the reversed order", v.id == 5)
}

func TestConfigMisuse(x *testing.T) {
	t := (*T)(x)
	store, err := memstore.New[uint64, btree.Aug[uint64, btree.Empty]]()
	t.assert_nil(err)
	_, err = btree.New(store, btree.Config[uint64, uint64, btree.Empty]{Compare: btree.Ordered[uint64]})
	t.assert("no key", errors.IsMisuse(err))
	_, err = memstore.New[uint64, btree.Aug[uint64, btree.Empty]](memstore.Fanout(3, 5))
	t.assert("bad fanout", errors.IsMisuse(err))
	_, err = memstore.New[uint64, btree.Aug[uint64, btree.Empty]](memstore.LeafFanout(0, 4))
	t.assert("zero min", errors.IsMisuse(err))
}

func TestMetadata(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	data, err := tree.Metadata()
	t.assert_nil(err)
	t.assert("no metadata", len(data) == 0)
	t.assert_nil(tree.SetMetadata([]byte("hello")))
	data, err = tree.Metadata()
	t.assert_nil(err)
	t.assert("metadata", string(data) == "hello")
}

func TestVerifyFindsCorruption(x *testing.T) {
	t := (*T)(x)
	tree := t.tree(2, 4)
	for i := uint64(0); i < 20; i++ {
		t.assert_nil(tree.Insert(i))
	}
	t.assert_nil(tree.Verify())
	store := tree.Store()
	root := store.RootInternal()
	child, err := store.ChildInternal(root, 1)
	t.assert_nil(err)
	t.assert_nil(store.SetAugmentInternal(child, root, btree.Aug[uint64, btree.Empty]{Key: 1000}))
	t.assert("stale key found", errors.IsInvariant(tree.Verify()))
}
