package memstore

import "testing"

import (
	"github.com/stretchr/testify/require"
)

import (
	"github.com/timtadh/iobtree/btree"
	"github.com/timtadh/iobtree/errors"
)

type aug = btree.Aug[int, btree.Empty]

func TestDefaults(t *testing.T) {
	s, err := New[int, aug]()
	require.NoError(t, err)
	require.Equal(t, DefaultMin, s.MinLeafSize())
	require.Equal(t, DefaultMax, s.MaxInternalSize())

	s, err = New[int, aug](LeafFanout(2, 4), InternalFanout(3, 7))
	require.NoError(t, err)
	require.Equal(t, 4, s.MaxLeafSize())
	require.Equal(t, 3, s.MinInternalSize())

	_, err = New[int, aug](Fanout(4, 7))
	require.True(t, errors.IsMisuse(err))
}

func TestLeafSlots(t *testing.T) {
	s, err := New[int, aug](Fanout(2, 4))
	require.NoError(t, err)
	l, err := s.CreateLeaf()
	require.NoError(t, err)
	require.NotZero(t, l)
	require.NoError(t, s.SetLeafCount(l, 3))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SetValue(l, i, 10*i))
	}
	require.NoError(t, s.MoveLeaf(l, 2, l, 3))
	require.NoError(t, s.SetLeafCount(l, 4))
	v, err := s.Value(l, 3)
	require.NoError(t, err)
	require.Equal(t, 20, v)

	require.True(t, errors.IsInvariant(s.SetValue(l, 4, 1)))
	require.True(t, errors.IsInvariant(s.SetLeafCount(l, 5)))
	_, err = s.Value(l, -1)
	require.True(t, errors.IsInvariant(err))
}

func TestChildren(t *testing.T) {
	s, err := New[int, aug](Fanout(2, 4))
	require.NoError(t, err)
	p, err := s.CreateInternal()
	require.NoError(t, err)
	a, err := s.CreateLeaf()
	require.NoError(t, err)
	b, err := s.CreateLeaf()
	require.NoError(t, err)
	require.NoError(t, s.SetLeafCount(a, 2))
	require.NoError(t, s.SetLeafCount(b, 3))
	require.NoError(t, s.SetInternalCount(p, 2))
	require.NoError(t, s.SetChildLeaf(p, 0, a))
	require.NoError(t, s.SetChildLeaf(p, 1, b))
	require.NoError(t, s.SetAugmentLeaf(b, p, aug{Key: 42}))

	i, err := s.IndexLeaf(b, p)
	require.NoError(t, err)
	require.Equal(t, 1, i)
	c, err := s.ChildLeaf(p, 1)
	require.NoError(t, err)
	require.Equal(t, b, c)
	n, err := s.CountChildLeaf(p, 1)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	g, err := s.Augment(p, 1)
	require.NoError(t, err)
	require.Equal(t, 42, g.Key)

	other, err := s.CreateLeaf()
	require.NoError(t, err)
	_, err = s.IndexLeaf(other, p)
	require.True(t, errors.IsInvariant(err))
}

func TestFreeListReuse(t *testing.T) {
	s, err := New[int, aug](Fanout(2, 4))
	require.NoError(t, err)
	a, err := s.CreateLeaf()
	require.NoError(t, err)
	require.NoError(t, s.SetLeafCount(a, 4))
	require.NoError(t, s.DestroyLeaf(a))
	_, err = s.LeafCount(a)
	require.True(t, errors.IsInvariant(err))
	require.True(t, errors.IsInvariant(s.DestroyLeaf(a)))

	b, err := s.CreateLeaf()
	require.NoError(t, err)
	require.Equal(t, a, b)
	n, err := s.LeafCount(b)
	require.NoError(t, err)
	require.Zero(t, n)
	leaves, internals := s.Live()
	require.Equal(t, 1, leaves)
	require.Zero(t, internals)
}

func TestHeaderFields(t *testing.T) {
	s, err := New[int, aug]()
	require.NoError(t, err)
	require.NoError(t, s.SetHeight(3))
	require.NoError(t, s.SetSize(99))
	require.NoError(t, s.SetRootInternal(7))
	require.Equal(t, 3, s.Height())
	require.Equal(t, 99, s.Size())
	require.Equal(t, btree.Internal(7), s.RootInternal())

	data := []byte("abc")
	require.NoError(t, s.SetMetadata(data))
	data[0] = 'x'
	got, err := s.Metadata()
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}
