package errors

import "testing"

import (
	"io"
	"strings"
)

import (
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	inv := Invariantf("child %d not found in %d", 7, 9)
	require.True(t, IsInvariant(inv))
	require.False(t, IsStorage(inv))
	require.False(t, IsMisuse(inv))
	require.Contains(t, inv.Error(), "child 7 not found in 9")

	st := Storage(io.ErrUnexpectedEOF, "reading header")
	require.True(t, IsStorage(st))
	require.True(t, Is(st, io.ErrUnexpectedEOF))
	require.Nil(t, Storage(nil, "nothing"))

	mis := Misusef("builder reused")
	require.True(t, IsMisuse(mis))
	require.False(t, IsInvariant(mis))

	plain := Errorf("plain %v", 1)
	require.False(t, IsInvariant(plain) || IsStorage(plain) || IsMisuse(plain))
}

func TestStackRecorded(t *testing.T) {
	err := Storagef("bad magic %x", 12)
	require.True(t, strings.Contains(Stack(err), "TestStackRecorded"))
}
