// Package errors carries the three failure classes of the tree: invariant
// violations (corruption or a bug), storage failures (the medium said no) and
// misuse (the caller asked for something the API forbids). Every error
// records the stack of the call that made it.
package errors

import (
	"fmt"
)

import (
	cerrors "github.com/cockroachdb/errors"
)

var (
	// ErrInvariant marks structural invariant violations: a child missing
	// from its parent, count mismatches, underfull nodes.
	ErrInvariant = cerrors.New("btree invariant violated")

	// ErrStorage marks backend I/O failures: open, short read/write, bad
	// header magic or version.
	ErrStorage = cerrors.New("storage failure")

	// ErrMisuse marks calls the API rejects: mutating a finalized
	// serialized store, reusing a builder.
	ErrMisuse = cerrors.New("api misuse")
)

func Errorf(format string, args ...interface{}) error {
	return cerrors.NewWithDepthf(1, format, args...)
}

func Invariantf(format string, args ...interface{}) error {
	return cerrors.Mark(cerrors.AssertionFailedWithDepthf(1, format, args...), ErrInvariant)
}

func Storagef(format string, args ...interface{}) error {
	return cerrors.Mark(cerrors.NewWithDepthf(1, format, args...), ErrStorage)
}

// Storage wraps an error from the underlying medium. A nil err stays nil.
func Storage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return cerrors.Mark(cerrors.WrapWithDepthf(1, err, format, args...), ErrStorage)
}

func Misusef(format string, args ...interface{}) error {
	return cerrors.Mark(cerrors.NewWithDepthf(1, format, args...), ErrMisuse)
}

func IsInvariant(err error) bool {
	return cerrors.Is(err, ErrInvariant)
}

func IsStorage(err error) bool {
	return cerrors.Is(err, ErrStorage)
}

func IsMisuse(err error) bool {
	return cerrors.Is(err, ErrMisuse)
}

func Is(err, reference error) bool {
	return cerrors.Is(err, reference)
}

// Stack renders the error with its recorded stack trace.
func Stack(err error) string {
	return fmt.Sprintf("%+v", err)
}
