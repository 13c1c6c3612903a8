package btree

import (
	"github.com/timtadh/iobtree"
)

var _ iobtree.Multiset[int, int] = (*Tree[int, int, Empty])(nil)

// forward yields values from it until stop says otherwise or the end.
func (self *Tree[T, K, A]) forward(cur *Iterator[T, K, A], stop func(T) bool) (it iobtree.Iterator[T]) {
	it = func() (v T, err error, _ iobtree.Iterator[T]) {
		end, err := cur.AtEnd()
		if err != nil {
			return v, err, nil
		} else if end {
			return v, nil, nil
		}
		v, err = cur.Value()
		if err != nil {
			return v, err, nil
		}
		if stop != nil && stop(v) {
			return v, nil, nil
		}
		if err := cur.Next(); err != nil {
			return v, err, nil
		}
		return v, nil, it
	}
	return it
}

// Iterate over every value in key order. See DoIterate for the common
// case. Use it as follows:
//
//	it, err := tree.Items()
//	if err != nil {
//		// handle error
//	}
//	var v T // must be declared here
//	for v, err, it = it(); it != nil; v, err, it = it() {
//		// do something with v
//	}
//	if err != nil {
//		// handle error
//	}
func (self *Tree[T, K, A]) Items() (iobtree.Iterator[T], error) {
	cur, err := self.Begin()
	if err != nil {
		return nil, err
	}
	return self.forward(cur, nil), nil
}

// Backward iterates from the largest value down.
func (self *Tree[T, K, A]) Backward() (it iobtree.Iterator[T], err error) {
	begin, err := self.Begin()
	if err != nil {
		return nil, err
	}
	cur, err := self.End()
	if err != nil {
		return nil, err
	}
	it = func() (v T, err error, _ iobtree.Iterator[T]) {
		if cur.Equal(begin) {
			return v, nil, nil
		}
		if err := cur.Prev(); err != nil {
			return v, err, nil
		}
		v, err = cur.Value()
		if err != nil {
			return v, err, nil
		}
		return v, nil, it
	}
	return it, nil
}

// Range iterates over the values with from <= key < to. The bounds are
// swapped when from is after to.
func (self *Tree[T, K, A]) Range(from, to K) (iobtree.Iterator[T], error) {
	if self.cmp(from, to) > 0 {
		from, to = to, from
	}
	cur, err := self.LowerBound(from)
	if err != nil {
		return nil, err
	}
	return self.forward(cur, func(v T) bool {
		return self.cmp(self.key(v), to) >= 0
	}), nil
}

// Equal iterates over the values whose key is k.
func (self *Tree[T, K, A]) Equal(k K) (iobtree.Iterator[T], error) {
	cur, err := self.LowerBound(k)
	if err != nil {
		return nil, err
	}
	return self.forward(cur, func(v T) bool {
		return self.cmp(self.key(v), k) != 0
	}), nil
}

//	err = tree.DoIterate(func(v T) error {
//		// do something with each value in the tree
//	})
func (self *Tree[T, K, A]) DoIterate(do func(T) error) error {
	return iobtree.Do(self.Items, do)
}

func (self *Tree[T, K, A]) DoFind(k K, do func(T) error) error {
	return iobtree.Do(
		func() (iobtree.Iterator[T], error) { return self.Equal(k) },
		do,
	)
}

func (self *Tree[T, K, A]) DoRange(from, to K, do func(T) error) error {
	return iobtree.Do(
		func() (iobtree.Iterator[T], error) { return self.Range(from, to) },
		do,
	)
}

// How many values have the key k.
func (self *Tree[T, K, A]) Count(k K) (count int, err error) {
	err = self.DoFind(k, func(T) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
