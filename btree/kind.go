package btree

import (
	"github.com/timtadh/iobtree/errors"
)

type node interface {
	Leaf | Internal
}

// kind binds the store calls for one node kind so the structural
// operations below are written once for leaves and internal nodes.
type kind[K any, N node] struct {
	name       string
	min, max   int
	cmp        func(a, b K) int
	create     func() (N, error)
	destroy    func(N) error
	count      func(N) (int, error)
	setCount   func(N, int) error
	move       func(src N, si int, dst N, di int) error
	child      func(p Internal, i int) (N, error)
	countChild func(p Internal, i int) (int, error)
	index      func(c N, p Internal) (int, error)
	setChild   func(p Internal, i int, c N) error
	keyAt      func(n N, i int) (K, error)
	augment    func(c N, p Internal) error
}

func (o *kind[K, N]) minKey(n N) (K, error) {
	return o.keyAt(n, 0)
}

// split moves the upper half of a full node into a new right sibling.
func (o *kind[K, N]) split(left N) (right N, err error) {
	z, err := o.count(left)
	if err != nil {
		return right, err
	}
	if z != o.max {
		return right, errors.Invariantf("split of a %v which is not full (%d != %d)", o.name, z, o.max)
	}
	leftSize := o.max / 2
	rightSize := o.max - leftSize
	right, err = o.create()
	if err != nil {
		return right, err
	}
	for i := 0; i < rightSize; i++ {
		if err := o.move(left, leftSize+i, right, i); err != nil {
			return right, err
		}
	}
	if err := o.setCount(left, leftSize); err != nil {
		return right, err
	}
	return right, o.setCount(right, rightSize)
}

// shiftRight opens slot i of n (which holds z entries) for a key k by
// moving every later entry greater than k one to the right. It returns the
// slot to fill.
func (o *kind[K, N]) shiftRight(n N, z int, k K) (int, error) {
	i := z
	for ; i > 0; i-- {
		prev, err := o.keyAt(n, i-1)
		if err != nil {
			return 0, err
		}
		if o.cmp(k, prev) >= 0 {
			break
		}
		if err := o.move(n, i-1, n, i); err != nil {
			return 0, err
		}
	}
	return i, nil
}

// insertChild places c in p directly after its left sibling, which is
// already a child of n, and stores c's augment there. Position decides the
// slot, not c's key: equal keys may span both siblings.
func insertChild[K any, C node](p *kind[K, Internal], n Internal, left, c C, co *kind[K, C]) error {
	z, err := p.count(n)
	if err != nil {
		return err
	}
	if z >= p.max {
		return errors.Invariantf("insert into a full %v (%d)", p.name, z)
	}
	li, err := co.index(left, n)
	if err != nil {
		return err
	}
	i := li + 1
	for j := z; j > i; j-- {
		if err := p.move(n, j-1, n, j); err != nil {
			return err
		}
	}
	if err := co.setChild(n, i, c); err != nil {
		return err
	}
	if err := p.setCount(n, z+1); err != nil {
		return err
	}
	return co.augment(c, n)
}

// splitAndInsertChild splits the full node n and puts c after left in
// whichever half left landed in. It returns the new right half.
func splitAndInsertChild[K any, C node](p *kind[K, Internal], n Internal, left, c C, co *kind[K, C]) (Internal, error) {
	li, err := co.index(left, n)
	if err != nil {
		return 0, err
	}
	n2, err := p.split(n)
	if err != nil {
		return 0, err
	}
	if li < p.max/2 {
		err = insertChild(p, n, left, c, co)
	} else {
		err = insertChild(p, n2, left, c, co)
	}
	return n2, err
}

// fixup repairs the underfull child c of parent by borrowing from a
// sibling or merging with one. It reports whether the parent still meets
// its minimum occupancy afterwards.
func fixup[K any, C node](p *kind[K, Internal], parent Internal, c C, co *kind[K, C]) (bool, error) {
	z, err := co.count(c)
	if err != nil {
		return false, err
	}
	i, err := co.index(c, parent)
	if err != nil {
		return false, err
	}
	pz, err := p.count(parent)
	if err != nil {
		return false, err
	}

	if i != 0 {
		lz, err := co.countChild(parent, i-1)
		if err != nil {
			return false, err
		}
		if lz > co.min {
			left, err := co.child(parent, i-1)
			if err != nil {
				return false, err
			}
			for j := 0; j < z; j++ {
				if err := co.move(c, z-j-1, c, z-j); err != nil {
					return false, err
				}
			}
			if err := co.move(left, lz-1, c, 0); err != nil {
				return false, err
			}
			if err := co.setCount(left, lz-1); err != nil {
				return false, err
			}
			if err := co.setCount(c, z+1); err != nil {
				return false, err
			}
			if err := co.augment(c, parent); err != nil {
				return false, err
			}
			return true, co.augment(left, parent)
		}
	}

	if i+1 != pz {
		rz, err := co.countChild(parent, i+1)
		if err != nil {
			return false, err
		}
		if rz > co.min {
			right, err := co.child(parent, i+1)
			if err != nil {
				return false, err
			}
			if err := co.move(right, 0, c, z); err != nil {
				return false, err
			}
			for j := 0; j+1 < rz; j++ {
				if err := co.move(right, j+1, right, j); err != nil {
					return false, err
				}
			}
			if err := co.setCount(right, rz-1); err != nil {
				return false, err
			}
			if err := co.setCount(c, z+1); err != nil {
				return false, err
			}
			if err := co.augment(c, parent); err != nil {
				return false, err
			}
			return true, co.augment(right, parent)
		}
	}

	if pz < 2 {
		return false, errors.Invariantf("underfull %v has no sibling to merge with", co.name)
	}
	var c1, c2 C
	if i == 0 {
		c1 = c
		if c2, err = co.child(parent, i+1); err != nil {
			return false, err
		}
	} else {
		if c1, err = co.child(parent, i-1); err != nil {
			return false, err
		}
		c2 = c
	}

	z1, err := co.count(c1)
	if err != nil {
		return false, err
	}
	z2, err := co.count(c2)
	if err != nil {
		return false, err
	}
	if z1+z2 > co.max {
		return false, errors.Invariantf("merge of %v overflows: %d + %d > %d", co.name, z1, z2, co.max)
	}
	for j := 0; j < z2; j++ {
		if err := co.move(c2, j, c1, z1+j); err != nil {
			return false, err
		}
	}
	if err := co.setCount(c1, z1+z2); err != nil {
		return false, err
	}
	if err := co.setCount(c2, 0); err != nil {
		return false, err
	}

	id, err := co.index(c2, parent)
	if err != nil {
		return false, err
	}
	last := pz - 1
	for ; id != last; id++ {
		if err := p.move(parent, id+1, parent, id); err != nil {
			return false, err
		}
	}
	if err := p.setCount(parent, last); err != nil {
		return false, err
	}
	if err := co.destroy(c2); err != nil {
		return false, err
	}
	if err := co.augment(c1, parent); err != nil {
		return false, err
	}
	return last >= p.min, nil
}
