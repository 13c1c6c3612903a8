package iobtree

// Multiset is the closure style surface of a tree: an ordered collection
// of values with possibly repeated keys.
type Multiset[T, K any] interface {
	Items() (Iterator[T], error)
	Backward() (Iterator[T], error)
	Range(from, to K) (Iterator[T], error)
	DoIterate(do func(T) error) error
	DoFind(key K, do func(T) error) error
	DoRange(from, to K, do func(T) error) error
	Has(key K) (bool, error)
	Count(key K) (int, error)
	Insert(v T) error
	EraseKey(key K) (int, error)
	Size() int
}

// Iterator yields one value per call. A nil next iterator means the
// sequence is over; check err then.
type Iterator[T any] func() (T, error, Iterator[T])

// Do runs do on every value run's iterator yields, stopping at the first
// error.
func Do[T any](run func() (Iterator[T], error), do func(T) error) error {
	it, err := run()
	if err != nil {
		return err
	}
	var item T
	for item, err, it = it(); it != nil; item, err, it = it() {
		if e := do(item); e != nil {
			return e
		}
	}
	return err
}

// Collect drains an iterator into a slice.
func Collect[T any](it Iterator[T], err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	var items []T
	var item T
	for item, err, it = it(); it != nil; item, err, it = it() {
		items = append(items, item)
	}
	return items, err
}
