package container

import "sync/atomic"

// Iterator walks the records of a container front to back. It starts at
// offset 0 and stops for good the first time a record cannot be decoded,
// which is both the normal end of a container and the end of a truncated one.
//
// An Iterator is single-pass and not safe for concurrent use, but any number
// of iterators may walk the same container at once.
type Iterator struct {
	c      *Container
	offset int
	record Record
	done   bool
	closed atomic.Bool
}

// Iterator returns a new iterator holding a reference to the container.
// An iterator over a released container yields nothing.
func (c *Container) Iterator() *Iterator {
	it := &Iterator{c: c}
	if !c.Retain() {
		it.done = true
		it.closed.Store(true)
	}
	return it
}

// Next advances to the next record and reports whether there is one.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}

	rec, next, ok := it.c.Record(it.offset)
	if !ok {
		it.done = true
		it.record = Record{}
		return false
	}

	it.record = rec
	it.offset = next
	return true
}

// Record returns the record produced by the last successful Next.
func (it *Iterator) Record() Record {
	return it.record
}

// Offset returns the offset the iterator will read from next. After the
// iterator is exhausted it is the end of the last complete record.
func (it *Iterator) Offset() int {
	return it.offset
}

// Close releases the iterator's reference to the container. Records
// returned by the iterator must not be used afterwards.
func (it *Iterator) Close() error {
	if it.closed.Swap(true) {
		return nil
	}
	it.done = true
	it.record = Record{}
	return it.c.release()
}
