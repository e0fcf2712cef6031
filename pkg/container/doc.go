// Package container reads append-only account containers.
//
// A container is a memory-mapped file (or a sealed anonymous mapping filled
// from a stream) holding records in the layout described by package codec.
// Only the first Len() bytes are meaningful; capacity beyond that is unused.
//
// # Reading
//
//	c, err := container.Open("123.4", length)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	it := c.Iterator()
//	defer it.Close()
//	for it.Next() {
//	    rec := it.Record()
//	    ...
//	}
//
// # Bounds
//
// Every accessor checks offset+size with overflow detection against Len()
// and reports failure with ok == false rather than an error. The iterator
// treats that as the end of the container, so a container cut in the middle
// of a record yields every complete record before the cut and then stops.
//
// # Lifetime
//
// Record.Data aliases the mapping. The mapping is released once the owner
// and every iterator have called Close; records must not be used after that.
// Record.Clone returns an owned copy.
package container
