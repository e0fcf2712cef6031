package container

import (
	"io"
	"math"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/mmap"
)

// Container is a read-only, memory-mapped block of account records.
//
// The first Len() bytes hold records; the remaining Capacity()-Len() bytes
// are allocated but unused. A Container never changes after construction, so
// any number of goroutines may read it without synchronization.
//
// A Container is reference counted. The constructor's caller holds one
// reference and releases it with Close; every Iterator holds another. The
// mapping is released when the last reference is dropped, after which all
// slices previously returned by the Container are invalid.
type Container struct {
	path     string
	mapping  *mmap.Mapping
	data     []byte
	length   int
	capacity uint64

	refs   atomic.Int64
	closed atomic.Bool
}

// Sanitize validates a declared logical length against the capacity of the
// backing storage.
func Sanitize(length int, capacity uint64) error {
	switch {
	case capacity == 0:
		return errors.Wrapf(ErrTooSmall, "size %d", capacity)
	case capacity > codec.MaxContainerSize || capacity > math.MaxInt:
		return errors.Wrapf(ErrTooLarge, "size %d", capacity)
	case length < 0 || uint64(length) > capacity:
		return errors.Wrapf(ErrLengthMismatch, "length %d, size %d", length, capacity)
	}
	return nil
}

// Open maps the file at path read-only. length is the number of bytes
// holding valid records; the capacity is the size of the file.
func Open(path string, length int) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConstructionError{Path: path, Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, &ConstructionError{Path: path, Err: err}
	}
	if fi.Size() < 0 {
		return nil, &ConstructionError{Path: path, Err: errors.Wrapf(ErrTooSmall, "size %d", fi.Size())}
	}

	capacity := uint64(fi.Size())
	if err := Sanitize(length, capacity); err != nil {
		return nil, &ConstructionError{Path: path, Err: err}
	}

	m, err := mmap.Map(f, int(capacity))
	if err != nil {
		return nil, &MappingError{Path: path, Size: int(capacity), Err: err}
	}
	// Records are consumed front to back.
	_ = m.Advise(mmap.AccessSequential)

	return newContainer(path, m, length, capacity), nil
}

// FromReader copies exactly length bytes from r into an anonymous mapping
// which is then made read-only. The capacity equals length.
func FromReader(r io.Reader, length int) (*Container, error) {
	if err := Sanitize(length, uint64(max(length, 0))); err != nil {
		return nil, &ConstructionError{Err: err}
	}

	m, err := mmap.Anon(length)
	if err != nil {
		return nil, &MappingError{Size: length, Err: err}
	}

	if _, err := io.ReadFull(r, m.Bytes()); err != nil {
		_ = m.Close()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = errors.Wrapf(ErrShortRead, "want %d bytes", length)
		}
		return nil, &ConstructionError{Err: errors.Wrap(err, "copy stream")}
	}

	if err := m.Seal(); err != nil {
		_ = m.Close()
		return nil, &MappingError{Size: length, Err: err}
	}

	return newContainer("", m, length, uint64(length)), nil
}

func newContainer(path string, m *mmap.Mapping, length int, capacity uint64) *Container {
	c := &Container{
		path:     path,
		mapping:  m,
		data:     m.Bytes(),
		length:   length,
		capacity: capacity,
	}
	c.refs.Store(1)
	return c
}

// Path returns the file backing the container, or "" for stream-built containers.
func (c *Container) Path() string {
	return c.path
}

// Len returns the number of bytes holding records.
func (c *Container) Len() int {
	return c.length
}

// IsEmpty reports whether the container holds no record bytes.
func (c *Container) IsEmpty() bool {
	return c.length == 0
}

// Capacity returns the number of bytes allocated for the container.
func (c *Container) Capacity() uint64 {
	return c.capacity
}

// RemainingBytes returns how many more bytes the container could hold.
func (c *Container) RemainingBytes() uint64 {
	used := uint64(c.length)
	if used >= c.capacity {
		return 0
	}
	return c.capacity - used
}

// Retain adds a reference. It returns false if the container is already released.
func (c *Container) Retain() bool {
	for {
		n := c.refs.Load()
		if n <= 0 {
			return false
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Close drops the caller's reference. The mapping stays alive while
// iterators created from the container are open. Close is idempotent.
func (c *Container) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.release()
}

func (c *Container) release() error {
	if c.refs.Add(-1) == 0 {
		return c.mapping.Close()
	}
	return nil
}

func (c *Container) live() bool {
	return c.refs.Load() > 0
}

// Slice returns the size bytes starting at offset, and the 8-byte aligned
// offset following them. ok is false when the range overflows or extends past
// Len(), or when the container has been released.
func (c *Container) Slice(offset, size int) (data []byte, next int, ok bool) {
	if offset < 0 || size < 0 || !c.live() {
		return nil, 0, false
	}

	end := offset + size
	if end < offset || end > c.length {
		return nil, 0, false
	}

	return c.data[offset:end:end], codec.Align(end), true
}

// fixed decodes a fixed-width structure of size bytes at offset.
func fixed[T any](c *Container, offset, size int, decode func([]byte) (T, error)) (T, int, bool) {
	var zero T

	data, next, ok := c.Slice(offset, size)
	if !ok {
		return zero, 0, false
	}

	v, err := decode(data)
	if err != nil {
		return zero, 0, false
	}

	return v, next, true
}

// Header decodes the record header at offset.
func (c *Container) Header(offset int) (codec.Header, int, bool) {
	return fixed(c, offset, codec.HeaderSize, codec.DecodeHeader)
}

// Attributes decodes the account attributes at offset.
func (c *Container) Attributes(offset int) (codec.Attributes, int, bool) {
	return fixed(c, offset, codec.AttributesSize, codec.DecodeAttributes)
}

// Hash decodes the content hash at offset.
func (c *Container) Hash(offset int) (codec.Hash, int, bool) {
	return fixed(c, offset, codec.HashSize, codec.DecodeHash)
}

// Record decodes the complete record at offset and returns the offset of the
// record that follows it. Any bounds failure along the way yields ok == false.
func (c *Container) Record(offset int) (Record, int, bool) {
	header, next, ok := c.Header(offset)
	if !ok {
		return Record{}, 0, false
	}

	attrs, next, ok := c.Attributes(next)
	if !ok {
		return Record{}, 0, false
	}

	hash, next, ok := c.Hash(next)
	if !ok {
		return Record{}, 0, false
	}

	if header.DataLength > uint64(c.length) {
		return Record{}, 0, false
	}
	data, next, ok := c.Slice(next, int(header.DataLength))
	if !ok {
		return Record{}, 0, false
	}

	return Record{
		Header:     header,
		Attributes: attrs,
		Hash:       hash,
		Data:       data,
		Offset:     offset,
		StoredSize: next - offset,
	}, next, true
}
