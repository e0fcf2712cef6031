package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping owns a memory-mapped region and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	sealed atomic.Bool
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// Map maps the first size bytes of f read-only. The file may be closed once
// Map returns; the mapping stays valid until Close.
func Map(f *os.File, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMap(f, size)
	if err != nil {
		return nil, err
	}

	m := &Mapping{
		data:  data,
		unmap: unmapFunc,
	}
	m.sealed.Store(true)

	return m, nil
}

// Anon creates a private anonymous mapping of size bytes. The region is
// writable until Seal is called.
func Anon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		unmap: unmapFunc,
	}, nil
}

// Seal makes an anonymous mapping read-only.
func (m *Mapping) Seal() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.sealed.Swap(true) {
		return ErrSealed
	}
	return osProtectRead(m.data)
}

// Bytes returns the mapped region.
// Warning: The slice is valid only until Close() is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.data, pattern)
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}
