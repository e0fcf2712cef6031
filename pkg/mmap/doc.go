// Package mmap provides read-only memory mappings of files and sealed
// anonymous mappings used as the backing memory of containers.
//
// A file mapping is read-only from the start. An anonymous mapping is
// writable until Seal is called, which lets a caller fill it from a stream
// and then freeze it:
//
//	m, err := mmap.Anon(n)
//	if err != nil { ... }
//	_, err = io.ReadFull(r, m.Bytes())
//	err = m.Seal()
//
// Slices returned by Bytes alias the mapping and become invalid after Close.
// Close is idempotent.
package mmap
