// Package containertest builds containers in memory for tests.
package containertest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/container"
)

// Builder appends encoded records to an in-memory buffer.
type Builder struct {
	buf     []byte
	offsets []int
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Add encodes acct as the next record and returns its offset.
func (b *Builder) Add(acct container.Account) int {
	offset := len(b.buf)
	b.offsets = append(b.offsets, offset)

	var header [codec.HeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:], acct.WriteVersion)
	binary.LittleEndian.PutUint64(header[8:], uint64(len(acct.Data)))
	copy(header[16:], acct.Key[:])

	var attrs [codec.AttributesSize]byte
	binary.LittleEndian.PutUint64(attrs[0:], acct.Balance)
	binary.LittleEndian.PutUint64(attrs[8:], acct.RentEpoch)
	copy(attrs[16:], acct.Owner[:])
	if acct.Executable {
		attrs[16+codec.PubkeySize] = 1
	}

	b.buf = append(b.buf, header[:]...)
	b.buf = append(b.buf, attrs[:]...)
	b.buf = append(b.buf, acct.Hash[:]...)
	b.buf = append(b.buf, acct.Data...)
	b.buf = append(b.buf, make([]byte, codec.Align(len(b.buf))-len(b.buf))...)

	return offset
}

// Offsets returns the offset of every record added so far.
func (b *Builder) Offsets() []int {
	return append([]int(nil), b.offsets...)
}

// Len returns the encoded length, which is always 8-byte aligned.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Bytes returns a copy of the encoded records.
func (b *Builder) Bytes() []byte {
	return append([]byte(nil), b.buf...)
}

// WriteFile writes the records followed by spare zero bytes of unused
// capacity to dir/name and returns the path.
func (b *Builder) WriteFile(tb testing.TB, dir, name string, spare int) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	data := append(b.Bytes(), make([]byte, spare)...)
	require.NoError(tb, os.WriteFile(path, data, 0600))

	return path
}

// Container builds a stream-backed container over the first length bytes.
// The container is closed when the test ends.
func (b *Builder) Container(tb testing.TB, length int) *container.Container {
	tb.Helper()

	c, err := container.FromReader(bytes.NewReader(b.buf[:length]), length)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = c.Close() })

	return c
}

// Key returns a deterministic non-zero key derived from seed.
func Key(seed byte) codec.Pubkey {
	var p codec.Pubkey
	for i := range p {
		p[i] = seed ^ byte(i*31)
	}
	p[0] = seed
	p[codec.PubkeySize-1] = 0xFF
	return p
}

// Account returns an account with the given key seed, owner and payload.
func Account(seed byte, owner codec.Pubkey, data []byte) container.Account {
	return container.Account{
		Key:          Key(seed),
		Owner:        owner,
		Balance:      uint64(seed) * 1000,
		RentEpoch:    uint64(seed),
		WriteVersion: uint64(seed),
		Data:         data,
	}
}
