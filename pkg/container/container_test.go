package container_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/snapshotetl/pkg/codec"
	"github.com/ssargent/snapshotetl/pkg/container"
	"github.com/ssargent/snapshotetl/pkg/container/containertest"
)

func TestSanitize(t *testing.T) {
	testCases := []struct {
		name     string
		length   int
		capacity uint64
		want     error
	}{
		{"zero capacity", 0, 0, container.ErrTooSmall},
		{"too large", 0, codec.MaxContainerSize + 1, container.ErrTooLarge},
		{"length beyond capacity", 11, 10, container.ErrLengthMismatch},
		{"negative length", -1, 10, container.ErrLengthMismatch},
		{"empty length", 0, 10, nil},
		{"full", 10, 10, nil},
		{"max size", 0, codec.MaxContainerSize, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := container.Sanitize(tc.length, tc.capacity)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	owner := containertest.Key(0xA0)

	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, owner, []byte("hello")))
	b.Add(containertest.Account(2, owner, nil))

	t.Run("with spare capacity", func(t *testing.T) {
		path := b.WriteFile(t, dir, "spare", 128)

		c, err := container.Open(path, b.Len())
		require.NoError(t, err)
		defer c.Close()

		assert.Equal(t, path, c.Path())
		assert.Equal(t, b.Len(), c.Len())
		assert.Equal(t, uint64(b.Len()+128), c.Capacity())
		assert.Equal(t, uint64(128), c.RemainingBytes())
		assert.False(t, c.IsEmpty())

		rec, _, ok := c.Record(0)
		require.True(t, ok)
		assert.Equal(t, []byte("hello"), rec.Data)
	})

	t.Run("empty logical length", func(t *testing.T) {
		path := b.WriteFile(t, dir, "unused", 0)

		c, err := container.Open(path, 0)
		require.NoError(t, err)
		defer c.Close()

		assert.True(t, c.IsEmpty())
		assert.False(t, c.Iterator().Next())
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := container.Open(filepath.Join(dir, "missing"), 0)
		var cerr *container.ConstructionError
		require.ErrorAs(t, err, &cerr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty")
		require.NoError(t, os.WriteFile(path, nil, 0600))

		_, err := container.Open(path, 0)
		assert.ErrorIs(t, err, container.ErrTooSmall)
	})

	t.Run("length beyond file size", func(t *testing.T) {
		path := b.WriteFile(t, dir, "short", 0)

		_, err := container.Open(path, b.Len()+1)
		var cerr *container.ConstructionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, path, cerr.Path)
		assert.ErrorIs(t, err, container.ErrLengthMismatch)
	})
}

func TestFromReader(t *testing.T) {
	t.Run("copies exact length", func(t *testing.T) {
		src := bytes.Repeat([]byte{7}, 64)
		c, err := container.FromReader(bytes.NewReader(src), 32)
		require.NoError(t, err)
		defer c.Close()

		assert.Equal(t, 32, c.Len())
		assert.Equal(t, uint64(32), c.Capacity())
		assert.Equal(t, uint64(0), c.RemainingBytes())
		assert.Equal(t, "", c.Path())
	})

	t.Run("short stream", func(t *testing.T) {
		_, err := container.FromReader(bytes.NewReader(make([]byte, 10)), 32)
		assert.ErrorIs(t, err, container.ErrShortRead)
	})

	t.Run("zero length", func(t *testing.T) {
		_, err := container.FromReader(bytes.NewReader(nil), 0)
		assert.ErrorIs(t, err, container.ErrTooSmall)
	})
}

func TestSlice_Bounds(t *testing.T) {
	const length = 100
	c, err := container.FromReader(bytes.NewReader(make([]byte, length)), length)
	require.NoError(t, err)
	defer c.Close()

	testCases := []struct {
		name   string
		offset int
		size   int
		ok     bool
		next   int
	}{
		{"whole container", 0, length, true, 104},
		{"last byte", length - 1, 1, true, 104},
		{"empty at end", length, 0, true, 104},
		{"one past end", length, 1, false, 0},
		{"ends one past length", length - 1, 2, false, 0},
		{"size beyond length", 0, length + 1, false, 0},
		{"offset beyond length", length + 1, 0, false, 0},
		{"aligned mid", 8, 8, true, 16},
		{"unaligned mid", 3, 2, true, 8},
		{"offset overflow", math.MaxInt, 1, false, 0},
		{"size overflow", 1, math.MaxInt, false, 0},
		{"both huge", math.MaxInt, math.MaxInt, false, 0},
		{"negative offset", -1, 1, false, 0},
		{"negative size", 0, -1, false, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, next, ok := c.Slice(tc.offset, tc.size)
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.Nil(t, data)
				return
			}
			assert.Len(t, data, tc.size)
			assert.Equal(t, tc.size, cap(data))
			assert.Equal(t, tc.next, next)
			assert.Zero(t, next%codec.AlignBoundary)
		})
	}
}

func TestRecord_Fields(t *testing.T) {
	owner := containertest.Key(0xB0)
	acct := containertest.Account(9, owner, []byte("payload-of-13"))
	acct.Executable = true
	acct.Hash[0] = 0xCC

	b := containertest.NewBuilder()
	b.Add(acct)
	c := b.Container(t, b.Len())

	rec, next, ok := c.Record(0)
	require.True(t, ok)

	assert.Equal(t, acct.Key, rec.Header.Key)
	assert.Equal(t, acct.WriteVersion, rec.Header.WriteVersion)
	assert.Equal(t, uint64(len(acct.Data)), rec.Header.DataLength)
	assert.Equal(t, acct.Balance, rec.Attributes.Balance)
	assert.Equal(t, acct.RentEpoch, rec.Attributes.RentEpoch)
	assert.Equal(t, owner, rec.Attributes.Owner)
	assert.True(t, rec.Attributes.Executable)
	assert.Equal(t, acct.Hash, rec.Hash)
	assert.Equal(t, acct.Data, rec.Data)
	assert.Equal(t, 0, rec.Offset)

	// 48 + 56 + 32 + 13 = 149, aligned to 152
	assert.Equal(t, 152, rec.StoredSize)
	assert.Equal(t, 152, next)
	assert.Equal(t, b.Len(), next)
}

func TestRecord_HugeDataLength(t *testing.T) {
	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, containertest.Key(2), []byte("abcdefgh")))
	raw := b.Bytes()
	binary.LittleEndian.PutUint64(raw[8:], math.MaxUint64)

	c, err := container.FromReader(bytes.NewReader(raw), len(raw))
	require.NoError(t, err)
	defer c.Close()

	_, _, ok := c.Record(0)
	assert.False(t, ok)
	assert.False(t, c.Iterator().Next())
}

func TestFixedAccessors_OutOfBounds(t *testing.T) {
	c, err := container.FromReader(bytes.NewReader(make([]byte, 40)), 40)
	require.NoError(t, err)
	defer c.Close()

	_, _, ok := c.Header(0)
	assert.False(t, ok, "header needs 48 bytes")

	_, _, ok = c.Hash(8)
	assert.True(t, ok)

	_, _, ok = c.Hash(16)
	assert.False(t, ok)

	_, _, ok = c.Attributes(0)
	assert.False(t, ok)
}

func TestRecord_Clone(t *testing.T) {
	b := containertest.NewBuilder()
	b.Add(containertest.Account(3, containertest.Key(4), []byte("owned")))
	c, err := container.FromReader(bytes.NewReader(b.Bytes()), b.Len())
	require.NoError(t, err)

	rec, _, ok := c.Record(0)
	require.True(t, ok)
	acct := rec.Clone()
	require.NoError(t, c.Close())

	assert.Equal(t, []byte("owned"), acct.Data)
	assert.Equal(t, containertest.Key(3), acct.Key)
	assert.Equal(t, containertest.Key(4), acct.Owner)
}

func TestContainer_Close(t *testing.T) {
	b := containertest.NewBuilder()
	b.Add(containertest.Account(1, containertest.Key(2), nil))
	c, err := container.FromReader(bytes.NewReader(b.Bytes()), b.Len())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, _, ok := c.Slice(0, 1)
	assert.False(t, ok)
	assert.False(t, c.Retain())
	assert.False(t, c.Iterator().Next())
}
