package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_ReadOnlyFile(t *testing.T) {
	content := []byte("Hello, Mmap!")
	path := filepath.Join(t.TempDir(), "mmap_test")
	require.NoError(t, os.WriteFile(path, content, 0600))

	f, err := os.Open(path)
	require.NoError(t, err)
	m, err := Map(f, len(content))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())
	assert.NoError(t, m.Advise(AccessSequential))
	assert.ErrorIs(t, m.Seal(), ErrSealed)
}

func TestMap_InvalidSize(t *testing.T) {
	_, err := Map(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = Anon(-1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestAnon_FillAndSeal(t *testing.T) {
	m, err := Anon(64)
	require.NoError(t, err)
	defer m.Close()

	buf := m.Bytes()
	require.Len(t, buf, 64)
	for i := range buf {
		buf[i] = byte(i)
	}

	require.NoError(t, m.Seal())
	assert.Equal(t, byte(63), m.Bytes()[63])
	assert.ErrorIs(t, m.Seal(), ErrSealed)
}

func TestMapping_CloseIdempotent(t *testing.T) {
	m, err := Anon(16)
	require.NoError(t, err)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
	assert.ErrorIs(t, m.Seal(), ErrClosed)
}
