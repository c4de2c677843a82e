package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemRegion_Bounds(t *testing.T) {
	r := NewMemRegion(16)

	_, err := r.Read(10, 7)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, r.Write(15, []byte{1, 2}), ErrOutOfBounds)
	assert.ErrorIs(t, r.Write(-1, []byte{1}), ErrOutOfBounds)

	require.NoError(t, r.Write(14, []byte{1, 2}))
	b, err := r.Read(14, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)
}

func TestMemRegion_StartsErased(t *testing.T) {
	b, err := NewMemRegion(4).Read(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, b)
}

func TestFileRegion_CreatesErasedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "region.bin")

	r, err := OpenFileRegion(path, 32)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(32), info.Size())

	b, err := r.Read(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, b)
}

func TestFileRegion_WriteRead(t *testing.T) {
	r, err := OpenFileRegion(filepath.Join(t.TempDir(), "region.bin"), 64)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	require.NoError(t, r.Write(8, []byte("hello")))
	b, err := r.Read(8, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	assert.ErrorIs(t, r.Write(62, []byte("abc")), ErrOutOfBounds)
	assert.Equal(t, 64, r.Size())
}

func TestOpenFileRegion_RejectsZeroSize(t *testing.T) {
	_, err := OpenFileRegion(filepath.Join(t.TempDir(), "r.bin"), 0)
	assert.Error(t, err)
}
