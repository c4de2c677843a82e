package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrOutOfBounds is returned for accesses beyond the end of a region
var ErrOutOfBounds = errors.New("access outside region")

// Region is a fixed-size, byte-addressable durable memory area.
// A Write that returns nil must survive power loss.
type Region interface {
	Read(offset, length int) ([]byte, error)
	Write(offset int, data []byte) error
	Size() int
}

// erased is the fill value of a fresh region, matching erased flash
const erased = 0xFF

func checkBounds(size, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > size {
		return fmt.Errorf("%w: offset=%d length=%d size=%d", ErrOutOfBounds, offset, length, size)
	}
	return nil
}

// MemRegion is a volatile Region, used by tests and dry runs
type MemRegion struct {
	mu   sync.Mutex
	data []byte
}

// NewMemRegion creates an erased in-memory region of the given size
func NewMemRegion(size int) *MemRegion {
	return &MemRegion{data: bytes.Repeat([]byte{erased}, size)}
}

func (m *MemRegion) Read(offset, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkBounds(len(m.data), offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.data[offset:])
	return out, nil
}

func (m *MemRegion) Write(offset int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkBounds(len(m.data), offset, len(data)); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *MemRegion) Size() int { return len(m.data) }

// FileRegion is a Region backed by a file. Every write is followed by an
// fsync, so a returned write is on stable storage.
type FileRegion struct {
	mu   sync.Mutex
	f    *os.File
	size int
}

// OpenFileRegion opens (or creates) the file at path and sizes it to size
// bytes. A newly created file is filled with 0xFF.
func OpenFileRegion(path string, size int) (*FileRegion, error) {
	if size <= 0 {
		return nil, fmt.Errorf("region size must be > 0, got %d", size)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create region directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open region file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat region file: %w", err)
	}

	// grow with erased bytes; never shrink an existing image
	if cur := int(info.Size()); cur < size {
		fill := bytes.Repeat([]byte{erased}, size-cur)
		if _, err := f.WriteAt(fill, int64(cur)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to initialise region file: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to sync region file: %w", err)
		}
	}

	return &FileRegion{f: f, size: size}, nil
}

func (r *FileRegion) Read(offset, length int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkBounds(r.size, offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	if _, err := r.f.ReadAt(out, int64(offset)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read region: %w", err)
	}
	return out, nil
}

func (r *FileRegion) Write(offset int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkBounds(r.size, offset, len(data)); err != nil {
		return err
	}
	if _, err := r.f.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("failed to write region: %w", err)
	}
	if err := r.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync region: %w", err)
	}
	return nil
}

func (r *FileRegion) Size() int { return r.size }

// Close closes the backing file
func (r *FileRegion) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
