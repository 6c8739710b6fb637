// Package mmap provides read-only memory-mapped access to index files.
//
// Mapping a sorted index file lets queries binary-search gigabyte-scale
// id arrays without reading them into the heap. Platforms without mmap
// support can use ReadFile, which loads the file fully and behaves
// identically through the same Mapping type.
package mmap

import (
	"errors"
	"os"
	"sync/atomic"
)

// ErrClosed is returned when accessing a closed mapping.
var ErrClosed = errors.New("mmap: mapping is closed")

// Mapping is a read-only view of a file's contents. It owns the underlying
// byte slice and is responsible for releasing it on Close.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	// unmap releases the mapping; nil for heap-backed mappings.
	unmap func([]byte) error
}

// Open maps the file at path into memory read-only. Open performs no bulk
// I/O; pages are faulted in on access.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// ReadFile is the full-read fallback: it loads the whole file into memory
// and wraps it in a Mapping indistinguishable from a mapped one.
func ReadFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &Mapping{}, nil
	}
	return &Mapping{data: data}, nil
}

// Bytes returns the mapped contents. The slice is valid only until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the length of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Close releases the mapping. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}
