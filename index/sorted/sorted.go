// Package sorted implements the flat sorted uint64 index format (.u64).
//
// The file is a raw array of little-endian uint64 values in strictly
// ascending order, no header, no padding. Element count is the file size
// divided by eight; anything else is corruption. Queries binary-search a
// read-only memory mapping of the file, so opening an index performs no
// bulk I/O.
package sorted

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unsafe"

	"github.com/hupe1980/osmnode/index"
	"github.com/hupe1980/osmnode/internal/fsutil"
	"github.com/hupe1980/osmnode/internal/mmap"
)

const idSize = 8

// Index is a loaded .u64 index. It is immutable and safe for concurrent
// readers.
type Index struct {
	ids     []uint64
	mapping *mmap.Mapping
}

var _ index.Handle = (*Index)(nil)

// Open memory-maps the .u64 file at path.
func Open(path string) (*Index, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return fromMapping(path, m)
}

// OpenInMemory reads the whole file instead of mapping it. It behaves
// identically to Open and exists for environments without mmap support.
func OpenInMemory(path string) (*Index, error) {
	m, err := mmap.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fromMapping(path, m)
}

func fromMapping(path string, m *mmap.Mapping) (*Index, error) {
	data := m.Bytes()
	if len(data)%idSize != 0 {
		_ = m.Close()
		return nil, index.NewErrCorruptFile(path, fmt.Sprintf("size %d is not a multiple of %d", len(data), idSize), nil)
	}
	idx := &Index{mapping: m}
	if len(data) > 0 {
		// The mapping is page-aligned (or heap-allocated), so the cast is safe.
		idx.ids = unsafe.Slice((*uint64)(unsafe.Pointer(&data[0])), len(data)/idSize)
	}
	return idx, nil
}

// Contains binary-searches the mapped array. O(log n), no allocation.
func (idx *Index) Contains(id uint64) bool {
	i := sort.Search(len(idx.ids), func(i int) bool { return idx.ids[i] >= id })
	return i < len(idx.ids) && idx.ids[i] == id
}

// Count reports how many elements of ids are present, counted with
// multiplicity. The input need not be sorted or unique.
func (idx *Index) Count(ids []uint64) uint64 {
	var n uint64
	for _, id := range ids {
		if idx.Contains(id) {
			n++
		}
	}
	return n
}

// Cardinality returns the number of ids in the index.
func (idx *Index) Cardinality() uint64 {
	return uint64(len(idx.ids))
}

// SizeBytes returns the on-disk size of the index.
func (idx *Index) SizeBytes() int64 {
	return int64(len(idx.ids)) * idSize
}

// Close unmaps the file. The index must not be used afterwards.
func (idx *Index) Close() error {
	idx.ids = nil
	if idx.mapping != nil {
		return idx.mapping.Close()
	}
	return nil
}

// Sink streams an ascending unique id sequence into a .u64 file.
// Ids are written through a staged temp file that is renamed into place on
// Close, so readers never observe a partial index.
type Sink struct {
	path string
	w    *fsutil.AtomicWriter
	last uint64
	any  bool
	done bool
}

var _ index.Sink = (*Sink)(nil)

// NewSink creates a sink that will publish to path on Close.
func NewSink(path string) (*Sink, error) {
	w, err := fsutil.NewAtomicWriter(path)
	if err != nil {
		return nil, err
	}
	return &Sink{path: path, w: w}, nil
}

// Add appends an id. Ids must arrive in strictly ascending order.
func (s *Sink) Add(id uint64) error {
	if s.done {
		return fmt.Errorf("sorted: sink for %s is closed", s.path)
	}
	if s.any && id <= s.last {
		return fmt.Errorf("sorted: id %d out of order after %d", id, s.last)
	}
	s.last = id
	s.any = true

	var buf [idSize]byte
	binary.LittleEndian.PutUint64(buf[:], id)
	_, err := s.w.Write(buf[:])
	return err
}

// Close publishes the file atomically. An empty sink publishes an empty
// file, which loads as an empty set.
func (s *Sink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.w.Commit()
}

// Abort discards the staged file without touching the target path.
func (s *Sink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.w.Abort()
}
