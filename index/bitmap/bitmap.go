// Package bitmap implements the compressed bitmap index format (.roar).
//
// The file is the canonical serialization of a 64-bit roaring bitmap
// holding the feature's node ids. It trades a full deserialization on load
// for near-constant-time membership and a much smaller file than the flat
// format on sparse or clustered id distributions.
package bitmap

import (
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/osmnode/index"
	"github.com/hupe1980/osmnode/internal/fsutil"
)

// Index is a loaded .roar index. It is immutable and safe for concurrent
// readers.
type Index struct {
	bm        *roaring64.Bitmap
	sizeBytes int64
}

var _ index.Handle = (*Index)(nil)

// Open reads and deserializes the .roar file at path.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	bm := roaring64.New()
	if fi.Size() > 0 {
		if _, err := bm.ReadFrom(f); err != nil {
			return nil, index.NewErrCorruptFile(path, "roaring bitmap deserialization failed", err)
		}
	}
	return &Index{bm: bm, sizeBytes: fi.Size()}, nil
}

// Contains tests membership in the bitmap.
func (idx *Index) Contains(id uint64) bool {
	return idx.bm.Contains(id)
}

// Count reports how many elements of ids are present, counted with
// multiplicity. The input need not be sorted or unique.
func (idx *Index) Count(ids []uint64) uint64 {
	var n uint64
	for _, id := range ids {
		if idx.bm.Contains(id) {
			n++
		}
	}
	return n
}

// Cardinality returns the number of ids in the bitmap.
func (idx *Index) Cardinality() uint64 {
	return idx.bm.GetCardinality()
}

// SizeBytes returns the serialized size of the index on disk.
func (idx *Index) SizeBytes() int64 {
	return idx.sizeBytes
}

// Close releases the in-memory bitmap.
func (idx *Index) Close() error {
	idx.bm = nil
	return nil
}

// Sink accumulates an ascending unique id sequence into a roaring bitmap
// and serializes it atomically on Close.
type Sink struct {
	path string
	bm   *roaring64.Bitmap
	done bool
}

var _ index.Sink = (*Sink)(nil)

// NewSink creates a sink that will publish to path on Close.
func NewSink(path string) *Sink {
	return &Sink{path: path, bm: roaring64.New()}
}

// Add inserts an id into the bitmap.
func (s *Sink) Add(id uint64) error {
	if s.done {
		return fmt.Errorf("bitmap: sink for %s is closed", s.path)
	}
	s.bm.Add(id)
	return nil
}

// Close run-optimizes the bitmap and publishes its serialization
// atomically. An empty sink publishes an empty bitmap.
func (s *Sink) Close() error {
	if s.done {
		return nil
	}
	s.done = true

	bm := s.bm
	s.bm = nil
	bm.RunOptimize()
	return fsutil.WriteFileAtomic(s.path, func(w io.Writer) error {
		_, err := bm.WriteTo(w)
		return err
	})
}

// Abort discards the in-memory bitmap without touching the target path.
func (s *Sink) Abort() error {
	s.done = true
	s.bm = nil
	return nil
}
