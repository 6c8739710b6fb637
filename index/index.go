// Package index defines the contracts shared by the on-disk index formats.
//
// Two formats represent the same per-feature id set:
//
//   - sorted: a flat little-endian uint64 array (.u64), binary-searched
//     through a memory mapping
//   - bitmap: a serialized roaring bitmap (.roar), deserialized fully on
//     load for near-constant-time membership
//
// Both answer the same queries with identical semantics; callers choose a
// format by load cost, query cost and file size.
package index

import (
	"fmt"
	"strings"
)

// Format identifies an on-disk index representation.
type Format int

const (
	// FormatSorted is the flat sorted uint64 array format (.u64).
	FormatSorted Format = iota
	// FormatBitmap is the compressed roaring bitmap format (.roar).
	FormatBitmap
)

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatSorted:
		return ".u64"
	case FormatBitmap:
		return ".roar"
	default:
		return fmt.Sprintf(".invalid-%d", int(f))
	}
}

func (f Format) String() string {
	switch f {
	case FormatSorted:
		return "sorted"
	case FormatBitmap:
		return "bitmap"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FileName returns the index filename for a feature in the given format.
// The naming is deterministic so a directory of indices needs no manifest.
func FileName(feature string, f Format) string {
	return feature + f.Ext()
}

// FeatureFromFileName reports the feature encoded in an index filename,
// or ok=false if name does not carry the format's extension.
func FeatureFromFileName(name string, f Format) (feature string, ok bool) {
	feature, ok = strings.CutSuffix(name, f.Ext())
	if !ok || feature == "" {
		return "", false
	}
	return feature, true
}

// Handle is a loaded index for a single feature. Implementations are
// immutable after load and safe for concurrent readers.
type Handle interface {
	// Contains reports whether id is a member of the feature set.
	Contains(id uint64) bool
	// Count returns how many elements of ids are members, counted with
	// multiplicity: a matching id appearing twice contributes two.
	Count(ids []uint64) uint64
	// Cardinality returns the number of ids in the set.
	Cardinality() uint64
	// Close releases resources backing the handle.
	Close() error
}

// Sink consumes a strictly ascending, duplicate-free id sequence and
// publishes it as an index file. Close publishes atomically; Abort discards
// all intermediate state. Exactly one of the two must be called.
type Sink interface {
	Add(id uint64) error
	Close() error
	Abort() error
}

// ErrCorruptFile reports an index file whose contents are inconsistent
// with its format. It is never silently treated as an empty set.
type ErrCorruptFile struct {
	Path   string
	Reason string
	cause  error
}

// NewErrCorruptFile builds an ErrCorruptFile with an optional cause,
// accessible via errors.Unwrap.
func NewErrCorruptFile(path, reason string, cause error) *ErrCorruptFile {
	return &ErrCorruptFile{Path: path, Reason: reason, cause: cause}
}

func (e *ErrCorruptFile) Error() string {
	return fmt.Sprintf("corrupt index file %s: %s", e.Path, e.Reason)
}

func (e *ErrCorruptFile) Unwrap() error { return e.cause }
