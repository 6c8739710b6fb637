package osmnode

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/osmnode/index"
	"github.com/hupe1980/osmnode/index/bitmap"
	sortedidx "github.com/hupe1980/osmnode/index/sorted"
)

// Reader answers membership and count queries over a directory of index
// files, dispatching to whichever format its preference selected per
// feature. All loaded handles are immutable; a Reader is safe for
// concurrent use.
type Reader struct {
	dir     string
	handles map[string]index.Handle
	formats map[string]index.Format
}

// OpenReader discovers the index files in dir and loads one handle per
// feature according to the format preference. A corrupt file fails the
// open; it is never treated as an empty set.
func OpenReader(dir string, opts ...ReaderOption) (*Reader, error) {
	o := readerOptions{preference: PreferBitmap}
	for _, opt := range opts {
		opt(&o)
	}

	available, err := discover(dir)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		dir:     dir,
		handles: make(map[string]index.Handle),
		formats: make(map[string]index.Format),
	}
	for feature, formats := range available {
		format, ok := pick(o.preference, formats)
		if !ok {
			continue
		}
		h, err := openHandle(filepath.Join(dir, index.FileName(feature, format)), format, o.inMemory)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.handles[feature] = h
		r.formats[feature] = format
	}
	return r, nil
}

// discover maps each feature present in dir to the set of formats it was
// built with. The deterministic filename convention makes a manifest
// unnecessary.
func discover(dir string) (map[string]map[index.Format]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	available := make(map[string]map[index.Format]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, format := range []index.Format{index.FormatSorted, index.FormatBitmap} {
			feature, ok := index.FeatureFromFileName(entry.Name(), format)
			if !ok {
				continue
			}
			if available[feature] == nil {
				available[feature] = make(map[index.Format]bool)
			}
			available[feature][format] = true
		}
	}
	return available, nil
}

func pick(p Preference, formats map[index.Format]bool) (index.Format, bool) {
	switch p {
	case BitmapOnly:
		return index.FormatBitmap, formats[index.FormatBitmap]
	case SortedOnly:
		return index.FormatSorted, formats[index.FormatSorted]
	case PreferSorted:
		if formats[index.FormatSorted] {
			return index.FormatSorted, true
		}
		return index.FormatBitmap, formats[index.FormatBitmap]
	default: // PreferBitmap
		if formats[index.FormatBitmap] {
			return index.FormatBitmap, true
		}
		return index.FormatSorted, formats[index.FormatSorted]
	}
}

func openHandle(path string, format index.Format, inMemory bool) (index.Handle, error) {
	switch format {
	case index.FormatBitmap:
		return bitmap.Open(path)
	default:
		if inMemory {
			return sortedidx.OpenInMemory(path)
		}
		return sortedidx.Open(path)
	}
}

// Features returns the loaded feature names, sorted.
func (r *Reader) Features() []string {
	features := make([]string, 0, len(r.handles))
	for name := range r.handles {
		features = append(features, name)
	}
	sort.Strings(features)
	return features
}

// Format reports which format backs the given feature.
func (r *Reader) Format(feature string) (index.Format, error) {
	format, ok := r.formats[feature]
	if !ok {
		return 0, &ErrMissingFeature{Feature: feature, Dir: r.dir}
	}
	return format, nil
}

// Contains reports whether id is in the feature's set.
func (r *Reader) Contains(feature string, id uint64) (bool, error) {
	h, ok := r.handles[feature]
	if !ok {
		return false, &ErrMissingFeature{Feature: feature, Dir: r.dir}
	}
	return h.Contains(id), nil
}

// Count reports how many elements of ids are in the feature's set,
// counted with multiplicity: a matching id appearing twice in ids
// contributes two.
func (r *Reader) Count(feature string, ids []uint64) (uint64, error) {
	h, ok := r.handles[feature]
	if !ok {
		return 0, &ErrMissingFeature{Feature: feature, Dir: r.dir}
	}
	return h.Count(ids), nil
}

// Cardinality returns the number of ids indexed for the feature.
func (r *Reader) Cardinality(feature string) (uint64, error) {
	h, ok := r.handles[feature]
	if !ok {
		return 0, &ErrMissingFeature{Feature: feature, Dir: r.dir}
	}
	return h.Cardinality(), nil
}

// Close releases all loaded handles.
func (r *Reader) Close() error {
	var errs []error
	for _, h := range r.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.handles = nil
	r.formats = nil
	return errors.Join(errs...)
}
