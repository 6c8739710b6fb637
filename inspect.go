package osmnode

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/osmnode/index"
	"github.com/hupe1980/osmnode/index/bitmap"
	sortedidx "github.com/hupe1980/osmnode/index/sorted"
)

// FileStat describes one discovered index file.
type FileStat struct {
	Feature     string
	Format      index.Format
	Cardinality uint64
	SizeBytes   int64
}

// Inspect reports, for every index file in dir, its feature, format,
// element count (sorted) or cardinality (bitmap) and on-disk size.
// A corrupt file fails the inspection rather than being skipped.
func Inspect(dir string) ([]FileStat, error) {
	available, err := discover(dir)
	if err != nil {
		return nil, err
	}

	var stats []FileStat
	for feature, formats := range available {
		for format := range formats {
			path := filepath.Join(dir, index.FileName(feature, format))
			stat, err := inspectFile(path, feature, format)
			if err != nil {
				return nil, err
			}
			stats = append(stats, stat)
		}
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Feature != stats[j].Feature {
			return stats[i].Feature < stats[j].Feature
		}
		return stats[i].Format < stats[j].Format
	})
	return stats, nil
}

func inspectFile(path, feature string, format index.Format) (FileStat, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileStat{}, err
	}
	stat := FileStat{Feature: feature, Format: format, SizeBytes: fi.Size()}

	switch format {
	case index.FormatBitmap:
		h, err := bitmap.Open(path)
		if err != nil {
			return FileStat{}, err
		}
		stat.Cardinality = h.Cardinality()
		_ = h.Close()
	default:
		h, err := sortedidx.Open(path)
		if err != nil {
			return FileStat{}, err
		}
		stat.Cardinality = h.Cardinality()
		_ = h.Close()
	}
	return stat, nil
}
