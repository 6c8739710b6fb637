// Package extsort turns an unbounded, unordered stream of node ids per
// feature into one ascending, duplicate-free sequence without holding the
// full set in memory.
//
// Each Accumulator buffers ids for a single feature. When the buffer
// crosses the configured threshold it is sorted, deduplicated and spilled
// to a temp run file. Finalize sorts the remaining buffer and k-way merges
// it with all spilled runs, removing cross-run duplicates, and streams the
// result to the caller. Run files are deleted once the merge that consumes
// them finishes, on failure paths included.
package extsort

import (
	"fmt"
	"path/filepath"
	"slices"
)

// DefaultFlushThreshold is the number of buffered ids that triggers a
// spill to disk.
const DefaultFlushThreshold = 100_000

// ErrResource reports a failed temp-file operation (unwritable temp
// directory, disk full during spill or merge).
type ErrResource struct {
	Op   string
	Path string
	Err  error
}

func (e *ErrResource) Error() string {
	return fmt.Sprintf("resource error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ErrResource) Unwrap() error { return e.Err }

// Config controls accumulator spilling.
type Config struct {
	// TempDir is the directory for spill run files. Required.
	TempDir string
	// FlushThreshold is the buffered id count that triggers a spill.
	// Zero means DefaultFlushThreshold.
	FlushThreshold int
	// Compress enables zstd framing of spill runs.
	Compress bool
}

type state int

const (
	stateAccumulating state = iota
	stateFinalized
)

// Accumulator buffers and external-sorts ids for one feature.
// It is not safe for concurrent use; features get one accumulator each
// and share nothing.
type Accumulator struct {
	feature  string
	cfg      Config
	buf      []uint64
	runs     []run
	state    state
	observed uint64
}

// New creates an accumulator for the named feature.
func New(feature string, cfg Config) *Accumulator {
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = DefaultFlushThreshold
	}
	return &Accumulator{
		feature: feature,
		cfg:     cfg,
		buf:     make([]uint64, 0, min(cfg.FlushThreshold, 4096)),
	}
}

// Feature returns the feature name this accumulator collects.
func (a *Accumulator) Feature() string { return a.feature }

// Observed returns the number of ids added so far, duplicates included.
func (a *Accumulator) Observed() uint64 { return a.observed }

// Add appends an id, spilling the buffer to a sorted run when full.
func (a *Accumulator) Add(id uint64) error {
	if a.state != stateAccumulating {
		return fmt.Errorf("extsort: accumulator for %q already finalized", a.feature)
	}
	a.buf = append(a.buf, id)
	a.observed++
	if len(a.buf) >= a.cfg.FlushThreshold {
		return a.spill()
	}
	return nil
}

func (a *Accumulator) spill() error {
	if len(a.buf) == 0 {
		return nil
	}
	slices.Sort(a.buf)
	a.buf = slices.Compact(a.buf)

	path := filepath.Join(a.cfg.TempDir, fmt.Sprintf("%s.run-%04d", a.feature, len(a.runs)))
	r, err := writeRun(path, a.buf, a.cfg.Compress)
	if err != nil {
		return err
	}
	a.runs = append(a.runs, r)
	a.buf = a.buf[:0]
	return nil
}

// Finalize sorts the remaining buffer, merges it with all spilled runs and
// streams the ascending duplicate-free sequence to yield. It returns the
// number of unique ids. Finalize may be called once; the run files are
// removed before it returns, whether or not it succeeds.
func (a *Accumulator) Finalize(yield func(id uint64) error) (uint64, error) {
	if a.state != stateAccumulating {
		return 0, fmt.Errorf("extsort: accumulator for %q already finalized", a.feature)
	}
	a.state = stateFinalized

	defer a.removeRuns()

	slices.Sort(a.buf)
	a.buf = slices.Compact(a.buf)

	// Common case: everything fit in memory.
	if len(a.runs) == 0 {
		for _, id := range a.buf {
			if err := yield(id); err != nil {
				return 0, err
			}
		}
		n := uint64(len(a.buf))
		a.buf = nil
		return n, nil
	}

	sources := make([]idSource, 0, len(a.runs)+1)
	readers := make([]*runReader, 0, len(a.runs))
	defer func() {
		for _, r := range readers {
			_ = r.close()
		}
	}()

	for _, r := range a.runs {
		rr, err := r.open()
		if err != nil {
			return 0, err
		}
		readers = append(readers, rr)
		sources = append(sources, rr)
	}
	if len(a.buf) > 0 {
		sources = append(sources, &sliceSource{ids: a.buf})
	}

	n, err := mergeSources(sources, yield)
	a.buf = nil
	return n, err
}

// Discard drops all buffered state and removes any spilled runs. It is the
// cleanup path for accumulators whose Finalize never ran, so an aborted
// build leaves no temp files behind.
func (a *Accumulator) Discard() {
	a.state = stateFinalized
	a.buf = nil
	a.removeRuns()
}

func (a *Accumulator) removeRuns() {
	for _, r := range a.runs {
		r.remove()
	}
	a.runs = nil
}
