package osmnode

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/osmnode/extsort"
	"github.com/hupe1980/osmnode/index"
	"github.com/hupe1980/osmnode/index/bitmap"
	"github.com/hupe1980/osmnode/index/sorted"
	"github.com/hupe1980/osmnode/schema"
)

// Node is one record from the source dataset: a 64-bit node id and its
// tag map. Records are transient; the builder consumes them immediately.
type Node struct {
	ID   uint64
	Tags map[string]string
}

// Source streams node records in arbitrary order, each node appearing at
// most once. Next returns io.EOF when the stream is exhausted. The caller
// owns the source's lifecycle.
type Source interface {
	Next() (Node, error)
}

// Report summarizes one build run.
type Report struct {
	NodesScanned uint64
	NodesMatched uint64
	Features     []FeatureReport
}

// FeatureReport holds the per-feature outcome of a build run.
type FeatureReport struct {
	Name string
	// Observed is the number of matches seen in the stream, duplicates
	// included.
	Observed uint64
	// Unique is the number of ids in the published index files.
	Unique uint64
	// Files lists the published index file paths.
	Files []string
}

// Builder runs one extraction pass and materializes the selected index
// formats, one file per (feature, format) pair.
type Builder struct {
	opts builderOptions
}

// NewBuilder creates a Builder. Defaults: default feature set, both
// formats, system temp directory, compressed spill runs, no logging.
func NewBuilder(opts ...BuilderOption) *Builder {
	o := builderOptions{
		logger:       NoopLogger(),
		specs:        schema.Default(),
		formats:      []index.Format{index.FormatSorted, index.FormatBitmap},
		compressRuns: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Builder{opts: o}
}

// Run consumes the source once and writes the indices into outDir.
// The stream is read a single time regardless of how many features and
// formats are selected. Cancellation is cooperative between records;
// spill runs are cleaned up on every exit path. Outputs already published
// for one feature are preserved even if another feature's run fails.
func (b *Builder) Run(ctx context.Context, src Source, outDir string) (*Report, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &extsort.ErrResource{Op: "create output dir", Path: outDir, Err: err}
	}

	// Creating the scratch dir also probes temp-directory writability, so
	// an unusable temp location fails before any index work starts.
	tmpParent := b.opts.tempDir
	if tmpParent != "" {
		if err := os.MkdirAll(tmpParent, 0o755); err != nil {
			return nil, &extsort.ErrResource{Op: "create temp dir", Path: tmpParent, Err: err}
		}
	}
	tmpDir, err := os.MkdirTemp(tmpParent, "osmnode-*")
	if err != nil {
		return nil, &extsort.ErrResource{Op: "create temp dir", Path: tmpParent, Err: err}
	}
	defer os.RemoveAll(tmpDir)

	cfg := extsort.Config{
		TempDir:        tmpDir,
		FlushThreshold: b.opts.flushThreshold,
		Compress:       b.opts.compressRuns,
	}
	accs := make([]*extsort.Accumulator, len(b.opts.specs))
	for i, spec := range b.opts.specs {
		accs[i] = extsort.New(spec.Name, cfg)
	}
	defer func() {
		for _, acc := range accs {
			acc.Discard()
		}
	}()

	report := &Report{Features: make([]FeatureReport, len(b.opts.specs))}
	if err := b.ingest(ctx, src, accs, report); err != nil {
		return nil, err
	}

	b.opts.logger.Info("scan complete",
		"nodes_scanned", report.NodesScanned,
		"nodes_matched", report.NodesMatched,
	)

	// Per-feature finalize and serialization are independent: the
	// accumulators share nothing, so each feature gets its own worker.
	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i := range accs {
		i := i
		g.Go(func() error {
			fr, err := b.finalizeFeature(ctx, accs[i], outDir)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Features[i] = fr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func (b *Builder) ingest(ctx context.Context, src Source, accs []*extsort.Accumulator, report *Report) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		node, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ErrInput{cause: err}
		}

		report.NodesScanned++
		if len(node.Tags) == 0 {
			// Most OSM nodes are untagged geometry points.
			continue
		}

		matched := false
		for i, spec := range b.opts.specs {
			if spec.Match(node.Tags) {
				if err := accs[i].Add(node.ID); err != nil {
					return err
				}
				matched = true
			}
		}
		if matched {
			report.NodesMatched++
		}

		if report.NodesScanned%(16*1024*1024) == 0 {
			b.opts.logger.Debug("scanning", "nodes_scanned", report.NodesScanned)
		}
	}
}

// finalizeFeature merges one feature's sequence and streams it into one
// sink per selected format. No file becomes visible under its final name
// unless the whole feature succeeds.
func (b *Builder) finalizeFeature(ctx context.Context, acc *extsort.Accumulator, outDir string) (FeatureReport, error) {
	fr := FeatureReport{Name: acc.Feature(), Observed: acc.Observed()}

	sinks := make([]index.Sink, 0, len(b.opts.formats))
	paths := make([]string, 0, len(b.opts.formats))
	abort := func() {
		for _, s := range sinks {
			_ = s.Abort()
		}
	}

	for _, format := range b.opts.formats {
		path := filepath.Join(outDir, index.FileName(acc.Feature(), format))
		sink, err := newSink(format, path)
		if err != nil {
			abort()
			return fr, err
		}
		sinks = append(sinks, sink)
		paths = append(paths, path)
	}

	unique, err := acc.Finalize(func(id uint64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, s := range sinks {
			if err := s.Add(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		abort()
		return fr, err
	}

	for i, s := range sinks {
		if err := s.Close(); err != nil {
			abort()
			return fr, &extsort.ErrResource{Op: "publish index", Path: paths[i], Err: err}
		}
	}

	fr.Unique = unique
	fr.Files = paths
	b.opts.logger.WithFeature(acc.Feature()).Info("feature indexed",
		"observed", fr.Observed,
		"unique", fr.Unique,
	)
	return fr, nil
}

func newSink(format index.Format, path string) (index.Sink, error) {
	switch format {
	case index.FormatSorted:
		return sorted.NewSink(path)
	case index.FormatBitmap:
		return bitmap.NewSink(path), nil
	default:
		return nil, fmt.Errorf("unsupported index format %v", format)
	}
}
