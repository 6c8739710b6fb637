package osmnode

import (
	"github.com/hupe1980/osmnode/index"
	"github.com/hupe1980/osmnode/schema"
)

type builderOptions struct {
	logger         *Logger
	specs          []schema.FeatureSpec
	formats        []index.Format
	tempDir        string
	flushThreshold int
	compressRuns   bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*builderOptions)

// WithLogger sets the logger used during the build. Nil means NoopLogger.
func WithLogger(l *Logger) BuilderOption {
	return func(o *builderOptions) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithFeatures sets the feature specs to extract. Defaults to
// schema.Default().
func WithFeatures(specs []schema.FeatureSpec) BuilderOption {
	return func(o *builderOptions) {
		if len(specs) > 0 {
			o.specs = specs
		}
	}
}

// WithFormats selects which index formats to write. Defaults to both.
func WithFormats(formats ...index.Format) BuilderOption {
	return func(o *builderOptions) {
		if len(formats) > 0 {
			o.formats = formats
		}
	}
}

// WithTempDir overrides the parent directory for spill runs. Defaults to
// the system temp directory. The build creates (and removes) a unique
// subdirectory underneath it.
func WithTempDir(dir string) BuilderOption {
	return func(o *builderOptions) {
		o.tempDir = dir
	}
}

// WithFlushThreshold sets the per-feature buffered id count that triggers
// a spill to disk. Zero keeps extsort.DefaultFlushThreshold.
func WithFlushThreshold(n int) BuilderOption {
	return func(o *builderOptions) {
		o.flushThreshold = n
	}
}

// WithRunCompression toggles zstd compression of spill runs. On by
// default; runs are written once and read once, so compression mainly
// trades CPU for spill I/O.
func WithRunCompression(enabled bool) BuilderOption {
	return func(o *builderOptions) {
		o.compressRuns = enabled
	}
}

// Preference selects which index format a Reader loads per feature.
type Preference int

const (
	// PreferBitmap loads the bitmap index, falling back to sorted.
	PreferBitmap Preference = iota
	// PreferSorted loads the sorted index, falling back to bitmap.
	PreferSorted
	// BitmapOnly loads only bitmap indices; features without one are
	// missing.
	BitmapOnly
	// SortedOnly loads only sorted indices; features without one are
	// missing.
	SortedOnly
)

type readerOptions struct {
	preference Preference
	inMemory   bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerOptions)

// WithPreference sets the format preference. Defaults to PreferBitmap.
func WithPreference(p Preference) ReaderOption {
	return func(o *readerOptions) {
		o.preference = p
	}
}

// WithReadFallback makes sorted indices load via a full file read instead
// of a memory mapping. Query behavior is identical; this exists for
// environments where mapping is unavailable or undesirable.
func WithReadFallback(enabled bool) ReaderOption {
	return func(o *readerOptions) {
		o.inMemory = enabled
	}
}
