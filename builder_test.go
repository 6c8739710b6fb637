package osmnode_test

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/osmnode"
	"github.com/hupe1980/osmnode/index"
)

// sliceSource feeds a fixed record slice to the builder.
type sliceSource struct {
	nodes []osmnode.Node
	pos   int
}

func (s *sliceSource) Next() (osmnode.Node, error) {
	if s.pos >= len(s.nodes) {
		return osmnode.Node{}, io.EOF
	}
	n := s.nodes[s.pos]
	s.pos++
	return n, nil
}

func signalNode(id uint64) osmnode.Node {
	return osmnode.Node{ID: id, Tags: map[string]string{"highway": "traffic_signals"}}
}

func stopNode(id uint64) osmnode.Node {
	return osmnode.Node{ID: id, Tags: map[string]string{"highway": "stop"}}
}

func calmingNode(id uint64) osmnode.Node {
	return osmnode.Node{ID: id, Tags: map[string]string{"traffic_calming": "bump"}}
}

func plainNode(id uint64) osmnode.Node {
	return osmnode.Node{ID: id}
}

func TestBuilderRun(t *testing.T) {
	outDir := t.TempDir()
	src := &sliceSource{nodes: []osmnode.Node{
		signalNode(100),
		plainNode(101),
		stopNode(102),
		signalNode(1 << 40),
		calmingNode(103),
		plainNode(104),
	}}

	builder := osmnode.NewBuilder()
	report, err := builder.Run(context.Background(), src, outDir)
	require.NoError(t, err)

	assert.Equal(t, uint64(6), report.NodesScanned)
	assert.Equal(t, uint64(4), report.NodesMatched)

	byName := make(map[string]osmnode.FeatureReport)
	for _, fr := range report.Features {
		byName[fr.Name] = fr
	}
	assert.Equal(t, uint64(2), byName["signals"].Unique)
	assert.Equal(t, uint64(1), byName["stops"].Unique)
	assert.Equal(t, uint64(1), byName["calming"].Unique)

	// One file per (feature, format) pair.
	for _, feature := range []string{"signals", "stops", "calming"} {
		for _, format := range []index.Format{index.FormatSorted, index.FormatBitmap} {
			_, err := os.Stat(filepath.Join(outDir, index.FileName(feature, format)))
			assert.NoError(t, err, "%s %v", feature, format)
		}
	}

	r, err := osmnode.OpenReader(outDir)
	require.NoError(t, err)
	defer r.Close()

	ok, err := r.Contains("signals", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Contains("signals", 102)
	require.NoError(t, err)
	assert.False(t, ok, "a stop sign is not a signal")

	n, err := r.Count("signals", []uint64{100, 100, 1 << 40, 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n, "duplicates count per occurrence")
}

func TestBuilderMultiLabelNode(t *testing.T) {
	outDir := t.TempDir()
	src := &sliceSource{nodes: []osmnode.Node{
		{ID: 7, Tags: map[string]string{"highway": "traffic_signals", "traffic_calming": "table"}},
	}}

	report, err := osmnode.NewBuilder().Run(context.Background(), src, outDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.NodesMatched)

	r, err := osmnode.OpenReader(outDir)
	require.NoError(t, err)
	defer r.Close()

	for _, feature := range []string{"signals", "calming"} {
		ok, err := r.Contains(feature, 7)
		require.NoError(t, err)
		assert.True(t, ok, feature)
	}
}

func TestBuilderEmptyFeaturesStillPublished(t *testing.T) {
	outDir := t.TempDir()
	src := &sliceSource{} // Nothing matches anything.

	report, err := osmnode.NewBuilder().Run(context.Background(), src, outDir)
	require.NoError(t, err)
	for _, fr := range report.Features {
		assert.Zero(t, fr.Unique)
	}

	// Empty features publish empty index files, so "indexed but empty"
	// stays distinguishable from "never indexed".
	r, err := osmnode.OpenReader(outDir)
	require.NoError(t, err)
	defer r.Close()

	ok, err := r.Contains("signals", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuilderSpillPath(t *testing.T) {
	outDir := t.TempDir()

	rng := rand.New(rand.NewSource(11))
	nodes := make([]osmnode.Node, 0, 5000)
	want := make(map[uint64]bool)
	for n := 0; n < 5000; n++ {
		id := uint64(rng.Intn(2000))
		nodes = append(nodes, signalNode(id))
		want[id] = true
	}

	builder := osmnode.NewBuilder(
		osmnode.WithFlushThreshold(128),
		osmnode.WithTempDir(filepath.Join(t.TempDir(), "spill")),
	)
	report, err := builder.Run(context.Background(), &sliceSource{nodes: nodes}, outDir)
	require.NoError(t, err)

	byName := make(map[string]osmnode.FeatureReport)
	for _, fr := range report.Features {
		byName[fr.Name] = fr
	}
	assert.Equal(t, uint64(len(want)), byName["signals"].Unique)
	assert.Equal(t, uint64(5000), byName["signals"].Observed)

	r, err := osmnode.OpenReader(outDir, osmnode.WithPreference(osmnode.SortedOnly))
	require.NoError(t, err)
	defer r.Close()

	for id := range want {
		ok, err := r.Contains("signals", id)
		require.NoError(t, err)
		require.True(t, ok, "id %d", id)
	}
}

func TestBuilderIdempotent(t *testing.T) {
	// The same id set in any record order must produce byte-identical
	// files in both formats.
	base := []osmnode.Node{
		signalNode(5), signalNode(900), signalNode(42), signalNode(1 << 38), stopNode(7),
	}
	shuffled := []osmnode.Node{
		stopNode(7), signalNode(1 << 38), signalNode(42), signalNode(5), signalNode(900), signalNode(42),
	}

	dirA, dirB := t.TempDir(), t.TempDir()
	_, err := osmnode.NewBuilder().Run(context.Background(), &sliceSource{nodes: base}, dirA)
	require.NoError(t, err)
	_, err = osmnode.NewBuilder().Run(context.Background(), &sliceSource{nodes: shuffled}, dirB)
	require.NoError(t, err)

	for _, feature := range []string{"signals", "stops"} {
		for _, format := range []index.Format{index.FormatSorted, index.FormatBitmap} {
			name := index.FileName(feature, format)
			a, err := os.ReadFile(filepath.Join(dirA, name))
			require.NoError(t, err)
			b, err := os.ReadFile(filepath.Join(dirB, name))
			require.NoError(t, err)
			assert.Equal(t, a, b, name)
		}
	}
}

func TestBuilderCrossFormatAgreement(t *testing.T) {
	outDir := t.TempDir()
	src := &sliceSource{nodes: []osmnode.Node{
		signalNode(1), signalNode(500), signalNode(1 << 41),
	}}
	_, err := osmnode.NewBuilder().Run(context.Background(), src, outDir)
	require.NoError(t, err)

	sortedReader, err := osmnode.OpenReader(outDir, osmnode.WithPreference(osmnode.SortedOnly))
	require.NoError(t, err)
	defer sortedReader.Close()

	bitmapReader, err := osmnode.OpenReader(outDir, osmnode.WithPreference(osmnode.BitmapOnly))
	require.NoError(t, err)
	defer bitmapReader.Close()

	probes := []uint64{0, 1, 2, 499, 500, 501, 1 << 41, 1<<41 + 1}
	for _, id := range probes {
		a, err := sortedReader.Contains("signals", id)
		require.NoError(t, err)
		b, err := bitmapReader.Contains("signals", id)
		require.NoError(t, err)
		assert.Equal(t, a, b, "id %d", id)
	}
}

func TestBuilderSingleFormat(t *testing.T) {
	outDir := t.TempDir()
	src := &sliceSource{nodes: []osmnode.Node{signalNode(1)}}

	builder := osmnode.NewBuilder(osmnode.WithFormats(index.FormatSorted))
	_, err := builder.Run(context.Background(), src, outDir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(outDir, "signals.u64"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "signals.roar"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// A bitmap-only reader must report the feature as missing, not empty.
	r, err := osmnode.OpenReader(outDir, osmnode.WithPreference(osmnode.BitmapOnly))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Contains("signals", 1)
	var missing *osmnode.ErrMissingFeature
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "signals", missing.Feature)
}

func TestBuilderCancellation(t *testing.T) {
	outDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sliceSource{nodes: []osmnode.Node{signalNode(1)}}
	_, err := osmnode.NewBuilder().Run(ctx, src, outDir)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a cancelled build publishes nothing")
}

func TestBuilderInputError(t *testing.T) {
	outDir := t.TempDir()
	src := &failingSource{}

	_, err := osmnode.NewBuilder().Run(context.Background(), src, outDir)
	require.Error(t, err)

	var input *osmnode.ErrInput
	assert.ErrorAs(t, err, &input)
}

type failingSource struct{}

func (*failingSource) Next() (osmnode.Node, error) {
	return osmnode.Node{}, io.ErrUnexpectedEOF
}

func TestBuilderUnwritableTempDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks do not apply")
	}
	outDir := t.TempDir()

	readonly := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.Mkdir(readonly, 0o555))

	builder := osmnode.NewBuilder(osmnode.WithTempDir(filepath.Join(readonly, "sub")))
	_, err := builder.Run(context.Background(), &sliceSource{}, outDir)
	require.Error(t, err)

	entries, readErr := os.ReadDir(outDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no partial index may be published")
}
