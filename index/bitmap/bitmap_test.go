package bitmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/osmnode/index"
)

func buildFile(t *testing.T, name string, ids []uint64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	sink := NewSink(path)
	for _, id := range ids {
		require.NoError(t, sink.Add(id))
	}
	require.NoError(t, sink.Close())
	return path
}

func TestRoundTrip(t *testing.T) {
	// OSM node ids exceed 32 bits; the wide values exercise the 64-bit
	// container layering.
	ids := []uint64{1, 2, 1000, 1 << 31, 1 << 40, 1<<40 + 7}
	path := buildFile(t, "signals.roar", ids)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, uint64(len(ids)), idx.Cardinality())
	for _, id := range ids {
		assert.True(t, idx.Contains(id), "id %d", id)
	}
	for _, id := range []uint64{0, 3, 999, 1<<40 + 6, 1 << 50} {
		assert.False(t, idx.Contains(id), "id %d", id)
	}
}

func TestEmptyIndex(t *testing.T) {
	path := buildFile(t, "stops.roar", nil)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	assert.Zero(t, idx.Cardinality())
	assert.False(t, idx.Contains(42))
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.roar")
	require.NoError(t, os.WriteFile(path, []byte("not a bitmap"), 0o644))

	_, err := Open(path)
	require.Error(t, err)

	var corrupt *index.ErrCorruptFile
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)
}

func TestCountMultiplicity(t *testing.T) {
	path := buildFile(t, "calming.roar", []uint64{10, 20, 30})
	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, uint64(2), idx.Count([]uint64{10, 10}))
	assert.Equal(t, uint64(0), idx.Count(nil))
	assert.Equal(t, uint64(3), idx.Count([]uint64{30, 99, 10, 20, 40}))
}

func TestDeterministicSerialization(t *testing.T) {
	ids := []uint64{5, 6, 7, 1 << 35, 1<<35 + 1}
	a := buildFile(t, "a.roar", ids)
	b := buildFile(t, "b.roar", ids)

	dataA, err := os.ReadFile(a)
	require.NoError(t, err)
	dataB, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, dataA, dataB)
}

func TestSinkClosed(t *testing.T) {
	path := buildFile(t, "signals.roar", []uint64{1})
	sink := NewSink(path)
	require.NoError(t, sink.Close())
	assert.Error(t, sink.Add(2))
}
