package vectorized

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/strategy"
)

func testStore(t *testing.T) (*Store, *CheckpointStore) {
	t.Helper()
	store, err := NewStore(t.TempDir(), quietLogger())
	require.NoError(t, err)
	checkpoints, err := NewCheckpointStore(store, quietLogger())
	require.NoError(t, err)
	return store, checkpoints
}

// TestCheckpointRecordAndReload tests that recorded checkpoints survive a
// reload from disk
func TestCheckpointRecordAndReload(t *testing.T) {
	store, checkpoints := testStore(t)
	cfg := testConfigs(1)[0]
	id := cfg.Identity()

	assert.False(t, checkpoints.IsCheckpointed(id, "w1"))
	require.NoError(t, checkpoints.Record(id, "w1"))
	assert.True(t, checkpoints.IsCheckpointed(id, "w1"))
	assert.False(t, checkpoints.IsCheckpointed(id, "w2"))

	reloaded, err := NewCheckpointStore(store, quietLogger())
	require.NoError(t, err)
	require.NoError(t, reloaded.LoadAll())
	assert.True(t, reloaded.IsCheckpointed(id, "w1"))
	assert.Equal(t, 1, reloaded.Count())
}

// TestCheckpointRecordBatch tests batch recording and duplicate suppression
func TestCheckpointRecordBatch(t *testing.T) {
	_, checkpoints := testStore(t)
	configs := testConfigs(3)

	ids := []strategy.Identity{configs[0].Identity(), configs[1].Identity(), configs[0].Identity()}
	keys := []string{"w1", "w1", "w1"}
	require.NoError(t, checkpoints.RecordBatch(ids, keys))
	assert.Equal(t, 2, checkpoints.Count())

	err := checkpoints.RecordBatch(ids, []string{"w1"})
	assert.Error(t, err)
}

// TestCheckpointRecordMergesWithLoadedIndex tests that recording through a
// freshly loaded store rewrites the index with prior entries intact
func TestCheckpointRecordMergesWithLoadedIndex(t *testing.T) {
	store, checkpoints := testStore(t)
	configs := testConfigs(3)
	require.NoError(t, checkpoints.Record(configs[0].Identity(), "w1"))
	require.NoError(t, checkpoints.Record(configs[1].Identity(), "w1"))

	second, err := NewCheckpointStore(store, quietLogger())
	require.NoError(t, err)
	require.NoError(t, second.LoadAll())
	require.NoError(t, second.Record(configs[2].Identity(), "w1"))

	reloaded, err := NewCheckpointStore(store, quietLogger())
	require.NoError(t, err)
	require.NoError(t, reloaded.LoadAll())
	assert.Equal(t, 3, reloaded.Count())
	for _, cfg := range configs {
		assert.True(t, reloaded.IsCheckpointed(cfg.Identity(), "w1"))
	}
}

// TestCheckpointLoadAllMissingIndex tests that a missing index is an empty
// set, not an error
func TestCheckpointLoadAllMissingIndex(t *testing.T) {
	_, checkpoints := testStore(t)
	require.NoError(t, checkpoints.LoadAll())
	assert.Equal(t, 0, checkpoints.Count())
}

// TestCheckpointLoadAllCorruptIndex tests corrupt index detection
func TestCheckpointLoadAllCorruptIndex(t *testing.T) {
	store, checkpoints := testStore(t)
	path := filepath.Join(store.Dir(), checkpointIndexFile)
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	err := checkpoints.LoadAll()
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}

// TestCheckpointLoadResult tests payload loading and the missing-result path
func TestCheckpointLoadResult(t *testing.T) {
	store, checkpoints := testStore(t)
	cfg := testConfigs(1)[0]

	result := &backtest.RunResult{Metrics: backtest.Metrics{TotalReturn: 0.42}}
	require.NoError(t, store.WriteResult(cfg, "w1", result))

	loaded, err := checkpoints.LoadResult(cfg.Identity(), "w1")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, loaded.Metrics.TotalReturn, 1e-9)

	// Second load hits the cache and returns the same payload
	cached, err := checkpoints.LoadResult(cfg.Identity(), "w1")
	require.NoError(t, err)
	assert.Same(t, loaded, cached)

	_, err = checkpoints.LoadResult(cfg.Identity(), "missing")
	assert.ErrorIs(t, err, ErrMissingResult)
}

// TestStoreWriteIsAtomic tests that no temp files linger after writes
func TestStoreWriteIsAtomic(t *testing.T) {
	store, _ := testStore(t)
	cfg := testConfigs(1)[0]

	require.NoError(t, store.WriteResult(cfg, "w1", &backtest.RunResult{}))
	require.NoError(t, store.WriteMetadata(cfg.Identity(), Metadata{FilteredOut: true, FilteredOutAt: "w1"}))

	err := filepath.WalkDir(store.Dir(), func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			assert.NotContains(t, d.Name(), ".tmp-")
		}
		return nil
	})
	require.NoError(t, err)
}

// TestLoadBacktestsFromDirectoryRoundTrip tests offline reconstruction of
// persisted strategies
func TestLoadBacktestsFromDirectoryRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	configs := testConfigs(2)

	require.NoError(t, store.WriteResult(configs[0], "w1", &backtest.RunResult{Metrics: backtest.Metrics{SharpeRatio: 1.5}}))
	require.NoError(t, store.WriteResult(configs[0], "w2", &backtest.RunResult{}))
	require.NoError(t, store.WriteResult(configs[1], "w1", &backtest.RunResult{}))
	require.NoError(t, store.WriteMetadata(configs[1].Identity(), Metadata{FilteredOut: true, FilteredOutAt: "w1"}))

	loaded, err := LoadBacktestsFromDirectory(store.Dir(), quietLogger())
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	byIdentity := make(map[strategy.Identity]*Backtest)
	for _, bt := range loaded {
		byIdentity[bt.Identity] = bt
	}

	first := byIdentity[configs[0].Identity()]
	require.NotNil(t, first)
	assert.Len(t, first.Results, 2)
	assert.InDelta(t, 1.5, first.Results["w1"].Metrics.SharpeRatio, 1e-9)
	assert.Equal(t, configs[0].Symbol, first.Config.Symbol)

	second := byIdentity[configs[1].Identity()]
	require.NotNil(t, second)
	assert.True(t, second.Metadata.FilteredOut)
	assert.Equal(t, "w1", second.Metadata.FilteredOutAt)
}
