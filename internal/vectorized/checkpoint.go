package vectorized

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/strategy"
)

const checkpointIndexFile = "checkpoints.json"

// checkpointEntry is one completed (strategy, range) unit in the index
type checkpointEntry struct {
	Identity    strategy.Identity `json:"identity"`
	RangeKey    string            `json:"range_key"`
	CompletedAt time.Time         `json:"completed_at"`
}

// CheckpointStore tracks which (strategy, range) units have completed. The
// index lives in a single JSON file next to the result payloads; a result
// is always written to the Store before its checkpoint is recorded, so a
// checkpointed unit always has a loadable payload.
type CheckpointStore struct {
	store  *Store
	logger *logrus.Logger

	mu      sync.Mutex
	entries []checkpointEntry
	done    map[string]bool

	// results holds recently loaded payloads so repeated filter passes do
	// not hit disk for the same result
	results *gocache.Cache
}

// NewCheckpointStore creates a checkpoint store over an existing result store
func NewCheckpointStore(store *Store, logger *logrus.Logger) (*CheckpointStore, error) {
	if store == nil {
		return nil, fmt.Errorf("result store is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CheckpointStore{
		store:   store,
		logger:  logger,
		done:    make(map[string]bool),
		results: gocache.New(10*time.Minute, 15*time.Minute),
	}, nil
}

func checkpointKey(id strategy.Identity, rangeKey string) string {
	return id.String() + "/" + rangeKey
}

// LoadAll reads the checkpoint index from disk into memory. A missing index
// is an empty set; an unreadable one returns ErrCorruptCheckpoint so the
// caller can warn and start fresh.
func (c *CheckpointStore) LoadAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.store.Dir(), checkpointIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}

	var entries []checkpointEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}

	c.entries = entries
	c.done = make(map[string]bool, len(entries))
	for _, entry := range entries {
		c.done[checkpointKey(entry.Identity, entry.RangeKey)] = true
	}

	c.logger.WithField("checkpoints", len(entries)).Info("Loaded checkpoint index")
	return nil
}

// IsCheckpointed reports whether a (strategy, range) unit already completed
func (c *CheckpointStore) IsCheckpointed(id strategy.Identity, rangeKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done[checkpointKey(id, rangeKey)]
}

// Record marks one unit complete and rewrites the index
func (c *CheckpointStore) Record(id strategy.Identity, rangeKey string) error {
	return c.RecordBatch([]strategy.Identity{id}, []string{rangeKey})
}

// RecordBatch marks several units complete in one index rewrite. Identities
// and range keys are parallel slices. The rewrite covers every entry loaded
// or recorded so far, so LoadAll must run before the first record when the
// directory may hold entries from earlier runs.
func (c *CheckpointStore) RecordBatch(ids []strategy.Identity, rangeKeys []string) error {
	if len(ids) != len(rangeKeys) {
		return fmt.Errorf("mismatched batch: %d identities, %d range keys", len(ids), len(rangeKeys))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	for i, id := range ids {
		key := checkpointKey(id, rangeKeys[i])
		if c.done[key] {
			continue
		}
		c.entries = append(c.entries, checkpointEntry{
			Identity:    id,
			RangeKey:    rangeKeys[i],
			CompletedAt: now,
		})
		c.done[key] = true
	}

	path := filepath.Join(c.store.Dir(), checkpointIndexFile)
	if err := writeJSONAtomic(path, c.entries); err != nil {
		return fmt.Errorf("failed to write checkpoint index: %w", err)
	}
	return nil
}

// Count returns the number of recorded checkpoints
func (c *CheckpointStore) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// LoadResult loads the payload behind a checkpoint, memoizing reads
func (c *CheckpointStore) LoadResult(id strategy.Identity, rangeKey string) (*backtest.RunResult, error) {
	key := checkpointKey(id, rangeKey)
	if cached, found := c.results.Get(key); found {
		return cached.(*backtest.RunResult), nil
	}

	result, err := c.store.LoadResult(id, rangeKey)
	if err != nil {
		return nil, err
	}
	c.results.Set(key, result, gocache.DefaultExpiration)
	return result, nil
}
