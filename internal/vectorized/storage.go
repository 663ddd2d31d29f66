package vectorized

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quantgrid/internal/backtest"
	"github.com/yourusername/quantgrid/internal/strategy"
)

// Store persists run results and strategy metadata under a directory:
//
//	<dir>/<identity>/identity.json          strategy config
//	<dir>/<identity>/metadata.json          orchestration metadata
//	<dir>/<identity>/<rangeKey>/result.json one run result per range
//
// All writes go through a temp file and rename, so a crash never leaves a
// partially written payload behind.
type Store struct {
	dir    string
	logger *logrus.Logger
}

// identityRecord is the on-disk form of identity.json
type identityRecord struct {
	Identity strategy.Identity `json:"identity"`
	Config   strategy.Config   `json:"config"`
}

// NewStore creates the storage directory if needed
func NewStore(dir string, logger *logrus.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the storage root
func (s *Store) Dir() string {
	return s.dir
}

// WriteResult persists one run result. The identity record is written on
// first contact with a strategy so the directory is self-describing.
func (s *Store) WriteResult(cfg strategy.Config, rangeKey string, result *backtest.RunResult) error {
	id := cfg.Identity()
	strategyDir := filepath.Join(s.dir, id.String())

	if err := s.ensureIdentity(strategyDir, id, cfg); err != nil {
		return err
	}

	rangeDir := filepath.Join(strategyDir, rangeKey)
	if err := os.MkdirAll(rangeDir, 0o755); err != nil {
		return fmt.Errorf("failed to create range directory: %w", err)
	}

	path := filepath.Join(rangeDir, "result.json")
	if err := writeJSONAtomic(path, result); err != nil {
		return fmt.Errorf("failed to write result for %s/%s: %w", id.Short(), rangeKey, err)
	}

	s.logger.WithFields(logrus.Fields{
		"strategy": id.Short(),
		"range":    rangeKey,
	}).Debug("Persisted run result")
	return nil
}

// WriteMetadata persists a strategy's orchestration metadata
func (s *Store) WriteMetadata(id strategy.Identity, md Metadata) error {
	strategyDir := filepath.Join(s.dir, id.String())
	if err := os.MkdirAll(strategyDir, 0o755); err != nil {
		return fmt.Errorf("failed to create strategy directory: %w", err)
	}
	path := filepath.Join(strategyDir, "metadata.json")
	if err := writeJSONAtomic(path, md); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", id.Short(), err)
	}
	return nil
}

// LoadResult reads one persisted run result. Returns ErrMissingResult when
// the payload is absent.
func (s *Store) LoadResult(id strategy.Identity, rangeKey string) (*backtest.RunResult, error) {
	path := filepath.Join(s.dir, id.String(), rangeKey, "result.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrMissingResult, id.Short(), rangeKey)
		}
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	var result backtest.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %s/%s: %w", id.Short(), rangeKey, err)
	}
	return &result, nil
}

func (s *Store) ensureIdentity(strategyDir string, id strategy.Identity, cfg strategy.Config) error {
	path := filepath.Join(strategyDir, "identity.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(strategyDir, 0o755); err != nil {
		return fmt.Errorf("failed to create strategy directory: %w", err)
	}
	if err := writeJSONAtomic(path, identityRecord{Identity: id, Config: cfg}); err != nil {
		return fmt.Errorf("failed to write identity for %s: %w", id.Short(), err)
	}
	return nil
}

// LoadBacktestsFromDirectory reconstructs every persisted strategy in a
// storage directory, including strategies that were filtered out mid-run.
// It is the offline counterpart to a live orchestrator run.
func LoadBacktestsFromDirectory(dir string, logger *logrus.Logger) ([]*Backtest, error) {
	if logger == nil {
		logger = logrus.New()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	backtests := make([]*Backtest, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		bt, err := loadBacktest(filepath.Join(dir, entry.Name()), logger)
		if err != nil {
			logger.WithError(err).WithField("strategy", entry.Name()).Warn("Skipping unreadable strategy directory")
			continue
		}
		backtests = append(backtests, bt)
	}
	return backtests, nil
}

func loadBacktest(strategyDir string, logger *logrus.Logger) (*Backtest, error) {
	data, err := os.ReadFile(filepath.Join(strategyDir, "identity.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}
	var record identityRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}

	bt := &Backtest{
		Identity: record.Identity,
		Config:   record.Config,
		Results:  make(map[string]*backtest.RunResult),
	}

	if data, err := os.ReadFile(filepath.Join(strategyDir, "metadata.json")); err == nil {
		if err := json.Unmarshal(data, &bt.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	entries, err := os.ReadDir(strategyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		resultPath := filepath.Join(strategyDir, entry.Name(), "result.json")
		data, err := os.ReadFile(resultPath)
		if err != nil {
			continue
		}
		var result backtest.RunResult
		if err := json.Unmarshal(data, &result); err != nil {
			logger.WithError(err).WithField("path", resultPath).Warn("Skipping unreadable result")
			continue
		}
		bt.Results[entry.Name()] = &result
	}

	return bt, nil
}

// writeJSONAtomic marshals v and writes it via temp file plus rename
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
