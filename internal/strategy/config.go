package strategy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/yourusername/quantgrid/internal/models"
)

// Identity is a stable, deterministic key derived from a strategy
// configuration. Two configs with identical name, symbol, timeframe and
// parameter values always produce the same identity, which is used as the
// primary key for checkpointing and result grouping.
type Identity string

// String returns the identity as a plain string
func (id Identity) String() string {
	return string(id)
}

// Short returns a truncated identity suitable for log fields
func (id Identity) Short() string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}

// Config is the fully serializable description of one strategy instance.
// It carries no live resources, so it can cross a worker boundary safely.
type Config struct {
	Name      string           `json:"name"`
	Symbol    string           `json:"symbol"`
	Timeframe models.Timeframe `json:"timeframe"`
	Params    map[string]any   `json:"params,omitempty"`
}

// Validate checks required config fields
func (c Config) Validate() error {
	if c.Name == "" {
		return models.ErrStrategyNameRequired
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !c.Timeframe.IsValid() {
		return fmt.Errorf("%w: %s", models.ErrInvalidTimeframe, c.Timeframe)
	}
	return nil
}

// Identity derives the deterministic identity for this config. JSON object
// keys are marshalled in sorted order, so the hash does not depend on the
// insertion order of Params.
func (c Config) Identity() Identity {
	canonical := struct {
		Name      string           `json:"name"`
		Symbol    string           `json:"symbol"`
		Timeframe models.Timeframe `json:"timeframe"`
		Params    map[string]any   `json:"params"`
	}{c.Name, c.Symbol, c.Timeframe, c.Params}

	data, _ := json.Marshal(canonical)
	hash := sha256.Sum256(data)
	return Identity(fmt.Sprintf("%x", hash))
}

// UUID returns a name-based UUID for the config, for persistence layers
// keyed by uuid rather than by identity string
func (c Config) UUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(c.Identity()))
}

// Label returns a short human-readable description for logs and reports
func (c Config) Label() string {
	return fmt.Sprintf("%s/%s/%s", c.Name, c.Symbol, c.Timeframe)
}
