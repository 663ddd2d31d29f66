package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/quantgrid/internal/database"
	"github.com/yourusername/quantgrid/internal/vectorized"
)

const errScanGridResult = "failed to scan grid result: %w"

// GridResultRecord is one persisted cross-range strategy summary
type GridResultRecord struct {
	ID               uuid.UUID
	StrategyID       uuid.UUID
	Identity         string
	Label            string
	RunDate          time.Time
	Ranges           int
	MeanReturn       float64
	MeanSharpe       float64
	WorstDrawdown    float64
	TotalTrades      int
	ConsistencyScore float64
	CompositeScore   float64
	Recommendation   string
	FilteredOut      bool
	FilteredOutAt    string
	CreatedAt        time.Time
}

// GridResultRepository persists and queries grid run summaries
type GridResultRepository interface {
	SaveSummary(ctx context.Context, bt *vectorized.Backtest, summary vectorized.Summary) error
	GetLatest(ctx context.Context, limit int) ([]*GridResultRecord, error)
	GetByIdentity(ctx context.Context, identity string) ([]*GridResultRecord, error)
}

// PostgresGridResultRepository implements GridResultRepository for PostgreSQL
type PostgresGridResultRepository struct {
	db *database.DB
}

// NewPostgresGridResultRepository creates a new grid result repository
func NewPostgresGridResultRepository(db *database.DB) GridResultRepository {
	return &PostgresGridResultRepository{db: db}
}

// SaveSummary inserts one strategy's cross-range summary
func (r *PostgresGridResultRepository) SaveSummary(ctx context.Context, bt *vectorized.Backtest, summary vectorized.Summary) error {
	query := `
		INSERT INTO grid_results (
			id, strategy_id, identity, label, run_date,
			ranges, mean_return, mean_sharpe, worst_drawdown, total_trades,
			consistency_score, composite_score, recommendation,
			filtered_out, filtered_out_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`

	now := time.Now().UTC()
	_, err := r.db.GetPool().Exec(ctx, query,
		uuid.New(), bt.Config.UUID(), summary.Identity.String(), summary.Label, now,
		summary.Ranges, summary.MeanReturn, summary.MeanSharpe, summary.WorstDrawdown, summary.TotalTrades,
		summary.ConsistencyScore, summary.CompositeScore, summary.Recommendation,
		summary.FilteredOut, summary.FilteredOutAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save grid result: %w", err)
	}
	return nil
}

// GetLatest retrieves the most recently recorded summaries
func (r *PostgresGridResultRepository) GetLatest(ctx context.Context, limit int) ([]*GridResultRecord, error) {
	query := `
		SELECT id, strategy_id, identity, label, run_date, ranges, mean_return,
			mean_sharpe, worst_drawdown, total_trades, consistency_score,
			composite_score, recommendation, filtered_out, filtered_out_at, created_at
		FROM grid_results ORDER BY run_date DESC LIMIT $1
	`
	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest grid results: %w", err)
	}
	defer rows.Close()

	return scanGridResults(rows)
}

// GetByIdentity retrieves all summaries recorded for one strategy identity
func (r *PostgresGridResultRepository) GetByIdentity(ctx context.Context, identity string) ([]*GridResultRecord, error) {
	query := `
		SELECT id, strategy_id, identity, label, run_date, ranges, mean_return,
			mean_sharpe, worst_drawdown, total_trades, consistency_score,
			composite_score, recommendation, filtered_out, filtered_out_at, created_at
		FROM grid_results WHERE identity = $1 ORDER BY run_date DESC
	`
	rows, err := r.db.GetPool().Query(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query grid results by identity: %w", err)
	}
	defer rows.Close()

	return scanGridResults(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanGridResults(rows rowScanner) ([]*GridResultRecord, error) {
	var results []*GridResultRecord
	for rows.Next() {
		record := &GridResultRecord{}
		if err := rows.Scan(
			&record.ID, &record.StrategyID, &record.Identity, &record.Label, &record.RunDate,
			&record.Ranges, &record.MeanReturn, &record.MeanSharpe, &record.WorstDrawdown, &record.TotalTrades,
			&record.ConsistencyScore, &record.CompositeScore, &record.Recommendation,
			&record.FilteredOut, &record.FilteredOutAt, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf(errScanGridResult, err)
		}
		results = append(results, record)
	}
	return results, rows.Err()
}
