package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/siamesedream/apiserver/types"
)

// SymbolRepository handles persistence for the global symbol set.
type SymbolRepository struct {
	db *sql.DB
}

func NewSymbolRepository(db *sql.DB) *SymbolRepository {
	return &SymbolRepository{db: db}
}

// List returns every symbol ever used, by id.
func (r *SymbolRepository) List(ctx context.Context) ([]types.Symbol, error) {
	const query = `SELECT id, name FROM symbols ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	symbols := make([]types.Symbol, 0)
	for rows.Next() {
		var symbol types.Symbol
		if err := rows.Scan(&symbol.ID, &symbol.Name); err != nil {
			return nil, err
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// Popular returns the symbols linked to the most dreams, descending.
func (r *SymbolRepository) Popular(ctx context.Context, limit int) ([]types.SymbolCount, error) {
	if limit < 1 {
		limit = 20
	}

	const query = `
		SELECT s.name, COUNT(ds.dream_id) AS dream_count
		FROM symbols s
		JOIN dream_symbols ds ON s.id = ds.symbol_id
		GROUP BY s.id, s.name
		ORDER BY dream_count DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]types.SymbolCount, 0, limit)
	for rows.Next() {
		var sc types.SymbolCount
		if err := rows.Scan(&sc.Name, &sc.DreamCount); err != nil {
			return nil, err
		}
		counts = append(counts, sc)
	}
	return counts, rows.Err()
}

// TopForUser returns the symbols a user dreams most often, descending.
func (r *SymbolRepository) TopForUser(ctx context.Context, userID, limit int) ([]types.TopSymbol, error) {
	if limit < 1 {
		limit = 10
	}

	const query = `
		SELECT s.name, COUNT(*) AS frequency
		FROM dreams d
		JOIN dream_symbols ds ON d.id = ds.dream_id
		JOIN symbols s ON ds.symbol_id = s.id
		WHERE d.user_id = $1
		GROUP BY s.name
		ORDER BY frequency DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	top := make([]types.TopSymbol, 0, limit)
	for rows.Next() {
		var ts types.TopSymbol
		if err := rows.Scan(&ts.Name, &ts.Frequency); err != nil {
			return nil, err
		}
		top = append(top, ts)
	}
	return top, rows.Err()
}

// Timeline returns per-month usage counts of each symbol the user dreamed
// over the trailing twelve months, month ascending then count descending.
func (r *SymbolRepository) Timeline(ctx context.Context, userID int) ([]types.SymbolTimelineEntry, error) {
	const query = `
		SELECT s.name, DATE_TRUNC('month', d.dream_date) AS month, COUNT(*) AS usage_count
		FROM dreams d
		JOIN dream_symbols ds ON d.id = ds.dream_id
		JOIN symbols s ON ds.symbol_id = s.id
		WHERE d.user_id = $1
			AND d.dream_date >= CURRENT_DATE - INTERVAL '12 months'
		GROUP BY s.name, DATE_TRUNC('month', d.dream_date)
		ORDER BY month, usage_count DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.SymbolTimelineEntry, 0)
	for rows.Next() {
		var entry types.SymbolTimelineEntry
		var month time.Time
		if err := rows.Scan(&entry.Symbol, &month, &entry.UsageCount); err != nil {
			return nil, err
		}
		entry.Month = month.UTC().Format("2006-01")
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
