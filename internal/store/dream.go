package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/siamesedream/apiserver/types"
)

// dreamColumns is the select list shared by every query that returns full
// dream rows with their aggregated symbol names.
const dreamColumns = `
		d.id,
		d.user_id,
		d.summary,
		d.content,
		d.dream_date,
		d.is_lucid,
		d.mood_score,
		d.sleep_duration,
		d.sleep_quality,
		d.bedtime,
		d.sleep_disruptions,
		d.created_at,
		COALESCE(array_agg(s.name) FILTER (WHERE s.name IS NOT NULL), '{}') AS symbols`

const dreamJoins = `
	FROM dreams d
	LEFT JOIN dream_symbols ds ON d.id = ds.dream_id
	LEFT JOIN symbols s ON ds.symbol_id = s.id`

// DreamFilter is the typed search specification. Zero/nil fields are
// omitted from the generated WHERE clause entirely; set fields are
// combined with AND and always bound as parameters.
type DreamFilter struct {
	UserID   int
	Query    string
	Symbols  []string
	DateFrom *time.Time
	DateTo   *time.Time
	IsLucid  *bool
	MoodMin  *int
	MoodMax  *int
}

// Conditions compiles the filter into AND-joined predicates with numbered
// placeholders starting at $1, plus the matching argument list.
func (f DreamFilter) Conditions() (string, []any) {
	conditions := []string{"d.user_id = $1"}
	args := []any{f.UserID}

	next := func() int { return len(args) + 1 }

	if q := strings.TrimSpace(f.Query); q != "" {
		n := next()
		conditions = append(conditions, fmt.Sprintf("(d.content ILIKE $%d OR d.summary ILIKE $%d)", n, n))
		args = append(args, "%"+q+"%")
	}
	if len(f.Symbols) > 0 {
		n := next()
		conditions = append(conditions, fmt.Sprintf(`d.id IN (
			SELECT ds2.dream_id
			FROM dream_symbols ds2
			JOIN symbols s2 ON ds2.symbol_id = s2.id
			WHERE s2.name = ANY($%d))`, n))
		args = append(args, pq.Array(f.Symbols))
	}
	if f.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("d.dream_date >= $%d", next()))
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("d.dream_date <= $%d", next()))
		args = append(args, *f.DateTo)
	}
	if f.IsLucid != nil {
		conditions = append(conditions, fmt.Sprintf("d.is_lucid = $%d", next()))
		args = append(args, *f.IsLucid)
	}
	if f.MoodMin != nil {
		conditions = append(conditions, fmt.Sprintf("d.mood_score >= $%d", next()))
		args = append(args, *f.MoodMin)
	}
	if f.MoodMax != nil {
		conditions = append(conditions, fmt.Sprintf("d.mood_score <= $%d", next()))
		args = append(args, *f.MoodMax)
	}

	return strings.Join(conditions, " AND "), args
}

// DreamRepository handles persistence for dreams and their symbol links.
type DreamRepository struct {
	db *sql.DB
}

func NewDreamRepository(db *sql.DB) *DreamRepository {
	return &DreamRepository{db: db}
}

// ListByUser returns all of a user's dreams, newest dream date first.
func (r *DreamRepository) ListByUser(ctx context.Context, userID int) ([]types.Dream, error) {
	query := `SELECT` + dreamColumns + dreamJoins + `
	WHERE d.user_id = $1
	GROUP BY d.id
	ORDER BY d.dream_date DESC, d.id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDreams(rows, false)
}

// Search returns one page of dreams matching the filter plus the total
// match count across all pages.
func (r *DreamRepository) Search(ctx context.Context, filter DreamFilter, limit, offset int) ([]types.Dream, int, error) {
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where, args := filter.Conditions()

	countQuery := `SELECT COUNT(DISTINCT d.id)` + dreamJoins + `
	WHERE ` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT`+dreamColumns+dreamJoins+`
	WHERE `+where+`
	GROUP BY d.id
	ORDER BY d.dream_date DESC, d.id DESC
	LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	dreams, err := scanDreams(rows, false)
	if err != nil {
		return nil, 0, err
	}
	return dreams, total, nil
}

// Get returns a single dream with its symbols.
func (r *DreamRepository) Get(ctx context.Context, id int) (types.Dream, error) {
	query := `SELECT` + dreamColumns + dreamJoins + `
	WHERE d.id = $1
	GROUP BY d.id`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return types.Dream{}, err
	}
	defer rows.Close()

	dreams, err := scanDreams(rows, false)
	if err != nil {
		return types.Dream{}, err
	}
	if len(dreams) == 0 {
		return types.Dream{}, ErrNotFound
	}
	return dreams[0], nil
}

// Create inserts a dream, finds or creates each of its symbols, and links
// them, all inside one transaction. Returns the new dream's id.
func (r *DreamRepository) Create(ctx context.Context, dream types.Dream) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertDream = `
		INSERT INTO dreams
			(user_id, summary, content, dream_date, is_lucid, mood_score,
			 sleep_duration, sleep_quality, bedtime, sleep_disruptions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var dreamID int
	if err := tx.QueryRowContext(
		ctx,
		insertDream,
		dream.UserID,
		dream.Title,
		dream.Content,
		dream.DreamDate,
		dream.IsLucid,
		dream.MoodScore,
		dream.SleepDuration,
		dream.SleepQuality,
		dream.Bedtime,
		pq.Array(dream.SleepDisruptions),
		time.Now(),
	).Scan(&dreamID); err != nil {
		return 0, err
	}

	for _, name := range dream.Symbols {
		symbolID, err := findOrCreateSymbol(ctx, tx, name)
		if err != nil {
			return 0, err
		}

		const linkSymbol = `
			INSERT INTO dream_symbols (dream_id, symbol_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, linkSymbol, dreamID, symbolID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return dreamID, nil
}

func findOrCreateSymbol(ctx context.Context, tx *sql.Tx, name string) (int, error) {
	// The insert-then-select pair makes concurrent creators of the same
	// symbol converge on one row.
	const upsert = `INSERT INTO symbols (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	if _, err := tx.ExecContext(ctx, upsert, name); err != nil {
		return 0, err
	}

	const lookup = `SELECT id FROM symbols WHERE name = $1`
	var id int
	if err := tx.QueryRowContext(ctx, lookup, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Delete removes a dream and its symbol links. It returns ErrNotFound when
// no such dream exists and ErrForbidden when it belongs to another user.
func (r *DreamRepository) Delete(ctx context.Context, id, userID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const ownerQuery = `SELECT user_id FROM dreams WHERE id = $1`
	var ownerID int
	if err := tx.QueryRowContext(ctx, ownerQuery, id).Scan(&ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if ownerID != userID {
		return ErrForbidden
	}

	// Links go first to satisfy the foreign key.
	if _, err := tx.ExecContext(ctx, `DELETE FROM dream_symbols WHERE dream_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dreams WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// Feed returns public dreams from all users annotated with the owner's
// username, optionally restricted to dreams carrying the named symbol.
func (r *DreamRepository) Feed(ctx context.Context, symbol string, limit, offset int) ([]types.Dream, error) {
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT` + dreamColumns + `,
		u.username
	FROM dreams d
	JOIN users u ON d.user_id = u.id
	LEFT JOIN dream_symbols ds ON d.id = ds.dream_id
	LEFT JOIN symbols s ON ds.symbol_id = s.id`

	args := []any{}
	if symbol != "" {
		query += `
	WHERE d.id IN (
		SELECT ds2.dream_id
		FROM dream_symbols ds2
		JOIN symbols s2 ON ds2.symbol_id = s2.id
		WHERE s2.name = $1)`
		args = append(args, symbol)
	}

	query += fmt.Sprintf(`
	GROUP BY d.id, u.username
	ORDER BY d.dream_date DESC, d.id DESC
	LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDreams(rows, true)
}

// Stats computes the aggregate counters for a user's profile.
func (r *DreamRepository) Stats(ctx context.Context, userID int) (types.DreamStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_lucid = true),
			AVG(mood_score),
			MIN(dream_date),
			MAX(dream_date)
		FROM dreams
		WHERE user_id = $1`

	var stats types.DreamStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.TotalDreams,
		&stats.LucidDreams,
		&stats.AvgMood,
		&stats.FirstDreamDate,
		&stats.LastDreamDate,
	)
	if err != nil {
		return types.DreamStats{}, err
	}
	return stats, nil
}

// MonthlyCounts returns the user's dream counts per calendar month over the
// trailing twelve months, oldest month first.
func (r *DreamRepository) MonthlyCounts(ctx context.Context, userID int) ([]types.MonthCount, error) {
	const query = `
		SELECT DATE_TRUNC('month', dream_date) AS month, COUNT(*)
		FROM dreams
		WHERE user_id = $1
			AND dream_date >= CURRENT_DATE - INTERVAL '12 months'
		GROUP BY DATE_TRUNC('month', dream_date)
		ORDER BY month`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]types.MonthCount, 0, 12)
	for rows.Next() {
		var mc types.MonthCount
		if err := rows.Scan(&mc.Month, &mc.DreamCount); err != nil {
			return nil, err
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

// Recent returns the user's most recent dreams, newest first.
func (r *DreamRepository) Recent(ctx context.Context, userID, limit int) ([]types.Dream, error) {
	if limit < 1 {
		limit = 5
	}

	query := `SELECT` + dreamColumns + dreamJoins + `
	WHERE d.user_id = $1
	GROUP BY d.id
	ORDER BY d.dream_date DESC, d.id DESC
	LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDreams(rows, false)
}

func scanDreams(rows *sql.Rows, withUsername bool) ([]types.Dream, error) {
	dreams := make([]types.Dream, 0)
	for rows.Next() {
		var dream types.Dream
		dest := []any{
			&dream.ID,
			&dream.UserID,
			&dream.Title,
			&dream.Content,
			&dream.DreamDate,
			&dream.IsLucid,
			&dream.MoodScore,
			&dream.SleepDuration,
			&dream.SleepQuality,
			&dream.Bedtime,
			pq.Array(&dream.SleepDisruptions),
			&dream.CreatedAt,
			pq.Array(&dream.Symbols),
		}
		if withUsername {
			dest = append(dest, &dream.Username)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if dream.SleepDisruptions == nil {
			dream.SleepDisruptions = []string{}
		}
		if dream.Symbols == nil {
			dream.Symbols = []string{}
		}
		dreams = append(dreams, dream)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dreams, nil
}
