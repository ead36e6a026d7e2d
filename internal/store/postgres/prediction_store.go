package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a PredictionStore backed by the given pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

const predictionCols = `id, user_id, category, market_type, asset_symbol, asset_key,
	direction, title, prediction_type, duration_minutes, target_date,
	reference_time, reference_price, final_price, data_source,
	outcome, evaluation_time, created_at`

// Insert persists one immutable prediction row.
func (s *PredictionStore) Insert(ctx context.Context, p domain.Prediction) error {
	const query = `
		INSERT INTO predictions (` + predictionCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	var outcome *string
	if p.Outcome != nil {
		o := string(*p.Outcome)
		outcome = &o
	}

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.UserID, string(p.Category), string(p.MarketType), p.AssetSymbol, p.AssetKey,
		string(p.Direction), p.Title, string(p.PredictionType), p.DurationMinutes, p.TargetDate,
		p.ReferenceTime, p.ReferencePrice, p.FinalPrice, p.DataSource,
		outcome, p.EvaluationTime, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert prediction %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a prediction by its primary key.
func (s *PredictionStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+predictionCols+` FROM predictions WHERE id = $1`, id)
	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prediction{}, domain.ErrNotFound
		}
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction %s: %w", id, err)
	}
	return p, nil
}

// HasActiveDuplicate reports whether an unresolved prediction already exists
// in the given scope. Intraday predictions collide only within the same
// duration; opening predictions collide with any unresolved opening
// prediction on the asset.
func (s *PredictionStore) HasActiveDuplicate(ctx context.Context, scope domain.DuplicateScope) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM predictions
			WHERE user_id = $1 AND asset_key = $2 AND outcome IS NULL
			  AND prediction_type = $3`
	args := []any{scope.UserID, scope.AssetKey, string(scope.PredictionType)}

	if scope.PredictionType == domain.PredictionTypeIntraday {
		query += ` AND duration_minutes = $4`
		args = append(args, scope.DurationMinutes)
	}
	query += `)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: duplicate probe %s/%s: %w", scope.UserID, scope.AssetKey, err)
	}
	return exists, nil
}

// ListPending returns up to limit unresolved predictions for a category,
// oldest first.
func (s *PredictionStore) ListPending(ctx context.Context, category domain.Category, limit int) ([]domain.Prediction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+predictionCols+` FROM predictions
		 WHERE category = $1 AND outcome IS NULL
		 ORDER BY created_at ASC
		 LIMIT $2`,
		string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending %s: %w", category, err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pending %s: %w", category, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pending %s rows: %w", category, err)
	}
	return out, nil
}

// SetReferencePrice backfills a deferred opening reference. Conditional on
// the stored reference still being null so a concurrent backfill never
// overwrites the first capture.
func (s *PredictionStore) SetReferencePrice(ctx context.Context, id string, price float64, source string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions
		 SET reference_price = $2, data_source = $3
		 WHERE id = $1 AND reference_price IS NULL`,
		id, price, source)
	if err != nil {
		return fmt.Errorf("postgres: set reference price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: set reference price %s: %w", id, domain.ErrAlreadyEvaluated)
	}
	return nil
}

// ClaimOutcome atomically records the terminal outcome. The WHERE clause on
// a null outcome is the claim: overlapping validator runs race here and only
// one wins.
func (s *PredictionStore) ClaimOutcome(ctx context.Context, id string, outcome domain.Outcome, finalPrice *float64, evaluatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions
		 SET outcome = $2, final_price = $3, evaluation_time = $4
		 WHERE id = $1 AND outcome IS NULL`,
		id, string(outcome), finalPrice, evaluatedAt)
	if err != nil {
		return fmt.Errorf("postgres: claim outcome %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: claim outcome %s: %w", id, domain.ErrAlreadyEvaluated)
	}
	return nil
}

// ListEvaluatedBefore returns predictions whose evaluation time is strictly
// before the cutoff, for cold-storage archival.
func (s *PredictionStore) ListEvaluatedBefore(ctx context.Context, before time.Time) ([]domain.Prediction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+predictionCols+` FROM predictions
		 WHERE outcome IS NOT NULL AND evaluation_time < $1
		 ORDER BY evaluation_time ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list evaluated before %v: %w", before, err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan evaluated: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list evaluated rows: %w", err)
	}
	return out, nil
}

// DeleteEvaluatedBefore removes archived predictions and returns the count.
func (s *PredictionStore) DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM predictions WHERE outcome IS NOT NULL AND evaluation_time < $1`,
		before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete evaluated before %v: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// scanPrediction scans one prediction row.
func scanPrediction(row pgx.Row) (domain.Prediction, error) {
	var p domain.Prediction
	var category, marketType, direction, predictionType string
	var outcome *string

	err := row.Scan(
		&p.ID, &p.UserID, &category, &marketType, &p.AssetSymbol, &p.AssetKey,
		&direction, &p.Title, &predictionType, &p.DurationMinutes, &p.TargetDate,
		&p.ReferenceTime, &p.ReferencePrice, &p.FinalPrice, &p.DataSource,
		&outcome, &p.EvaluationTime, &p.CreatedAt,
	)
	if err != nil {
		return domain.Prediction{}, err
	}

	p.Category = domain.Category(category)
	p.MarketType = domain.MarketType(marketType)
	p.Direction = domain.Direction(direction)
	p.PredictionType = domain.PredictionType(predictionType)
	if outcome != nil {
		o := domain.Outcome(*outcome)
		p.Outcome = &o
	}
	return p, nil
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
