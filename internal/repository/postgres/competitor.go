package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/pkg/database"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

const competitorColumns = `id, name, sources, average_rating, total_reviews, last_updated, created_at`

// CompetitorRepository implements repository.CompetitorRepository using PostgreSQL.
type CompetitorRepository struct {
	db database.DBTX
}

// NewCompetitorRepository creates a new PostgreSQL-backed competitor repository.
func NewCompetitorRepository(db database.DBTX) *CompetitorRepository {
	return &CompetitorRepository{db: db}
}

// Create inserts a competitor. Derived stats start out NULL.
func (r *CompetitorRepository) Create(ctx context.Context, c *domain.Competitor) (err error) {
	const q = `INSERT INTO competitors (id, name, sources, created_at) VALUES ($1, $2, $3, $4)`
	ctx, end := database.TraceQuery(ctx, "CreateCompetitor", q)
	defer func() { end(err) }()

	sources, err := json.Marshal(c.Sources)
	if err != nil {
		return fmt.Errorf("marshal competitor sources: %w", err)
	}
	if _, err = r.db.Exec(ctx, q, c.ID, c.Name, sources, c.CreatedAt); err != nil {
		return fmt.Errorf("insert competitor: %w", err)
	}
	return nil
}

// GetByID retrieves a competitor by its ID.
func (r *CompetitorRepository) GetByID(ctx context.Context, id string) (_ *domain.Competitor, err error) {
	const q = `SELECT ` + competitorColumns + ` FROM competitors WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetCompetitor", q)
	defer func() { end(err) }()

	c, err := scanCompetitor(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("competitor", id)
		}
		return nil, fmt.Errorf("get competitor: %w", err)
	}
	return c, nil
}

// List returns competitors ordered by name.
func (r *CompetitorRepository) List(ctx context.Context) (_ []domain.Competitor, err error) {
	const q = `SELECT ` + competitorColumns + ` FROM competitors ORDER BY name, id`
	ctx, end := database.TraceQuery(ctx, "ListCompetitors", q)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	defer rows.Close()

	out := []domain.Competitor{}
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate competitors: %w", err)
	}
	return out, nil
}

// UpdateStats writes the refresh-derived fields.
func (r *CompetitorRepository) UpdateStats(ctx context.Context, id string, stats domain.CompetitorStats, updatedAt time.Time) (err error) {
	const q = `UPDATE competitors SET average_rating = $2, total_reviews = $3, last_updated = $4 WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "UpdateCompetitorStats", q)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, q, id, stats.AverageRating, stats.TotalReviews, updatedAt)
	if err != nil {
		return fmt.Errorf("update competitor stats: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("competitor", id)
	}
	return nil
}

// Delete removes a competitor.
func (r *CompetitorRepository) Delete(ctx context.Context, id string) (err error) {
	const q = `DELETE FROM competitors WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "DeleteCompetitor", q)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete competitor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("competitor", id)
	}
	return nil
}

func scanCompetitor(row pgx.Row) (*domain.Competitor, error) {
	var (
		c           domain.Competitor
		sourcesJSON []byte
	)
	if err := row.Scan(
		&c.ID, &c.Name, &sourcesJSON, &c.AverageRating, &c.TotalReviews, &c.LastUpdated, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &c.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal competitor sources: %w", err)
		}
	}
	if c.Sources == nil {
		c.Sources = []domain.CompetitorSource{}
	}
	return &c, nil
}
