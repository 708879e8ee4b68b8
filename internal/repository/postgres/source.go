package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/pkg/database"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

const sourceSlugConstraint = "review_sources_slug_key"

const sourceColumns = `id, name, slug, platform, url, enabled, sync_frequency, credentials,
	last_sync_time, last_sync_status, last_sync_error, created_at, updated_at`

// SourceRepository implements repository.SourceRepository using PostgreSQL.
// Credential bags are sealed before they are written.
type SourceRepository struct {
	db     database.DBTX
	sealer *Sealer
}

// NewSourceRepository creates a new PostgreSQL-backed source repository.
func NewSourceRepository(db database.DBTX, sealer *Sealer) *SourceRepository {
	return &SourceRepository{db: db, sealer: sealer}
}

// Create inserts a new source.
func (r *SourceRepository) Create(ctx context.Context, s *domain.ReviewSource) (err error) {
	const q = `INSERT INTO review_sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	ctx, end := database.TraceQuery(ctx, "CreateSource", q)
	defer func() { end(err) }()

	creds, err := r.sealer.Seal(s.Credentials)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, q,
		s.ID, s.Name, s.Slug, s.Platform, s.URL, s.Enabled, s.SyncFrequency, creds,
		s.LastSyncTime, s.LastSyncStatus, s.LastSyncError, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, sourceSlugConstraint) {
			return apperrors.AlreadyExists("review source", "name", s.Name)
		}
		return fmt.Errorf("insert review source: %w", err)
	}
	return nil
}

// GetByID retrieves a source by its ID.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (_ *domain.ReviewSource, err error) {
	const q = `SELECT ` + sourceColumns + ` FROM review_sources WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetSource", q)
	defer func() { end(err) }()

	s, err := r.scan(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("review source", id)
		}
		return nil, fmt.Errorf("get review source: %w", err)
	}
	return s, nil
}

// List returns every source ordered by name.
func (r *SourceRepository) List(ctx context.Context) (_ []domain.ReviewSource, err error) {
	const q = `SELECT ` + sourceColumns + ` FROM review_sources ORDER BY name, id`
	ctx, end := database.TraceQuery(ctx, "ListSources", q)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list review sources: %w", err)
	}
	defer rows.Close()

	sources := []domain.ReviewSource{}
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review source: %w", err)
		}
		sources = append(sources, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review sources: %w", err)
	}
	return sources, nil
}

// Update writes every mutable field of the source.
func (r *SourceRepository) Update(ctx context.Context, s *domain.ReviewSource) (err error) {
	const q = `UPDATE review_sources SET
			name = $2, slug = $3, platform = $4, url = $5, enabled = $6,
			sync_frequency = $7, credentials = $8, last_sync_time = $9,
			last_sync_status = $10, last_sync_error = $11, updated_at = $12
		WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "UpdateSource", q)
	defer func() { end(err) }()

	creds, err := r.sealer.Seal(s.Credentials)
	if err != nil {
		return err
	}
	ct, err := r.db.Exec(ctx, q,
		s.ID, s.Name, s.Slug, s.Platform, s.URL, s.Enabled, s.SyncFrequency, creds,
		s.LastSyncTime, s.LastSyncStatus, s.LastSyncError, s.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, sourceSlugConstraint) {
			return apperrors.AlreadyExists("review source", "name", s.Name)
		}
		return fmt.Errorf("update review source: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review source", s.ID)
	}
	return nil
}

// Delete removes a source. Its reviews are left in place.
func (r *SourceRepository) Delete(ctx context.Context, id string) (err error) {
	const q = `DELETE FROM review_sources WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "DeleteSource", q)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete review source: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review source", id)
	}
	return nil
}

func (r *SourceRepository) scan(row pgx.Row) (*domain.ReviewSource, error) {
	var (
		s     domain.ReviewSource
		creds []byte
	)
	if err := row.Scan(
		&s.ID, &s.Name, &s.Slug, &s.Platform, &s.URL, &s.Enabled, &s.SyncFrequency, &creds,
		&s.LastSyncTime, &s.LastSyncStatus, &s.LastSyncError, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	opened, err := r.sealer.Open(creds)
	if err != nil {
		return nil, err
	}
	s.Credentials = opened
	return &s, nil
}
