package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/pkg/database"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

const onePublishedConstraint = "review_responses_one_published"

const responseColumns = `id, review_id, template_id, content, status, author, created_at, updated_at, published_at`

// ResponseRepository implements repository.ResponseRepository using
// PostgreSQL. A partial unique index admits one published row per review.
type ResponseRepository struct {
	db database.DBTX
}

// NewResponseRepository creates a new PostgreSQL-backed response repository.
func NewResponseRepository(db database.DBTX) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Create inserts a response.
func (r *ResponseRepository) Create(ctx context.Context, resp *domain.ReviewResponse) (err error) {
	const q = `INSERT INTO review_responses (` + responseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	ctx, end := database.TraceQuery(ctx, "CreateResponse", q)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, q,
		resp.ID, resp.ReviewID, resp.TemplateID, resp.Content, resp.Status, resp.Author,
		resp.CreatedAt, resp.UpdatedAt, resp.PublishedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, onePublishedConstraint) {
			return alreadyPublished(resp.ReviewID)
		}
		return fmt.Errorf("insert review response: %w", err)
	}
	return nil
}

// GetByID retrieves a response by its ID.
func (r *ResponseRepository) GetByID(ctx context.Context, id string) (_ *domain.ReviewResponse, err error) {
	const q = `SELECT ` + responseColumns + ` FROM review_responses WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetResponse", q)
	defer func() { end(err) }()

	resp, err := scanResponse(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("review response", id)
		}
		return nil, fmt.Errorf("get review response: %w", err)
	}
	return resp, nil
}

// ListByReview returns a review's responses, oldest first.
func (r *ResponseRepository) ListByReview(ctx context.Context, reviewID string) (_ []domain.ReviewResponse, err error) {
	const q = `SELECT ` + responseColumns + ` FROM review_responses
		WHERE review_id = $1 ORDER BY created_at, id`
	ctx, end := database.TraceQuery(ctx, "ListResponses", q)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, q, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list review responses: %w", err)
	}
	defer rows.Close()

	out := []domain.ReviewResponse{}
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review response: %w", err)
		}
		out = append(out, *resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review responses: %w", err)
	}
	return out, nil
}

// Transition updates status, updated_at and published_at when the stored
// status still equals from.
func (r *ResponseRepository) Transition(ctx context.Context, resp *domain.ReviewResponse, from string) (err error) {
	const q = `UPDATE review_responses
		SET status = $3, updated_at = $4, published_at = $5
		WHERE id = $1 AND status = $2`
	ctx, end := database.TraceQuery(ctx, "TransitionResponse", q)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, q, resp.ID, from, resp.Status, resp.UpdatedAt, resp.PublishedAt)
	if err != nil {
		if database.IsUniqueViolation(err, onePublishedConstraint) {
			return alreadyPublished(resp.ReviewID)
		}
		return fmt.Errorf("transition review response: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var status string
	err = r.db.QueryRow(ctx, `SELECT status FROM review_responses WHERE id = $1`, resp.ID).Scan(&status)
	if err != nil {
		if database.IsNoRows(err) {
			return apperrors.NotFound("review response", resp.ID)
		}
		return fmt.Errorf("check review response: %w", err)
	}
	return apperrors.Conflict("review response is already " + status)
}

func scanResponse(row pgx.Row) (*domain.ReviewResponse, error) {
	var resp domain.ReviewResponse
	if err := row.Scan(
		&resp.ID, &resp.ReviewID, &resp.TemplateID, &resp.Content, &resp.Status, &resp.Author,
		&resp.CreatedAt, &resp.UpdatedAt, &resp.PublishedAt,
	); err != nil {
		return nil, err
	}
	return &resp, nil
}

func alreadyPublished(reviewID string) error {
	return apperrors.Conflict("review " + reviewID + " already has a published response")
}
