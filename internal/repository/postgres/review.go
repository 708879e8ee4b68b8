package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/internal/repository"
	"github.com/utafrali/ReputationGo/pkg/database"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
	"github.com/utafrali/ReputationGo/pkg/pagination"
)

const reviewColumns = `id, source_id, external_id, author_name, rating, content, published_at,
	status, sentiment_score, sentiment_magnitude, response_content, response_published_at,
	response_author, version, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	db database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Upsert inserts the review or refreshes the row with the same source and
// external id. A responded row keeps its status and reply fields.
func (r *ReviewRepository) Upsert(ctx context.Context, rev *domain.Review) (_ bool, err error) {
	const q = `INSERT INTO reviews (
			id, source_id, external_id, author_name, rating, content, published_at,
			status, sentiment_score, sentiment_magnitude, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
		ON CONFLICT ON CONSTRAINT reviews_source_external_key DO UPDATE SET
			author_name = EXCLUDED.author_name,
			rating = EXCLUDED.rating,
			content = EXCLUDED.content,
			published_at = EXCLUDED.published_at,
			sentiment_score = EXCLUDED.sentiment_score,
			sentiment_magnitude = EXCLUDED.sentiment_magnitude,
			status = CASE WHEN reviews.status = 'responded' THEN reviews.status ELSE EXCLUDED.status END,
			updated_at = EXCLUDED.updated_at,
			version = reviews.version + 1
		RETURNING ` + reviewColumns + `, (xmax = 0) AS inserted`
	ctx, end := database.TraceQuery(ctx, "UpsertReview", q)
	defer func() { end(err) }()

	score, magnitude := sentimentArgs(rev.Sentiment)
	row := r.db.QueryRow(ctx, q,
		rev.ID, rev.SourceID, rev.ExternalID, rev.AuthorName, rev.Rating, rev.Content, rev.PublishedAt,
		rev.Status, score, magnitude, rev.CreatedAt, rev.UpdatedAt,
	)

	var inserted bool
	stored, err := scanReview(row, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert review: %w", err)
	}
	*rev = *stored
	return inserted, nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (_ *domain.Review, err error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetReview", q)
	defer func() { end(err) }()

	rev, err := scanReview(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rev, nil
}

// Query returns one page of reviews matching the filter and the total count.
func (r *ReviewRepository) Query(ctx context.Context, filter repository.ReviewFilter) (_ []domain.Review, _ int, err error) {
	where, args := buildReviewWhere(filter)
	p := pagination.New(filter.Page, filter.PerPage)

	countQ := `SELECT count(*) FROM reviews ` + where
	listQ := fmt.Sprintf(`SELECT %s FROM reviews %s
		ORDER BY published_at DESC, id ASC
		LIMIT $%d OFFSET $%d`, reviewColumns, where, len(args)+1, len(args)+2)

	ctx, end := database.TraceQuery(ctx, "QueryReviews", listQ)
	defer func() { end(err) }()

	var total int
	if err := r.db.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}
	if total == 0 {
		return []domain.Review{}, 0, nil
	}

	reviews, err := r.list(ctx, listQ, append(args, p.PerPage, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// ListInWindow returns reviews published in [start, end] from one statement.
func (r *ReviewRepository) ListInWindow(ctx context.Context, start, end time.Time) (_ []domain.Review, err error) {
	const q = `SELECT ` + reviewColumns + ` FROM reviews
		WHERE published_at >= $1 AND published_at <= $2
		ORDER BY published_at DESC, id ASC`
	ctx, endSpan := database.TraceQuery(ctx, "ListReviewsInWindow", q)
	defer func() { endSpan(err) }()

	return r.list(ctx, q, start, end)
}

// UpdateWithVersion writes the workflow-owned fields (status and reply) when
// the stored version matches.
func (r *ReviewRepository) UpdateWithVersion(ctx context.Context, rev *domain.Review, expectedVersion int64) (err error) {
	const q = `UPDATE reviews SET
			status = $3, response_content = $4, response_published_at = $5,
			response_author = $6, updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2`
	ctx, end := database.TraceQuery(ctx, "UpdateReviewVersioned", q)
	defer func() { end(err) }()

	var (
		content, author *string
		publishedAt     *time.Time
	)
	if rev.Response != nil {
		content, author, publishedAt = &rev.Response.Content, &rev.Response.Author, &rev.Response.PublishedAt
	}

	ct, err := r.db.Exec(ctx, q, rev.ID, expectedVersion, rev.Status, content, publishedAt, author, rev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if ct.RowsAffected() == 1 {
		rev.Version = expectedVersion + 1
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reviews WHERE id = $1)`, rev.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check review: %w", err)
	}
	if !exists {
		return apperrors.NotFound("review", rev.ID)
	}
	return repository.ErrVersionConflict
}

// Summary aggregates all stored reviews.
func (r *ReviewRepository) Summary(ctx context.Context) (_ domain.ReviewSummary, err error) {
	const q = `SELECT COALESCE(AVG(rating), 0)::float8, count(*) FROM reviews`
	ctx, end := database.TraceQuery(ctx, "SummarizeReviews", q)
	defer func() { end(err) }()

	var sum domain.ReviewSummary
	if err := r.db.QueryRow(ctx, q).Scan(&sum.AverageRating, &sum.TotalReviews); err != nil {
		return domain.ReviewSummary{}, fmt.Errorf("summarize reviews: %w", err)
	}
	return sum, nil
}

func (r *ReviewRepository) list(ctx context.Context, q string, args ...any) ([]domain.Review, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

func buildReviewWhere(f repository.ReviewFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.SourceID != nil {
		add("source_id = $%d", *f.SourceID)
	}
	if f.MinRating != nil {
		add("rating >= $%d", *f.MinRating)
	}
	if f.MaxRating != nil {
		add("rating <= $%d", *f.MaxRating)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Sentiment != nil {
		switch *f.Sentiment {
		case domain.SentimentPositive:
			add("sentiment_score > $%d", domain.SentimentBucketBound)
		case domain.SentimentNegative:
			add("sentiment_score < $%d", -domain.SentimentBucketBound)
		default:
			add("sentiment_score >= $%d", -domain.SentimentBucketBound)
			add("sentiment_score <= $%d", domain.SentimentBucketBound)
		}
	}
	if f.HasResponse != nil {
		if *f.HasResponse {
			conditions = append(conditions, "response_content IS NOT NULL")
		} else {
			conditions = append(conditions, "response_content IS NULL")
		}
	}
	if f.Search != nil && *f.Search != "" {
		add("(author_name ILIKE $%[1]d OR content ILIKE $%[1]d)", "%"+likeEscaper.Replace(*f.Search)+"%")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func sentimentArgs(s *domain.Sentiment) (*float64, *float64) {
	if s == nil {
		return nil, nil
	}
	return &s.Score, &s.Magnitude
}

// scanReview scans reviewColumns plus any trailing destinations.
func scanReview(row pgx.Row, extra ...any) (*domain.Review, error) {
	var (
		rev                     domain.Review
		score, magnitude        *float64
		respContent, respAuthor *string
		respPublishedAt         *time.Time
	)
	dest := []any{
		&rev.ID, &rev.SourceID, &rev.ExternalID, &rev.AuthorName, &rev.Rating, &rev.Content, &rev.PublishedAt,
		&rev.Status, &score, &magnitude, &respContent, &respPublishedAt,
		&respAuthor, &rev.Version, &rev.CreatedAt, &rev.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if score != nil {
		rev.Sentiment = &domain.Sentiment{Score: *score}
		if magnitude != nil {
			rev.Sentiment.Magnitude = *magnitude
		}
	}
	if respContent != nil {
		rev.Response = &domain.PublishedReply{Content: *respContent}
		if respAuthor != nil {
			rev.Response.Author = *respAuthor
		}
		if respPublishedAt != nil {
			rev.Response.PublishedAt = *respPublishedAt
		}
	}
	return &rev, nil
}
