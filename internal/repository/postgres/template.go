package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReputationGo/internal/domain"
	"github.com/utafrali/ReputationGo/pkg/database"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

const templateColumns = `id, name, category, content, variables, defaults,
	usage_count, success_count, created_by, created_at, updated_at`

// TemplateRepository implements repository.TemplateRepository using PostgreSQL.
type TemplateRepository struct {
	db database.DBTX
}

// NewTemplateRepository creates a new PostgreSQL-backed template repository.
func NewTemplateRepository(db database.DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a new template.
func (r *TemplateRepository) Create(ctx context.Context, t *domain.ResponseTemplate) (err error) {
	const q = `INSERT INTO response_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	ctx, end := database.TraceQuery(ctx, "CreateTemplate", q)
	defer func() { end(err) }()

	vars, defaults, err := marshalTemplateJSON(t)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, q,
		t.ID, t.Name, t.Category, t.Content, vars, defaults,
		t.UsageCount, t.SuccessCount, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert response template: %w", err)
	}
	return nil
}

// GetByID retrieves a template by its ID.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (_ *domain.ResponseTemplate, err error) {
	const q = `SELECT ` + templateColumns + ` FROM response_templates WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "GetTemplate", q)
	defer func() { end(err) }()

	t, err := scanTemplate(r.db.QueryRow(ctx, q, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.NotFound("response template", id)
		}
		return nil, fmt.Errorf("get response template: %w", err)
	}
	return t, nil
}

// List returns templates ordered by name, optionally filtered by category.
func (r *TemplateRepository) List(ctx context.Context, category *string) (_ []domain.ResponseTemplate, err error) {
	const q = `SELECT ` + templateColumns + ` FROM response_templates
		WHERE ($1::text IS NULL OR category = $1)
		ORDER BY name, id`
	ctx, end := database.TraceQuery(ctx, "ListTemplates", q)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, q, category)
	if err != nil {
		return nil, fmt.Errorf("list response templates: %w", err)
	}
	defer rows.Close()

	out := []domain.ResponseTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response template: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate response templates: %w", err)
	}
	return out, nil
}

// Update writes the editable fields. Counters are owned by RecordUsage.
func (r *TemplateRepository) Update(ctx context.Context, t *domain.ResponseTemplate) (err error) {
	const q = `UPDATE response_templates SET
			name = $2, category = $3, content = $4, variables = $5, defaults = $6, updated_at = $7
		WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "UpdateTemplate", q)
	defer func() { end(err) }()

	vars, defaults, err := marshalTemplateJSON(t)
	if err != nil {
		return err
	}
	ct, err := r.db.Exec(ctx, q, t.ID, t.Name, t.Category, t.Content, vars, defaults, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update response template: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("response template", t.ID)
	}
	return nil
}

// RecordUsage adds to the usage and success counters in one statement.
func (r *TemplateRepository) RecordUsage(ctx context.Context, id string, usage, success int) (err error) {
	const q = `UPDATE response_templates
		SET usage_count = usage_count + $2, success_count = success_count + $3
		WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "RecordTemplateUsage", q)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, q, id, usage, success)
	if err != nil {
		return fmt.Errorf("record template usage: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("response template", id)
	}
	return nil
}

func marshalTemplateJSON(t *domain.ResponseTemplate) ([]byte, []byte, error) {
	vars := t.Variables
	if vars == nil {
		vars = []string{}
	}
	varsJSON, err := json.Marshal(vars)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal variables: %w", err)
	}
	defaults := t.Defaults
	if defaults == nil {
		defaults = map[string]string{}
	}
	defaultsJSON, err := json.Marshal(defaults)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal defaults: %w", err)
	}
	return varsJSON, defaultsJSON, nil
}

func scanTemplate(row pgx.Row) (*domain.ResponseTemplate, error) {
	var (
		t                      domain.ResponseTemplate
		varsJSON, defaultsJSON []byte
	)
	if err := row.Scan(
		&t.ID, &t.Name, &t.Category, &t.Content, &varsJSON, &defaultsJSON,
		&t.UsageCount, &t.SuccessCount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(varsJSON) > 0 {
		if err := json.Unmarshal(varsJSON, &t.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}
	if t.Variables == nil {
		t.Variables = []string{}
	}
	if len(defaultsJSON) > 0 {
		if err := json.Unmarshal(defaultsJSON, &t.Defaults); err != nil {
			return nil, fmt.Errorf("unmarshal defaults: %w", err)
		}
	}
	return &t, nil
}
