package domain

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// ErrNilRenderInput is returned by Render when the template or review is nil.
var ErrNilRenderInput = errors.New("template and review are required")

// Review-derived template variables.
const (
	VarName       = "name"
	VarAuthorName = "author_name"
	VarRating     = "rating"
	VarDate       = "date"
	VarContent    = "content"
	VarSource     = "source"
)

// RenderDateLayout formats the date variable.
const RenderDateLayout = "January 2, 2006"

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// ResponseTemplate is a reusable reply skeleton with {{variable}} placeholders.
type ResponseTemplate struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     string            `json:"category"`
	Content      string            `json:"content"`
	Variables    []string          `json:"variables"`
	Defaults     map[string]string `json:"defaults,omitempty"`
	UsageCount   int               `json:"usage_count"`
	SuccessCount int               `json:"success_count"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// SuccessRate is the fraction of uses that ended in a published response.
func (t *ResponseTemplate) SuccessRate() float64 {
	if t.UsageCount == 0 {
		return 0
	}
	return float64(t.SuccessCount) / float64(t.UsageCount)
}

// Placeholders returns the distinct variable names in content, in order of
// first appearance.
func Placeholders(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UndeclaredPlaceholders lists placeholders in the content that are missing
// from the declared variables, sorted.
func (t *ResponseTemplate) UndeclaredPlaceholders() []string {
	declared := t.declared()
	var missing []string
	for _, name := range Placeholders(t.Content) {
		if !declared[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func (t *ResponseTemplate) declared() map[string]bool {
	set := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		set[v] = true
	}
	return set
}

// RenderContext carries what a template is rendered against.
type RenderContext struct {
	Review     *Review
	SourceName string
	Overrides  map[string]string
}

// ReviewFields returns the variables derivable from a review. Empty values
// are omitted so they fall through to the template default.
func ReviewFields(r *Review, sourceName string) map[string]string {
	fields := make(map[string]string, 6)
	set := func(k, v string) {
		if v != "" {
			fields[k] = v
		}
	}
	set(VarName, r.AuthorName)
	set(VarAuthorName, r.AuthorName)
	if r.Rating > 0 {
		set(VarRating, strconv.Itoa(r.Rating))
	}
	if !r.PublishedAt.IsZero() {
		set(VarDate, r.PublishedAt.UTC().Format(RenderDateLayout))
	}
	set(VarContent, r.Content)
	set(VarSource, sourceName)
	return fields
}

// Render substitutes declared placeholders with, in order of precedence, an
// override, a review field or the template default. Anything unresolved,
// including undeclared placeholders, is left verbatim.
func (t *ResponseTemplate) Render(rc RenderContext) (string, error) {
	if t == nil || rc.Review == nil {
		return "", ErrNilRenderInput
	}
	declared := t.declared()
	fields := ReviewFields(rc.Review, rc.SourceName)

	out := placeholderRe.ReplaceAllStringFunc(t.Content, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if !declared[name] {
			return match
		}
		if v, ok := rc.Overrides[name]; ok {
			return v
		}
		if v, ok := fields[name]; ok {
			return v
		}
		if v, ok := t.Defaults[name]; ok {
			return v
		}
		return match
	})
	return out, nil
}

// IsValidTemplateCategory checks whether c is a sentiment bucket name.
// Template categories share the bucket vocabulary.
func IsValidTemplateCategory(c string) bool {
	return IsValidSentimentBucket(c)
}
