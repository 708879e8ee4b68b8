package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
)

// queryParser collects per-field errors while reading query parameters.
type queryParser struct {
	q      map[string][]string
	fields map[string]string
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{q: r.URL.Query(), fields: make(map[string]string)}
}

func (p *queryParser) raw(name string) string {
	if v := p.q[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (p *queryParser) String(name string) *string {
	v := p.raw(name)
	if v == "" {
		return nil
	}
	return &v
}

func (p *queryParser) Int(name string) *int {
	v := p.raw(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fields[name] = "must be an integer"
		return nil
	}
	return &n
}

func (p *queryParser) Bool(name string) *bool {
	v := p.raw(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fields[name] = "must be true or false"
		return nil
	}
	return &b
}

// Time accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func (p *queryParser) Time(name string) *time.Time {
	v := p.raw(name)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.fields[name] = "must be an RFC 3339 timestamp or YYYY-MM-DD date"
	return nil
}

func (p *queryParser) Err() error {
	if len(p.fields) == 0 {
		return nil
	}
	return apperrors.InvalidFields("invalid query parameters", p.fields)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
