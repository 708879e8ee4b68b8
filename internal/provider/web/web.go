// Package web implements a Provider over plain HTTP: sources expose a JSON
// review feed and competitor pages are scraped for schema.org aggregate
// ratings.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/utafrali/ReputationGo/internal/domain"
	apperrors "github.com/utafrali/ReputationGo/pkg/errors"
	"github.com/utafrali/ReputationGo/pkg/httpclient"
)

const (
	providerName = "web"
	maxBody      = 8 << 20

	// CredentialAPIKey is sent as a bearer token when present.
	CredentialAPIKey = "api_key"
)

var errNoAggregateRating = errors.New("no aggregate rating found")

// Doer is satisfied by httpclient.Client and httpclient.BreakerClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Provider fetches feeds and pages through a paced, circuit-broken client.
type Provider struct {
	client Doer
	logger *slog.Logger
}

// New creates a web provider.
func New(client Doer, logger *slog.Logger) *Provider {
	return &Provider{client: client, logger: logger}
}

func (p *Provider) Name() string { return providerName }

type feed struct {
	Reviews []feedReview `json:"reviews"`
}

type feedReview struct {
	ID          string            `json:"id"`
	Author      string            `json:"author"`
	Rating      int               `json:"rating"`
	Text        string            `json:"text"`
	PublishedAt time.Time         `json:"published_at"`
	Sentiment   *domain.Sentiment `json:"sentiment,omitempty"`
}

// FetchReviews reads the JSON feed at source.URL. Entries without an id, with
// a rating outside 1..5 or without a timestamp are skipped.
func (p *Provider) FetchReviews(ctx context.Context, source domain.ReviewSource) ([]domain.ExternalReview, error) {
	resp, err := p.get(ctx, source.URL, "application/json", source.Credentials)
	if err != nil {
		return nil, apperrors.ProviderFailure(providerName, err)
	}
	defer resp.Body.Close()

	var f feed
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&f); err != nil {
		return nil, apperrors.ProviderFailure(providerName, fmt.Errorf("decode review feed: %w", err))
	}

	out := make([]domain.ExternalReview, 0, len(f.Reviews))
	skipped := 0
	for _, r := range f.Reviews {
		if r.ID == "" || r.Rating < 1 || r.Rating > 5 || r.PublishedAt.IsZero() {
			skipped++
			continue
		}
		out = append(out, domain.ExternalReview{
			ExternalID:  r.ID,
			AuthorName:  r.Author,
			Rating:      r.Rating,
			Content:     r.Text,
			PublishedAt: r.PublishedAt.UTC(),
			Sentiment:   r.Sentiment,
		})
	}
	if skipped > 0 {
		p.logger.WarnContext(ctx, "skipped malformed feed entries",
			slog.String("source_id", source.ID),
			slog.Int("skipped", skipped),
		)
	}
	return out, nil
}

// FetchCompetitorStats reads aggregate stats from target.URL. JSON answers
// carry average_rating and total_reviews; HTML pages are searched for
// JSON-LD aggregateRating first and itemprop microdata second.
func (p *Provider) FetchCompetitorStats(ctx context.Context, target domain.CompetitorSource) (domain.CompetitorStats, error) {
	resp, err := p.get(ctx, target.URL, "text/html, application/json;q=0.9", nil)
	if err != nil {
		return domain.CompetitorStats{}, apperrors.ProviderFailure(providerName, err)
	}
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, maxBody)

	var stats domain.CompetitorStats
	if isJSON(resp.Header.Get("Content-Type")) {
		err = json.NewDecoder(body).Decode(&stats)
		if err == nil && stats.TotalReviews == 0 && stats.AverageRating == 0 {
			err = errNoAggregateRating
		}
	} else {
		stats, err = scrapeAggregateRating(body)
	}
	if err != nil {
		return domain.CompetitorStats{}, apperrors.ProviderFailure(providerName, fmt.Errorf("%s: %w", target.URL, err))
	}
	return stats, nil
}

func (p *Provider) get(ctx context.Context, url, accept string, creds map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if key := creds[CredentialAPIKey]; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, url)
	}
	return resp, nil
}

func scrapeAggregateRating(r io.Reader) (domain.CompetitorStats, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return domain.CompetitorStats{}, fmt.Errorf("parse html: %w", err)
	}

	var (
		stats domain.CompetitorStats
		found bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		stats, found = fromJSONLD(s.Text())
		return !found
	})
	if found {
		return stats, nil
	}

	rating, okRating := parseFloat(itemprop(doc, "ratingValue"))
	count, okCount := parseFloat(itemprop(doc, "reviewCount"))
	if !okCount {
		count, okCount = parseFloat(itemprop(doc, "ratingCount"))
	}
	if !okRating || !okCount {
		return domain.CompetitorStats{}, errNoAggregateRating
	}
	return domain.CompetitorStats{AverageRating: rating, TotalReviews: int(count)}, nil
}

func itemprop(doc *goquery.Document, name string) string {
	s := doc.Find(`[itemprop="` + name + `"]`).First()
	if content, ok := s.Attr("content"); ok {
		return content
	}
	return s.Text()
}

type ldNode struct {
	AggregateRating *struct {
		RatingValue any `json:"ratingValue"`
		ReviewCount any `json:"reviewCount"`
		RatingCount any `json:"ratingCount"`
	} `json:"aggregateRating"`
}

func fromJSONLD(raw string) (domain.CompetitorStats, bool) {
	var nodes []ldNode
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
			return domain.CompetitorStats{}, false
		}
	} else {
		var n ldNode
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return domain.CompetitorStats{}, false
		}
		nodes = append(nodes, n)
	}

	for _, n := range nodes {
		if n.AggregateRating == nil {
			continue
		}
		rating, ok := parseFloat(fmt.Sprint(n.AggregateRating.RatingValue))
		if !ok {
			continue
		}
		countRaw := n.AggregateRating.ReviewCount
		if countRaw == nil {
			countRaw = n.AggregateRating.RatingCount
		}
		count, ok := parseFloat(fmt.Sprint(countRaw))
		if !ok {
			continue
		}
		return domain.CompetitorStats{AverageRating: rating, TotalReviews: int(count)}, true
	}
	return domain.CompetitorStats{}, false
}

func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}
