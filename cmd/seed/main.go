// Command seed populates a running reputation service with demo review
// sources, starter response templates and competitors through its HTTP API,
// then triggers a sync pass so the review store has data to work with.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	pkgconfig "github.com/utafrali/ReputationGo/pkg/config"
	"github.com/utafrali/ReputationGo/pkg/httpclient"
	"github.com/utafrali/ReputationGo/pkg/logger"
	"github.com/utafrali/ReputationGo/pkg/middleware"
)

type seedConfig struct {
	APIURL string `env:"REPUTATION_API_URL" envDefault:"http://localhost:8080/api/v1"`
	Token  string `env:"SEED_TOKEN"`
	UserID string `env:"SEED_USER_ID" envDefault:"seed"`
}

// --------------------------------------------------------------------------
// Seed data
// --------------------------------------------------------------------------

var sources = []map[string]any{
	{"name": "Downtown Google", "platform": "google", "url": "https://maps.example.com/downtown", "sync_frequency": "hourly"},
	{"name": "Downtown Yelp", "platform": "yelp", "url": "https://yelp.example.com/downtown"},
	{"name": "Harbour TripAdvisor", "platform": "tripadvisor", "url": "https://tripadvisor.example.com/harbour", "sync_frequency": "weekly"},
	{"name": "Facebook Page", "platform": "facebook", "url": "https://facebook.example.com/our-page"},
}

var templates = []map[string]any{
	{
		"name":      "Warm thanks",
		"category":  "positive",
		"content":   "Thank you {{name}} for the {{rating}}-star review on {{source}}! We hope to see you again soon.",
		"variables": []string{"name", "rating", "source"},
		"defaults":  map[string]string{"name": "there", "source": "our page"},
	},
	{
		"name":      "Neutral follow-up",
		"category":  "neutral",
		"content":   "Hi {{name}}, thanks for your feedback. We'd love to hear how we can make your next visit better.",
		"variables": []string{"name"},
		"defaults":  map[string]string{"name": "there"},
	},
	{
		"name":      "Apology",
		"category":  "negative",
		"content":   "Hi {{name}}, we're sorry your visit on {{date}} fell short. Please reach out to {{contact}} so we can make it right.",
		"variables": []string{"name", "date", "contact"},
		"defaults":  map[string]string{"contact": "support@example.com"},
	},
}

var competitors = []map[string]any{
	{
		"name": "Corner Bistro",
		"sources": []map[string]string{
			{"source_type": "google", "url": "https://maps.example.com/corner-bistro"},
			{"source_type": "yelp", "url": "https://yelp.example.com/corner-bistro"},
		},
	},
	{
		"name": "Harbour Grill",
		"sources": []map[string]string{
			{"source_type": "tripadvisor", "url": "https://tripadvisor.example.com/harbour-grill"},
		},
	},
}

// --------------------------------------------------------------------------
// HTTP helpers
// --------------------------------------------------------------------------

type api struct {
	client *httpclient.Client
	cfg    seedConfig
}

func (a *api) post(ctx context.Context, path string, body any) (map[string]any, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}
	payload := buf.Bytes()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	} else {
		req.Header.Set(middleware.UserHeader, a.cfg.UserID)
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, "reputation-service")
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return env.Data, nil
}

// --------------------------------------------------------------------------
// Main
// --------------------------------------------------------------------------

func main() {
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("reputation-seed", "info")

	clientCfg := httpclient.DefaultConfig()
	clientCfg.RequestsPerSecond = 0
	a := &api{client: httpclient.New(clientCfg), cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failed := 0
	seed := func(kind, path string, items []map[string]any) {
		for _, item := range items {
			data, err := a.post(ctx, path, item)
			if err != nil {
				failed++
				log.Warn("seed item failed",
					slog.String("kind", kind),
					slog.Any("name", item["name"]),
					slog.String("error", err.Error()),
				)
				continue
			}
			log.Info("seeded", slog.String("kind", kind), slog.Any("id", data["id"]), slog.Any("name", item["name"]))
		}
	}

	seed("source", "/sources", sources)
	seed("template", "/templates", templates)
	seed("competitor", "/competitors", competitors)

	report, err := a.post(ctx, "/sources/sync-due", nil)
	if err != nil {
		log.Error("sync pass failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("sync pass complete",
		slog.Any("synced", report["synced"]),
		slog.Any("failed", report["failed"]),
		slog.Any("busy", report["busy"]),
	)

	if failed > 0 {
		log.Warn("seed finished with failures", slog.Int("failed", failed))
		os.Exit(1)
	}
	log.Info("seed complete")
}
