package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/gsearch/internal/metrics"
	"github.com/FranksOps/gsearch/internal/serp"
	"github.com/FranksOps/gsearch/internal/storage"
	"github.com/google/uuid"
)

// Pipeline runs one search and records its outcome. Backend and Metrics are
// optional; failures to record are logged and never change the search result.
type Pipeline struct {
	Provider serp.Provider
	Backend  storage.Backend
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	// Now is used to stamp records; defaults to time.Now.
	Now func() time.Time
}

// Run executes the search and returns the provider's response and error
// unchanged.
func (p *Pipeline) Run(ctx context.Context, q serp.Query) (*serp.Response, error) {
	if p.Provider == nil {
		return nil, errors.New("pipeline: provider is nil")
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resp, err := p.Provider.Search(ctx, q)
	if resp == nil {
		return nil, err
	}

	rec := p.record(q, resp, err)

	if p.Metrics != nil {
		p.Metrics.Observe(rec, resp.Bytes)
	}

	if p.Backend != nil {
		if saveErr := p.Backend.Save(ctx, rec); saveErr != nil {
			logger.Warn("failed to save search history", "id", rec.ID, "err", saveErr)
		} else {
			logger.Debug("search recorded", "id", rec.ID, "results", rec.ResultCount)
		}
	}

	return resp, err
}

func (p *Pipeline) record(q serp.Query, resp *serp.Response, searchErr error) *storage.SearchRecord {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	rec := &storage.SearchRecord{
		ID:           uuid.New().String(),
		Query:        q.Text,
		Mode:         q.Mode.String(),
		Limit:        q.Limit,
		URL:          resp.URL,
		StatusCode:   resp.StatusCode,
		DetectedBot:  resp.DetectedBot,
		DetectionSrc: resp.DetectionSrc,
		Duration:     resp.Duration,
		CreatedAt:    now(),
	}

	if searchErr != nil {
		rec.Error = searchErr.Error()
		return rec
	}

	rec.ResultCount = resp.Len()
	results, err := json.Marshal(resp.Results())
	if err != nil {
		rec.Error = fmt.Sprintf("encode results: %v", err)
		return rec
	}
	rec.Results = results

	return rec
}
