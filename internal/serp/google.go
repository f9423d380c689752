package serp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/FranksOps/gsearch/internal/scraper"
	"golang.org/x/net/html/charset"
)

// DefaultSearchURL is Google's result page endpoint.
const DefaultSearchURL = "https://www.google.com/search"

// PageFetcher is satisfied by *scraper.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*scraper.Page, error)
}

// GoogleConfig configures a Google provider.
type GoogleConfig struct {
	// SearchURL replaces DefaultSearchURL, e.g. for a mirror or a test server.
	SearchURL string
	// Strategy defaults to DefaultStrategy.
	Strategy Strategy
	// LegacyQueryEncoding only turns spaces into '+' and passes every other
	// character through unescaped.
	LegacyQueryEncoding bool
	Logger              *slog.Logger
}

// Google scrapes Google's HTML result pages.
type Google struct {
	fetcher PageFetcher
	cfg     GoogleConfig
	logger  *slog.Logger
}

var _ Provider = (*Google)(nil)

// NewGoogle returns a Google provider fetching through fetcher.
func NewGoogle(fetcher PageFetcher, cfg GoogleConfig) *Google {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.Strategy == nil {
		cfg.Strategy = DefaultStrategy
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{fetcher: fetcher, cfg: cfg, logger: logger}
}

// EncodeQuery renders the q parameter value.
func EncodeQuery(text string, legacy bool) string {
	if legacy {
		return strings.ReplaceAll(text, " ", "+")
	}
	return url.QueryEscape(text)
}

// SearchURL builds the result page URL for q. Parameter order is fixed:
// text pages use q, num; image pages use hl, tbm, q, num.
func (g *Google) SearchURL(q Query) string {
	var b strings.Builder
	b.WriteString(g.cfg.SearchURL)
	if strings.Contains(g.cfg.SearchURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	if q.Mode == ModeImages {
		b.WriteString("hl=en&tbm=isch&")
	}
	b.WriteString("q=")
	b.WriteString(EncodeQuery(q.Text, g.cfg.LegacyQueryEncoding))
	b.WriteString("&num=")
	b.WriteString(strconv.Itoa(q.Limit))
	return b.String()
}

// Search fetches one result page and extracts up to q.Limit results.
func (g *Google) Search(ctx context.Context, q Query) (*Response, error) {
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %d", q.Limit)
	}

	resp := &Response{
		Query: q,
		URL:   g.SearchURL(q),
	}

	page, err := g.fetcher.Fetch(ctx, resp.URL)
	if page != nil {
		resp.StatusCode = page.StatusCode
		resp.Bytes = len(page.Body)
		resp.ContentType = page.Headers.Get("Content-Type")
		resp.Duration = page.Duration
		resp.DetectedBot = page.DetectedBot
		resp.DetectionSrc = page.DetectionSrc
	}
	if err != nil {
		var fe *scraper.FetchError
		if errors.As(err, &fe) {
			g.logger.Debug("search rejected", "url", resp.URL, "status", fe.StatusCode)
		}
		return resp, &RequestError{Mode: q.Mode, Err: err}
	}

	body, err := decode(page.Body, resp.ContentType)
	if err != nil {
		return resp, &RequestError{Mode: q.Mode, Err: err}
	}

	doc, err := parse(body)
	if err != nil {
		return resp, &RequestError{Mode: q.Mode, Err: err}
	}

	switch q.Mode {
	case ModeImages:
		resp.Images = g.cfg.Strategy.Images(doc, q.Limit)
	default:
		resp.Text = g.cfg.Strategy.Text(doc, q.Limit)
	}

	if resp.Len() == 0 {
		g.logger.Info("no results extracted", "url", resp.URL, "mode", q.Mode, "bytes", resp.Bytes)
	}

	return resp, nil
}

// decode converts body to UTF-8. The charset comes from contentType, then a
// <meta> declaration, then sniffing; undeclared non-UTF-8 bytes are read as
// windows-1252.
func decode(body []byte, contentType string) (io.Reader, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	return r, nil
}
