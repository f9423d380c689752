package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/gsearch/internal/bypass"
	"github.com/FranksOps/gsearch/internal/fingerprint"
	"github.com/FranksOps/gsearch/pkg/httpclient"
	"github.com/FranksOps/gsearch/pkg/useragent"
)

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout time.Duration
	// MaxRedirects follows httpclient.Config semantics: 0 is the net/http
	// default, negative disables following.
	MaxRedirects int
	// Proxy routes every request through a single proxy. Nil uses the
	// environment (HTTP_PROXY and friends).
	Proxy       *url.URL
	UAPool      *useragent.Pool
	Fingerprint fingerprint.Profile
	// Detectors default to bypass.DefaultDetectors.
	Detectors []bypass.Detector
	Logger    *slog.Logger
}

// Page is the outcome of a single GET.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "reCAPTCHA", "Google consent wall"
}

// FetchError reports a response whose status was not 200 OK.
type FetchError struct {
	URL          string
	StatusCode   int
	DetectionSrc string
}

func (e *FetchError) Error() string {
	if e.DetectionSrc != "" {
		return fmt.Sprintf("Status Code: %d (blocked by %s)", e.StatusCode, e.DetectionSrc)
	}
	return fmt.Sprintf("Status Code: %d", e.StatusCode)
}

// Fetcher performs single URL fetches.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
		logger: logger,
	}, nil
}

// Fetch executes a GET request to targetURL carrying only a User-Agent
// header. A response other than 200 OK yields both the Page and a
// *FetchError; transport failures yield only an error.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	start := time.Now()

	header := http.Header{}
	header.Set("User-Agent", f.config.UAPool.Pick())

	f.logger.Debug("fetching", "url", targetURL, "fingerprint", f.config.Fingerprint)

	resp, err := f.client.Get(ctx, targetURL, header)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &Page{
		URL:        targetURL,
		FinalURL:   targetURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		page.FinalURL = resp.Request.URL.String()
	}

	sig := bypass.Signal{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}
	if resp.Request != nil {
		sig.FinalURL = resp.Request.URL
	}
	page.DetectedBot, page.DetectionSrc = bypass.Analyze(sig, f.config.Detectors)
	if page.DetectedBot {
		f.logger.Warn("bot protection detected", "url", targetURL, "status", resp.StatusCode, "source", page.DetectionSrc)
	}

	f.logger.Debug("fetched", "url", targetURL, "status", resp.StatusCode, "bytes", len(body), "duration", page.Duration)

	if resp.StatusCode != http.StatusOK {
		return page, &FetchError{
			URL:          targetURL,
			StatusCode:   resp.StatusCode,
			DetectionSrc: page.DetectionSrc,
		}
	}
	return page, nil
}
