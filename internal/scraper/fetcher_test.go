package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/gsearch/internal/bypass"
	"github.com/FranksOps/gsearch/internal/fingerprint"
	"github.com/FranksOps/gsearch/pkg/useragent"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestFetcher(t *testing.T, cfg FetchConfig) *Fetcher {
	t.Helper()
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger
	}
	f, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

func TestFetcher_Success(t *testing.T) {
	const html = "<html><body><div class=\"tF2Cxc\">ok</div></body></html>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestBrowser/1.0" {
			t.Errorf("expected User-Agent TestBrowser/1.0, got %q", got)
		}
		if r.Header.Get("Cookie") != "" || r.Header.Get("Accept-Language") != "" {
			t.Errorf("expected no extra headers, got %v", r.Header)
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(html))
	}))
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{
		Timeout: 5 * time.Second,
		UAPool:  useragent.NewPool([]string{"TestBrowser/1.0"}),
	})

	page, err := fetcher.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", page.StatusCode)
	}
	if string(page.Body) != html {
		t.Errorf("expected body unchanged, got %q", string(page.Body))
	}
	if page.Headers.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %v", page.Headers["X-Test"])
	}
	if page.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
	if page.DetectedBot {
		t.Errorf("expected no detection, got %s", page.DetectionSrc)
	}
}

func TestFetcher_DefaultUserAgent(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{})
	if _, err := fetcher.Fetch(context.Background(), ts.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != useragent.Default {
		t.Errorf("expected default UA, got %q", got)
	}
}

func TestFetcher_NonOKStatus(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNoContent, http.StatusInternalServerError} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		fetcher := newTestFetcher(t, FetchConfig{})
		page, err := fetcher.Fetch(context.Background(), ts.URL)
		ts.Close()

		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("status %d: expected *FetchError, got %v", status, err)
		}
		if fe.StatusCode != status {
			t.Errorf("expected status %d in error, got %d", status, fe.StatusCode)
		}
		if page == nil || page.StatusCode != status {
			t.Errorf("expected page with status %d alongside the error", status)
		}
	}
}

func TestFetcher_Blocked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sorry/index?continue=x", http.StatusFound)
	})
	mux.HandleFunc("/sorry/index", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`<div class="g-recaptcha"></div>`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{})
	page, err := fetcher.Fetch(context.Background(), ts.URL+"/search?q=cats")

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusTooManyRequests || fe.DetectionSrc != bypass.SourceSorryPage {
		t.Errorf("unexpected fetch error: %+v", fe)
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), bypass.SourceSorryPage) {
		t.Errorf("expected status and source in message, got %q", err.Error())
	}
	if !strings.HasSuffix(page.FinalURL, "/sorry/index?continue=x") {
		t.Errorf("expected final URL after redirect, got %s", page.FinalURL)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{Timeout: 10 * time.Millisecond})

	page, err := fetcher.Fetch(context.Background(), ts.URL)
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Errorf("expected request failed error, got %v", err)
	}
	if page != nil {
		t.Errorf("expected no page on transport failure")
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		t.Errorf("transport failure must not be a FetchError")
	}
}

func TestFetcher_Proxy(t *testing.T) {
	// A plain server standing in for a forward proxy: it answers every request itself.
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.RequestURI, "http://") {
			t.Errorf("expected absolute-form request URI, got %s", r.RequestURI)
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer proxyServer.Close()

	proxyURL, _ := url.Parse(proxyServer.URL)
	fetcher := newTestFetcher(t, FetchConfig{Proxy: proxyURL})

	page, err := fetcher.Fetch(context.Background(), "http://search.invalid/search?q=x")
	var fe *FetchError
	if !errors.As(err, &fe) || page.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418 Teapot from proxy, got page=%v err=%v", page, err)
	}
}
