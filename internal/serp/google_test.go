package serp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/gsearch/internal/fingerprint"
	"github.com/FranksOps/gsearch/internal/scraper"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestGoogle_SearchURL(t *testing.T) {
	g := NewGoogle(nil, GoogleConfig{Logger: quietLogger})

	tests := []struct {
		name   string
		q      Query
		legacy bool
		want   string
	}{
		{
			name: "text",
			q:    Query{Text: "golang tutorials", Limit: 5, Mode: ModeText},
			want: "https://www.google.com/search?q=golang+tutorials&num=5",
		},
		{
			name: "images",
			q:    Query{Text: "cats", Limit: 2, Mode: ModeImages},
			want: "https://www.google.com/search?hl=en&tbm=isch&q=cats&num=2",
		},
		{
			name: "escaped",
			q:    Query{Text: "c++ & go?", Limit: 3},
			want: "https://www.google.com/search?q=c%2B%2B+%26+go%3F&num=3",
		},
		{
			name:   "legacy",
			q:      Query{Text: "c++ & go?", Limit: 3},
			legacy: true,
			want:   "https://www.google.com/search?q=c+++&+go?&num=3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g.cfg.LegacyQueryEncoding = tt.legacy
			if got := g.SearchURL(tt.q); got != tt.want {
				t.Errorf("SearchURL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGoogle_SearchURLWithExistingQuery(t *testing.T) {
	g := NewGoogle(nil, GoogleConfig{SearchURL: "http://mirror.local/search?gl=us", Logger: quietLogger})
	got := g.SearchURL(Query{Text: "x", Limit: 1})
	if got != "http://mirror.local/search?gl=us&q=x&num=1" {
		t.Errorf("unexpected URL %s", got)
	}
}

func newSERPServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.RequestURI())
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, &seen
}

func newGoogle(t *testing.T, ts *httptest.Server) *Google {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Logger:      quietLogger,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return NewGoogle(f, GoogleConfig{SearchURL: ts.URL + "/search", Logger: quietLogger})
}

func TestGoogle_SearchText(t *testing.T) {
	var blocks []string
	for i := 1; i <= 5; i++ {
		blocks = append(blocks, resultBlock(fmt.Sprintf("T%d", i), fmt.Sprintf("https://e.com/%d", i), ""))
	}
	ts, seen := newSERPServer(t, http.StatusOK, page(blocks...))

	resp, err := newGoogle(t, ts).Search(context.Background(), Query{Text: "cats and dogs", Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*seen) != 1 || (*seen)[0] != "/search?q=cats+and+dogs&num=3" {
		t.Errorf("unexpected requests %v", *seen)
	}
	if resp.Len() != 3 || resp.Text[2].Title != "T3" {
		t.Errorf("unexpected results %+v", resp.Text)
	}
	if resp.Images != nil {
		t.Errorf("expected no image results in text mode")
	}
	if resp.StatusCode != http.StatusOK || resp.Bytes == 0 {
		t.Errorf("expected status and size recorded, got %d/%d", resp.StatusCode, resp.Bytes)
	}
}

func TestGoogle_SearchDeclaredCharset(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{
			name:        "header",
			contentType: "text/html; charset=ISO-8859-1",
			body:        page(resultBlock("Caf\xe9", "https://e.com/cafe", "cr\xe8me br\xfbl\xe9e")),
		},
		{
			name:        "meta",
			contentType: "text/html",
			body: `<html><head><meta charset="windows-1252"></head><body>` +
				resultBlock("Caf\xe9", "https://e.com/cafe", "cr\xe8me br\xfbl\xe9e") + `</body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			resp, err := newGoogle(t, ts).Search(context.Background(), Query{Text: "cafe", Limit: 1})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Len() != 1 {
				t.Fatalf("expected 1 result, got %d", resp.Len())
			}
			if got := resp.Text[0].Title; got != "Café" {
				t.Errorf("expected title Café, got %q", got)
			}
			if got := resp.Text[0].Snippet; got == nil || *got != "crème brûlée" {
				t.Errorf("expected decoded snippet, got %v", got)
			}
			if resp.ContentType != tt.contentType {
				t.Errorf("expected content type %q recorded, got %q", tt.contentType, resp.ContentType)
			}
		})
	}
}

func TestGoogle_SearchImages(t *testing.T) {
	ts, seen := newSERPServer(t, http.StatusOK, `<img src="a.png"><img src="b.png"><img src="c.png">`)

	resp, err := newGoogle(t, ts).Search(context.Background(), Query{Text: "cats", Limit: 2, Mode: ModeImages})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if (*seen)[0] != "/search?hl=en&tbm=isch&q=cats&num=2" {
		t.Errorf("unexpected request %s", (*seen)[0])
	}
	imgs, ok := resp.Results().([]ImageResult)
	if !ok || len(imgs) != 2 || imgs[1].Link != "b.png" {
		t.Errorf("unexpected results %#v", resp.Results())
	}
}

func TestGoogle_SearchForbidden(t *testing.T) {
	ts, _ := newSERPServer(t, http.StatusForbidden, "denied")

	resp, err := newGoogle(t, ts).Search(context.Background(), Query{Text: "cats", Limit: 2, Mode: ModeImages})

	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if re.Mode != ModeImages {
		t.Errorf("expected images mode on error, got %s", re.Mode)
	}
	var fe *scraper.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusForbidden {
		t.Fatalf("expected wrapped FetchError with 403, got %v", err)
	}
	if !strings.Contains(err.Error(), "Failed to fetch the image search results. Status Code: 403") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected response metadata alongside error, got %+v", resp)
	}
	if resp.Len() != 0 {
		t.Errorf("expected no results on failure")
	}
}

func TestGoogle_SearchTransportError(t *testing.T) {
	ts, _ := newSERPServer(t, http.StatusOK, "")
	g := newGoogle(t, ts)
	ts.Close()

	resp, err := g.Search(context.Background(), Query{Text: "cats", Limit: 1})
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if resp == nil || resp.StatusCode != 0 {
		t.Errorf("expected response without status, got %+v", resp)
	}
}

func TestGoogle_InvalidLimit(t *testing.T) {
	g := NewGoogle(nil, GoogleConfig{Logger: quietLogger})
	if _, err := g.Search(context.Background(), Query{Text: "x", Limit: 0}); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestResponse_ResultsNeverNil(t *testing.T) {
	r := &Response{Query: Query{Mode: ModeText}}
	if v, ok := r.Results().([]TextResult); !ok || v == nil {
		t.Errorf("expected empty []TextResult, got %#v", r.Results())
	}
	r.Query.Mode = ModeImages
	if v, ok := r.Results().([]ImageResult); !ok || v == nil {
		t.Errorf("expected empty []ImageResult, got %#v", r.Results())
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeText, ModeImages} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("video"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
