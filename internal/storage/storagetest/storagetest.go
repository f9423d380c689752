// Package storagetest holds the behavior every storage.Backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/gsearch/internal/storage"
)

// Records returns two fixtures an hour apart: a successful text search and a
// blocked image search.
func Records(now time.Time) (ok, blocked *storage.SearchRecord) {
	ok = &storage.SearchRecord{
		ID:          "rec-ok",
		Query:       "golang tutorials",
		Mode:        "text",
		Limit:       2,
		URL:         "https://www.google.com/search?q=golang+tutorials&num=2",
		StatusCode:  200,
		ResultCount: 1,
		Results:     []byte(`[{"title":"Go","link":"https://go.dev","snippet":null}]`),
		Duration:    120 * time.Millisecond,
		CreatedAt:   now.Add(-2 * time.Hour),
	}
	blocked = &storage.SearchRecord{
		ID:           "rec-blocked",
		Query:        "cats",
		Mode:         "images",
		Limit:        3,
		URL:          "https://www.google.com/search?hl=en&tbm=isch&q=cats&num=3",
		StatusCode:   429,
		DetectedBot:  true,
		DetectionSrc: "reCAPTCHA",
		Duration:     40 * time.Millisecond,
		CreatedAt:    now.Add(-1 * time.Hour),
		Error:        "Failed to fetch the image search results. Status Code: 429",
	}
	return ok, blocked
}

// Run saves the Records fixtures into b and checks round-tripping, every
// filter field, ordering and paging.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	ok, blocked := Records(now)

	for _, r := range []*storage.SearchRecord{ok, blocked} {
		if err := b.Save(ctx, r); err != nil {
			t.Fatalf("Failed to save %s: %v", r.ID, err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(all))
	}
	if all[0].ID != blocked.ID {
		t.Errorf("Expected newest record first, got %s", all[0].ID)
	}
	compare(t, ok, all[1])
	compare(t, blocked, all[0])

	check := func(name string, f storage.Filter, wantIDs ...string) {
		t.Helper()
		got, err := b.Query(ctx, f)
		if err != nil {
			t.Fatalf("%s: query failed: %v", name, err)
		}
		if len(got) != len(wantIDs) {
			t.Fatalf("%s: expected %d records, got %d", name, len(wantIDs), len(got))
		}
		for i, id := range wantIDs {
			if got[i].ID != id {
				t.Errorf("%s: record %d expected %s, got %s", name, i, id, got[i].ID)
			}
		}
	}

	yes, no := true, false
	since := now.Add(-90 * time.Minute)

	check("query", storage.Filter{Query: "cats"}, blocked.ID)
	check("mode", storage.Filter{Mode: "text"}, ok.ID)
	check("detected", storage.Filter{DetectedBot: &yes}, blocked.ID)
	check("not detected", storage.Filter{DetectedBot: &no}, ok.ID)
	check("since", storage.Filter{Since: &since}, blocked.ID)
	check("limit", storage.Filter{Limit: 1}, blocked.ID)
	check("offset", storage.Filter{Offset: 1}, ok.ID)
	check("no match", storage.Filter{Query: "dogs"})
}

func compare(t *testing.T, want, got *storage.SearchRecord) {
	t.Helper()
	if got.ID != want.ID || got.Query != want.Query || got.Mode != want.Mode || got.Limit != want.Limit {
		t.Errorf("Expected identity %s/%q/%s/%d, got %s/%q/%s/%d",
			want.ID, want.Query, want.Mode, want.Limit, got.ID, got.Query, got.Mode, got.Limit)
	}
	if got.URL != want.URL {
		t.Errorf("Expected URL %s, got %s", want.URL, got.URL)
	}
	if got.StatusCode != want.StatusCode || got.ResultCount != want.ResultCount {
		t.Errorf("Expected status/count %d/%d, got %d/%d", want.StatusCode, want.ResultCount, got.StatusCode, got.ResultCount)
	}
	if string(got.Results) != string(want.Results) {
		t.Errorf("Expected Results %s, got %s", want.Results, got.Results)
	}
	if got.DetectedBot != want.DetectedBot || got.DetectionSrc != want.DetectionSrc {
		t.Errorf("Expected detection %v/%s, got %v/%s", want.DetectedBot, want.DetectionSrc, got.DetectedBot, got.DetectionSrc)
	}
	// Note: durations are stored in whole milliseconds
	if got.Duration.Milliseconds() != want.Duration.Milliseconds() {
		t.Errorf("Expected Duration %v, got %v", want.Duration, got.Duration)
	}
	if got.CreatedAt.Unix() != want.CreatedAt.Unix() {
		t.Errorf("Expected CreatedAt %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if got.Error != want.Error {
		t.Errorf("Expected Error %q, got %q", want.Error, got.Error)
	}
}
