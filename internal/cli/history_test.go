package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/gsearch/internal/report"
	"github.com/FranksOps/gsearch/internal/storage"
	"github.com/FranksOps/gsearch/internal/storage/jsonbackend"
	"github.com/FranksOps/gsearch/internal/storage/storagetest"
)

func TestHistoryApp_Filter(t *testing.T) {
	a := &historyApp{now: time.Now, offset: 1, detectedSet: true, mode: "images"}
	f, err := a.filter()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.Offset != 1 || f.Mode != "images" {
		t.Errorf("Expected offset 1 and images mode, got %d/%s", f.Offset, f.Mode)
	}
	if f.DetectedBot == nil || *f.DetectedBot {
		t.Errorf("Expected DetectedBot=false, got %v", f.DetectedBot)
	}

	a = &historyApp{now: time.Now}
	if f, _ := a.filter(); f.DetectedBot != nil {
		t.Error("Expected no detection filter without --detected")
	}

	a = &historyApp{now: time.Now, offset: -1}
	if _, err := a.filter(); err == nil {
		t.Error("Expected error for negative offset")
	}
}

func historySummary(t *testing.T, args ...string) report.Summary {
	t.Helper()
	var out, errOut bytes.Buffer
	if code := ExecuteHistory(context.Background(), append(args, "--format", "json"), &out, &errOut); code != ExitOK {
		t.Fatalf("args %q: expected exit 0, got %d (stderr: %s)", args, code, errOut.String())
	}
	var s report.Summary
	if err := json.Unmarshal(out.Bytes(), &s); err != nil {
		t.Fatalf("History output is not JSON: %v\n%s", err, out.String())
	}
	return s
}

func TestExecuteHistory_DetectedAndOffset(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "history.jsonl")

	b, err := jsonbackend.New(path)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	ok, blocked := storagetest.Records(time.Now())
	for _, r := range []*storage.SearchRecord{ok, blocked} {
		if err := b.Save(context.Background(), r); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}
	b.Close()

	base := []string{"--history-backend", "json", "--history-dsn", path}

	s := historySummary(t, append(base, "--detected")...)
	if s.TotalSearches != 1 || s.TotalDetections != 1 {
		t.Errorf("--detected: expected 1 detected search, got %d/%d", s.TotalSearches, s.TotalDetections)
	}

	s = historySummary(t, append(base, "--detected=false")...)
	if s.TotalSearches != 1 || s.TotalDetections != 0 || s.Queries[ok.Query] != 1 {
		t.Errorf("--detected=false: expected only %q, got %+v", ok.Query, s)
	}

	// the blocked search is newest, so offset 1 leaves the successful one
	s = historySummary(t, append(base, "--offset", "1")...)
	if s.TotalSearches != 1 || s.ByMode["text"] != 1 {
		t.Errorf("--offset 1: expected the older text search, got %+v", s)
	}

	s = historySummary(t, base...)
	if s.TotalSearches != 2 {
		t.Errorf("Expected 2 searches without filters, got %d", s.TotalSearches)
	}
}
