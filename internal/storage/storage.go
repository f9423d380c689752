package storage

import (
	"context"
	"time"
)

// SearchRecord is the history entry written for one search invocation.
type SearchRecord struct {
	ID           string
	Query        string
	Mode         string // "text" or "images"
	Limit        int
	URL          string
	StatusCode   int
	ResultCount  int
	Results      []byte // JSON-encoded result list, empty on failure
	DetectedBot  bool
	DetectionSrc string
	Duration     time.Duration
	CreatedAt    time.Time
	Error        string // non-empty if the search failed
}

// Failed reports whether the search produced no result list.
func (r *SearchRecord) Failed() bool {
	return r.Error != ""
}

// Filter allows querying for specific SearchRecords. Results are ordered
// newest first.
type Filter struct {
	Query       string
	Mode        string
	DetectedBot *bool
	Since       *time.Time
	Limit       int
	Offset      int
}

// Match applies every filter field except Limit and Offset. File-backed
// backends use it; SQL backends translate the same fields into WHERE clauses.
func (f Filter) Match(r *SearchRecord) bool {
	if f.Query != "" && r.Query != f.Query {
		return false
	}
	if f.Mode != "" && r.Mode != f.Mode {
		return false
	}
	if f.DetectedBot != nil && r.DetectedBot != *f.DetectedBot {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page reverses records (oldest-first on input) and applies Offset and Limit.
func (f Filter) Page(records []*SearchRecord) []*SearchRecord {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*SearchRecord{}
		}
		records = records[f.Offset:]
	}

	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}

	return records
}

// Backend defines the interface for storing and querying search history.
type Backend interface {
	Save(ctx context.Context, record *SearchRecord) error
	Query(ctx context.Context, filter Filter) ([]*SearchRecord, error)
	Close() error
}
