package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/FranksOps/gsearch/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// line is the on-disk shape of a record: snake_case keys, duration in
// milliseconds and the result list embedded as raw JSON.
type line struct {
	ID           string          `json:"id"`
	Query        string          `json:"query"`
	Mode         string          `json:"mode"`
	Limit        int             `json:"limit"`
	URL          string          `json:"url"`
	StatusCode   int             `json:"status_code"`
	ResultCount  int             `json:"result_count"`
	Results      json.RawMessage `json:"results,omitempty"`
	DetectedBot  bool            `json:"detected_bot"`
	DetectionSrc string          `json:"detection_src,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at"`
	Error        string          `json:"error,omitempty"`
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}

	return &jsonBackend{
		file: f,
	}, nil
}

func (b *jsonBackend) Save(ctx context.Context, record *storage.SearchRecord) error {
	l := line{
		ID:           record.ID,
		Query:        record.Query,
		Mode:         record.Mode,
		Limit:        record.Limit,
		URL:          record.URL,
		StatusCode:   record.StatusCode,
		ResultCount:  record.ResultCount,
		DetectedBot:  record.DetectedBot,
		DetectionSrc: record.DetectionSrc,
		DurationMs:   record.Duration.Milliseconds(),
		CreatedAt:    record.CreatedAt,
		Error:        record.Error,
	}
	if len(record.Results) > 0 {
		l.Results = json.RawMessage(record.Results)
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.SearchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind history file: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	// result lists can make long lines
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var matched []*storage.SearchRecord
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}

		r := &storage.SearchRecord{
			ID:           l.ID,
			Query:        l.Query,
			Mode:         l.Mode,
			Limit:        l.Limit,
			URL:          l.URL,
			StatusCode:   l.StatusCode,
			ResultCount:  l.ResultCount,
			Results:      []byte(l.Results),
			DetectedBot:  l.DetectedBot,
			DetectionSrc: l.DetectionSrc,
			Duration:     time.Duration(l.DurationMs) * time.Millisecond,
			CreatedAt:    l.CreatedAt,
			Error:        l.Error,
		}
		if filter.Match(r) {
			matched = append(matched, r)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	return filter.Page(matched), nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
