package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/gsearch/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"query",
	"mode",
	"limit",
	"url",
	"status_code",
	"result_count",
	"results_json",
	"detected_bot",
	"detection_src",
	"duration_ms",
	"created_at",
	"error",
}

// New creates a new CSV-backed storage.Backend. A header row is written
// when the file is empty.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat history file: %w", err)
	}

	if info.Size() == 0 {
		if err := writeRow(f, headers); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func writeRow(w io.Writer, row []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}

func (b *csvBackend) Save(ctx context.Context, record *storage.SearchRecord) error {
	row := []string{
		record.ID,
		record.Query,
		record.Mode,
		strconv.Itoa(record.Limit),
		record.URL,
		strconv.Itoa(record.StatusCode),
		strconv.Itoa(record.ResultCount),
		string(record.Results),
		strconv.FormatBool(record.DetectedBot),
		record.DetectionSrc,
		strconv.FormatInt(record.Duration.Milliseconds(), 10),
		record.CreatedAt.Format(time.RFC3339Nano),
		record.Error,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek history file: %w", err)
	}

	return writeRow(b.file, row)
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.SearchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind history file: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.SearchRecord{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var matched []*storage.SearchRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		if len(row) != len(headers) {
			continue // skip malformed rows
		}

		limit, _ := strconv.Atoi(row[3])
		statusCode, _ := strconv.Atoi(row[5])
		resultCount, _ := strconv.Atoi(row[6])
		detectedBot, _ := strconv.ParseBool(row[8])
		durationMs, _ := strconv.ParseInt(row[10], 10, 64)
		createdAt, _ := time.Parse(time.RFC3339Nano, row[11])

		rec := &storage.SearchRecord{
			ID:           row[0],
			Query:        row[1],
			Mode:         row[2],
			Limit:        limit,
			URL:          row[4],
			StatusCode:   statusCode,
			ResultCount:  resultCount,
			DetectedBot:  detectedBot,
			DetectionSrc: row[9],
			Duration:     time.Duration(durationMs) * time.Millisecond,
			CreatedAt:    createdAt,
			Error:        row[12],
		}
		if row[7] != "" {
			rec.Results = []byte(row[7])
		}

		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	return filter.Page(matched), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
