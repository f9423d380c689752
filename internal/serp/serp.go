package serp

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode selects which kind of result page is requested and extracted.
type Mode int

const (
	ModeText Mode = iota
	ModeImages
)

func (m Mode) String() string {
	if m == ModeImages {
		return "images"
	}
	return "text"
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "text":
		return ModeText, nil
	case "images":
		return ModeImages, nil
	}
	return ModeText, fmt.Errorf("unknown mode %q", s)
}

// TextResult is one organic hit. Title and Link are always non-empty;
// Snippet is nil when the result block carried none.
type TextResult struct {
	Title   string  `json:"title"`
	Link    string  `json:"link"`
	Snippet *string `json:"snippet"`
}

// ImageResult is one image on an image-search page.
type ImageResult struct {
	Link string `json:"link"`
}

// Query describes a single search.
type Query struct {
	Text  string
	Limit int
	Mode  Mode
}

// Response carries the extracted results and what is known about the
// exchange that produced them. Only the slice matching Query.Mode is set.
type Response struct {
	Query        Query
	URL          string
	StatusCode   int
	Bytes        int
	ContentType  string
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string
	Text         []TextResult
	Images       []ImageResult
}

// Results returns the mode's result slice, never nil, ready for encoding.
func (r *Response) Results() any {
	if r.Query.Mode == ModeImages {
		if r.Images == nil {
			return []ImageResult{}
		}
		return r.Images
	}
	if r.Text == nil {
		return []TextResult{}
	}
	return r.Text
}

// Len is the number of results for the response's mode.
func (r *Response) Len() int {
	if r.Query.Mode == ModeImages {
		return len(r.Images)
	}
	return len(r.Text)
}

// RequestError is returned by a Provider when a search could not produce
// results: a non-200 status, a transport failure or an unparsable page.
type RequestError struct {
	Mode Mode
	Err  error
}

func (e *RequestError) Error() string {
	what := "search results"
	if e.Mode == ModeImages {
		what = "image search results"
	}
	return fmt.Sprintf("Failed to fetch the %s. %v", what, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Provider abstracts a search engine that returns results for a query.
// Implementations return a non-nil Response whenever a request was
// attempted, even alongside an error, so callers can record the outcome.
type Provider interface {
	Search(ctx context.Context, q Query) (*Response, error)
}
