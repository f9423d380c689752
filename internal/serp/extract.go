package serp

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors are the CSS selectors an extraction strategy runs. They track
// the provider's markup and change whenever it does.
type Selectors struct {
	// Container matches one organic result block.
	Container string
	// Title, Link and Snippet are matched inside a container; the first
	// match wins.
	Title   string
	Link    string
	Snippet string
	// Image matches image elements anywhere in the document.
	Image string
}

// GoogleSelectors match Google's desktop result markup.
var GoogleSelectors = Selectors{
	Container: ".tF2Cxc",
	Title:     ".DKV0Md",
	Link:      "a",
	Snippet:   ".aCOpRe",
	Image:     "img",
}

// Merge returns s with every empty field taken from fallback.
func (s Selectors) Merge(fallback Selectors) Selectors {
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return Selectors{
		Container: pick(s.Container, fallback.Container),
		Title:     pick(s.Title, fallback.Title),
		Link:      pick(s.Link, fallback.Link),
		Snippet:   pick(s.Snippet, fallback.Snippet),
		Image:     pick(s.Image, fallback.Image),
	}
}

// Strategy turns a parsed result page into at most limit results, in
// document order.
type Strategy interface {
	Text(doc *goquery.Document, limit int) []TextResult
	Images(doc *goquery.Document, limit int) []ImageResult
}

// SelectorStrategy is a Strategy driven entirely by its Selectors.
type SelectorStrategy struct {
	Selectors Selectors
}

// DefaultStrategy extracts with GoogleSelectors.
var DefaultStrategy Strategy = SelectorStrategy{Selectors: GoogleSelectors}

var _ Strategy = SelectorStrategy{}

func (s SelectorStrategy) Text(doc *goquery.Document, limit int) []TextResult {
	results := []TextResult{}
	if limit <= 0 {
		return results
	}

	doc.Find(s.Selectors.Container).EachWithBreak(func(_ int, block *goquery.Selection) bool {
		title := block.Find(s.Selectors.Title).First()
		if title.Length() == 0 {
			return true
		}
		titleText := title.Text()

		href, _ := block.Find(s.Selectors.Link).First().Attr("href")
		if titleText == "" || href == "" {
			return true
		}

		r := TextResult{Title: titleText, Link: href}
		if snippet := block.Find(s.Selectors.Snippet).First(); snippet.Length() > 0 {
			text := snippet.Text()
			r.Snippet = &text
		}

		results = append(results, r)
		return len(results) < limit
	})

	return results
}

func (s SelectorStrategy) Images(doc *goquery.Document, limit int) []ImageResult {
	results := []ImageResult{}
	if limit <= 0 {
		return results
	}

	doc.Find(s.Selectors.Image).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if src, ok := img.Attr("src"); ok && src != "" {
			results = append(results, ImageResult{Link: src})
		}
		return len(results) < limit
	})

	return results
}

func parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// ExtractText parses html and returns up to limit organic results using
// DefaultStrategy.
func ExtractText(html string, limit int) ([]TextResult, error) {
	doc, err := parse(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return DefaultStrategy.Text(doc, limit), nil
}

// ExtractImages parses html and returns up to limit image sources using
// DefaultStrategy.
func ExtractImages(html string, limit int) ([]ImageResult, error) {
	doc, err := parse(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return DefaultStrategy.Images(doc, limit), nil
}
