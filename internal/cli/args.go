package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FranksOps/gsearch/internal/serp"
)

// usageLine is printed whenever the positional arguments cannot be parsed.
const usageLine = "Usage: gsearch <search_term> <number_of_results> [images]"

// imagesFlag is the literal trailing argument that selects image mode.
const imagesFlag = "images"

// UsageError reports malformed or insufficient arguments. It is raised
// before any network activity.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	if e.Reason == "" {
		return usageLine
	}
	return e.Reason
}

// ParseArgs turns positional arguments into a search query.
//
// Image mode is selected only by exactly three arguments whose last is the
// literal "images"; the count is then the second argument and the query the
// first. In every other case the count is the last argument and the query is
// the rest joined by single spaces.
func ParseArgs(args []string) (serp.Query, error) {
	if len(args) < 2 {
		return serp.Query{}, &UsageError{}
	}

	q := serp.Query{Mode: serp.ModeText}
	countArg := args[len(args)-1]
	words := args[:len(args)-1]

	if len(args) == 3 && args[2] == imagesFlag {
		q.Mode = serp.ModeImages
		countArg = args[1]
		words = args[:1]
	}

	n, err := strconv.Atoi(strings.TrimSpace(countArg))
	if err != nil {
		return serp.Query{}, &UsageError{Reason: fmt.Sprintf("invalid number of results %q", countArg)}
	}
	if n <= 0 {
		return serp.Query{}, &UsageError{Reason: fmt.Sprintf("number of results must be positive, got %d", n)}
	}

	q.Text = strings.Join(words, " ")
	q.Limit = n
	return q, nil
}
