package search

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned for a blank question or query.
var ErrEmptyQuery = errors.New("query must not be empty")

// NormalizeQuery trims surrounding whitespace and rejects blank input.
func NormalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}
