// Package pagination splits ordered result sets into fixed-size numbered pages.
package pagination

import (
	"strconv"
	"strings"
)

// DefaultPerPage is the number of items on one feed page.
const DefaultPerPage = 10

// Page describes one page of a result set. Pages are numbered from 1 and a
// result set always has at least one page, even when it is empty.
type Page struct {
	Number       int   `json:"number"`
	NumPages     int   `json:"num_pages"`
	Count        int64 `json:"count"`
	PerPage      int   `json:"per_page"`
	HasNext      bool  `json:"has_next"`
	HasPrevious  bool  `json:"has_previous"`
	NextPage     int   `json:"next_page_number,omitempty"`
	PreviousPage int   `json:"previous_page_number,omitempty"`
}

// Requested parses the ?page= value. Anything that is not an integer asks for
// the first page; out-of-range integers are returned as-is and clamped by
// Resolve once the total is known.
func Requested(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return n
}

// Resolve computes the page metadata for the requested page number. A number
// below 1 or past the end resolves to the last page.
func Resolve(requested int, count int64, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if count < 0 {
		count = 0
	}

	numPages := int((count + int64(perPage) - 1) / int64(perPage))
	if numPages < 1 {
		numPages = 1
	}

	number := requested
	if number < 1 || number > numPages {
		number = numPages
	}

	p := Page{
		Number:      number,
		NumPages:    numPages,
		Count:       count,
		PerPage:     perPage,
		HasNext:     number < numPages,
		HasPrevious: number > 1,
	}
	if p.HasNext {
		p.NextPage = number + 1
	}
	if p.HasPrevious {
		p.PreviousPage = number - 1
	}
	return p
}

// Offset is the number of items preceding this page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// Limit is the maximum number of items on this page.
func (p Page) Limit() int {
	return p.PerPage
}

// Len is the number of items actually on this page.
func (p Page) Len() int {
	remaining := p.Count - int64(p.Offset())
	switch {
	case remaining <= 0:
		return 0
	case remaining < int64(p.PerPage):
		return int(remaining)
	default:
		return p.PerPage
	}
}
