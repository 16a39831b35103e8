package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequested(t *testing.T) {
	cases := map[string]int{
		"":     1,
		"2":    2,
		" 3 ":  3,
		"abc":  1,
		"2.0":  1,
		"-4":   -4,
		"9999": 9999,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Requested(raw), "raw=%q", raw)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		count     int64
		want      Page
	}{
		{
			name: "empty result still has one page", requested: 1, count: 0,
			want: Page{Number: 1, NumPages: 1, Count: 0, PerPage: 10},
		},
		{
			name: "first of two", requested: 1, count: 13,
			want: Page{Number: 1, NumPages: 2, Count: 13, PerPage: 10, HasNext: true, NextPage: 2},
		},
		{
			name: "second of two", requested: 2, count: 13,
			want: Page{Number: 2, NumPages: 2, Count: 13, PerPage: 10, HasPrevious: true, PreviousPage: 1},
		},
		{
			name: "exact multiple", requested: 2, count: 20,
			want: Page{Number: 2, NumPages: 2, Count: 20, PerPage: 10, HasPrevious: true, PreviousPage: 1},
		},
		{
			name: "past the end clamps to last", requested: 50, count: 13,
			want: Page{Number: 2, NumPages: 2, Count: 13, PerPage: 10, HasPrevious: true, PreviousPage: 1},
		},
		{
			name: "below one clamps to last", requested: 0, count: 25,
			want: Page{Number: 3, NumPages: 3, Count: 25, PerPage: 10, HasPrevious: true, PreviousPage: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.requested, tt.count, 10))
		})
	}
}

func TestPage_Window(t *testing.T) {
	p := Resolve(2, 13, 10)
	assert.Equal(t, 10, p.Offset())
	assert.Equal(t, 10, p.Limit())
	assert.Equal(t, 3, p.Len())

	first := Resolve(1, 13, 10)
	assert.Equal(t, 0, first.Offset())
	assert.Equal(t, 10, first.Len())

	assert.Equal(t, 0, Resolve(1, 0, 10).Len())
}

func TestResolve_DefaultsPerPage(t *testing.T) {
	p := Resolve(1, 11, 0)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 2, p.NumPages)
}
