package models

import (
	"cmp"
	"slices"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a limit/offset window over a list endpoint.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default page size and bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func sortByDistance[T any](items []T, distance func(T) float64) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(distance(a), distance(b))
	})
}
