package services

import (
	"math"

	"gorm.io/gorm"
)

// Page selects one window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to the configured bounds. Page is capped so
// that Page*Limit still fits in an int; any page that high is past the end.
func (p Page) Normalize(defaultLimit, maxLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Limit > 0 && p.Page > math.MaxInt/p.Limit {
		p.Page = math.MaxInt / p.Limit
	}
	return p
}

// Offset is the number of rows before this page
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Page) apply(query *gorm.DB) *gorm.DB {
	if p.Limit <= 0 {
		return query
	}
	return query.Limit(p.Limit).Offset(p.Offset())
}
