// Package entity holds the fields and contracts shared by persisted domain types.
package entity

import (
	"context"
	"time"

	"autoerp/internal/core/id"
)

// Validatable is implemented by entities that check their own invariants
// without database access. Validate returns an AppError with details.
type Validatable interface {
	Validate(ctx context.Context) error
}

// Base is embedded by every table-backed entity.
type Base struct {
	ID        id.ID     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewBase returns a Base with a fresh UUIDv7 and timestamps.
func NewBase() Base {
	now := time.Now().UTC()
	return Base{ID: id.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch bumps UpdatedAt.
func (b *Base) Touch() {
	b.UpdatedAt = time.Now().UTC()
}

// Ensure assigns an ID and timestamps when they are missing.
func (b *Base) Ensure() {
	if id.IsNil(b.ID) {
		b.ID = id.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
}

// Page is the requested window of a list.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize clamps Page to >= 1 and Limit to [1, MaxLimit].
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// List is a page of items with its pagination block.
type List[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Pagination is rendered as {total, page, limit, pages}.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NewList builds a List; Pages is ceil(total/limit).
func NewList[T any](items []T, total int64, p Page) List[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return List[T]{
		Items:      items,
		Pagination: Pagination{Total: total, Page: p.Page, Limit: p.Limit, Pages: pages},
	}
}
