package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"autoerp/internal/core/id"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		in     Page
		want   Page
		offset int
	}{
		{Page{}, Page{Page: 1, Limit: DefaultLimit}, 0},
		{Page{Page: 3, Limit: 10}, Page{Page: 3, Limit: 10}, 20},
		{Page{Page: 2, Limit: 1000}, Page{Page: 2, Limit: MaxLimit}, MaxLimit},
		{Page{Page: -4, Limit: -1}, Page{Page: 1, Limit: DefaultLimit}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize())
		assert.Equal(t, tt.offset, tt.in.Offset())
	}
}

func TestNewList(t *testing.T) {
	l := NewList[string](nil, 45, Page{Page: 2, Limit: 20})
	assert.Equal(t, Pagination{Total: 45, Page: 2, Limit: 20, Pages: 3}, l.Pagination)
	assert.NotNil(t, l.Items)

	assert.Equal(t, 0, NewList([]int{}, 0, Page{}).Pagination.Pages)
}

func TestBase_Ensure(t *testing.T) {
	var b Base
	b.Ensure()
	assert.False(t, id.IsNil(b.ID))
	assert.Equal(t, b.CreatedAt, b.UpdatedAt)

	n := NewBase()
	prev := n.UpdatedAt
	n.Touch()
	assert.False(t, n.UpdatedAt.Before(prev))
}
