package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"autoerp/internal/core/id"
)

type timestamps struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type sampleArticle struct {
	ID  id.ID  `db:"id"`
	SKU string `db:"sku"`
	timestamps
	Transient string `db:"-"`
	NoTag     string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[sampleArticle]()
	assert.Equal(t, []string{"id", "sku", "created_at", "updated_at"}, cols)

	ptrCols := ExtractDBColumns[*sampleArticle]()
	assert.Equal(t, cols, ptrCols)
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	a := sampleArticle{ID: id.New(), SKU: "FLT-001", timestamps: timestamps{CreatedAt: now}, Transient: "x"}

	m := StructToMap(&a)

	assert.Len(t, m, 4)
	assert.Equal(t, a.ID, m["id"])
	assert.Equal(t, "FLT-001", m["sku"])
	assert.Equal(t, now, m["created_at"])
	assert.NotContains(t, m, "Transient")
	assert.Nil(t, StructToMap(42))
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"sku", "updated_at"}, Without([]string{"id", "sku", "created_at", "updated_at"}, "id", "created_at"))
}
