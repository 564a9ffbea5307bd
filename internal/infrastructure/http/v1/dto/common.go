// Package dto holds the request bodies and query strings of the API with
// their binding rules, and converts them to domain inputs. Responses are
// the domain types themselves.
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
)

const dateLayout = "2006-01-02"

// PageQuery is the page/limit pair of list endpoints.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (q PageQuery) ToPage() entity.Page {
	return entity.Page{Page: q.Page, Limit: q.Limit}.Normalize()
}

// Date is a calendar day in JSON. It accepts "2006-01-02" and RFC 3339.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// Ptr returns nil for a missing date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// datePtr parses an optional query date already checked by the datetime rule.
func datePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

// MessageResponse for operations without data.
type MessageResponse struct {
	Message string `json:"message"`
}

// optID parses an optional query id already checked by the uuid rule.
func optID(s string) *id.ID {
	v, err := id.ParseOptional(s)
	if err != nil {
		return nil
	}
	return v
}
