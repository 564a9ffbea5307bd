// Package tenant resolves a tenant to its own PostgreSQL database (database-per-tenant).
package tenant

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Status is the tenant lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Tenant is a distributor company registered in the meta database.
type Tenant struct {
	ID            string         `db:"id"`
	Slug          string         `db:"slug"`
	RaisonSociale string         `db:"raison_sociale"`
	DBName        string         `db:"db_name"`
	DBHost        string         `db:"db_host"`
	DBPort        int            `db:"db_port"`
	Status        Status         `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	Settings      map[string]any `db:"settings"`
}

// IsActive reports whether the tenant accepts requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// DSN builds the connection string of the tenant database.
func (t *Tenant) DSN(user, password, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", t.DBHost, t.DBPort),
		Path:     "/" + t.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// CreateInput is the data needed to provision a tenant.
type CreateInput struct {
	Slug          string
	RaisonSociale string
	DBHost        string
	DBPort        int
}

// Validate normalizes and checks the input.
func (i *CreateInput) Validate() error {
	i.Slug = strings.ToLower(strings.TrimSpace(i.Slug))
	if !slugPattern.MatchString(i.Slug) {
		return fmt.Errorf("slug must match %s", slugPattern)
	}
	if strings.TrimSpace(i.RaisonSociale) == "" {
		return fmt.Errorf("raison_sociale is required")
	}
	if i.DBHost == "" {
		i.DBHost = "localhost"
	}
	if i.DBPort == 0 {
		i.DBPort = 5432
	}
	return nil
}

// DBName returns the database name of the tenant, "erp_<slug>".
func (i *CreateInput) DBName() string {
	return "erp_" + i.Slug
}
