// Package main provides the tenant management CLI.
// Usage: tenant init-meta
//
//	tenant create --slug atlas --name "Atlas Pièces Auto"
//	tenant list
//	tenant migrate --all
//	tenant suspend <tenant-id>
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoerp/internal/core/tenant"
	"autoerp/internal/infrastructure/storage/postgres/schema"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "init-meta":
		initMeta(ctx)
	case "create":
		createTenant(ctx)
	case "list":
		listTenants(ctx)
	case "migrate":
		migrateTenants(ctx)
	case "suspend":
		setStatus(ctx, tenant.StatusSuspended)
	case "activate":
		setStatus(ctx, tenant.StatusActive)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`AutoERP Tenant Management CLI

Usage:
  tenant <command> [options]

Commands:
  init-meta  Create the tenants table in the meta database
  create     Create a tenant database, apply the schema and register it
  list       List all tenants
  migrate    Apply the schema to tenant database(s)
  suspend    Suspend a tenant
  activate   Activate a suspended tenant
  help       Show this help

Environment Variables:
  META_DATABASE_URL    Connection string for meta database (required)
  TENANT_DB_USER       Username for tenant databases (required)
  TENANT_DB_PASSWORD   Password for tenant databases (required)
  TENANT_DB_SSLMODE    sslmode of tenant connections (default disable)
  POSTGRES_ADMIN_URL   Admin connection for CREATE DATABASE

Examples:
  tenant create --slug atlas --name "Atlas Pièces Auto" --host db1 --port 5432
  tenant migrate --all
  tenant migrate --id <tenant-uuid>
  tenant suspend <tenant-uuid>`)
}

func fail(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fail("%s environment variable is required", key)
	}
	return v
}

func getMetaPool(ctx context.Context) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, mustEnv("META_DATABASE_URL"))
	if err != nil {
		fail("connecting to meta database: %v", err)
	}
	return pool
}

// flags parses "--name value" pairs and bare "--flag" switches.
func flags(args []string) map[string]string {
	out := make(map[string]string)
	for i := 0; i < len(args); i++ {
		name, ok := strings.CutPrefix(args[i], "--")
		if !ok {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			out[name] = args[i+1]
			i++
			continue
		}
		out[name] = "true"
	}
	return out
}

func initMeta(ctx context.Context) {
	metaPool := getMetaPool(ctx)
	defer metaPool.Close()

	if err := schema.Apply(ctx, metaPool, schema.Meta); err != nil {
		fail("%v", err)
	}
	fmt.Println("✓ Meta schema applied")
}

func createTenant(ctx context.Context) {
	f := flags(os.Args[2:])
	in := tenant.CreateInput{Slug: f["slug"], RaisonSociale: f["name"], DBHost: f["host"]}
	if p := f["port"]; p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			fail("invalid --port %q", p)
		}
		in.DBPort = port
	}
	if err := in.Validate(); err != nil {
		fmt.Println("Usage: tenant create --slug <slug> --name <raison sociale> [--host h] [--port p]")
		fail("%v", err)
	}

	metaPool := getMetaPool(ctx)
	defer metaPool.Close()
	registry := tenant.NewPostgresRegistry(metaPool)

	t := &tenant.Tenant{
		Slug:          in.Slug,
		RaisonSociale: in.RaisonSociale,
		DBName:        in.DBName(),
		DBHost:        in.DBHost,
		DBPort:        in.DBPort,
		Status:        tenant.StatusActive,
	}

	fmt.Printf("Creating tenant '%s'...\n", t.Slug)

	if adminDSN := os.Getenv("POSTGRES_ADMIN_URL"); adminDSN != "" {
		fmt.Printf("  Creating database %s...\n", t.DBName)
		if err := createDatabase(ctx, adminDSN, t.DBName, os.Getenv("TENANT_DB_USER")); err != nil {
			fail("%v", err)
		}
	} else {
		fmt.Println("  POSTGRES_ADMIN_URL not set, expecting the database to exist")
	}

	fmt.Println("  Applying schema...")
	if err := applyTenantSchema(ctx, t); err != nil {
		fail("%v", err)
	}

	fmt.Println("  Registering tenant...")
	if err := registry.Create(ctx, t); err != nil {
		fail("registering tenant: %v", err)
	}

	fmt.Printf("\n✓ Tenant '%s' created\n", t.Slug)
	fmt.Printf("  Tenant ID: %s\n", t.ID)
	fmt.Printf("  Database:  %s\n", t.DBName)
}

func createDatabase(ctx context.Context, adminDSN, dbName, owner string) error {
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("connect as admin: %w", err)
	}
	defer conn.Close(ctx)

	stmt := "CREATE DATABASE " + pgx.Identifier{dbName}.Sanitize()
	if owner != "" {
		stmt += " OWNER " + pgx.Identifier{owner}.Sanitize()
	}
	_, err = conn.Exec(ctx, stmt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P04" {
		fmt.Println("  Database already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	return nil
}

func applyTenantSchema(ctx context.Context, t *tenant.Tenant) error {
	dsn := t.DSN(mustEnv("TENANT_DB_USER"), mustEnv("TENANT_DB_PASSWORD"), os.Getenv("TENANT_DB_SSLMODE"))
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", t.DBName, err)
	}
	defer pool.Close()
	return schema.Apply(ctx, pool, schema.Tenant)
}

func listTenants(ctx context.Context) {
	metaPool := getMetaPool(ctx)
	defer metaPool.Close()

	tenants, err := tenant.NewPostgresRegistry(metaPool).ListAll(ctx)
	if err != nil {
		fail("listing tenants: %v", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return
	}

	fmt.Printf("%-36s %-20s %-30s %-20s %-10s\n", "TENANT_ID", "SLUG", "RAISON SOCIALE", "DATABASE", "STATUS")
	fmt.Println(strings.Repeat("-", 120))
	for _, t := range tenants {
		fmt.Printf("%-36s %-20s %-30s %-20s %-10s\n",
			t.ID,
			truncate(t.Slug, 20),
			truncate(t.RaisonSociale, 30),
			truncate(t.DBName, 20),
			t.Status,
		)
	}
}

func migrateTenants(ctx context.Context) {
	f := flags(os.Args[2:])
	targetID, all := f["id"], f["all"] == "true"
	if !all && targetID == "" {
		fail("specify --id <tenant-uuid> or --all")
	}

	metaPool := getMetaPool(ctx)
	defer metaPool.Close()
	registry := tenant.NewPostgresRegistry(metaPool)

	var tenants []*tenant.Tenant
	if all {
		var err error
		if tenants, err = registry.ListActive(ctx); err != nil {
			fail("%v", err)
		}
	} else {
		t, err := registry.GetByID(ctx, targetID)
		if err != nil {
			fail("tenant '%s': %v", targetID, err)
		}
		tenants = []*tenant.Tenant{t}
	}

	failed := 0
	for _, t := range tenants {
		fmt.Printf("Migrating %s (%s)...\n", t.Slug, t.DBName)
		if err := applyTenantSchema(ctx, t); err != nil {
			failed++
			fmt.Printf("  ✗ Failed: %v\n", err)
			continue
		}
		fmt.Println("  ✓ Done")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func setStatus(ctx context.Context, status tenant.Status) {
	if len(os.Args) < 3 {
		fail("usage: tenant %s <tenant-uuid>", os.Args[1])
	}
	tenantID := os.Args[2]

	metaPool := getMetaPool(ctx)
	defer metaPool.Close()

	if err := tenant.NewPostgresRegistry(metaPool).UpdateStatus(ctx, tenantID, status); err != nil {
		fail("%v", err)
	}
	fmt.Printf("✓ Tenant '%s' is now %s\n", tenantID, status)
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
