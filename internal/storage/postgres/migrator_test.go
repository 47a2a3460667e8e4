package postgres

import (
	"testing"
	"testing/fstest"
)

func migrationFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestLoadMigrationsFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/002_orders.up.sql":   migrationFile("CREATE TABLE orders (id TEXT)"),
		"sql/migrations/002_orders.down.sql": migrationFile("DROP TABLE orders"),
		"sql/migrations/001_books.up.sql":    migrationFile("CREATE TABLE books (id TEXT)"),
		"sql/migrations/001_books.down.sql":  migrationFile("DROP TABLE books"),
	}

	migrations, err := loadMigrationsFromFS(fsys)
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	// Миграции отсортированы по версии независимо от порядка файлов.
	if migrations[0].Version != 1 || migrations[0].Name != "books" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "orders" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestLoadMigrationsFromFSRejectsHalfPairs(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/001_books.up.sql": migrationFile("CREATE TABLE books (id TEXT)"),
	}

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for missing down migration")
	}
}

func TestLoadMigrationsFromFSRejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/books.up.sql": migrationFile("CREATE TABLE books (id TEXT)"),
	}

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for invalid migration file name")
	}
}

func TestEmbeddedMigrationsAreWellFormed(t *testing.T) {
	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		t.Fatalf("embedded migrations are broken: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}

	last := int64(0)
	for _, m := range migrations {
		if m.Version <= last {
			t.Fatalf("migrations must be strictly ordered, got %d after %d", m.Version, last)
		}
		last = m.Version
	}
}
