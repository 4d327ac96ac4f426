package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, "0001", "init_schema_migrations"},
		{"0002_create_ledger_tables.sql", true, "0002", "create_ledger_tables"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := filenamePattern.FindStringSubmatch(tt.filename)
			if (m != nil) != tt.valid {
				t.Fatalf("match = %v, want valid=%v", m, tt.valid)
			}
			if tt.valid && (m[1] != tt.version || m[2] != tt.name) {
				t.Errorf("groups = %q %q, want %q %q", m[1], m[2], tt.version, tt.name)
			}
		})
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestReadMigrations(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"0002_tables.sql": "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.users` (id INT64);",
		"0001_init.sql":   "SELECT 1;",
		"README.md":       "ignored",
	})

	migrations, err := readMigrations(dir, map[string]string{"{{PROJECT_ID}}": "p", "{{DATASET_ID}}": "d"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("versions = %d, %d; want sorted 1, 2", migrations[0].Version, migrations[1].Version)
	}
	if got, want := migrations[1].SQL, "CREATE TABLE `p.d.users` (id INT64);"; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestReadMigrationsChecksumIgnoresPlaceholders(t *testing.T) {
	dir := writeFiles(t, map[string]string{"0001_t.sql": "CREATE TABLE `{{DATASET_ID}}.t` (id INT64);"})

	a, err := readMigrations(dir, map[string]string{"{{DATASET_ID}}": "prod"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	b, err := readMigrations(dir, map[string]string{"{{DATASET_ID}}": "dev"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if a[0].Checksum != b[0].Checksum {
		t.Error("checksum should not depend on placeholder values")
	}
	if a[0].SQL == b[0].SQL {
		t.Error("SQL should reflect placeholder values")
	}
}

func TestReadMigrationsRejectsDuplicateVersions(t *testing.T) {
	dir := writeFiles(t, map[string]string{"0001_a.sql": "SELECT 1;", "0001_b.sql": "SELECT 2;"})
	if _, err := readMigrations(dir, nil, zerolog.Nop()); err == nil {
		t.Fatal("readMigrations() error = nil, want duplicate version error")
	}
}

func TestRepositoryMigrationsParse(t *testing.T) {
	for _, driver := range []string{"bigquery", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			migrations, err := readMigrations(filepath.Join("migrations", driver), nil, zerolog.Nop())
			if err != nil {
				t.Fatalf("readMigrations() error = %v", err)
			}
			if len(migrations) == 0 {
				t.Fatal("no migrations found")
			}
		})
	}
}

type fakeMigrator struct {
	applied []AppliedMigration
	ran     []int
	failOn  int
}

func (f *fakeMigrator) EnsureTable(context.Context) error { return nil }
func (f *fakeMigrator) Applied(context.Context) ([]AppliedMigration, error) {
	return f.applied, nil
}
func (f *fakeMigrator) Apply(_ context.Context, m Migration, _ string) error {
	if m.Version == f.failOn {
		return errors.New("syntax error")
	}
	f.ran = append(f.ran, m.Version)
	return nil
}
func (f *fakeMigrator) Close() error { return nil }

func TestRunAppliesPendingOnly(t *testing.T) {
	migrations := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}
	m := &fakeMigrator{applied: []AppliedMigration{{Version: 1, Name: "a"}}}

	n, err := run(context.Background(), m, migrations, "test", false, zerolog.Nop())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if n != 2 || len(m.ran) != 2 || m.ran[0] != 2 || m.ran[1] != 3 {
		t.Errorf("run() = %d, ran %v; want 2 and [2 3]", n, m.ran)
	}
}

func TestRunDryRunAndFailure(t *testing.T) {
	migrations := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}}

	dry := &fakeMigrator{}
	n, err := run(context.Background(), dry, migrations, "test", true, zerolog.Nop())
	if err != nil || n != 2 || len(dry.ran) != 0 {
		t.Errorf("dry run = %d, %v, ran %v", n, err, dry.ran)
	}

	failing := &fakeMigrator{failOn: 2}
	n, err = run(context.Background(), failing, migrations, "test", false, zerolog.Nop())
	if err == nil || n != 1 {
		t.Errorf("failing run = %d, %v; want 1 and an error", n, err)
	}
}
