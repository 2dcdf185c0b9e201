package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMigration(t *testing.T, dir, name, sql string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0002_consolidated_ledger.sql",
		"CREATE TABLE IF NOT EXISTS `{{PROJECT_ID}}.{{DATASET_ID}}.consolidated_expenses` (id STRING);")
	writeMigration(t, dir, "0001_staging_tables.sql",
		"CREATE TABLE IF NOT EXISTS `{{PROJECT_ID}}.{{DATASET_ID}}.credit_card_staging` (id STRING);")
	writeMigration(t, dir, "notes.txt", "not a migration")
	writeMigration(t, dir, "001_bad_version.sql", "SELECT 1;")

	oldDir, oldProject, oldDataset := *migrationsDir, *projectID, *datasetID
	*migrationsDir, *projectID, *datasetID = dir, "test-project", "test_dataset"
	defer func() { *migrationsDir, *projectID, *datasetID = oldDir, oldProject, oldDataset }()

	migrations, err := readMigrations()
	if err != nil {
		t.Fatalf("readMigrations error = %v", err)
	}

	// Non-matching filenames are skipped, the rest sorted by version.
	if len(migrations) != 2 {
		t.Fatalf("readMigrations returned %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "staging_tables" {
		t.Errorf("migrations[0] = %d %q, want 1 staging_tables", migrations[0].Version, migrations[0].Name)
	}
	if migrations[1].Version != 2 || migrations[1].Name != "consolidated_ledger" {
		t.Errorf("migrations[1] = %d %q, want 2 consolidated_ledger", migrations[1].Version, migrations[1].Name)
	}

	// Placeholders are rendered into the SQL.
	if !strings.Contains(migrations[0].SQL, "`test-project.test_dataset.credit_card_staging`") {
		t.Errorf("rendered SQL = %q, placeholders not substituted", migrations[0].SQL)
	}
	if strings.Contains(migrations[0].SQL, "{{") {
		t.Errorf("rendered SQL still contains template markers: %q", migrations[0].SQL)
	}
}

func TestReadMigrations_ChecksumCoversTemplate(t *testing.T) {
	sql := "CREATE TABLE IF NOT EXISTS `{{PROJECT_ID}}.{{DATASET_ID}}.identity_aliases` (raw_name STRING);"

	read := func(project string) migration {
		t.Helper()
		dir := t.TempDir()
		writeMigration(t, dir, "0001_identity_aliases.sql", sql)

		oldDir, oldProject, oldDataset := *migrationsDir, *projectID, *datasetID
		*migrationsDir, *projectID, *datasetID = dir, project, "expenses"
		defer func() { *migrationsDir, *projectID, *datasetID = oldDir, oldProject, oldDataset }()

		migrations, err := readMigrations()
		if err != nil {
			t.Fatalf("readMigrations error = %v", err)
		}
		if len(migrations) != 1 {
			t.Fatalf("readMigrations returned %d migrations, want 1", len(migrations))
		}
		return migrations[0]
	}

	a := read("project-a")
	b := read("project-b")

	if a.SQL == b.SQL {
		t.Errorf("rendered SQL identical for different projects")
	}
	// The checksum is over the template file, so applying the same file
	// to two datasets records the same checksum.
	if a.Checksum != b.Checksum {
		t.Errorf("checksums differ across projects: %s != %s", a.Checksum, b.Checksum)
	}
	if len(a.Checksum) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(a.Checksum))
	}
}
