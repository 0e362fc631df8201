package database

import (
	"testing"
	"testing/fstest"
)

func TestMigrationFiles_SortedByName(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_ownership.sql":     {Data: []byte("SELECT 2;")},
		"migrations/001_galaxy_schema.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":             {Data: []byte("notes")},
	}

	files, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	want := []string{"migrations/001_galaxy_schema.sql", "migrations/002_ownership.sql"}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files = %v, want %v", files, want)
		}
	}
}
