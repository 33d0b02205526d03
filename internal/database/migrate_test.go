package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(schemaFS, schemaDir+"/*.sql")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}

	want := []string{
		"schema/001_users.sql",
		"schema/002_email_verification_tokens.sql",
		"schema/003_user_sessions.sql",
		"schema/004_user_referrals.sql",
	}
	if len(files) != len(want) {
		t.Fatalf("got %d migrations %v, want %d", len(files), files, len(want))
	}

	for i, name := range want {
		if files[i] != name {
			t.Errorf("migration %d = %s, want %s", i, files[i], name)
		}

		content, err := fs.ReadFile(schemaFS, files[i])
		if err != nil {
			t.Fatalf("read %s: %v", files[i], err)
		}
		for _, annotation := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(content), annotation) {
				t.Errorf("%s is missing %q", files[i], annotation)
			}
		}
	}
}

func TestTokensCascadeOnUserDelete(t *testing.T) {
	// cleanup relies on the foreign keys removing dependent rows
	for _, name := range []string{"schema/002_email_verification_tokens.sql", "schema/003_user_sessions.sql"} {
		content, err := fs.ReadFile(schemaFS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(content), "ON DELETE CASCADE") {
			t.Errorf("%s: expected ON DELETE CASCADE on the users foreign key", name)
		}
	}
}
