package migrate

import "testing"

func TestMigrationsDirIsValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir invalid: %v", err)
	}
}

func TestValidateDirRejectsMissingDir(t *testing.T) {
	if err := ValidateDir("does-not-exist"); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Clinic Index!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if path == "" {
		t.Fatalf("expected path returned")
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration fails validation: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := CreateSQLMigration(t.TempDir(), "   "); err == nil {
		t.Fatalf("expected error for blank name")
	}
}
