package planio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"plan.yaml":     FormatYAML,
		"plan.yml":      FormatYAML,
		"plan.json":     FormatJSON,
		"plan.md":       FormatMarkdown,
		"plan.markdown": FormatMarkdown,
		"plan.txt":      FormatUnknown,
		"plan":          FormatUnknown,
	}
	for name, want := range cases {
		if got := DetectFormat(name); got != want {
			t.Errorf("DetectFormat(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewParser_UnknownFormatErrors(t *testing.T) {
	if _, err := NewParser(FormatUnknown); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseFile_SingleYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	writeFile(t, path, `
name: release-plan
strategy: merge-commit
tasks:
  - id: setup-db
    name: Set up database
    description: Create the initial schema and seed reference data for the service.
    complexity: M
`)

	plan, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if plan.Name != "release-plan" {
		t.Errorf("Name = %q, want release-plan", plan.Name)
	}
	if len(plan.Tasks) != 1 || plan.Tasks[0].ID != "setup-db" {
		t.Fatalf("unexpected tasks: %+v", plan.Tasks)
	}
	if plan.FilePath == "" {
		t.Error("expected FilePath to be set")
	}
}

func TestParseFile_UnknownExtensionErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.txt")
	writeFile(t, path, "not a plan")

	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for unknown extension")
	}
}

func TestIsSplitPlan(t *testing.T) {
	dir := t.TempDir()
	if IsSplitPlan(dir) {
		t.Fatal("empty directory should not be a split plan")
	}

	writeFile(t, filepath.Join(dir, "1-setup.yaml"), "name: a\ntasks: []\n")
	if !IsSplitPlan(dir) {
		t.Fatal("expected directory with numbered plan file to be a split plan")
	}
}

func TestParseDirectory_MergesNumberedFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1-setup.yaml"), `
name: release-plan
strategy: merge-commit
tasks:
  - id: setup-db
    name: Set up database
    description: Create the initial schema and seed reference data for the service.
    complexity: M
`)
	writeFile(t, filepath.Join(dir, "2-api.yaml"), `
name: release-plan-part-2
tasks:
  - id: build-api
    name: Build API
    description: Implement the HTTP handlers that expose the new database schema.
    complexity: L
    dependencies: [setup-db]
`)

	plan, err := ParseDirectory(dir)
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	if plan.Name != filepath.Base(dir) {
		t.Errorf("Name = %q, want directory base name", plan.Name)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("expected 2 merged tasks, got %d", len(plan.Tasks))
	}
	if plan.Tasks[0].ID != "setup-db" || plan.Tasks[1].ID != "build-api" {
		t.Fatalf("expected numeric file order preserved, got %+v", plan.Tasks)
	}
}

func TestParseDirectory_EmptyDirectoryYieldsEmptyPlan(t *testing.T) {
	dir := t.TempDir()
	plan, err := ParseDirectory(dir)
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	if len(plan.Tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(plan.Tasks))
	}
}

func TestMergePlans_DuplicateTaskIDErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1-a.yaml"), `
name: plan-a
tasks:
  - id: shared-id
    name: First
    description: This task description is long enough to satisfy the validator minimum length.
    complexity: S
`)
	writeFile(t, filepath.Join(dir, "2-b.yaml"), `
name: plan-b
tasks:
  - id: shared-id
    name: Second
    description: This task description is long enough to satisfy the validator minimum length.
    complexity: S
`)

	if _, err := ParseDirectory(dir); err == nil {
		t.Fatal("expected duplicate task id error")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
