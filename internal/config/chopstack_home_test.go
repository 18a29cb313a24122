package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetChopstackHome_EnvVarTakesPrecedence(t *testing.T) {
	customHome := t.TempDir()
	t.Setenv("CHOPSTACK_HOME", customHome)

	home, err := GetChopstackHome()
	if err != nil {
		t.Fatalf("GetChopstackHome() error = %v", err)
	}
	if home != customHome {
		t.Errorf("GetChopstackHome() = %q, want %q", home, customHome)
	}
}

func TestGetChopstackHome_FallsBackToCwdWhenNoRepoRoot(t *testing.T) {
	t.Setenv("CHOPSTACK_HOME", "")
	dir := t.TempDir()
	t.Chdir(dir)

	home, err := GetChopstackHome()
	if err != nil {
		t.Fatalf("GetChopstackHome() error = %v", err)
	}

	expected := filepath.Join(dir, ".chopstack")
	if home != expected {
		t.Errorf("GetChopstackHome() = %q, want %q", home, expected)
	}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		t.Errorf("expected %q to be created as a directory", home)
	}
}

func TestGetChopstackHome_FindsRepoRootMarker(t *testing.T) {
	t.Setenv("CHOPSTACK_HOME", "")
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".chopstack-root"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	home, err := GetChopstackHome()
	if err != nil {
		t.Fatalf("GetChopstackHome() error = %v", err)
	}

	expected := filepath.Join(root, ".chopstack")
	if home != expected {
		t.Errorf("GetChopstackHome() = %q, want %q (should walk up to the marker)", home, expected)
	}
}

func TestGetHistoryDBPath_UnderChopstackHome(t *testing.T) {
	customHome := t.TempDir()
	t.Setenv("CHOPSTACK_HOME", customHome)

	path, err := GetHistoryDBPath()
	if err != nil {
		t.Fatalf("GetHistoryDBPath() error = %v", err)
	}

	expected := filepath.Join(customHome, "history", "executions.db")
	if path != expected {
		t.Errorf("GetHistoryDBPath() = %q, want %q", path, expected)
	}
}

func TestGetHistoryDir_CreatesDirectory(t *testing.T) {
	customHome := t.TempDir()
	t.Setenv("CHOPSTACK_HOME", customHome)

	dir, err := GetHistoryDir()
	if err != nil {
		t.Fatalf("GetHistoryDir() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected %q to be created as a directory", dir)
	}
}
