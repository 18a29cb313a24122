package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetChopstackHome returns chopstack's state directory.
// Priority order:
//  1. CHOPSTACK_HOME environment variable, if set (returned as is)
//  2. <repo root>/.chopstack, repo root detected by walking up for a
//     .chopstack-root marker or this module's go.mod
//  3. <cwd>/.chopstack, as a fallback
//
// For options 2 and 3 the directory is created if it doesn't exist.
func GetChopstackHome() (string, error) {
	if home := os.Getenv("CHOPSTACK_HOME"); home != "" {
		return home, nil
	}

	if repoRoot, err := findRepoRoot(); err == nil && repoRoot != "" {
		home := filepath.Join(repoRoot, ".chopstack")
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create chopstack home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, ".chopstack")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create chopstack home directory: %w", err)
	}
	return home, nil
}

// findRepoRoot walks up from the working directory looking for a
// .chopstack-root marker or a go.mod belonging to this module.
func findRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		if _, err := os.Stat(filepath.Join(current, ".chopstack-root")); err == nil {
			return current, nil
		}

		goModPath := filepath.Join(current, "go.mod")
		if data, err := os.ReadFile(goModPath); err == nil {
			if strings.Contains(string(data), "github.com/harrison/conductor") {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("chopstack repository root not found (looking for .chopstack-root or go.mod)")
}

// GetHistoryDBPath returns the absolute path to the execution-history
// database internal/history reads and writes.
func GetHistoryDBPath() (string, error) {
	home, err := GetChopstackHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "history", "executions.db"), nil
}

// GetHistoryDir returns the execution-history directory, creating it if
// necessary.
func GetHistoryDir() (string, error) {
	home, err := GetChopstackHome()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, "history")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}
	return dir, nil
}
