// Package testutil creates throwaway grove workspaces for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteWorkspace creates a temp directory holding a grove.yaml with the
// given content and a directory per named tree. Returns the workspace
// directory.
func WriteWorkspace(t *testing.T, config string, trees ...string) string {
	t.Helper()
	dir := t.TempDir()
	WriteConfig(t, dir, config)
	for _, name := range trees {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// WriteConfig writes a grove.yaml into dir and returns its path.
func WriteConfig(t *testing.T, dir, config string) string {
	t.Helper()
	path := filepath.Join(dir, "grove.yaml")
	if err := os.WriteFile(path, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
