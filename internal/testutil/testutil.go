// Package testutil builds PE images and files for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Text returns a one-byte code section.
func Text() Section {
	return Section{Name: ".text", Data: []byte{0xC3}}
}

// WriteFile writes data to name inside a fresh temporary directory and
// returns the path.
func WriteFile(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteImage writes a resource-less PE image with a code section and
// returns its path.
func WriteImage(tb testing.TB, name string) string {
	tb.Helper()
	return WriteFile(tb, name, BuildPE(tb, PEOptions{Sections: []Section{Text()}}))
}
