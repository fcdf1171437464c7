//go:build !unix

package peres

import (
	"io/fs"
	"os"
)

// keepOwner is a no-op on non-Unix systems.
func keepOwner(*os.File, fs.FileInfo) error { return nil }
