//go:build unix

package peres

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// fileOwner extracts UID and GID from file info on Unix systems.
func fileOwner(info fs.FileInfo) (uid, gid uint32, ok bool) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Uid, stat.Gid, true
	}
	return 0, 0, false
}

// keepOwner gives f the owner of orig. Lacking permission to chown is not
// an error; the file then belongs to the current user.
func keepOwner(f *os.File, orig fs.FileInfo) error {
	uid, gid, ok := fileOwner(orig)
	if !ok || (uid == uint32(os.Getuid()) && gid == uint32(os.Getgid())) { //nolint:gosec // ids are non-negative on unix
		return nil
	}
	if err := f.Chown(int(uid), int(gid)); err != nil && !errors.Is(err, fs.ErrPermission) {
		return err
	}
	return nil
}
