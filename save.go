package peres

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// SaveOption configures Save.
type SaveOption func(*saveConfig)

type saveConfig struct {
	backup  string
	mode    fs.FileMode
	modeSet bool
}

// SaveWithBackup keeps a zstd-compressed copy of the file being replaced at
// path. Nothing is written when the target does not exist yet.
func SaveWithBackup(path string) SaveOption {
	return func(c *saveConfig) {
		c.backup = path
	}
}

// SaveWithMode sets the permission bits of the written file. By default an
// existing file keeps its mode and a new one gets 0o644.
func SaveWithMode(mode fs.FileMode) SaveOption {
	return func(c *saveConfig) {
		c.mode = mode
		c.modeSet = true
	}
}

// Save builds the output and writes it to path.
//
// The whole image is built in memory first, then written with an atomic
// replace (temp file + rename), so a failed save never leaves a partial
// file. Failures to write are reported as ErrWriteFailed.
func (im *Image) Save(path string, opts ...SaveOption) error {
	cfg := saveConfig{mode: 0o644}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := im.Bytes()
	if err != nil {
		return err
	}

	info, statErr := os.Stat(path)
	if statErr == nil && !cfg.modeSet {
		cfg.mode = info.Mode().Perm()
	}
	if cfg.backup != "" && statErr == nil {
		if err := writeBackup(path, cfg.backup); err != nil {
			return fmt.Errorf("%w: backup: %w", ErrWriteFailed, err)
		}
	}

	var owner fs.FileInfo
	if statErr == nil {
		owner = info
	}
	if err := writeFileAtomic(path, data, cfg.mode, owner); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	im.log().Info("saved resources", slog.String("path", path), slog.Int("entries", im.Len()), slog.Int("bytes", len(data)))
	return nil
}

// writeBackup compresses the current contents of src into dst.
func writeBackup(src, dst string) error {
	old, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	defer enc.Close()
	return writeFileAtomic(dst, enc.EncodeAll(old, nil), 0o600, nil)
}

// ReadBackup decompresses a backup written by SaveWithBackup.
func ReadBackup(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	return out, nil
}

// writeFileAtomic writes data to a temp file then renames to target,
// ensuring atomic replacement of the target file. When orig is set the
// new file takes over its owner where the platform allows it.
func writeFileAtomic(target string, data []byte, mode fs.FileMode, orig fs.FileInfo) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".peres-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		return errors.Join(err, tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Chmod(mode); err != nil {
		return errors.Join(err, tmp.Close(), os.Remove(tmpPath))
	}
	if orig != nil {
		if err := keepOwner(tmp, orig); err != nil {
			return errors.Join(err, tmp.Close(), os.Remove(tmpPath))
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
