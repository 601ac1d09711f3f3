package worker

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// buildPayload turns a staged upload into the final ZIP at dest.
// Uploads that already are valid ZIP archives are moved as-is; anything else
// is wrapped into a fresh archive under its original file name.
func buildPayload(stagedPath, originalName, dest string) error {
	if isZipArchive(stagedPath) {
		return replaceFile(stagedPath, dest)
	}
	return zipSingleFile(stagedPath, originalName, dest)
}

// isZipArchive reports whether the file parses as a ZIP central directory.
func isZipArchive(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	_ = r.Close()
	return true
}

// replaceFile moves src over dest, falling back to copy across filesystems.
func replaceFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src) //nolint:gosec
	if err != nil {
		return fmt.Errorf("open staged upload: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640) //nolint:gosec
	if err != nil {
		return fmt.Errorf("create payload: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy payload: %w", err)
	}
	return out.Close()
}

// zipSingleFile wraps a raw build file into a one-entry ZIP.
func zipSingleFile(src, originalName, dest string) error {
	in, err := os.Open(src) //nolint:gosec
	if err != nil {
		return fmt.Errorf("open staged upload: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640) //nolint:gosec
	if err != nil {
		return fmt.Errorf("create payload: %w", err)
	}

	zw := zip.NewWriter(out)
	entry := sanitizeEntryName(originalName)
	fw, err := zw.Create(entry)
	if err == nil {
		_, err = io.Copy(fw, in)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

// sanitizeEntryName strips path components so the archive never escapes its
// extraction directory.
func sanitizeEntryName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "payload.bin"
	}
	return name
}

// fileSizeAndSHA256 returns the file length and hex digest.
func fileSizeAndSHA256(path string) (int64, string, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}
