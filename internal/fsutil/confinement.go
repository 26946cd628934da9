// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil holds the file handling shared by upload, processing and
// download: name sanitising, confinement to the uploads directory and
// atomic writes.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrOutsideDir is returned for names that resolve outside the uploads dir.
	ErrOutsideDir = errors.New("path escapes uploads dir")
	// ErrNotRegular is returned when a stored name points at a directory or device.
	ErrNotRegular = errors.New("not a regular file")
)

// Within resolves name against dir and returns the real path. Names with
// backslashes, absolute names, ".." segments and symlinks leading out of dir
// fail with ErrOutsideDir. The target itself does not have to exist.
func Within(dir, name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: %q", ErrOutsideDir, name)
	}
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || escapes(clean) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDir, name)
	}

	root, err := realDir(dir)
	if err != nil {
		return "", err
	}

	full := filepath.Join(root, clean)
	resolved, err := filepath.EvalSymlinks(full)
	if errors.Is(err, os.ErrNotExist) {
		parent, perr := filepath.EvalSymlinks(filepath.Dir(full))
		if perr != nil {
			return "", fmt.Errorf("resolve parent of %q: %w", name, perr)
		}
		resolved, err = filepath.Join(parent, filepath.Base(full)), nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", name, err)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || escapes(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideDir, name)
	}
	return resolved, nil
}

// StoredFile resolves name like Within and additionally requires an
// existing regular file.
func StoredFile(dir, name string) (string, error) {
	path, err := Within(dir, name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrNotRegular, name)
	}
	return path, nil
}

func realDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("uploads dir: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("uploads dir: %w", err)
	}
	return resolved, nil
}

// escapes is segment based, so "a..b.mp4" stays allowed.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
