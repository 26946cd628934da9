// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/renameio/v2"
)

// ErrTooLarge is returned by WriteAtomic when the source exceeds the limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// WriteFunc streams content into w.
type WriteFunc func(w io.Writer) error

// WriteAtomic writes path through a pending file that is fsynced and renamed
// into place only when fn succeeds. Readers never see a partial file.
func WriteAtomic(path string, fn WriteFunc) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	// No-op after a successful CloseAtomicallyReplace.
	defer func() { _ = pending.Cleanup() }()

	if err := fn(pending); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

// SaveAtomic copies r into path, failing with ErrTooLarge once more than
// limit bytes arrive. limit <= 0 disables the check.
func SaveAtomic(path string, r io.Reader, limit int64) (int64, error) {
	var n int64
	err := WriteAtomic(path, func(w io.Writer) error {
		src := r
		if limit > 0 {
			src = io.LimitReader(r, limit+1)
		}
		var err error
		n, err = io.Copy(w, src)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		if limit > 0 && n > limit {
			return ErrTooLarge
		}
		return nil
	})
	return n, err
}
