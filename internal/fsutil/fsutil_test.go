// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFilename(t *testing.T) {
	tests := map[string]string{
		"My cool movie.mov":                 "My_cool_movie.mov",
		"../../../etc/passwd":               "etc_passwd",
		"i contain cool ümläuts.txt":        "i_contain_cool_umlauts.txt",
		"match (final) 2-1.mp4":             "match_final_2-1.mp4",
		"C:\\Users\\me\\clip.mp4":           "C_Users_me_clip.mp4",
		"CON.mp4":                           "_CON.mp4",
		"日本語.mp4":                           "mp4",
		"...":                               "",
		"  spaced   out  .mp4 ":             "spaced_out_.mp4",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeFilename(in), "input %q", in)
	}
}

func TestNames(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "1700000000123_match.mp4", TimestampedName("match.mp4", now))
	assert.Equal(t, "match_annotated.mp4", AnnotatedName("match.mp4"))
	assert.Equal(t, "noext_annotated", AnnotatedName("noext"))
	assert.Equal(t, "processed_match.mp4", ProcessedName("match.mp4"))
}

func TestStoredFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.mp4"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "clips"), 0o750))

	got, err := StoredFile(root, "a.mp4")
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", filepath.Base(got))

	for _, bad := range []string{"../a.mp4", "/etc/passwd", "..\\a.mp4", ""} {
		_, err := StoredFile(root, bad)
		assert.ErrorIs(t, err, ErrOutsideDir, bad)
	}

	_, err = StoredFile(root, "clips")
	assert.ErrorIs(t, err, ErrNotRegular)

	_, err = StoredFile(root, "missing.mp4")
	assert.ErrorIs(t, err, os.ErrNotExist)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link.mp4")))
	_, err = StoredFile(root, "link.mp4")
	assert.ErrorIs(t, err, ErrOutsideDir, "symlink escaping the root is rejected")
}

func TestWithinAllowsNewNames(t *testing.T) {
	root := t.TempDir()
	got, err := Within(root, "a..b.mp4")
	require.NoError(t, err)
	assert.Equal(t, "a..b.mp4", filepath.Base(got))
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.mp4")

	require.NoError(t, WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "video")
		return err
	}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video", string(b))

	boom := errors.New("boom")
	err = WriteAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)
	b, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video", string(b), "failed write leaves the old file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveAtomicLimit(t *testing.T) {
	dir := t.TempDir()

	n, err := SaveAtomic(filepath.Join(dir, "ok"), strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	_, err = SaveAtomic(filepath.Join(dir, "big"), bytes.NewReader(make([]byte, 6)), 5)
	require.ErrorIs(t, err, ErrTooLarge)
	_, statErr := os.Stat(filepath.Join(dir, "big"))
	assert.True(t, os.IsNotExist(statErr))
}
