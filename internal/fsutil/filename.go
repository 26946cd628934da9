// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "AUX": {}, "COM1": {}, "COM2": {}, "COM3": {}, "COM4": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "PRN": {}, "NUL": {},
}

// SafeFilename reduces a client supplied name to a flat ASCII file name:
// accents are folded, other non-ASCII runes dropped, separators and spaces
// become underscores, and only [A-Za-z0-9._-] survive. The result may be
// empty when nothing usable remains.
func SafeFilename(name string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = ""
	}

	ascii = strings.NewReplacer("/", " ", "\\", " ").Replace(ascii)
	ascii = strings.Join(strings.Fields(ascii), "_")

	var b strings.Builder
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "._")

	base := strings.ToUpper(strings.SplitN(out, ".", 2)[0])
	if _, ok := windowsDeviceNames[base]; ok {
		out = "_" + out
	}
	return out
}

// TimestampedName prefixes name with the unix millisecond time, the layout
// of legacy uploads ("1700000000000_match.mp4").
func TimestampedName(name string, now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + name
}

// AnnotatedName turns "match.mp4" into "match_annotated.mp4".
func AnnotatedName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_annotated" + ext
}

// ProcessedName is the output name of a processed upload.
func ProcessedName(storedName string) string {
	return "processed_" + storedName
}
