// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/footage/internal/fsutil"
	"github.com/go-chi/chi/v5"
)

// handleFile serves stored and processed videos from the uploads dir with
// range and conditional request support.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := fsutil.StoredFile(s.cfg.UploadsDir, name)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(path) // #nosec G304 -- confined to the uploads dir above
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	if strings.EqualFold(filepath.Ext(name), ".mp4") {
		w.Header().Set("Content-Type", "video/mp4")
	}
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, name, info.ModTime(), f)
}
