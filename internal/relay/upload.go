// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/fsutil"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/metrics"
	"github.com/ManuGH/footage/internal/processor"
)

var errNoPart = errors.New("multipart field not found")

// filePart returns the first part named field, leaving the body positioned
// at its content so it can be streamed to disk.
func filePart(r *http.Request, field string) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoPart
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoPart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == field {
			return part, nil
		}
		_ = part.Close()
	}
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.Is(err, fsutil.ErrTooLarge) || errors.As(err, &mbe)
}

// saveUpload streams part into dir/name, bounded by limit bytes.
func saveUpload(dir, name string, part io.Reader, limit int64) (int64, error) {
	return fsutil.SaveAtomic(filepath.Join(dir, name), part, limit)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "upload")
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	}

	part, err := filePart(r, contract.UploadField)
	switch {
	case isTooLarge(err):
		metrics.RecordUpload("upload", "too_large")
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	case err != nil:
		metrics.RecordUpload("upload", "rejected")
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer func() { _ = part.Close() }()

	original := part.FileName()
	if original == "" {
		metrics.RecordUpload("upload", "rejected")
		writeError(w, http.StatusBadRequest, "No filename provided")
		return
	}
	stored := fsutil.SafeFilename(filepath.Base(original))
	if stored == "" {
		metrics.RecordUpload("upload", "rejected")
		writeError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	n, err := saveUpload(s.cfg.UploadsDir, stored, part, s.cfg.MaxUploadBytes)
	if err != nil {
		if isTooLarge(err) {
			metrics.RecordUpload("upload", "too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		metrics.RecordUpload("upload", "failed")
		logger.Error().Err(err).Str(log.FieldFilename, original).Msg("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	metrics.UploadBytes.Observe(float64(n))

	task, err := s.deps.Hub.Create(ctx, original, stored)
	if err != nil {
		metrics.RecordUpload("upload", "failed")
		logger.Error().Err(err).Msg("failed to create task")
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	output := fsutil.ProcessedName(stored)
	job := processor.Job{
		TaskID:     task.ID,
		Filename:   original,
		StoredName: stored,
		Dir:        s.cfg.UploadsDir,
		OutputName: output,
		ResultURL:  s.baseURL(r) + uploadPath(output),
	}
	if err := s.deps.Pool.Submit(job); err != nil {
		metrics.RecordUpload("upload", "unavailable")
		logger.Warn().Err(err).Str(log.FieldTaskID, task.ID).Msg("processing queue rejected task")
		_, _, _ = s.deps.Hub.Emit(ctx, task.ID, contract.ProgressEvent{
			Message: "processing unavailable: " + err.Error(),
			Status:  contract.StatusError,
		})
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	metrics.RecordUpload("upload", "accepted")
	logger.Info().
		Str(log.FieldEvent, "upload.accepted").
		Str(log.FieldTaskID, task.ID).
		Str(log.FieldFilename, original).
		Str(log.FieldStoredName, stored).
		Int64(log.FieldBytes, n).
		Msg("upload accepted")
	writeJSON(w, http.StatusOK, contract.UploadResponse{TaskID: task.ID})
}

// handleLegacyUpload keeps the original upload route: the file is stored
// as "<unixmilli>_<name>", then renamed to "<base>_annotated<ext>".
func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "legacy-upload")
	if s.cfg.LegacyMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.LegacyMaxBytes+multipartOverhead)
	}

	part, err := filePart(r, contract.LegacyUploadField)
	switch {
	case isTooLarge(err):
		metrics.RecordUpload("legacy", "too_large")
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	case err != nil:
		metrics.RecordUpload("legacy", "rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No video file found."})
		return
	}
	defer func() { _ = part.Close() }()

	name := fsutil.SafeFilename(filepath.Base(part.FileName()))
	if name == "" {
		metrics.RecordUpload("legacy", "rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No video file found."})
		return
	}
	stored := fsutil.TimestampedName(name, s.now())

	n, err := saveUpload(s.cfg.UploadsDir, stored, part, s.cfg.LegacyMaxBytes)
	if err != nil {
		if isTooLarge(err) {
			metrics.RecordUpload("legacy", "too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		metrics.RecordUpload("legacy", "failed")
		logger.Error().Err(err).Msg("failed to store legacy upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	metrics.UploadBytes.Observe(float64(n))

	annotated := fsutil.AnnotatedName(name)
	src := filepath.Join(s.cfg.UploadsDir, stored)
	if err := os.Rename(src, filepath.Join(s.cfg.UploadsDir, annotated)); err != nil {
		metrics.RecordUpload("legacy", "partial")
		logger.Warn().Err(err).Msg("legacy rename failed")
		writeJSON(w, http.StatusOK, contract.LegacyUploadResponse{
			Message:  "Video processed, but replacement failed.",
			VideoURL: s.baseURL(r) + uploadPath(stored),
		})
		return
	}

	metrics.RecordUpload("legacy", "accepted")
	logger.Info().
		Str(log.FieldEvent, "upload.legacy_processed").
		Str(log.FieldStoredName, annotated).
		Int64(log.FieldBytes, n).
		Msg("legacy upload stored")
	writeJSON(w, http.StatusOK, contract.LegacyUploadResponse{
		Message:  "Video processed successfully",
		VideoURL: s.baseURL(r) + uploadPath(annotated),
	})
}
