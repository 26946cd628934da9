// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/ManuGH/footage/internal/fsutil"
	"github.com/ManuGH/footage/internal/log"
	"github.com/ManuGH/footage/internal/processor"
)

const maxDetectBody = 64 << 10

// detectInput maps a video URL or bare name to a file in the uploads dir.
func detectInput(videoURL string) string {
	p := videoURL
	if u, err := url.Parse(videoURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return path.Base(p)
}

// handleDetect runs the processor synchronously on an already uploaded file.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "detect")
	fail := func(code int, msg string) {
		writeJSON(w, code, contract.VideoProcessingResponse{Success: false, Error: msg})
	}

	var req contract.DetectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDetectBody)).Decode(&req); err != nil || req.VideoURL == "" {
		fail(http.StatusBadRequest, "No video URL provided")
		return
	}

	name := detectInput(req.VideoURL)
	if _, err := fsutil.StoredFile(s.cfg.UploadsDir, name); err != nil {
		fail(http.StatusNotFound, "Video file not found: "+name)
		return
	}

	start := s.now()
	output := fmt.Sprintf("processed_%d.mp4", start.Unix())

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.DetectTimeout)
	defer cancel()
	res, err := s.deps.Detector.Process(ctx, processor.Job{
		TaskID:     "detect",
		Filename:   name,
		StoredName: name,
		Dir:        s.cfg.UploadsDir,
		OutputName: output,
	}, processor.Discard)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "processing timed out"
		}
		logger.Error().Err(err).Str(log.FieldFilename, name).Msg("detect failed")
		fail(http.StatusInternalServerError, msg)
		return
	}

	frames := res.FramesProcessed
	if res.Properties != nil && res.Properties.TotalFrames > 0 {
		frames = res.Properties.TotalFrames
	}
	took := s.now().Sub(start)
	elapsed := took.Seconds()
	logger.Info().
		Str(log.FieldEvent, "detect.completed").
		Str(log.FieldStoredName, output).
		Dur("elapsed", took).
		Msg("detect completed")
	writeJSON(w, http.StatusOK, contract.VideoProcessingResponse{
		Success:           true,
		AnnotatedVideoURL: uploadPath(output),
		ProcessingTime:    &elapsed,
		TotalFrames:       &frames,
	})
}
