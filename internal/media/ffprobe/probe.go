// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffprobe reads video properties with the ffprobe binary.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ManuGH/footage/internal/contract"
)

// ErrNoVideoStream is returned when the file has no decodable video stream.
var ErrNoVideoStream = errors.New("ffprobe: no video stream")

const maxStderr = 4096

// Prober runs ffprobe.
type Prober struct {
	Bin string
}

// New returns a Prober using bin, or "ffprobe" from PATH when bin is empty.
func New(bin string) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{Bin: bin}
}

// Available reports whether the ffprobe binary can be found.
func (p *Prober) Available() bool {
	_, err := exec.LookPath(p.Bin)
	return err == nil
}

// Probe returns the properties of the first video stream of path.
func (p *Prober) Probe(ctx context.Context, path string) (contract.VideoProperties, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-select_streams", "v:0",
		"-show_format",
		"-show_streams",
		path,
	}

	// #nosec G204 -- binary comes from operator config; path is an opaque argument
	cmd := exec.CommandContext(ctx, p.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := stderr.String()
		if len(msg) > maxStderr {
			msg = msg[:maxStderr] + "..."
		}
		return contract.VideoProperties{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, msg)
	}
	return Parse(out)
}

type probeData struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Parse decodes ffprobe JSON output. Frame count falls back to duration*fps
// when the container does not record nb_frames.
func Parse(out []byte) (contract.VideoProperties, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return contract.VideoProperties{}, fmt.Errorf("json decode: %w", err)
	}

	for _, s := range data.Streams {
		if s.CodecType != "video" || s.CodecName == "" {
			continue
		}
		props := contract.VideoProperties{Width: s.Width, Height: s.Height}

		props.FPS = parseRate(s.AvgFrameRate)
		if props.FPS == 0 {
			props.FPS = parseRate(s.RFrameRate)
		}

		if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
			props.TotalFrames = n
		} else if props.FPS > 0 {
			dur := parseFloat(s.Duration)
			if dur == 0 {
				dur = parseFloat(data.Format.Duration)
			}
			props.TotalFrames = int(math.Round(dur * props.FPS))
		}
		return props, nil
	}
	return contract.VideoProperties{}, ErrNoVideoStream
}

func parseRate(r string) float64 {
	if r == "" || r == "0/0" {
		return 0
	}
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		return parseFloat(r)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d <= 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
