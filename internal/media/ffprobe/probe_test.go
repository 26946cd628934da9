// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffprobe

import (
	"context"
	"testing"

	"github.com/ManuGH/footage/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want contract.VideoProperties
		err  error
	}{
		{
			name: "nb_frames present",
			raw:  `{"streams":[{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"avg_frame_rate":"30000/1001","nb_frames":"1798"}],"format":{"duration":"60.0"}}`,
			want: contract.VideoProperties{Width: 1920, Height: 1080, FPS: 30000.0 / 1001.0, TotalFrames: 1798},
		},
		{
			name: "frames from duration",
			raw:  `{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360,"avg_frame_rate":"0/0","r_frame_rate":"25/1"}],"format":{"duration":"10.0"}}`,
			want: contract.VideoProperties{Width: 640, Height: 360, FPS: 25, TotalFrames: 250},
		},
		{
			name: "audio only",
			raw:  `{"streams":[{"codec_type":"audio","codec_name":"aac"}],"format":{}}`,
			err:  ErrNoVideoStream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Width, got.Width)
			assert.Equal(t, tt.want.Height, got.Height)
			assert.InDelta(t, tt.want.FPS, got.FPS, 0.0001)
			assert.Equal(t, tt.want.TotalFrames, got.TotalFrames)
		})
	}

	_, err := Parse([]byte("not json"))
	require.Error(t, err)
}

func TestProbeMissingBinary(t *testing.T) {
	p := New("/nonexistent/ffprobe")
	assert.False(t, p.Available())
	_, err := p.Probe(context.Background(), "x.mp4")
	require.Error(t, err)
}
