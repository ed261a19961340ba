package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// MediaInfo summarizes a probed media file. Width, Height and Codec are only
// set when the file has a video stream.
type MediaInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	Codec           string
}

// probeResult mirrors the JSON document ffprobe emits.
type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe reads media metadata with ffprobe.
func Probe(ctx context.Context, path string) (*MediaInfo, error) {
	var (
		data string
		err  error
	)
	if deadline, ok := ctx.Deadline(); ok {
		data, err = ffmpeg.ProbeWithTimeout(path, time.Until(deadline), nil)
	} else {
		data, err = ffmpeg.Probe(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}
	return parseProbe(data)
}

// ProbeDuration returns the duration in seconds of a media file.
func (r *FFmpegRenderer) ProbeDuration(ctx context.Context, path string) (float64, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.DurationSeconds, nil
}

// parseProbe extracts duration and video stream metadata from raw ffprobe
// JSON. A stream-level duration wins over the container duration when both
// are present.
func parseProbe(data string) (*MediaInfo, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &MediaInfo{}
	for _, s := range res.Streams {
		if s.CodecType == "video" && info.Codec == "" {
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
		}
		if info.DurationSeconds == 0 {
			info.DurationSeconds = parseProbeSeconds(s.Duration)
		}
	}
	if info.DurationSeconds == 0 {
		info.DurationSeconds = parseProbeSeconds(res.Format.Duration)
	}
	if info.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: no duration in probe output", ErrFFprobeExecution)
	}
	return info, nil
}

func parseProbeSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
