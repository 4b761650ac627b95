package media

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/eternnoir/mediascribe/pkg/apperror"
	"github.com/eternnoir/mediascribe/pkg/logger"
)

// ffmpegAdapter implements Adapter over the ffmpeg/ffprobe binaries and an
// external yt-dlp-compatible downloader.
type ffmpegAdapter struct {
	tempDir string
}

// New creates a Media Tools Adapter backed by ffmpeg-go.
func New(tempDir string) Adapter {
	return &ffmpegAdapter{tempDir: tempDir}
}

// Probe reports duration/format for a local media file.
func (a *ffmpegAdapter) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	log := logger.WithComponent("media-adapter").WithField("path", filepath.Base(path))

	var raw string
	err := runWithTimeout(ctx, defaultOperationTimeout, func() error {
		out, probeErr := ffmpeg.Probe(path)
		raw = out
		return probeErr
	})
	if err != nil {
		log.Error().Err(err).Msg("probe failed")
		return nil, apperror.Wrap(apperror.KindExternalTool, "probe", err)
	}

	result, err := parseProbeJSON(raw, path)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindExternalTool, "probe", err)
	}

	return result, nil
}

func parseProbeJSON(raw, path string) (*ProbeResult, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
			BitRate  string `json:"bit_rate"`
			Size     string `json:"size"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}

	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("failed to parse probe JSON: %w", err)
	}

	result := &ProbeResult{}

	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			result.DurationSec = d
		}
	}
	if probe.Format.BitRate != "" {
		if br, err := strconv.Atoi(probe.Format.BitRate); err == nil {
			result.BitRate = br
		}
	}
	if probe.Format.Size != "" {
		if sz, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
			result.SizeBytes = sz
		}
	}

	for _, s := range probe.Streams {
		if s.CodecType == "audio" {
			if s.SampleRate != "" {
				if sr, err := strconv.Atoi(s.SampleRate); err == nil {
					result.SampleRate = sr
				}
			}
			result.Channels = s.Channels
			break
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	result.Format = strings.TrimPrefix(ext, ".")
	for _, videoExt := range []string{".mp4", ".avi", ".mov", ".mkv", ".webm"} {
		if ext == videoExt {
			result.IsVideo = true
			break
		}
	}

	return result, nil
}
