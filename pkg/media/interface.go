// Package media wraps the external demux/transcode/probe tool (ffmpeg, plus
// a yt-dlp-compatible downloader binary) behind the four operations the
// pipeline stages need: probe, extract_audio, cut, normalize.
package media

import (
	"context"
	"time"
)

// ProbeResult reports duration/format for a media blob.
type ProbeResult struct {
	DurationSec     float64  `json:"duration_sec"`
	Format          string   `json:"format"`
	SampleRate      int      `json:"sample_rate"`
	Channels        int      `json:"channels"`
	BitRate         int      `json:"bit_rate"`
	SizeBytes       int64    `json:"size_bytes"`
	IsVideo         bool     `json:"is_video"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Uploader        string   `json:"uploader"`
	Channel         string   `json:"channel"`
	Language        string   `json:"language"`
	ViewCount       int64    `json:"view_count"`
	LikeCount       int64    `json:"like_count"`
	CommentCount    int64    `json:"comment_count"`
	ApproxSizeBytes int64    `json:"approx_size_bytes"`
	Tags            []string `json:"tags"`
	Categories      []string `json:"categories"`
}

// ExtractOptions parameterizes extract_audio.
type ExtractOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// CutOptions parameterizes cut.
type CutOptions struct {
	Format     string
	SampleRate int
	Channels   int
}

// Adapter is the Media Tools Adapter contract.
type Adapter interface {
	// Probe reports duration/format for a local media file without
	// downloading or transcoding it.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// ProbeRemote reports source metadata for a URL without downloading
	// the full media.
	ProbeRemote(ctx context.Context, sourceURL string) (*ProbeResult, error)

	// ExtractAudio downloads sourceURL and produces a canonical WAV
	// mono 16kHz 16-bit file under outDir, returning its path.
	ExtractAudio(ctx context.Context, sourceURL, outDir string, opts ExtractOptions) (string, error)

	// Cut produces a single contiguous segment [start, start+duration)
	// of blob at the configured format/sample rate/channels.
	Cut(ctx context.Context, blobPath string, start, duration time.Duration, outPath string, opts CutOptions) error

	// Normalize emits MP3 mono 16kHz 128kbps with a fixed filter chain,
	// stripping container metadata.
	Normalize(ctx context.Context, blobPath, outPath string) error
}
