package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/eternnoir/mediascribe/pkg/apperror"
	"github.com/eternnoir/mediascribe/pkg/logger"
)

// ExtractAudio drives the external download/transcode pipeline (a
// yt-dlp-compatible binary) with parameters fixed to: best audio, no
// playlist, no subtitles, post-processed to WAV mono 16kHz 16-bit. Makes
// up to opts.MaxRetries attempts (at least one) with opts.RetryDelay
// between them; no partial state leaks into the object store between
// attempts because every attempt writes only under outDir.
func (a *ffmpegAdapter) ExtractAudio(ctx context.Context, sourceURL, outDir string, opts ExtractOptions) (string, error) {
	log := logger.WithComponent("media-adapter").WithField("url", sourceURL)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", apperror.Wrap(apperror.KindExternalTool, "extract_audio", fmt.Errorf("create out dir: %w", err))
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Int("attempt", attempt+1).Msg("retrying extract_audio")
			select {
			case <-time.After(opts.RetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		runCtx := ctx
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}

		outTemplate := filepath.Join(outDir, "%(id)s.%(ext)s")
		args := []string{
			"-f", "bestaudio/best",
			"--no-playlist",
			"--no-write-subs",
			"--extract-audio",
			"--audio-format", "wav",
			"--postprocessor-args", "ExtractAudio:-af aformat=sample_fmts=s16:sample_rates=16000:channel_layouts=mono",
			"-o", outTemplate,
			sourceURL,
		}

		cmd := exec.CommandContext(runCtx, "yt-dlp", args...)
		output, runErr := cmd.CombinedOutput()
		if cancel != nil {
			cancel()
		}
		if runErr != nil {
			lastErr = fmt.Errorf("yt-dlp failed: %w: %s", runErr, string(output))
			continue
		}

		wavPath, findErr := findWAV(outDir)
		if findErr != nil {
			lastErr = findErr
			continue
		}
		return wavPath, nil
	}

	return "", apperror.Wrap(apperror.KindExternalTool, "extract_audio", lastErr)
}

// ProbeRemote extracts source metadata for sourceURL without downloading
// the media, using the downloader's --dump-json mode.
func (a *ffmpegAdapter) ProbeRemote(ctx context.Context, sourceURL string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp", "--dump-json", "--no-playlist", sourceURL)
	out, err := cmd.Output()
	if err != nil {
		return nil, apperror.Wrap(apperror.KindExternalTool, "probe_remote", err)
	}

	var info struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Duration        float64  `json:"duration"`
		Uploader        string   `json:"uploader"`
		Channel         string   `json:"channel"`
		Language        string   `json:"language"`
		ViewCount       int64    `json:"view_count"`
		LikeCount       int64    `json:"like_count"`
		CommentCount    int64    `json:"comment_count"`
		Ext             string   `json:"ext"`
		FilesizeApprox  int64    `json:"filesize_approx"`
		Tags            []string `json:"tags"`
		Categories      []string `json:"categories"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, apperror.Wrap(apperror.KindExternalTool, "probe_remote", fmt.Errorf("parse metadata: %w", err))
	}

	return &ProbeResult{
		DurationSec:     info.Duration,
		Format:          info.Ext,
		ApproxSizeBytes: info.FilesizeApprox,
		Title:           info.Title,
		Description:     info.Description,
		Uploader:        info.Uploader,
		Channel:         info.Channel,
		Language:        info.Language,
		ViewCount:       info.ViewCount,
		LikeCount:       info.LikeCount,
		CommentCount:    info.CommentCount,
		Tags:            info.Tags,
		Categories:      info.Categories,
	}, nil
}

func findWAV(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".wav" {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no wav file produced in %s", dir)
}
