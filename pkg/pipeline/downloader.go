// Package pipeline implements the four pipeline stages — Download, Split,
// Transcribe, Merge — each reading the previous stage's artifact from the
// object store and writing its own.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eternnoir/mediascribe/pkg/apperror"
	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/media"
	"github.com/eternnoir/mediascribe/pkg/objectstore"
	"github.com/eternnoir/mediascribe/pkg/task"
)

// Downloader drives a Task through the Downloading stage.
type Downloader struct {
	store  objectstore.Gateway
	media  media.Adapter
	cfg    config.DownloadConfig
	tmpDir string
}

// NewDownloader constructs a Downloader.
func NewDownloader(store objectstore.Gateway, mediaAdapter media.Adapter, cfg config.DownloadConfig, tmpDir string) *Downloader {
	return &Downloader{store: store, media: mediaAdapter, cfg: cfg, tmpDir: tmpDir}
}

// Run executes the Downloading stage for t. Any failure records a task
// error and returns it; the caller performs the Failed transition.
func (d *Downloader) Run(ctx context.Context, t *task.Task) error {
	log := logger.WithComponent("downloader").WithField("task_id", t.ID)

	url := strings.TrimSpace(t.URL)
	if url == "" {
		return d.fail(t, "empty or malformed URL", apperror.Wrap(apperror.KindValidation, "validate_url", fmt.Errorf("url is empty")))
	}

	scratchDir, err := os.MkdirTemp(d.tmpDir, "mediascribe-dl-*")
	if err != nil {
		return d.fail(t, "failed to create scratch directory", err)
	}
	defer os.RemoveAll(scratchDir)

	// Probe source metadata without downloading.
	probeResult, err := d.media.ProbeRemote(ctx, url)
	if err != nil {
		return d.fail(t, "failed to probe source metadata", err)
	}

	processedTitle := task.SanitizeTitle(probeResult.Title)
	t.Atomic(func(tk *task.Task) {
		tk.MetaVideo = task.VideoMetadata{
			Title:           probeResult.Title,
			Description:     probeResult.Description,
			Duration:        probeResult.DurationSec,
			Uploader:        probeResult.Uploader,
			Channel:         probeResult.Channel,
			Language:        probeResult.Language,
			ViewCount:       probeResult.ViewCount,
			LikeCount:       probeResult.LikeCount,
			CommentCount:    probeResult.CommentCount,
			ApproxSizeBytes: probeResult.ApproxSizeBytes,
			Tags:            probeResult.Tags,
			Categories:      probeResult.Categories,
			Format:          probeResult.Format,
			ProcessedTitle:  processedTitle,
		}
	})

	if err := d.store.SaveJSON(ctx, objectstore.Path(t.ID, "metadata", "video_metadata.json"), probeResult); err != nil {
		return d.fail(t, "failed to persist video metadata", err)
	}

	wavPath, err := d.media.ExtractAudio(ctx, url, scratchDir, media.ExtractOptions{
		MaxRetries: d.cfg.MaxRetries,
		RetryDelay: d.cfg.RetryDelay,
		Timeout:    d.cfg.Timeout,
	})
	if err != nil {
		return d.fail(t, "extract_audio failed", err)
	}

	if err := media.VerifyWAVHeader(wavPath); err != nil {
		return d.fail(t, "downloaded audio failed WAV verification", err)
	}

	videoID := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	audioPath := objectstore.Path(t.ID, "audio", videoID+".wav")

	f, err := os.Open(wavPath)
	if err != nil {
		return d.fail(t, "failed to open downloaded audio", err)
	}
	defer f.Close()

	if err := d.store.Put(ctx, audioPath, f, "audio/wav", nil); err != nil {
		return d.fail(t, "failed to persist audio artifact", err)
	}

	t.Atomic(func(tk *task.Task) {
		tk.AudioPath = audioPath
		tk.Stats.Progress = 100
		tk.MetaProcessing["download_completed_at"] = time.Now().Format(time.RFC3339)
	})

	log.Info().Str("audio_path", audioPath).Msg("download stage completed")
	return nil
}

func (d *Downloader) fail(t *task.Task, message string, err error) error {
	t.AddError(string(task.StatusDownloading), message, errString(err))
	return fmt.Errorf("%s: %w", message, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
