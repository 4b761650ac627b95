package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/media"
	"github.com/eternnoir/mediascribe/pkg/objectstore"
	"github.com/eternnoir/mediascribe/pkg/task"
)

// ChunkMeta describes one chunk artifact, persisted in chunks_manifest.json.
type ChunkMeta struct {
	ChunkIndex    int     `json:"chunk_index"`
	Filename      string  `json:"filename"`
	RelativePath  string  `json:"relative_path"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	DurationMs    int64   `json:"duration_ms"`
	StartMs       int64   `json:"start_ms"`
	EndMs         int64   `json:"end_ms"`
	AudioFormat   string  `json:"audio_format"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	CreatedAt     string  `json:"created_at"`
}

// ChunksManifest is chunks_manifest.json.
type ChunksManifest struct {
	TotalChunks   int         `json:"total_chunks"`
	TotalDuration int64       `json:"total_duration_ms"`
	ChunkDuration int         `json:"chunk_duration_sec"`
	AudioFormat   string      `json:"audio_format"`
	SampleRate    int         `json:"sample_rate"`
	Channels      int         `json:"channels"`
	Chunks        []ChunkMeta `json:"chunks"`
}

// Splitter drives a Task through the Splitting stage.
type Splitter struct {
	store  objectstore.Gateway
	media  media.Adapter
	cfg    config.TranscriptionConfig
	tmpDir string
}

// NewSplitter constructs a Splitter.
func NewSplitter(store objectstore.Gateway, mediaAdapter media.Adapter, cfg config.TranscriptionConfig, tmpDir string) *Splitter {
	return &Splitter{store: store, media: mediaAdapter, cfg: cfg, tmpDir: tmpDir}
}

// Run executes the Splitting stage for t, which must have AudioPath set.
func (s *Splitter) Run(ctx context.Context, t *task.Task) error {
	log := logger.WithComponent("splitter").WithField("task_id", t.ID)

	audioData, err := s.store.Get(ctx, t.AudioPath)
	if err != nil || audioData == nil {
		return s.fail(t, "failed to fetch canonical audio", fmt.Errorf("get %s: %w", t.AudioPath, err))
	}

	scratchDir, err := os.MkdirTemp(s.tmpDir, "mediascribe-split-*")
	if err != nil {
		return s.fail(t, "failed to create scratch directory", err)
	}
	defer os.RemoveAll(scratchDir)

	localAudio := filepath.Join(scratchDir, "audio.wav")
	if err := os.WriteFile(localAudio, audioData, 0o644); err != nil {
		return s.fail(t, "failed to stage local audio copy", err)
	}

	probe, err := s.media.Probe(ctx, localAudio)
	if err != nil {
		return s.fail(t, "failed to probe audio duration", err)
	}

	chunkDurationSec := s.cfg.ChunkDurationSec
	if override, ok := t.MetaProcessing["chunk_duration"].(int); ok && override > 0 {
		chunkDurationSec = override
	}
	chunkDuration := time.Duration(chunkDurationSec) * time.Second

	totalDuration := time.Duration(probe.DurationSec * float64(time.Second))
	numChunks := int(math.Ceil(float64(totalDuration) / float64(chunkDuration)))
	if numChunks < 1 {
		numChunks = 1
	}

	var chunks []ChunkMeta
	for i := 0; i < numChunks; i++ {
		start := time.Duration(i) * chunkDuration
		end := start + chunkDuration
		if end > totalDuration {
			end = totalDuration
		}
		dur := end - start

		filename := fmt.Sprintf("chunk_%03d_%s_%s.%s", i, media.FormatTimestampForFilename(start), media.FormatTimestampForFilename(end), s.cfg.AudioFormat)
		localChunkPath := filepath.Join(scratchDir, filename)

		if err := s.media.Cut(ctx, localAudio, start, dur, localChunkPath, media.CutOptions{
			Format:     s.cfg.AudioFormat,
			SampleRate: s.cfg.AudioSettings.SampleRate,
			Channels:   s.cfg.AudioSettings.Channels,
		}); err != nil {
			t.AddError(string(task.StatusSplitting), fmt.Sprintf("failed to cut chunk %d", i), err.Error())
			continue
		}

		relPath := objectstore.Path(t.ID, "chunks", filename)
		f, openErr := os.Open(localChunkPath)
		if openErr != nil {
			t.AddError(string(task.StatusSplitting), fmt.Sprintf("failed to open chunk %d", i), openErr.Error())
			continue
		}
		putErr := s.store.Put(ctx, relPath, f, "audio/"+s.cfg.AudioFormat, nil)
		f.Close()
		if putErr != nil {
			t.AddError(string(task.StatusSplitting), fmt.Sprintf("failed to persist chunk %d", i), putErr.Error())
			continue
		}

		chunks = append(chunks, ChunkMeta{
			ChunkIndex:   i,
			Filename:     filename,
			RelativePath: relPath,
			StartTime:    formatMetadataTimestamp(start),
			EndTime:      formatMetadataTimestamp(end),
			DurationMs:   dur.Milliseconds(),
			StartMs:      start.Milliseconds(),
			EndMs:        end.Milliseconds(),
			AudioFormat:  s.cfg.AudioFormat,
			SampleRate:   s.cfg.AudioSettings.SampleRate,
			Channels:     s.cfg.AudioSettings.Channels,
			CreatedAt:    time.Now().Format(time.RFC3339),
		})

		progress := math.Min(float64(i+1)/float64(numChunks)*100, 99.9)
		t.Atomic(func(tk *task.Task) {
			tk.Stats.Progress = progress
		})
	}

	if len(chunks) == 0 {
		return s.fail(t, "no chunks were produced", fmt.Errorf("all %d chunk cuts failed", numChunks))
	}

	manifest := ChunksManifest{
		TotalChunks:   len(chunks),
		TotalDuration: totalDuration.Milliseconds(),
		ChunkDuration: chunkDurationSec,
		AudioFormat:   s.cfg.AudioFormat,
		SampleRate:    s.cfg.AudioSettings.SampleRate,
		Channels:      s.cfg.AudioSettings.Channels,
		Chunks:        chunks,
	}

	if err := s.store.SaveJSON(ctx, objectstore.Path(t.ID, "chunks", "chunks_manifest.json"), manifest); err != nil {
		return s.fail(t, "failed to persist chunks manifest", err)
	}

	t.Atomic(func(tk *task.Task) {
		tk.MetaProcessing["chunks_info"] = manifest
		tk.MetaTranscription.ChunkCount = len(chunks)
	})

	log.Info().Int("chunk_count", len(chunks)).Msg("split stage completed")
	return nil
}

func (s *Splitter) fail(t *task.Task, message string, err error) error {
	t.AddError(string(task.StatusSplitting), message, errString(err))
	return fmt.Errorf("%s: %w", message, err)
}

// loadChunksManifest returns the manifest the Splitter wrote, preferring
// the in-memory copy on the task record over a round trip to the object
// store.
func loadChunksManifest(ctx context.Context, store objectstore.Gateway, t *task.Task) (ChunksManifest, error) {
	if raw, ok := t.MetaProcessing["chunks_info"]; ok {
		if manifest, ok := raw.(ChunksManifest); ok {
			return manifest, nil
		}
	}

	var manifest ChunksManifest
	found, err := store.GetJSON(ctx, objectstore.Path(t.ID, "chunks", "chunks_manifest.json"), &manifest)
	if err != nil || !found {
		return ChunksManifest{}, fmt.Errorf("manifest unavailable: %w", err)
	}
	return manifest, nil
}

// formatMetadataTimestamp renders HH:MM:SS.mmm, the layout used in
// chunks_manifest.json's human-readable start/end fields.
func formatMetadataTimestamp(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}
