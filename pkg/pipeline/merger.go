package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/objectstore"
	"github.com/eternnoir/mediascribe/pkg/task"
)

// MergedMetadata is transcripts/merged_metadata.json.
type MergedMetadata struct {
	TaskID      string      `json:"task_id"`
	ProcessedAt string      `json:"processed_at"`
	Chunks      []ChunkMeta `json:"chunks"`
}

// Merger drives a Task through the Merging stage.
type Merger struct {
	store objectstore.Gateway
}

// NewMerger constructs a Merger.
func NewMerger(store objectstore.Gateway) *Merger {
	return &Merger{store: store}
}

// Run lists chunks/*.json, sorted lexicographically (the zero-padded
// chunk index in the filename provides the correct order), concatenates
// each chunk's transcription text with newlines, and writes the merged
// transcript and its metadata.
func (m *Merger) Run(ctx context.Context, t *task.Task) error {
	log := logger.WithComponent("merger").WithField("task_id", t.ID)

	paths, err := m.store.List(ctx, objectstore.Path(t.ID, "chunks", ""))
	if err != nil {
		return m.fail(t, "failed to list chunk artifacts", err)
	}

	var jsonPaths []string
	for _, p := range paths {
		if strings.HasSuffix(p, ".json") && !strings.HasSuffix(p, "chunks_manifest.json") {
			jsonPaths = append(jsonPaths, p)
		}
	}
	sort.Strings(jsonPaths)

	if len(jsonPaths) == 0 {
		return m.fail(t, "no chunk transcripts available to merge", fmt.Errorf("chunks/*.json is empty"))
	}

	manifest, err := loadChunksManifest(ctx, m.store, t)
	if err != nil {
		return m.fail(t, "failed to load chunk manifest", err)
	}
	chunkByBase := make(map[string]ChunkMeta, len(manifest.Chunks))
	for _, c := range manifest.Chunks {
		base := strings.TrimSuffix(c.RelativePath, filepath.Ext(c.RelativePath))
		chunkByBase[base] = c
	}

	var lines []string
	var chunkMetas []ChunkMeta
	for _, p := range jsonPaths {
		var artifact chunkArtifact
		found, err := m.store.GetJSON(ctx, p, &artifact)
		if err != nil || !found {
			return m.fail(t, "failed to read chunk artifact during merge", fmt.Errorf("%s: %w", p, err))
		}
		lines = append(lines, artifact.Transcription.Text)

		base := strings.TrimSuffix(p, ".json")
		meta, ok := chunkByBase[base]
		if !ok {
			meta = ChunkMeta{RelativePath: p}
		}
		chunkMetas = append(chunkMetas, meta)
	}

	mergedText := strings.Join(lines, "\n")
	transcriptPath := objectstore.Path(t.ID, "transcripts", "merged_transcript.txt")
	if err := m.store.Put(ctx, transcriptPath, strings.NewReader(mergedText), "text/plain", nil); err != nil {
		return m.fail(t, "failed to persist merged transcript", err)
	}

	metadata := MergedMetadata{
		TaskID:      t.ID,
		ProcessedAt: time.Now().Format(time.RFC3339),
		Chunks:      chunkMetas,
	}
	if err := m.store.SaveJSON(ctx, objectstore.Path(t.ID, "transcripts", "merged_metadata.json"), metadata); err != nil {
		return m.fail(t, "failed to persist merged metadata", err)
	}

	t.Atomic(func(tk *task.Task) {
		tk.MetaTranscription.MergedTranscriptPath = transcriptPath
	})

	log.Info().Int("chunks_merged", len(jsonPaths)).Msg("merge stage completed")
	return nil
}

func (m *Merger) fail(t *task.Task, message string, err error) error {
	t.AddError(string(task.StatusMerging), message, errString(err))
	return fmt.Errorf("%s: %w", message, err)
}
