package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eternnoir/mediascribe/pkg/apperror"
	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/logger"
	"github.com/eternnoir/mediascribe/pkg/media"
	"github.com/eternnoir/mediascribe/pkg/metrics"
	"github.com/eternnoir/mediascribe/pkg/objectstore"
	"github.com/eternnoir/mediascribe/pkg/ratelimit"
	"github.com/eternnoir/mediascribe/pkg/task"
)

// chunkArtifact is what gets written to `{base}.json` alongside each
// chunk's transcript text.
type chunkArtifact struct {
	Transcription TranscriptionAPIResponse `json:"transcription"`
	Metadata      chunkArtifactMetadata    `json:"metadata"`
}

type chunkArtifactMetadata struct {
	ChunkPath   string `json:"chunk_path"`
	ProcessedAt string `json:"processed_at"`
	Model       string `json:"model"`
	Language    string `json:"language"`
	Confidence  float64 `json:"confidence"`
}

// Transcriber drives a Task through the Transcribing stage: rate-limited,
// retrying per-chunk fan-out. Merging is done separately by Merger.
type Transcriber struct {
	store   objectstore.Gateway
	media   media.Adapter
	client  *TranscriptionClient
	limiter *ratelimit.Limiter
	cfg     config.TranscriptionConfig
	tmpDir  string
}

// NewTranscriber constructs a Transcriber.
func NewTranscriber(store objectstore.Gateway, mediaAdapter media.Adapter, client *TranscriptionClient, limiter *ratelimit.Limiter, cfg config.TranscriptionConfig, tmpDir string) *Transcriber {
	return &Transcriber{store: store, media: mediaAdapter, client: client, limiter: limiter, cfg: cfg, tmpDir: tmpDir}
}

// Run executes the Transcribing stage for t.
func (tr *Transcriber) Run(ctx context.Context, t *task.Task) error {
	log := logger.WithComponent("transcriber").WithField("task_id", t.ID)

	manifest, err := loadChunksManifest(ctx, tr.store, t)
	if err != nil {
		return tr.fail(t, "failed to load chunk manifest", err)
	}

	waveSize := tr.cfg.WaveSize
	if waveSize <= 0 {
		waveSize = 5
	}

	total := len(manifest.Chunks)
	done := 0
	var failedChunks []string

	for waveStart := 0; waveStart < total; waveStart += waveSize {
		waveEnd := waveStart + waveSize
		if waveEnd > total {
			waveEnd = total
		}
		wave := manifest.Chunks[waveStart:waveEnd]

		type waveResult struct {
			relPath string
			err     error
		}
		results := make([]waveResult, len(wave))

		var waveWG sync.WaitGroup
		for i, chunk := range wave {
			waveWG.Add(1)
			go func(i int, chunk ChunkMeta) {
				defer waveWG.Done()
				err := tr.transcribeChunk(ctx, t, chunk)
				results[i] = waveResult{relPath: chunk.RelativePath, err: err}
			}(i, chunk)
		}
		waveWG.Wait()

		for _, r := range results {
			done++
			if r.err != nil {
				failedChunks = append(failedChunks, r.relPath)
				log.Warn().Str("chunk", r.relPath).Err(r.err).Msg("chunk transcription failed")
			}
		}

		progress := minFloat(float64(done)/float64(total)*100, 99.9)
		t.Atomic(func(tk *task.Task) {
			tk.Stats.Progress = progress
		})

		if waveEnd < total {
			select {
			case <-time.After(1 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if len(failedChunks) > 0 {
		t.Atomic(func(tk *task.Task) {
			tk.MetaProcessing["failed_chunks"] = failedChunks
		})
		return tr.fail(t, "one or more chunks failed transcription", fmt.Errorf("failed chunks: %s", strings.Join(failedChunks, ", ")))
	}

	return nil
}

// transcribeChunk implements the per-chunk contract: rate limiter
// admission, fetch, normalize, multipart POST with exponential backoff
// (3 attempts, 300s total cap), then persist artifacts and update task
// transcription metadata.
func (tr *Transcriber) transcribeChunk(ctx context.Context, t *task.Task, chunk ChunkMeta) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 300 * time.Second
	bo := backoff.WithMaxRetries(expBackoff, 2) // 3 total attempts

	var response *TranscriptionAPIResponse

	operation := func() error {
		if admitted, wait := tr.limiter.Acquire(); !admitted {
			metrics.RateLimitWaitSeconds.Observe(wait.Seconds())
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
			if admitted2, _ := tr.limiter.Acquire(); !admitted2 {
				return fmt.Errorf("rate limiter still denying admission after wait")
			}
		}

		raw, err := tr.store.Get(ctx, chunk.RelativePath)
		if err != nil || raw == nil {
			return backoff.Permanent(fmt.Errorf("fetch chunk %s: %w", chunk.RelativePath, err))
		}

		normalizedPath, err := tr.normalizeChunk(ctx, chunk, raw)
		if err != nil {
			return backoff.Permanent(err)
		}

		data, err := readAndCheckSize(normalizedPath, tr.cfg.ChunkMaxSizeBytes)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, callErr := tr.client.Transcribe(ctx, filepath.Base(chunk.Filename), bytes.NewReader(data))
		if callErr != nil {
			if apperror.Retryable(callErr) {
				if appErr, ok := apperror.As(callErr); ok && appErr.RetryAfter > 0 {
					time.Sleep(appErr.RetryAfter)
				}
				return callErr
			}
			return backoff.Permanent(callErr)
		}

		response = resp
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		outcome := "failed"
		if apperror.Retryable(err) {
			outcome = "rate_limited"
		}
		metrics.ChunksTranscribedTotal.WithLabelValues(outcome).Inc()
		return err
	}

	if err := tr.persistChunkResult(ctx, t, chunk, response); err != nil {
		metrics.ChunksTranscribedTotal.WithLabelValues("failed").Inc()
		return err
	}

	metrics.ChunksTranscribedTotal.WithLabelValues("success").Inc()
	return nil
}

func (tr *Transcriber) normalizeChunk(ctx context.Context, chunk ChunkMeta, raw []byte) (string, error) {
	if err := os.MkdirAll(tr.tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare scratch dir: %w", err)
	}

	scratchIn := filepath.Join(tr.tmpDir, "in_"+chunk.Filename)
	scratchOut := filepath.Join(tr.tmpDir, "norm_"+chunk.Filename+".mp3")

	if err := writeFile(scratchIn, raw); err != nil {
		return "", fmt.Errorf("stage chunk for normalize: %w", err)
	}
	defer removeFile(scratchIn)

	if err := tr.media.Normalize(ctx, scratchIn, scratchOut); err != nil {
		return "", fmt.Errorf("normalize chunk: %w", err)
	}

	return scratchOut, nil
}

func (tr *Transcriber) persistChunkResult(ctx context.Context, t *task.Task, chunk ChunkMeta, resp *TranscriptionAPIResponse) error {
	base := strings.TrimSuffix(chunk.RelativePath, filepath.Ext(chunk.RelativePath))

	artifact := chunkArtifact{
		Transcription: *resp,
		Metadata: chunkArtifactMetadata{
			ChunkPath:   chunk.RelativePath,
			ProcessedAt: time.Now().Format(time.RFC3339),
			Model:       tr.cfg.Model,
			Language:    firstNonEmpty(resp.Language, tr.cfg.Language),
			Confidence:  resp.Confidence,
		},
	}

	if err := tr.store.SaveJSON(ctx, base+".json", artifact); err != nil {
		return fmt.Errorf("persist chunk json: %w", err)
	}
	if err := tr.store.Put(ctx, base+".txt", strings.NewReader(resp.Text), "text/plain", nil); err != nil {
		return fmt.Errorf("persist chunk text: %w", err)
	}

	wordCount := len(strings.Fields(resp.Text))
	t.Atomic(func(tk *task.Task) {
		tk.MetaTranscription.WordCount += wordCount
		if artifact.Metadata.Language != "" {
			tk.MetaTranscription.DetectedLanguage = artifact.Metadata.Language
		}
		if resp.Confidence > 0 {
			tk.MetaTranscription.ConfidenceScores = append(tk.MetaTranscription.ConfidenceScores, resp.Confidence)
			sum := 0.0
			for _, c := range tk.MetaTranscription.ConfidenceScores {
				sum += c
			}
			tk.MetaTranscription.AverageConfidence = sum / float64(len(tk.MetaTranscription.ConfidenceScores))
		}
	})

	return nil
}

func (tr *Transcriber) fail(t *task.Task, message string, err error) error {
	t.AddError(string(task.StatusTranscribing), message, errString(err))
	return fmt.Errorf("%s: %w", message, err)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// readAndCheckSize and writeFile/removeFile are small filesystem helpers
// kept local to avoid a dependency on the splitter's scratch layout.
func readAndCheckSize(path string, maxBytes int64) ([]byte, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("normalized chunk exceeds max size: %d > %d", len(data), maxBytes)
	}
	return data, nil
}
