package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/objectstore"
	"github.com/eternnoir/mediascribe/pkg/ratelimit"
	"github.com/eternnoir/mediascribe/pkg/task"
)

// passthroughMedia normalizes a chunk by copying its bytes unchanged,
// enough for the Transcriber's size-check/upload path without a real
// ffmpeg dependency.
func passthroughMedia() *fakeMedia {
	return &fakeMedia{
		normalizeFn: func(ctx context.Context, blobPath, outPath string) error {
			data, err := os.ReadFile(blobPath)
			if err != nil {
				return err
			}
			return os.WriteFile(outPath, data, 0o644)
		},
	}
}

func generousLimiter() *ratelimit.Limiter {
	return ratelimit.New(time.Hour, 1000)
}

func TestTranscribeChunkRetriesOnceAfterRateLimit(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(TranscriptionAPIResponse{Text: "retried text", Language: "en", Confidence: 0.9})
	}))
	defer server.Close()

	store := newFakeGateway()
	tk := task.New("https://example.com/video")
	chunk := ChunkMeta{ChunkIndex: 0, Filename: "retry.wav", RelativePath: objectstore.Path(tk.ID, "chunks", "retry.wav")}
	if err := store.Put(context.Background(), chunk.RelativePath, bytes.NewReader(validWAVHeader()), "audio/wav", nil); err != nil {
		t.Fatalf("seed chunk bytes: %v", err)
	}

	client := NewTranscriptionClient(server.URL, "key", "test-model", "", 5*time.Second, time.Millisecond)
	tr := NewTranscriber(store, passthroughMedia(), client, generousLimiter(), config.TranscriptionConfig{Model: "test-model"}, t.TempDir())

	if err := tr.transcribeChunk(context.Background(), tk, chunk); err != nil {
		t.Fatalf("transcribeChunk() error = %v", err)
	}

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got != 2 {
		t.Fatalf("expected exactly 2 attempts (1 rate-limited + 1 success), got %d", got)
	}

	if tk.Snapshot().MetaTranscription.WordCount == 0 {
		t.Errorf("expected word count to be updated from the successful transcription")
	}
}

func TestTranscriberRunFailsTaskWhenTwoOfFiveChunksFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		filename := r.MultipartForm.File["file"][0].Filename
		if filename == "chunk_001.wav" || filename == "chunk_003.wav" {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(TranscriptionAPIResponse{Text: "ok " + filename})
	}))
	defer server.Close()

	store := newFakeGateway()
	tk := task.New("https://example.com/video")

	var chunks []ChunkMeta
	for i := 0; i < 5; i++ {
		filename := fmt.Sprintf("chunk_%03d.wav", i)
		c := ChunkMeta{ChunkIndex: i, Filename: filename, RelativePath: objectstore.Path(tk.ID, "chunks", filename)}
		if err := store.Put(context.Background(), c.RelativePath, bytes.NewReader(validWAVHeader()), "audio/wav", nil); err != nil {
			t.Fatalf("seed chunk %d bytes: %v", i, err)
		}
		chunks = append(chunks, c)
	}
	tk.Atomic(func(tk *task.Task) {
		tk.MetaProcessing["chunks_info"] = ChunksManifest{TotalChunks: 5, Chunks: chunks}
	})

	client := NewTranscriptionClient(server.URL, "key", "test-model", "", 5*time.Second, time.Millisecond)
	cfg := config.TranscriptionConfig{Model: "test-model", WaveSize: 5}
	tr := NewTranscriber(store, passthroughMedia(), client, generousLimiter(), cfg, t.TempDir())

	err := tr.Run(context.Background(), tk)
	if err == nil {
		t.Fatalf("expected Run() to fail when 2 of 5 chunks fail every attempt")
	}

	snap := tk.Snapshot()
	failed, ok := snap.MetaProcessing["failed_chunks"].([]string)
	if !ok {
		t.Fatalf("expected failed_chunks to be a []string, got %T", snap.MetaProcessing["failed_chunks"])
	}
	if len(failed) != 2 {
		t.Fatalf("expected exactly 2 failed chunks, got %d: %v", len(failed), failed)
	}

	want := map[string]bool{
		objectstore.Path(tk.ID, "chunks", "chunk_001.wav"): true,
		objectstore.Path(tk.ID, "chunks", "chunk_003.wav"): true,
	}
	for _, p := range failed {
		if !want[p] {
			t.Errorf("unexpected chunk %q in failed_chunks", p)
		}
		delete(want, p)
	}
	if len(want) != 0 {
		t.Errorf("missing expected failed chunks: %v", want)
	}
}
