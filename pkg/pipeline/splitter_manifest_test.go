package pipeline

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/eternnoir/mediascribe/pkg/config"
	"github.com/eternnoir/mediascribe/pkg/media"
	"github.com/eternnoir/mediascribe/pkg/objectstore"
	"github.com/eternnoir/mediascribe/pkg/task"
)

func newSplitterHarness(t *testing.T) (*fakeGateway, *task.Task) {
	t.Helper()
	store := newFakeGateway()
	tk := task.New("https://example.com/video")
	tk.AudioPath = objectstore.Path(tk.ID, "audio", "full.wav")
	if err := store.Put(context.Background(), tk.AudioPath, bytes.NewReader(validWAVHeader()), "audio/wav", nil); err != nil {
		t.Fatalf("seed audio: %v", err)
	}
	return store, tk
}

// TestSplitterRunComputesChunkCountPerSpecFormula verifies
// ceil(duration/chunk_duration) with a minimum of 1, and that each
// chunk's recorded start/end/duration line up with its position.
func TestSplitterRunComputesChunkCountPerSpecFormula(t *testing.T) {
	cases := []struct {
		name             string
		durationSec      float64
		chunkDurationSec int
		wantChunks       int
	}{
		{"exact multiple", 900, 300, 3},
		{"remainder rounds up", 901, 300, 4},
		{"shorter than one chunk", 10, 300, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, tk := newSplitterHarness(t)

			adapter := &fakeMedia{
				probeFn: func(ctx context.Context, path string) (*media.ProbeResult, error) {
					return &media.ProbeResult{DurationSec: tc.durationSec}, nil
				},
				cutFn: func(ctx context.Context, blobPath string, start, duration time.Duration, outPath string, opts media.CutOptions) error {
					return writeFile(outPath, validWAVHeader())
				},
			}

			cfg := config.TranscriptionConfig{
				ChunkDurationSec: tc.chunkDurationSec,
				AudioFormat:      "wav",
				AudioSettings:    config.AudioSettings{SampleRate: 16000, Channels: 1},
			}
			s := NewSplitter(store, adapter, cfg, t.TempDir())

			if err := s.Run(context.Background(), tk); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			manifestRaw, ok := tk.Snapshot().MetaProcessing["chunks_info"]
			if !ok {
				t.Fatalf("expected chunks_info to be recorded")
			}
			manifest, ok := manifestRaw.(ChunksManifest)
			if !ok {
				t.Fatalf("chunks_info has unexpected type %T", manifestRaw)
			}

			if manifest.TotalChunks != tc.wantChunks {
				t.Fatalf("TotalChunks = %d, want %d", manifest.TotalChunks, tc.wantChunks)
			}
			if len(manifest.Chunks) != tc.wantChunks {
				t.Fatalf("len(Chunks) = %d, want %d", len(manifest.Chunks), tc.wantChunks)
			}

			chunkDuration := time.Duration(tc.chunkDurationSec) * time.Second
			totalDuration := time.Duration(tc.durationSec * float64(time.Second))
			for i, c := range manifest.Chunks {
				wantStart := time.Duration(i) * chunkDuration
				wantEnd := wantStart + chunkDuration
				if wantEnd > totalDuration {
					wantEnd = totalDuration
				}
				if c.StartMs != wantStart.Milliseconds() {
					t.Errorf("chunk %d: StartMs = %d, want %d", i, c.StartMs, wantStart.Milliseconds())
				}
				if c.EndMs != wantEnd.Milliseconds() {
					t.Errorf("chunk %d: EndMs = %d, want %d", i, c.EndMs, wantEnd.Milliseconds())
				}
				if c.DurationMs != (wantEnd - wantStart).Milliseconds() {
					t.Errorf("chunk %d: DurationMs = %d, want %d", i, c.DurationMs, (wantEnd - wantStart).Milliseconds())
				}
			}
		})
	}
}
