package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eternnoir/mediascribe/pkg/media"
)

// fakeGateway is an in-memory stand-in for objectstore.Gateway, letting
// pipeline stage tests exercise real Put/Get/List/SaveJSON/GetJSON
// semantics without a network dependency.
type fakeGateway struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{objects: make(map[string][]byte)}
}

func (g *fakeGateway) Put(ctx context.Context, path string, data io.ReadSeeker, contentType string, userMetadata map[string]string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[path] = b
	return nil
}

func (g *fakeGateway) Get(ctx context.Context, path string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.objects[path]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (g *fakeGateway) List(ctx context.Context, prefix string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for k := range g.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (g *fakeGateway) Delete(ctx context.Context, path string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.objects[path]
	delete(g.objects, path)
	return ok, nil
}

func (g *fakeGateway) Presign(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return "https://fake.example/" + path, nil
}

func (g *fakeGateway) SaveJSON(ctx context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return g.Put(ctx, path, bytes.NewReader(data), "application/json", nil)
}

func (g *fakeGateway) GetJSON(ctx context.Context, path string, out interface{}) (bool, error) {
	data, err := g.Get(ctx, path)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// fakeMedia is a stand-in for media.Adapter whose behavior per call is
// supplied by the test via function fields; unset fields panic if
// invoked, so a test only wires the operations its scenario exercises.
type fakeMedia struct {
	probeFn       func(ctx context.Context, path string) (*media.ProbeResult, error)
	probeRemoteFn func(ctx context.Context, sourceURL string) (*media.ProbeResult, error)
	extractFn     func(ctx context.Context, sourceURL, outDir string, opts media.ExtractOptions) (string, error)
	cutFn         func(ctx context.Context, blobPath string, start, duration time.Duration, outPath string, opts media.CutOptions) error
	normalizeFn   func(ctx context.Context, blobPath, outPath string) error
}

func (f *fakeMedia) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	return f.probeFn(ctx, path)
}

func (f *fakeMedia) ProbeRemote(ctx context.Context, sourceURL string) (*media.ProbeResult, error) {
	return f.probeRemoteFn(ctx, sourceURL)
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, sourceURL, outDir string, opts media.ExtractOptions) (string, error) {
	return f.extractFn(ctx, sourceURL, outDir, opts)
}

func (f *fakeMedia) Cut(ctx context.Context, blobPath string, start, duration time.Duration, outPath string, opts media.CutOptions) error {
	return f.cutFn(ctx, blobPath, start, duration, outPath, opts)
}

func (f *fakeMedia) Normalize(ctx context.Context, blobPath, outPath string) error {
	return f.normalizeFn(ctx, blobPath, outPath)
}

// validWAVHeader is a minimal 44-byte canonical WAV header, matching the
// fixture used by pkg/media's own VerifyWAVHeader tests.
func validWAVHeader() []byte {
	return append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 28)...)
}
