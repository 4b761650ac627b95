package worker

import (
	"testing"

	"github.com/eternnoir/mediascribe/pkg/task"
)

func TestSubmitDeduplicatesByURL(t *testing.T) {
	registry := task.NewRegistry()
	pool := &Pool{registry: registry, queue: make(chan *task.Task, 1), stopCh: make(chan struct{})}

	first := pool.Submit("https://example.com/a.mp4")
	if first == nil {
		t.Fatalf("expected first submit to succeed")
	}

	second := pool.Submit("https://example.com/a.mp4")
	if second != nil {
		t.Fatalf("expected duplicate URL submit to be refused")
	}

	if len(registry.List()) != 1 {
		t.Fatalf("expected exactly one registered task, got %d", len(registry.List()))
	}
}

func TestSubmitQueueFullDoesNotPolluteRegistry(t *testing.T) {
	registry := task.NewRegistry()
	pool := &Pool{registry: registry, queue: make(chan *task.Task, 1), stopCh: make(chan struct{})}

	first := pool.Submit("https://example.com/a.mp4")
	if first == nil {
		t.Fatalf("expected first submit to succeed")
	}

	second := pool.Submit("https://example.com/b.mp4")
	if second != nil {
		t.Fatalf("expected submit against a full queue to be refused")
	}

	if _, ok := registry.GetByURL("https://example.com/b.mp4"); ok {
		t.Fatalf("queue-full submission must not remain in the registry")
	}
	if len(registry.List()) != 1 {
		t.Fatalf("expected exactly one registered task after queue-full refusal, got %d", len(registry.List()))
	}
}

func TestSubmitAfterShutdownRefused(t *testing.T) {
	registry := task.NewRegistry()
	pool := &Pool{registry: registry, queue: make(chan *task.Task, 4), stopCh: make(chan struct{}), shutdown: true}

	got := pool.Submit("https://example.com/a.mp4")
	if got != nil {
		t.Fatalf("expected submit after shutdown to be refused")
	}
}
