// Package task holds the shared Task record, its state machine, the
// atomic(task) mutation discipline, and an in-memory registry keyed by
// task id and url.
package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is one of the tagged task lifecycle states.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusSplitting    Status = "splitting"
	StatusTranscribing Status = "transcribing"
	StatusMerging      Status = "merging"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
	StatusPaused       Status = "paused"
)

// transitions is the state machine's transition table: a map from source
// state to the set of legal destination states.
var transitions = map[Status]map[Status]bool{
	StatusPending:      set(StatusDownloading, StatusFailed, StatusCancelled),
	StatusDownloading:  set(StatusSplitting, StatusFailed, StatusPaused, StatusCancelled),
	StatusSplitting:    set(StatusTranscribing, StatusFailed, StatusPaused, StatusCancelled),
	StatusTranscribing: set(StatusMerging, StatusFailed, StatusPaused, StatusCancelled),
	StatusMerging:      set(StatusCompleted, StatusFailed, StatusPaused, StatusCancelled),
	StatusCompleted:    set(StatusFailed),
	StatusFailed:       set(StatusPending),
	StatusCancelled:    set(StatusPending),
	StatusPaused:       set(StatusPending, StatusFailed, StatusCancelled),
}

func set(statuses ...Status) map[Status]bool {
	m := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// CanTransition reports whether the move from `from` to `to` is legal.
func CanTransition(from, to Status) bool {
	dests, ok := transitions[from]
	if !ok {
		return false
	}
	return dests[to]
}

// Stats tracks download progress and overall stage progress.
type Stats struct {
	Progress        float64 `json:"progress"`
	TotalBytes      int64   `json:"total_bytes"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	Speed           float64 `json:"speed"`
	ETA             float64 `json:"eta"`
}

// VideoMetadata holds the fixed subset of source metadata lifted into the
// task record by the Downloader.
type VideoMetadata struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Duration        float64  `json:"duration"`
	Uploader        string   `json:"uploader"`
	Channel         string   `json:"channel"`
	Language        string   `json:"language"`
	ViewCount       int64    `json:"view_count"`
	LikeCount       int64    `json:"like_count"`
	CommentCount    int64    `json:"comment_count"`
	ApproxSizeBytes int64    `json:"approx_size_bytes"`
	Tags            []string `json:"tags"`
	Categories      []string `json:"categories"`
	Format          string   `json:"format"`
	ProcessedTitle  string   `json:"processed_title"`
}

// TranscriptionMetadata accumulates per-chunk transcription facts.
type TranscriptionMetadata struct {
	WordCount            int       `json:"word_count"`
	DetectedLanguage     string    `json:"detected_language"`
	ChunkCount           int       `json:"chunk_count"`
	ConfidenceScores     []float64 `json:"confidence_scores"`
	AverageConfidence    float64   `json:"average_confidence"`
	TotalDuration        float64   `json:"total_duration"`
	MergedTranscriptPath string    `json:"merged_transcript_path"`
}

// TaskErrorRecord is one entry in the task's append-only error log.
type TaskErrorRecord struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Task is the central record for one submission.
type Task struct {
	mu sync.Mutex

	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Stats Stats `json:"stats"`

	MetaVideo         VideoMetadata          `json:"metadata_video"`
	MetaTranscription TranscriptionMetadata  `json:"metadata_transcription"`
	MetaProcessing    map[string]interface{} `json:"metadata_processing"`

	Errors []TaskErrorRecord `json:"errors"`

	AudioPath string `json:"audio_path"`
}

// New creates a Pending task for url.
func New(url string) *Task {
	now := time.Now()
	return &Task{
		ID:             uuid.NewString(),
		URL:            url,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		MetaProcessing: make(map[string]interface{}),
	}
}

// Atomic serializes a mutation under the task's lock and bumps UpdatedAt
// on exit, matching the atomic(task) discipline: callers mutate the task
// inside fn, and UpdatedAt always reflects the latest change. The lock is
// a plain sync.Mutex and is not reentrant: fn must not call Atomic or any
// other locking method on the same task.
func (t *Task) Atomic(fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t)
	t.UpdatedAt = time.Now()
}

// TryTransition attempts to move the task to newStatus. Returns false
// without mutation if the move is illegal.
func (t *Task) TryTransition(newStatus Status) bool {
	ok := false
	t.Atomic(func(task *Task) {
		if CanTransition(task.Status, newStatus) {
			task.Status = newStatus
			ok = true
		}
	})
	return ok
}

// AddError appends an error record for stage. It does not change the
// task's status; the worker pool performs the Failed transition.
func (t *Task) AddError(stage, message, details string) {
	t.Atomic(func(task *Task) {
		task.Errors = append(task.Errors, TaskErrorRecord{
			Stage:     stage,
			Message:   message,
			Timestamp: time.Now(),
			Details:   details,
		})
	})
}

// LatestError returns the most recent error message, or "" if none.
func (t *Task) LatestError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Errors) == 0 {
		return ""
	}
	return t.Errors[len(t.Errors)-1].Message
}

// CanResume is true for Failed/Cancelled/Paused.
func (t *Task) CanResume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.Status {
	case StatusFailed, StatusCancelled, StatusPaused:
		return true
	default:
		return false
	}
}

// Snapshot returns a shallow copy of task state safe to read without
// holding the lock further (used by the Progress Stream, which never
// mutates status/stats).
func (t *Task) Snapshot() Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *t
	cp.Errors = append([]TaskErrorRecord(nil), t.Errors...)
	cp.MetaProcessing = make(map[string]interface{}, len(t.MetaProcessing))
	for k, v := range t.MetaProcessing {
		cp.MetaProcessing[k] = v
	}
	return cp
}
