package stream

import (
	"testing"

	"github.com/eternnoir/mediascribe/pkg/task"
)

func TestOverallProgressWeightsStages(t *testing.T) {
	cases := []struct {
		name   string
		status task.Status
		stage  float64
		want   float64
	}{
		{"pending", task.StatusPending, 0, 0},
		{"downloading half", task.StatusDownloading, 50, 10},
		{"downloading done", task.StatusDownloading, 100, 20},
		{"splitting half", task.StatusSplitting, 50, 25},
		{"transcribing half", task.StatusTranscribing, 50, 60},
		{"merging half", task.StatusMerging, 50, 95},
		{"completed", task.StatusCompleted, 0, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := task.Task{Status: tc.status, Stats: task.Stats{Progress: tc.stage}}
			got := overallProgress(snap)
			if diff := got - tc.want; diff > 0.01 || diff < -0.01 {
				t.Fatalf("overallProgress(%s, %.1f) = %.4f, want %.4f", tc.status, tc.stage, got, tc.want)
			}
		})
	}
}

func TestCoalesceAlwaysEmitsFirstEvent(t *testing.T) {
	if !coalesce(nil, Event{Status: "pending"}) {
		t.Fatalf("expected first event to always coalesce")
	}
}

func TestCoalesceEmitsOnStatusChange(t *testing.T) {
	last := &Event{Status: "pending", OverallProgress: 0}
	next := Event{Status: "downloading", OverallProgress: 0}
	if !coalesce(last, next) {
		t.Fatalf("expected status change to coalesce")
	}
}

func TestCoalesceSuppressesTinyDelta(t *testing.T) {
	last := &Event{Status: "downloading", OverallProgress: 10.0}
	next := Event{Status: "downloading", OverallProgress: 10.05}
	if coalesce(last, next) {
		t.Fatalf("expected sub-threshold delta to be suppressed")
	}
}

func TestCoalesceEmitsOnMeaningfulDelta(t *testing.T) {
	last := &Event{Status: "downloading", OverallProgress: 10.0}
	next := Event{Status: "downloading", OverallProgress: 10.2}
	if !coalesce(last, next) {
		t.Fatalf("expected >=0.1 delta to coalesce")
	}
}

func TestCoalesceAlwaysEmitsTerminal(t *testing.T) {
	last := &Event{Status: "failed", OverallProgress: 42}
	next := Event{Status: "failed", OverallProgress: 42}
	if !coalesce(last, next) {
		t.Fatalf("expected terminal state to always coalesce even with no delta")
	}
}
