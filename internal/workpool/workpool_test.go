package workpool

import (
	"context"
	"testing"
)

func TestRun_AllJobsComplete(t *testing.T) {
	p := New(2)
	jobs := []Job[int]{
		{Key: "a", Run: func(ctx context.Context) (int, error) { return 1, nil }},
		{Key: "b", Run: func(ctx context.Context) (int, error) { return 2, nil }},
		{Key: "c", Run: func(ctx context.Context) (int, error) { return 3, nil }},
	}

	results := Run(context.Background(), p, jobs)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	sum := 0
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("result %s: %v", r.Key, r.Err)
		}
		sum += r.Value
	}
	if sum != 6 {
		t.Errorf("sum = %d, want 6", sum)
	}
}

func TestRun_Empty(t *testing.T) {
	if got := Run[int](context.Background(), New(4), nil); got != nil {
		t.Errorf("Run(nil) = %v, want nil", got)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job[int]{
		{Key: "a", Run: func(ctx context.Context) (int, error) { return 1, nil }},
	}
	results := Run(ctx, New(1), jobs)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err == nil {
		t.Error("expected cancellation error, got nil")
	}
}

func TestNew_CapsWorkers(t *testing.T) {
	p := New(1000)
	if p.maxWorkers != DefaultMaxWorkers {
		t.Errorf("maxWorkers = %d, want %d", p.maxWorkers, DefaultMaxWorkers)
	}
}
