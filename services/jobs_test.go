package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestJobService(workers int) *JobService {
	return &JobService{
		handlers:    make(map[JobType]JobHandler),
		timers:      make(map[string]*time.Timer),
		queue:       make(chan Job, 16),
		quit:        make(chan struct{}),
		workers:     workers,
		maxAttempts: 3,
	}
}

func TestScheduleImmediateDispatch(t *testing.T) {
	svc := newTestJobService(1)
	done := make(chan Job, 1)

	svc.Register("test_job", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	})

	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Shutdown()

	id := svc.Schedule("test_job", "payload-1", 0)

	select {
	case job := <-done:
		if job.ID != id {
			t.Errorf("job ID = %q, want %q", job.ID, id)
		}
		if job.Payload != "payload-1" {
			t.Errorf("payload = %v, want payload-1", job.Payload)
		}
		if job.Attempt != 1 {
			t.Errorf("attempt = %d, want 1", job.Attempt)
		}
	case <-time.After(time.Second):
		t.Fatal("job never executed")
	}
}

func TestScheduleDelayedDispatch(t *testing.T) {
	svc := newTestJobService(1)
	done := make(chan time.Time, 1)

	svc.Register("test_job", func(ctx context.Context, job Job) error {
		done <- time.Now()
		return nil
	})

	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Shutdown()

	scheduled := time.Now()
	svc.Schedule("test_job", nil, 20*time.Millisecond)

	select {
	case ran := <-done:
		if elapsed := ran.Sub(scheduled); elapsed < 20*time.Millisecond {
			t.Errorf("job ran after %v, want at least 20ms delay", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("delayed job never executed")
	}
}

func TestRunSchedulesRetryOnFailure(t *testing.T) {
	svc := newTestJobService(0)
	svc.Register("test_job", func(ctx context.Context, job Job) error {
		return errors.New("transient")
	})

	svc.run(Job{ID: "job-1", Type: "test_job", Attempt: 1})

	svc.mu.Lock()
	pending := len(svc.timers)
	svc.mu.Unlock()
	if pending != 1 {
		t.Errorf("pending retry timers = %d, want 1", pending)
	}

	svc.Shutdown()
}

func TestRunStopsAfterMaxAttempts(t *testing.T) {
	svc := newTestJobService(0)
	calls := 0
	svc.Register("test_job", func(ctx context.Context, job Job) error {
		calls++
		return errors.New("permanent")
	})

	svc.run(Job{ID: "job-1", Type: "test_job", Attempt: svc.maxAttempts})

	svc.mu.Lock()
	pending := len(svc.timers)
	svc.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending retry timers = %d, want 0 after exhausted attempts", pending)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	svc := newTestJobService(0)
	svc.Register("test_job", func(ctx context.Context, job Job) error {
		panic("boom")
	})

	// Must not propagate the panic; the failure follows the retry path.
	svc.run(Job{ID: "job-1", Type: "test_job", Attempt: svc.maxAttempts})
}

func TestRunIgnoresUnknownJobType(t *testing.T) {
	svc := newTestJobService(0)
	svc.run(Job{ID: "job-1", Type: "never_registered", Attempt: 1})

	svc.mu.Lock()
	pending := len(svc.timers)
	svc.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending timers = %d, want 0 for unknown job type", pending)
	}
}
