package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"murrasil/internal/model"
	"murrasil/internal/pipeline"
	"murrasil/internal/storage"
)

type fakeRunner struct {
	mu    sync.Mutex
	runs  int
	err   error
	count int
}

func (f *fakeRunner) Run(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.count, f.err
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerRunsImmediatelyAndOnTicks(t *testing.T) {
	store := newTestStore(t)
	runner := &fakeRunner{count: 3}

	sched := New(store, runner, discardLogger(), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	// Initial run fires without waiting for the first tick.
	deadline := time.After(2 * time.Second)
	for runner.runCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial run never happened")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// At least one tick-driven run follows.
	for runner.runCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("no tick-driven run after initial run (runs=%d)", runner.runCount())
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	<-done
}

func TestSchedulerToleratesSkippedAndFailedRuns(t *testing.T) {
	store := newTestStore(t)

	for _, err := range []error{pipeline.ErrRunInProgress, io.ErrUnexpectedEOF} {
		runner := &fakeRunner{err: err}
		sched := New(store, runner, discardLogger(), 10*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		sched.Run(ctx)
		cancel()

		if runner.runCount() == 0 {
			t.Errorf("scheduler with runner error %v never attempted a run", err)
		}
	}
}

func TestEffectiveInterval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	defaultInterval := 15 * time.Minute
	sched := New(store, &fakeRunner{}, discardLogger(), defaultInterval)

	tests := []struct {
		name    string
		setting string
		want    time.Duration
	}{
		{name: "no setting uses default", setting: "", want: defaultInterval},
		{name: "stored override applies", setting: "30", want: 30 * time.Minute},
		{name: "non-numeric ignored", setting: "soon", want: defaultInterval},
		{name: "non-positive ignored", setting: "0", want: defaultInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setting != "" {
				if err := store.UpsertSetting(ctx, model.SettingFetchInterval, tt.setting); err != nil {
					t.Fatalf("upsert setting: %v", err)
				}
			}
			if got := sched.effectiveInterval(ctx); got != tt.want {
				t.Errorf("effectiveInterval = %v, want %v", got, tt.want)
			}
		})
	}
}
