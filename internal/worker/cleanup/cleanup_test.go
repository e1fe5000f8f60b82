package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type mockCleaner struct {
	deleted int64
	err     error
	calls   int
}

func (m *mockCleaner) CleanupOrphans(ctx context.Context) (int64, error) {
	m.calls++
	return m.deleted, m.err
}

type mockRecorder struct {
	recorded []int64
}

func (m *mockRecorder) RecordOrphansDeleted(count int64) {
	m.recorded = append(m.recorded, count)
}

func TestRun_RecordsDeletedCount(t *testing.T) {
	cleaner := &mockCleaner{deleted: 3}
	recorder := &mockRecorder{}
	job := NewCleanupJob(cleaner, recorder, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0] != 3 {
		t.Errorf("deleted count not recorded: %v", recorder.recorded)
	}
}

func TestRun_PropagatesError(t *testing.T) {
	cleaner := &mockCleaner{err: errors.New("connection refused")}
	job := NewCleanupJob(cleaner, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_NilRecorderIsAllowed(t *testing.T) {
	cleaner := &mockCleaner{deleted: 1}
	job := NewCleanupJob(cleaner, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
