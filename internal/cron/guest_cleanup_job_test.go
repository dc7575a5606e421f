package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelinabooks/bookshop-backend/pkg/logger"
)

func TestGuestCleanupJobDeletesStaleGuests(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeGuestRepo{deletedRows: 7}
	job := newGuestCleanupJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.UTC().Add(-defaultGuestRetention)
	if !repo.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected repo called once, got %d", repo.called)
	}
}

func TestGuestCleanupJobPropagatesErrors(t *testing.T) {
	repo := &fakeGuestRepo{err: errors.New("boom")}
	job := newGuestCleanupJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newGuestCleanupJob(t *testing.T, repo *fakeGuestRepo) *guestCleanupJob {
	t.Helper()
	jobIface, err := NewGuestCleanupJob(GuestCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewGuestCleanupJob: %v", err)
	}
	job, ok := jobIface.(*guestCleanupJob)
	if !ok {
		t.Fatalf("expected guestCleanupJob, got %T", jobIface)
	}
	return job
}

type fakeGuestRepo struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
	called      int
}

func (f *fakeGuestRepo) DeleteStaleWithoutOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}
