package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/google/uuid"
)

type fakeOverdueLister struct {
	borrowings []models.Borrowing
	err        error
}

func (f *fakeOverdueLister) ListOverdue(ctx context.Context, asOf time.Time) ([]models.Borrowing, error) {
	return f.borrowings, f.err
}

type fakeSink struct {
	messages []string
	err      error
}

func (f *fakeSink) Send(ctx context.Context, text string) error {
	f.messages = append(f.messages, text)
	return f.err
}

func newOverdueJob(t *testing.T, lister *fakeOverdueLister, sink *fakeSink, now time.Time) Job {
	t.Helper()
	job, err := NewOverdueBorrowingsJob(OverdueBorrowingsJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:   lister,
		Sink:   sink,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func TestOverdueBorrowingsJob_ReportFormat(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	borrowing := models.Borrowing{
		ID:                 uuid.New(),
		ExpectedReturnDate: time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		User:               &models.User{Email: "late@example.com"},
		Book:               &models.Book{Title: "Release It!"},
	}
	sink := &fakeSink{}
	job := newOverdueJob(t, &fakeOverdueLister{borrowings: []models.Borrowing{borrowing}}, sink, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sink.messages))
	}

	message := sink.messages[0]
	if !strings.HasPrefix(message, "#borrowings_overdue\n2026-03-10 \n\n\n") {
		t.Fatalf("unexpected report header: %q", message)
	}
	for _, want := range []string{
		"borrowing_id: " + borrowing.ID.String(),
		"user_email: late@example.com",
		"book: Release It!",
		"overdue: 3 days",
	} {
		if !strings.Contains(message, want) {
			t.Fatalf("report missing %q:\n%s", want, message)
		}
	}
}

func TestOverdueBorrowingsJob_EmptyReport(t *testing.T) {
	sink := &fakeSink{}
	job := newOverdueJob(t, &fakeOverdueLister{}, sink, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.messages) != 1 || sink.messages[0] != overdueEmptyMessage {
		t.Fatalf("expected empty-day message, got %v", sink.messages)
	}
}

func TestOverdueBorrowingsJob_SinkFailureDoesNotFailCycle(t *testing.T) {
	sink := &fakeSink{err: context.DeadlineExceeded}
	job := newOverdueJob(t, &fakeOverdueLister{}, sink, time.Now())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("delivery failures must not fail the run: %v", err)
	}
}
