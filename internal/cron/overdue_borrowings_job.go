package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/openshelf-backend/internal/notifier"
	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/metrics"
)

const overdueEmptyMessage = "No borrowings overdue today!"

type overdueLister interface {
	ListOverdue(ctx context.Context, asOf time.Time) ([]models.Borrowing, error)
}

// OverdueBorrowingsJobParams configure the daily overdue report.
type OverdueBorrowingsJobParams struct {
	Logger  *logger.Logger
	Repo    overdueLister
	Sink    notifier.Sink
	Metrics *metrics.CronJobMetrics
	Now     func() time.Time
}

// NewOverdueBorrowingsJob builds the job that posts the daily overdue digest.
func NewOverdueBorrowingsJob(params OverdueBorrowingsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("borrowings repository required")
	}
	if params.Sink == nil {
		return nil, fmt.Errorf("notification sink required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &overdueBorrowingsJob{
		logg:    params.Logger,
		repo:    params.Repo,
		sink:    params.Sink,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

type overdueBorrowingsJob struct {
	logg    *logger.Logger
	repo    overdueLister
	sink    notifier.Sink
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func (j *overdueBorrowingsJob) Name() string { return "overdue-borrowings-report" }

func (j *overdueBorrowingsJob) Run(ctx context.Context) error {
	today := j.now().UTC().Truncate(24 * time.Hour)
	overdue, err := j.repo.ListOverdue(ctx, today)
	if err != nil {
		return fmt.Errorf("list overdue borrowings: %w", err)
	}

	// the report is best-effort, a failed delivery must not fail the cycle
	message := buildOverdueReport(today, overdue)
	if err := j.sink.Send(ctx, message); err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "overdue report delivery failed")
	}

	if j.metrics != nil {
		j.metrics.AddItemsProcessed(j.Name(), len(overdue))
	}
	j.logg.Info(j.logg.WithField(ctx, "overdue_count", len(overdue)), "overdue report sent")
	return nil
}

// buildOverdueReport formats the daily digest. Readers filter the channel by
// the leading hashtag.
func buildOverdueReport(today time.Time, overdue []models.Borrowing) string {
	if len(overdue) == 0 {
		return overdueEmptyMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#borrowings_overdue\n%s \n\n\n", today.Format("2006-01-02"))
	for i, borrowing := range overdue {
		if i > 0 {
			b.WriteString("\n\n")
		}
		email := "unknown"
		if borrowing.User != nil {
			email = borrowing.User.Email
		}
		title := "unknown"
		if borrowing.Book != nil {
			title = borrowing.Book.Title
		}
		days := int(today.Sub(borrowing.ExpectedReturnDate).Hours() / 24)
		fmt.Fprintf(&b, "borrowing_id: %s\nuser_email: %s\nbook: %s\noverdue: %d days",
			borrowing.ID, email, title, days)
	}
	return b.String()
}
