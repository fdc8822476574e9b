package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/openshelf-backend/internal/checkout"
	"github.com/angelmondragon/openshelf-backend/pkg/db/models"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type pendingSessionStore interface {
	ListPendingWithSession(ctx context.Context) ([]models.Payment, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (int64, error)
}

type sessionReader interface {
	RetrieveSession(ctx context.Context, sessionID string) (*checkout.Session, error)
}

// ExpiredSessionsJobParams configure the expired checkout session sweep.
type ExpiredSessionsJobParams struct {
	Logger  *logger.Logger
	Repo    pendingSessionStore
	Gateway sessionReader
	Metrics *metrics.CronJobMetrics
}

// NewExpiredSessionsJob builds the job that expires stale pending payments.
func NewExpiredSessionsJob(params ExpiredSessionsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("checkout gateway required")
	}
	return &expiredSessionsJob{
		logg:    params.Logger,
		repo:    params.Repo,
		gateway: params.Gateway,
		metrics: params.Metrics,
	}, nil
}

type expiredSessionsJob struct {
	logg    *logger.Logger
	repo    pendingSessionStore
	gateway sessionReader
	metrics *metrics.CronJobMetrics
}

func (j *expiredSessionsJob) Name() string { return "expired-checkout-sessions" }

// Run walks every pending payment with a session and expires the ones whose
// provider session already lapsed. One bad payment never aborts the sweep.
func (j *expiredSessionsJob) Run(ctx context.Context) error {
	pending, err := j.repo.ListPendingWithSession(ctx)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}

	var errs error
	expired := 0
	for i := range pending {
		didExpire, err := j.sweepPayment(ctx, &pending[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if didExpire {
			expired++
		}
	}

	if j.metrics != nil {
		j.metrics.AddItemsProcessed(j.Name(), len(pending))
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(pending),
		"expired":    expired,
	})
	j.logg.Info(reportCtx, "expired session sweep complete")
	return errs
}

func (j *expiredSessionsJob) sweepPayment(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.SessionID == nil {
		return false, nil
	}
	session, err := j.gateway.RetrieveSession(ctx, *payment.SessionID)
	if err != nil {
		return false, fmt.Errorf("retrieve session for payment %s: %w", payment.ID, err)
	}
	if session.Status != "expired" {
		return false, nil
	}
	if _, err := j.repo.MarkExpired(ctx, payment.ID); err != nil {
		return false, fmt.Errorf("mark payment %s expired: %w", payment.ID, err)
	}
	return true, nil
}
