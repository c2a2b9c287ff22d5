package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/harborline/excursions-backend/pkg/logger"
)

const (
	paymentStaleAfter         = 15 * time.Minute
	paymentReconcileBatchSize = 50
)

// StaleReconciler re-reads pending payments from Square and applies the
// outcome.
type StaleReconciler interface {
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type paymentReconcileJob struct {
	payments   StaleReconciler
	logg       *logger.Logger
	staleAfter time.Duration
	limit      int
}

// NewPaymentReconcileJob builds the job that resolves payments stuck in
// pending, e.g. when a webhook was missed.
func NewPaymentReconcileJob(payments StaleReconciler, logg *logger.Logger) (Job, error) {
	if payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &paymentReconcileJob{
		payments:   payments,
		logg:       logg,
		staleAfter: paymentStaleAfter,
		limit:      paymentReconcileBatchSize,
	}, nil
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	reconciled, err := j.payments.ReconcileStale(ctx, j.staleAfter, j.limit)
	if err != nil {
		return fmt.Errorf("reconciling stale payments: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", reconciled), "stale payment sweep complete")
	return nil
}
