package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubExpirer struct {
	expired int
	limit   int
	err     error
}

func (s *stubExpirer) ExpireDrafts(ctx context.Context, limit int) (int, error) {
	s.limit = limit
	if s.err != nil {
		return 0, s.err
	}
	return s.expired, nil
}

type stubReconciler struct {
	reconciled int
	olderThan  time.Duration
	err        error
}

func (s *stubReconciler) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	s.olderThan = olderThan
	if s.err != nil {
		return 0, s.err
	}
	return s.reconciled, nil
}

func TestDraftExpiryJobRuns(t *testing.T) {
	expirer := &stubExpirer{expired: 3}
	job, err := NewDraftExpiryJob(expirer, testLogger())
	if err != nil {
		t.Fatalf("NewDraftExpiryJob: %v", err)
	}
	if job.Name() != "draft-expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.limit != draftExpiryBatchSize {
		t.Fatalf("expected batch limit %d, got %d", draftExpiryBatchSize, expirer.limit)
	}
}

func TestDraftExpiryJobSurfacesErrors(t *testing.T) {
	job, _ := NewDraftExpiryJob(&stubExpirer{err: errors.New("db down")}, testLogger())
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error to surface")
	}
}

func TestPaymentReconcileJobRuns(t *testing.T) {
	reconciler := &stubReconciler{reconciled: 2}
	job, err := NewPaymentReconcileJob(reconciler, testLogger())
	if err != nil {
		t.Fatalf("NewPaymentReconcileJob: %v", err)
	}
	if job.Name() != "payment-reconcile" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reconciler.olderThan != paymentStaleAfter {
		t.Fatalf("expected stale window %v, got %v", paymentStaleAfter, reconciler.olderThan)
	}
}
