package cron

import (
	"context"
	"fmt"

	"github.com/harborline/excursions-backend/pkg/logger"
)

const draftExpiryBatchSize = 100

// DraftExpirer cancels lapsed draft bookings and frees their holds.
type DraftExpirer interface {
	ExpireDrafts(ctx context.Context, limit int) (int, error)
}

type draftExpiryJob struct {
	bookings DraftExpirer
	logg     *logger.Logger
	limit    int
}

// NewDraftExpiryJob builds the job that releases seats and merchandise held
// by drafts whose payment window lapsed.
func NewDraftExpiryJob(bookings DraftExpirer, logg *logger.Logger) (Job, error) {
	if bookings == nil {
		return nil, fmt.Errorf("bookings service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &draftExpiryJob{
		bookings: bookings,
		logg:     logg,
		limit:    draftExpiryBatchSize,
	}, nil
}

func (j *draftExpiryJob) Name() string { return "draft-expiry" }

func (j *draftExpiryJob) Run(ctx context.Context) error {
	expired, err := j.bookings.ExpireDrafts(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("expiring draft bookings: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", expired), "draft expiry sweep complete")
	return nil
}
