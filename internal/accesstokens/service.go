package accesstokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/pkg/db/models"
	"github.com/harborline/excursions-backend/pkg/enums"
	pkgerrors "github.com/harborline/excursions-backend/pkg/errors"
)

// Service validates and consumes event access tokens. Events in public
// visibility never require one; early_access and private events refuse
// admission without a usable token scoped to the event (or unscoped).
type Service interface {
	// Authorize checks whether the event may be booked with the supplied
	// token code. It returns the token to consume, or nil when the event
	// needs none.
	Authorize(ctx context.Context, event *models.Event, tokenCode string) (*models.AccessToken, error)
	// Consume counts one use inside the caller's transaction.
	Consume(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds an access token service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("access token repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Authorize(ctx context.Context, event *models.Event, tokenCode string) (*models.AccessToken, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event required for token authorization")
	}
	if event.VisibilityMode == enums.VisibilityModePublic {
		return nil, nil
	}
	if tokenCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "event requires an access token")
	}

	token, err := s.repo.FindByCode(ctx, tokenCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access token not recognized")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading access token")
	}

	if token.EventID != nil && *token.EventID != event.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access token not valid for this event")
	}
	if !token.UsableAt(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access token expired or exhausted")
	}
	return token, nil
}

func (s *service) Consume(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID) error {
	consumed, err := s.repo.WithTx(tx).ConsumeUse(ctx, tokenID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming access token")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeForbidden, "access token exhausted")
	}
	return nil
}
