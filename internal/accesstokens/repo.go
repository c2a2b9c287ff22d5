package accesstokens

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborline/excursions-backend/internal/repo"
	"github.com/harborline/excursions-backend/pkg/db/models"
)

// Repository defines persistence operations for event access tokens.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.AccessToken, error)
	// ConsumeUse atomically counts one use, refusing once the cap is hit.
	ConsumeUse(ctx context.Context, tokenID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an access token repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: repo.Session(r.db, tx)}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.AccessToken, error) {
	var token models.AccessToken
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repository) ConsumeUse(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("id = ? AND active = ?", tokenID, true).
		Where("max_uses IS NULL OR used_count < max_uses").
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
