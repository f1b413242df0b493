package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront/backend/internal/domain/refund"
)

// GormSessionRepository implements refund.SessionRepository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Save creates or updates a refund session snapshot
func (r *GormSessionRepository) Save(ctx context.Context, session *refund.Session) error {
	model, err := RefundSessionModelFromDomain(session)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID loads a refund session by its id
func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*refund.Session, error) {
	var model RefundSessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, refund.ErrSessionNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Delete removes a refund session. Deleting a missing session is a no-op.
func (r *GormSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&RefundSessionModel{}, "id = ?", id).Error
}

// Ensure GormSessionRepository implements refund.SessionRepository
var _ refund.SessionRepository = (*GormSessionRepository)(nil)
