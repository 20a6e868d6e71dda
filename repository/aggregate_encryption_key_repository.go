package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/measurement-reporting/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AggregateEncryptionKeyRepositoryImpl implements AggregateEncryptionKeyRepository
type AggregateEncryptionKeyRepositoryImpl struct {
	*BaseRepository[models.AggregateEncryptionKey]
}

func NewAggregateEncryptionKeyRepository(db *gorm.DB) AggregateEncryptionKeyRepository {
	return &AggregateEncryptionKeyRepositoryImpl{BaseRepository: NewBaseRepository[models.AggregateEncryptionKey](db)}
}

// ListUnexpired returns keys whose expiry is after now, newest expiry first
func (r *AggregateEncryptionKeyRepositoryImpl) ListUnexpired(ctx context.Context, now time.Time) ([]*models.AggregateEncryptionKey, error) {
	db := r.getDB(ctx)
	var rows []*models.AggregateEncryptionKey
	if err := db.Where("expiry > ?", now).Order("expiry DESC, key_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list aggregate encryption keys: %w", err)
	}
	return rows, nil
}

// SaveBatch upserts keys by key id
func (r *AggregateEncryptionKeyRepositoryImpl) SaveBatch(ctx context.Context, keys []*models.AggregateEncryptionKey) error {
	if len(keys) == 0 {
		return nil
	}
	db := r.getDB(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"public_key", "expiry"}),
	}).Create(&keys).Error
	if err != nil {
		return fmt.Errorf("failed to save aggregate encryption keys: %w", err)
	}
	return nil
}

// DeleteExpired removes keys that expired at or before now
func (r *AggregateEncryptionKeyRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)
	result := db.Where("expiry <= ?", now).Delete(&models.AggregateEncryptionKey{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired aggregate encryption keys: %w", result.Error)
	}
	return result.RowsAffected, nil
}
