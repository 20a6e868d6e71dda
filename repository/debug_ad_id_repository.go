package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/measurement-reporting/models"
	"gorm.io/gorm"
)

// DebugAdIDRepositoryImpl implements DebugAdIDRepository
type DebugAdIDRepositoryImpl struct {
	DB *gorm.DB
}

func NewDebugAdIDRepository(db *gorm.DB) DebugAdIDRepository {
	return &DebugAdIDRepositoryImpl{DB: db}
}

const countDistinctDebugAdIDsQuery = `
SELECT COUNT(DISTINCT ids.debug_ad_id) FROM (
	SELECT debug_ad_id FROM msmt_source
	WHERE enrollment_id = ? AND publisher_type = ? AND debug_ad_id IS NOT NULL
	UNION ALL
	SELECT debug_ad_id FROM msmt_trigger
	WHERE enrollment_id = ? AND destination_type = ? AND debug_ad_id IS NOT NULL
) AS ids`

// CountDistinctDebugAdIDsUsedByEnrollment counts distinct debug ad ids an enrollment has
// registered on web sources and web triggers
func (r *DebugAdIDRepositoryImpl) CountDistinctDebugAdIDsUsedByEnrollment(ctx context.Context, enrollmentID string) (int64, error) {
	db := r.DB.WithContext(ctx)
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		db = tx.WithContext(ctx)
	}

	var count int64
	err := db.Raw(countDistinctDebugAdIDsQuery,
		enrollmentID, models.EventSurfaceTypeWeb,
		enrollmentID, models.EventSurfaceTypeWeb,
	).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count debug ad ids for enrollment %s: %w", enrollmentID, err)
	}
	return count, nil
}
