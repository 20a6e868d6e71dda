package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/measurement-reporting/models"
	"gorm.io/gorm"
)

// DebugReportRepositoryImpl implements DebugReportRepository
type DebugReportRepositoryImpl struct {
	*BaseRepository[models.DebugReport]
}

func NewDebugReportRepository(db *gorm.DB) DebugReportRepository {
	return &DebugReportRepositoryImpl{BaseRepository: NewBaseRepository[models.DebugReport](db)}
}

// PendingIDs returns every stored debug report id; debug reports only exist until delivered
func (r *DebugReportRepositoryImpl) PendingIDs(ctx context.Context) ([]string, error) {
	db := r.getDB(ctx)
	var ids []string
	if err := db.Model(&models.DebugReport{}).Order("insertion_time ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list debug report ids: %w", err)
	}
	return ids, nil
}

// Delete removes a delivered debug report and reports whether it still existed
func (r *DebugReportRepositoryImpl) Delete(ctx context.Context, id string) (bool, error) {
	db := r.getDB(ctx)
	result := db.Where("id = ?", id).Delete(&models.DebugReport{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete debug report %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *DebugReportRepositoryImpl) List(ctx context.Context, filter ReportWindowFilter) ([]*models.DebugReport, error) {
	db := applyWindowFilter(r.getDB(ctx), "insertion_time", filter)
	var rows []*models.DebugReport
	if err := db.Order("insertion_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list debug reports: %w", err)
	}
	return rows, nil
}
