package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/utils"
	"gorm.io/gorm"
)

// AggregateReportRepositoryImpl implements AggregateReportRepository
type AggregateReportRepositoryImpl struct {
	*BaseRepository[models.AggregateReport]
}

func NewAggregateReportRepository(db *gorm.DB) AggregateReportRepository {
	return &AggregateReportRepositoryImpl{BaseRepository: NewBaseRepository[models.AggregateReport](db)}
}

// PendingIDsInWindow returns ids of pending reports scheduled in [start, end], in random order
func (r *AggregateReportRepositoryImpl) PendingIDsInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	db := r.getDB(ctx)
	var ids []string
	err := db.Model(&models.AggregateReport{}).
		Where("scheduled_report_time >= ? AND scheduled_report_time <= ? AND status = ?", start, end, models.ReportStatusPending).
		Order("RANDOM()").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending aggregate report ids: %w", err)
	}
	return ids, nil
}

// PendingDebugIDs returns ids of reports whose debug lane is pending
func (r *AggregateReportRepositoryImpl) PendingDebugIDs(ctx context.Context) ([]string, error) {
	db := r.getDB(ctx)
	var ids []string
	err := db.Model(&models.AggregateReport{}).
		Where("debug_report_status = ?", models.DebugReportStatusPending).
		Order("RANDOM()").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending debug aggregate report ids: %w", err)
	}
	return ids, nil
}

// ListPendingDebug returns reports whose debug lane is pending regardless of scheduled_report_time
func (r *AggregateReportRepositoryImpl) ListPendingDebug(ctx context.Context, limit int) ([]*models.AggregateReport, error) {
	db := r.getDB(ctx).Where("debug_report_status = ?", models.DebugReportStatusPending)
	if limit > 0 {
		db = db.Limit(limit)
	}
	var rows []*models.AggregateReport
	if err := db.Order("scheduled_report_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending debug aggregate reports: %w", err)
	}
	return rows, nil
}

// MarkStatus moves a pending report to status. It reports false when the report was no longer pending.
func (r *AggregateReportRepositoryImpl) MarkStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error) {
	ok, err := r.updateWhere(ctx,
		map[string]any{"status": status, "updated_at": utils.UTCNow()},
		"id = ? AND status = ?", id, models.ReportStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark aggregate report %s as %s: %w", id, status, err)
	}
	return ok, nil
}

// MarkDebugReportDelivered moves a pending debug lane to delivered
func (r *AggregateReportRepositoryImpl) MarkDebugReportDelivered(ctx context.Context, id string) (bool, error) {
	ok, err := r.updateWhere(ctx,
		map[string]any{"debug_report_status": models.DebugReportStatusDelivered, "updated_at": utils.UTCNow()},
		"id = ? AND debug_report_status = ?", id, models.DebugReportStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark debug aggregate report %s delivered: %w", id, err)
	}
	return ok, nil
}

func (r *AggregateReportRepositoryImpl) ListPending(ctx context.Context, filter ReportWindowFilter) ([]*models.AggregateReport, error) {
	db := applyWindowFilter(r.getDB(ctx), "scheduled_report_time", filter).
		Where("status = ?", models.ReportStatusPending)
	var rows []*models.AggregateReport
	if err := db.Order("scheduled_report_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending aggregate reports: %w", err)
	}
	return rows, nil
}

func (r *AggregateReportRepositoryImpl) ListInWindow(ctx context.Context, filter ReportWindowFilter) ([]*models.AggregateReport, error) {
	db := applyWindowFilter(r.getDB(ctx), "scheduled_report_time", filter)
	var rows []*models.AggregateReport
	if err := db.Order("scheduled_report_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list aggregate reports: %w", err)
	}
	return rows, nil
}
