package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/utils"
	"gorm.io/gorm"
)

// EventReportRepositoryImpl implements EventReportRepository
type EventReportRepositoryImpl struct {
	*BaseRepository[models.EventReport]
}

func NewEventReportRepository(db *gorm.DB) EventReportRepository {
	return &EventReportRepositoryImpl{BaseRepository: NewBaseRepository[models.EventReport](db)}
}

// PendingIDsInWindow returns ids of pending reports whose report time lies in [start, end], in random order
func (r *EventReportRepositoryImpl) PendingIDsInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	db := r.getDB(ctx)
	var ids []string
	err := db.Model(&models.EventReport{}).
		Where("report_time >= ? AND report_time <= ? AND status = ?", start, end, models.ReportStatusPending).
		Order("RANDOM()").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending event report ids: %w", err)
	}
	return ids, nil
}

// PendingDebugIDs returns ids of reports whose debug lane is pending
func (r *EventReportRepositoryImpl) PendingDebugIDs(ctx context.Context) ([]string, error) {
	db := r.getDB(ctx)
	var ids []string
	err := db.Model(&models.EventReport{}).
		Where("debug_report_status = ?", models.DebugReportStatusPending).
		Order("RANDOM()").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending debug event report ids: %w", err)
	}
	return ids, nil
}

// ListPendingDebug returns reports whose debug lane is pending regardless of report_time
func (r *EventReportRepositoryImpl) ListPendingDebug(ctx context.Context, limit int) ([]*models.EventReport, error) {
	db := r.getDB(ctx).Where("debug_report_status = ?", models.DebugReportStatusPending)
	if limit > 0 {
		db = db.Limit(limit)
	}
	var rows []*models.EventReport
	if err := db.Order("report_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending debug event reports: %w", err)
	}
	return rows, nil
}

// MarkStatus moves a pending report to status. It reports false when the report was no longer pending.
func (r *EventReportRepositoryImpl) MarkStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error) {
	ok, err := r.updateWhere(ctx,
		map[string]any{"status": status, "updated_at": utils.UTCNow()},
		"id = ? AND status = ?", id, models.ReportStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark event report %s as %s: %w", id, status, err)
	}
	return ok, nil
}

// MarkDebugReportDelivered moves a pending debug lane to delivered
func (r *EventReportRepositoryImpl) MarkDebugReportDelivered(ctx context.Context, id string) (bool, error) {
	ok, err := r.updateWhere(ctx,
		map[string]any{"debug_report_status": models.DebugReportStatusDelivered, "updated_at": utils.UTCNow()},
		"id = ? AND debug_report_status = ?", id, models.DebugReportStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark debug event report %s delivered: %w", id, err)
	}
	return ok, nil
}

// ListPending returns pending reports ordered by report time
func (r *EventReportRepositoryImpl) ListPending(ctx context.Context, filter ReportWindowFilter) ([]*models.EventReport, error) {
	db := applyWindowFilter(r.getDB(ctx), "report_time", filter).
		Where("status = ?", models.ReportStatusPending)
	var rows []*models.EventReport
	if err := db.Order("report_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending event reports: %w", err)
	}
	return rows, nil
}

// ListInWindow returns reports of any status ordered by report time
func (r *EventReportRepositoryImpl) ListInWindow(ctx context.Context, filter ReportWindowFilter) ([]*models.EventReport, error) {
	db := applyWindowFilter(r.getDB(ctx), "report_time", filter)
	var rows []*models.EventReport
	if err := db.Order("report_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list event reports: %w", err)
	}
	return rows, nil
}

func applyWindowFilter(db *gorm.DB, column string, filter ReportWindowFilter) *gorm.DB {
	if filter.Start != nil {
		db = db.Where(column+" >= ?", *filter.Start)
	}
	if filter.End != nil {
		db = db.Where(column+" <= ?", *filter.End)
	}
	if filter.Limit > 0 {
		db = db.Limit(filter.Limit)
	}
	return db
}
