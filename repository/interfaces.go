// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/measurement-reporting/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// TransactionRunner opens a transaction, places it in the context and commits when fn returns nil
type TransactionRunner interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

type Repository[T any] interface {
	ByID(ctx context.Context, id string) (*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// SourceRepository defines operations for attribution sources
type SourceRepository interface {
	Repository[models.Source]
}

// TriggerRepository defines operations for attribution triggers
type TriggerRepository interface {
	Repository[models.Trigger]
}

// DebugAdIDRepository answers debug ad id usage questions across web sources and triggers
type DebugAdIDRepository interface {
	CountDistinctDebugAdIDsUsedByEnrollment(ctx context.Context, enrollmentID string) (int64, error)
}

// ReportWindowFilter narrows report listings to a report-time window
type ReportWindowFilter struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

// EventReportRepository defines operations for event-level reports
type EventReportRepository interface {
	Repository[models.EventReport]
	PendingIDsInWindow(ctx context.Context, start, end time.Time) ([]string, error)
	PendingDebugIDs(ctx context.Context) ([]string, error)
	MarkStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error)
	MarkDebugReportDelivered(ctx context.Context, id string) (bool, error)
	ListPending(ctx context.Context, filter ReportWindowFilter) ([]*models.EventReport, error)
	ListInWindow(ctx context.Context, filter ReportWindowFilter) ([]*models.EventReport, error)
	ListPendingDebug(ctx context.Context, limit int) ([]*models.EventReport, error)
}

// AggregateReportRepository defines operations for aggregate reports
type AggregateReportRepository interface {
	Repository[models.AggregateReport]
	PendingIDsInWindow(ctx context.Context, start, end time.Time) ([]string, error)
	PendingDebugIDs(ctx context.Context) ([]string, error)
	MarkStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error)
	MarkDebugReportDelivered(ctx context.Context, id string) (bool, error)
	ListPending(ctx context.Context, filter ReportWindowFilter) ([]*models.AggregateReport, error)
	ListInWindow(ctx context.Context, filter ReportWindowFilter) ([]*models.AggregateReport, error)
	ListPendingDebug(ctx context.Context, limit int) ([]*models.AggregateReport, error)
}

// DebugReportRepository defines operations for verbose debug reports
type DebugReportRepository interface {
	Repository[models.DebugReport]
	PendingIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter ReportWindowFilter) ([]*models.DebugReport, error)
}

// AggregateEncryptionKeyRepository defines operations for coordinator public keys
type AggregateEncryptionKeyRepository interface {
	ListUnexpired(ctx context.Context, now time.Time) ([]*models.AggregateEncryptionKey, error)
	SaveBatch(ctx context.Context, keys []*models.AggregateEncryptionKey) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
