package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/models"
)

// Lane names double as the report kinds accepted by the operator surface
const (
	LaneEvent          = "event"
	LaneDebugEvent     = "debug-event"
	LaneAggregate      = "aggregate"
	LaneDebugAggregate = "debug-aggregate"
	LaneVerboseDebug   = "verbose-debug"
)

// LaneNames lists every delivery lane
var LaneNames = []string{LaneEvent, LaneDebugEvent, LaneAggregate, LaneDebugAggregate, LaneVerboseDebug}

// EventReportStore is the part of the event report repository the event lanes use
type EventReportStore interface {
	ByID(ctx context.Context, id string) (*models.EventReport, error)
	PendingIDsInWindow(ctx context.Context, start, end time.Time) ([]string, error)
	PendingDebugIDs(ctx context.Context) ([]string, error)
	MarkStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error)
	MarkDebugReportDelivered(ctx context.Context, id string) (bool, error)
}

// AggregateReportStore is the part of the aggregate report repository the aggregate lanes use
type AggregateReportStore interface {
	ByID(ctx context.Context, id string) (*models.AggregateReport, error)
	PendingIDsInWindow(ctx context.Context, start, end time.Time) ([]string, error)
	PendingDebugIDs(ctx context.Context) ([]string, error)
	MarkStatus(ctx context.Context, id string, status models.ReportStatus) (bool, error)
	MarkDebugReportDelivered(ctx context.Context, id string) (bool, error)
}

// DebugReportStore is the part of the verbose debug report repository the verbose lane uses
type DebugReportStore interface {
	ByID(ctx context.Context, id string) (*models.DebugReport, error)
	PendingIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// deliverableReport is a report loaded inside the read transaction. Its payload is built afterwards.
type deliverableReport struct {
	reportingOrigin string
	build           func(key *models.AggregateEncryptionKey) (any, error)
}

// ReportLane selects one status lane of one report family: which rows are pending, where they
// are posted, and how a delivery is recorded
type ReportLane interface {
	Name() string
	Path() string
	NeedsEncryptionKey() bool
	// PendingIDs returns candidate ids; lanes that are not windowed ignore start and end
	PendingIDs(ctx context.Context, start, end time.Time) ([]string, error)
	// Load returns nil when the report is missing or its lane is not pending
	Load(ctx context.Context, id string) (*deliverableReport, error)
	// MarkDelivered reports false when another worker already moved the report
	MarkDelivered(ctx context.Context, id string) (bool, error)
}

type eventLane struct {
	reports EventReportStore
	debug   bool
}

func (l *eventLane) Name() string {
	if l.debug {
		return LaneDebugEvent
	}
	return LaneEvent
}

func (l *eventLane) Path() string {
	if l.debug {
		return services.DebugEventReportPath
	}
	return services.EventReportPath
}

func (l *eventLane) NeedsEncryptionKey() bool { return false }

func (l *eventLane) PendingIDs(ctx context.Context, start, end time.Time) ([]string, error) {
	if l.debug {
		return l.reports.PendingDebugIDs(ctx)
	}
	return l.reports.PendingIDsInWindow(ctx, start, end)
}

func (l *eventLane) Load(ctx context.Context, id string) (*deliverableReport, error) {
	report, err := l.reports.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}
	if l.debug && report.DebugReportStatus != models.DebugReportStatusPending {
		return nil, nil
	}
	if !l.debug && report.Status != models.ReportStatusPending {
		return nil, nil
	}
	return &deliverableReport{
		reportingOrigin: report.RegistrationOrigin,
		build: func(*models.AggregateEncryptionKey) (any, error) {
			return NewEventReportPayload(report), nil
		},
	}, nil
}

func (l *eventLane) MarkDelivered(ctx context.Context, id string) (bool, error) {
	if l.debug {
		return l.reports.MarkDebugReportDelivered(ctx, id)
	}
	return l.reports.MarkStatus(ctx, id, models.ReportStatusDelivered)
}

type aggregateLane struct {
	reports   AggregateReportStore
	encrypter services.AggregateEncrypter
	debug     bool
}

func (l *aggregateLane) Name() string {
	if l.debug {
		return LaneDebugAggregate
	}
	return LaneAggregate
}

func (l *aggregateLane) Path() string {
	if l.debug {
		return services.DebugAggregateReportPath
	}
	return services.AggregateReportPath
}

func (l *aggregateLane) NeedsEncryptionKey() bool { return true }

func (l *aggregateLane) PendingIDs(ctx context.Context, start, end time.Time) ([]string, error) {
	if l.debug {
		return l.reports.PendingDebugIDs(ctx)
	}
	return l.reports.PendingIDsInWindow(ctx, start, end)
}

func (l *aggregateLane) Load(ctx context.Context, id string) (*deliverableReport, error) {
	report, err := l.reports.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}
	if l.debug && report.DebugReportStatus != models.DebugReportStatusPending {
		return nil, nil
	}
	if !l.debug && report.Status != models.ReportStatusPending {
		return nil, nil
	}
	return &deliverableReport{
		reportingOrigin: report.RegistrationOrigin,
		build: func(key *models.AggregateEncryptionKey) (any, error) {
			if key == nil {
				return nil, fmt.Errorf("aggregate report %s needs an encryption key", report.ID)
			}
			return NewAggregateReportPayload(report, key, l.encrypter)
		},
	}, nil
}

func (l *aggregateLane) MarkDelivered(ctx context.Context, id string) (bool, error) {
	if l.debug {
		return l.reports.MarkDebugReportDelivered(ctx, id)
	}
	return l.reports.MarkStatus(ctx, id, models.ReportStatusDelivered)
}

// verboseDebugLane delivers verbose debug reports; a delivered report is deleted
type verboseDebugLane struct {
	reports DebugReportStore
}

func (l *verboseDebugLane) Name() string             { return LaneVerboseDebug }
func (l *verboseDebugLane) Path() string             { return services.VerboseDebugReportPath }
func (l *verboseDebugLane) NeedsEncryptionKey() bool { return false }

func (l *verboseDebugLane) PendingIDs(ctx context.Context, _, _ time.Time) ([]string, error) {
	return l.reports.PendingIDs(ctx)
}

func (l *verboseDebugLane) Load(ctx context.Context, id string) (*deliverableReport, error) {
	report, err := l.reports.ByID(ctx, id)
	if err != nil || report == nil {
		return nil, err
	}
	return &deliverableReport{
		reportingOrigin: report.RegistrationOrigin,
		build: func(*models.AggregateEncryptionKey) (any, error) {
			return NewDebugReportPayload(report)
		},
	}, nil
}

func (l *verboseDebugLane) MarkDelivered(ctx context.Context, id string) (bool, error) {
	return l.reports.Delete(ctx, id)
}
