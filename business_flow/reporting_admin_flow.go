package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/measurement-reporting/app/dto"
	"github.com/amirphl/measurement-reporting/app/scheduler"
	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/repository"
	"github.com/amirphl/measurement-reporting/utils"
	"github.com/xuri/excelize/v2"
)

const defaultPendingListLimit = 100

//go:generate mockgen -destination=mocks/mock_reporting_runner.go -package=mocks github.com/amirphl/measurement-reporting/business_flow ReportingRunner

// ReportingRunner is the part of the reporting scheduler operators drive
type ReportingRunner interface {
	Run(ctx context.Context, kind services.JobKind, start, end time.Time) ([]scheduler.RunSummary, error)
	RequestRun(ctx context.Context, kind services.JobKind, force bool) error
	Registry() scheduler.Registry
}

// ReportingAdminFlow provides operator use cases over stored reports and the delivery jobs.
// Runs default to the window [end - max upload retry window, end] with end defaulting to now.
// Deliveries go through the same job handlers as the scheduler so pending checks and marks apply.
type ReportingAdminFlow interface {
	RunJob(ctx context.Context, req *dto.RunReportingJobRequest, metadata *ClientMetadata) (*dto.RunReportingJobResponse, error)
	RequestRun(ctx context.Context, req *dto.RequestReportingRunRequest, metadata *ClientMetadata) error
	DeliverReport(ctx context.Context, req *dto.DeliverReportRequest, metadata *ClientMetadata) (*dto.DeliverReportResponse, error)
	ListPendingReports(ctx context.Context, req *dto.ListPendingReportsRequest) (*dto.ListPendingReportsResponse, error)
	ExportDeliveryState(ctx context.Context, req *dto.ExportDeliveryStateRequest) (string, []byte, error)
}

type ReportingAdminFlowImpl struct {
	runner      ReportingRunner
	eventRepo   repository.EventReportRepository
	aggRepo     repository.AggregateReportRepository
	debugRepo   repository.DebugReportRepository
	retryWindow time.Duration
	logger      *log.Logger
	now         func() time.Time
}

func NewReportingAdminFlow(
	runner ReportingRunner,
	eventRepo repository.EventReportRepository,
	aggRepo repository.AggregateReportRepository,
	debugRepo repository.DebugReportRepository,
	retryWindow time.Duration,
	logger *log.Logger,
) ReportingAdminFlow {
	if retryWindow <= 0 {
		retryWindow = utils.MaxUploadRetryWindow
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReportingAdminFlowImpl{
		runner:      runner,
		eventRepo:   eventRepo,
		aggRepo:     aggRepo,
		debugRepo:   debugRepo,
		retryWindow: retryWindow,
		logger:      logger,
		now:         utils.UTCNow,
	}
}

func (f *ReportingAdminFlowImpl) RunJob(ctx context.Context, req *dto.RunReportingJobRequest, metadata *ClientMetadata) (*dto.RunReportingJobResponse, error) {
	kind, err := parseJobKind(req.Kind)
	if err != nil {
		return nil, err
	}
	start, end, err := f.window(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	f.logger.Printf("reporting: admin run kind=%s start=%s end=%s %s", kind, start.Format(time.RFC3339), end.Format(time.RFC3339), metadata)
	summaries, err := f.runner.Run(ctx, kind, start, end)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrRunInProgress):
			return nil, NewBusinessError("RUN_IN_PROGRESS", "A run of this kind is already in progress", ErrRunInProgress)
		case errors.Is(err, scheduler.ErrUnknownJobKind):
			return nil, NewBusinessError("UNKNOWN_JOB_KIND", "Unknown reporting job kind", ErrUnknownJobKind)
		}
		return nil, NewBusinessError("REPORTING_RUN_FAILED", "Failed to run reporting job", err)
	}

	return &dto.RunReportingJobResponse{
		Kind:  string(kind),
		Start: start,
		End:   end,
		Lanes: ToLaneRunSummaries(summaries),
	}, nil
}

func (f *ReportingAdminFlowImpl) RequestRun(ctx context.Context, req *dto.RequestReportingRunRequest, metadata *ClientMetadata) error {
	kind, err := parseJobKind(req.Kind)
	if err != nil {
		return err
	}
	f.logger.Printf("reporting: admin requested run kind=%s force=%t %s", kind, req.Force, metadata)
	if err := f.runner.RequestRun(ctx, kind, req.Force); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJobKind) {
			return NewBusinessError("UNKNOWN_JOB_KIND", "Unknown reporting job kind", ErrUnknownJobKind)
		}
		return NewBusinessError("REQUEST_RUN_FAILED", "Failed to request reporting run", err)
	}
	return nil
}

func (f *ReportingAdminFlowImpl) DeliverReport(ctx context.Context, req *dto.DeliverReportRequest, metadata *ClientMetadata) (*dto.DeliverReportResponse, error) {
	job, ok := f.runner.Registry().Job(req.Lane)
	if !ok {
		return nil, NewBusinessError("UNKNOWN_REPORT_LANE", "Unknown report lane", ErrUnknownReportLane)
	}

	exists, err := f.reportExists(ctx, req.Lane, req.ID)
	if err != nil {
		return nil, NewBusinessError("REPORT_LOOKUP_FAILED", "Failed to look up report", err)
	}
	if !exists {
		return nil, NewBusinessError("REPORT_NOT_FOUND", "Report not found", ErrReportNotFound)
	}

	status := job.DeliverReport(ctx, req.ID)
	f.logger.Printf("reporting: admin delivery lane=%s id=%s status=%s %s", req.Lane, req.ID, status, metadata)
	if status == scheduler.ReportingStatusInvalidArgument {
		return nil, NewBusinessError("REPORT_NOT_PENDING", "Report is not pending on this lane", ErrReportNotPending)
	}

	return &dto.DeliverReportResponse{
		Lane:      req.Lane,
		ID:        req.ID,
		Status:    status.String(),
		Delivered: status == scheduler.ReportingStatusSuccess,
	}, nil
}

func (f *ReportingAdminFlowImpl) ListPendingReports(ctx context.Context, req *dto.ListPendingReportsRequest) (*dto.ListPendingReportsResponse, error) {
	if req.Start != nil && req.End != nil && req.Start.After(*req.End) {
		return nil, NewBusinessError("INVALID_WINDOW", "Start cannot be after end", ErrInvalidWindow)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPendingListLimit
	}
	filter := repository.ReportWindowFilter{Start: req.Start, End: req.End, Limit: limit}

	var items []dto.PendingReportItem
	switch req.Lane {
	case scheduler.LaneEvent:
		rows, err := f.eventRepo.ListPending(ctx, filter)
		if err != nil {
			return nil, NewBusinessError("LIST_PENDING_FAILED", "Failed to list pending event reports", err)
		}
		for _, r := range rows {
			items = append(items, ToEventPendingItem(r))
		}
	case scheduler.LaneDebugEvent:
		// debug lanes deliver every pending debug report, so the window does not apply
		rows, err := f.eventRepo.ListPendingDebug(ctx, limit)
		if err != nil {
			return nil, NewBusinessError("LIST_PENDING_FAILED", "Failed to list pending debug event reports", err)
		}
		for _, r := range rows {
			items = append(items, ToEventPendingItem(r))
		}
	case scheduler.LaneAggregate:
		rows, err := f.aggRepo.ListPending(ctx, filter)
		if err != nil {
			return nil, NewBusinessError("LIST_PENDING_FAILED", "Failed to list pending aggregate reports", err)
		}
		for _, r := range rows {
			items = append(items, ToAggregatePendingItem(r))
		}
	case scheduler.LaneDebugAggregate:
		rows, err := f.aggRepo.ListPendingDebug(ctx, limit)
		if err != nil {
			return nil, NewBusinessError("LIST_PENDING_FAILED", "Failed to list pending debug aggregate reports", err)
		}
		for _, r := range rows {
			items = append(items, ToAggregatePendingItem(r))
		}
	case scheduler.LaneVerboseDebug:
		rows, err := f.debugRepo.List(ctx, filter)
		if err != nil {
			return nil, NewBusinessError("LIST_PENDING_FAILED", "Failed to list verbose debug reports", err)
		}
		for _, r := range rows {
			items = append(items, ToDebugPendingItem(r))
		}
	default:
		return nil, NewBusinessError("UNKNOWN_REPORT_LANE", "Unknown report lane", ErrUnknownReportLane)
	}

	if items == nil {
		items = []dto.PendingReportItem{}
	}
	return &dto.ListPendingReportsResponse{Lane: req.Lane, Count: len(items), Reports: items}, nil
}

// ExportDeliveryState writes one sheet per report family covering the window
func (f *ReportingAdminFlowImpl) ExportDeliveryState(ctx context.Context, req *dto.ExportDeliveryStateRequest) (string, []byte, error) {
	start, end, err := f.window(req.Start, req.End)
	if err != nil {
		return "", nil, err
	}
	filter := repository.ReportWindowFilter{Start: &start, End: &end}

	events, err := f.eventRepo.ListInWindow(ctx, filter)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to load event reports", err)
	}
	aggregates, err := f.aggRepo.ListInWindow(ctx, filter)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to load aggregate reports", err)
	}
	debugs, err := f.debugRepo.List(ctx, filter)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to load debug reports", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	eventSheet := sanitizeSheetName("event_reports")
	xl.SetSheetName(xl.GetSheetName(0), eventSheet)
	eventHeader := []string{"id", "enrollment_id", "registration_origin", "attribution_destinations", "source_type", "report_time", "status", "debug_report_status"}
	_ = xl.SetSheetRow(eventSheet, "A1", &eventHeader)
	for ri, r := range events {
		record := []string{
			r.ID,
			r.EnrollmentID,
			r.RegistrationOrigin,
			strings.Join(r.AttributionDestinations, " "),
			string(r.SourceType),
			r.ReportTime.UTC().Format(time.RFC3339),
			string(r.Status),
			string(r.DebugReportStatus),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(eventSheet, cellRef, &record)
	}

	aggSheet := sanitizeSheetName("aggregate_reports")
	_, _ = xl.NewSheet(aggSheet)
	aggHeader := []string{"id", "enrollment_id", "registration_origin", "attribution_destination", "scheduled_report_time", "api_version", "status", "debug_report_status"}
	_ = xl.SetSheetRow(aggSheet, "A1", &aggHeader)
	for ri, r := range aggregates {
		record := []string{
			r.ID,
			r.EnrollmentID,
			r.RegistrationOrigin,
			r.AttributionDestination,
			r.ScheduledReportTime.UTC().Format(time.RFC3339),
			r.APIVersion,
			string(r.Status),
			string(r.DebugReportStatus),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(aggSheet, cellRef, &record)
	}

	debugSheet := sanitizeSheetName("debug_reports")
	_, _ = xl.NewSheet(debugSheet)
	debugHeader := []string{"id", "type", "enrollment_id", "registration_origin", "insertion_time"}
	_ = xl.SetSheetRow(debugSheet, "A1", &debugHeader)
	for ri, r := range debugs {
		record := []string{
			r.ID,
			r.Type,
			r.EnrollmentID,
			r.RegistrationOrigin,
			r.InsertionTime.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(debugSheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("delivery_state_%s_%s.xlsx", start.Format("20060102T150405Z"), end.Format("20060102T150405Z"))
	return filename, buf.Bytes(), nil
}

func (f *ReportingAdminFlowImpl) window(startPtr, endPtr *time.Time) (time.Time, time.Time, error) {
	end := f.now().UTC()
	if endPtr != nil {
		end = endPtr.UTC()
	}
	start := end.Add(-f.retryWindow)
	if startPtr != nil {
		start = startPtr.UTC()
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, NewBusinessError("INVALID_WINDOW", "Start cannot be after end", ErrInvalidWindow)
	}
	return start, end, nil
}

func (f *ReportingAdminFlowImpl) reportExists(ctx context.Context, lane, id string) (bool, error) {
	switch lane {
	case scheduler.LaneEvent, scheduler.LaneDebugEvent:
		r, err := f.eventRepo.ByID(ctx, id)
		return r != nil, err
	case scheduler.LaneAggregate, scheduler.LaneDebugAggregate:
		r, err := f.aggRepo.ByID(ctx, id)
		return r != nil, err
	case scheduler.LaneVerboseDebug:
		r, err := f.debugRepo.ByID(ctx, id)
		return r != nil, err
	}
	return false, ErrUnknownReportLane
}

func parseJobKind(raw string) (services.JobKind, error) {
	if kind, ok := services.ParseJobKind(raw); ok {
		return kind, nil
	}
	return "", NewBusinessError("UNKNOWN_JOB_KIND", "Unknown reporting job kind", ErrUnknownJobKind)
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \\ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := replacer.Replace(name)
	return truncateSheetName(strings.TrimSpace(safe))
}

func truncateSheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	if name == "" {
		return "Sheet"
	}
	return name
}
