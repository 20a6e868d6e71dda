package businessflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
	"go.uber.org/mock/gomock"

	"github.com/amirphl/measurement-reporting/app/dto"
	"github.com/amirphl/measurement-reporting/app/scheduler"
	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/business_flow/mocks"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/repository"
)

var flowNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type stubEventRepo struct {
	repository.EventReportRepository
	reports []*models.EventReport
	filters []repository.ReportWindowFilter
	err     error
}

func (r *stubEventRepo) ByID(_ context.Context, id string) (*models.EventReport, error) {
	for _, report := range r.reports {
		if report.ID == id {
			return report, nil
		}
	}
	return nil, r.err
}

func (r *stubEventRepo) ListPending(_ context.Context, filter repository.ReportWindowFilter) ([]*models.EventReport, error) {
	r.filters = append(r.filters, filter)
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.EventReport
	for _, report := range r.reports {
		if report.Status == models.ReportStatusPending {
			out = append(out, report)
		}
	}
	return out, nil
}

func (r *stubEventRepo) ListPendingDebug(_ context.Context, limit int) ([]*models.EventReport, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*models.EventReport
	for _, report := range r.reports {
		if report.DebugReportStatus == models.DebugReportStatusPending && (limit <= 0 || len(out) < limit) {
			out = append(out, report)
		}
	}
	return out, nil
}

func (r *stubEventRepo) ListInWindow(_ context.Context, filter repository.ReportWindowFilter) ([]*models.EventReport, error) {
	r.filters = append(r.filters, filter)
	return r.reports, r.err
}

type stubAggregateRepo struct {
	repository.AggregateReportRepository
	reports []*models.AggregateReport
}

func (r *stubAggregateRepo) ByID(_ context.Context, id string) (*models.AggregateReport, error) {
	for _, report := range r.reports {
		if report.ID == id {
			return report, nil
		}
	}
	return nil, nil
}

func (r *stubAggregateRepo) ListPending(context.Context, repository.ReportWindowFilter) ([]*models.AggregateReport, error) {
	return r.reports, nil
}

func (r *stubAggregateRepo) ListPendingDebug(_ context.Context, limit int) ([]*models.AggregateReport, error) {
	var out []*models.AggregateReport
	for _, report := range r.reports {
		if report.DebugReportStatus == models.DebugReportStatusPending && (limit <= 0 || len(out) < limit) {
			out = append(out, report)
		}
	}
	return out, nil
}

func (r *stubAggregateRepo) ListInWindow(context.Context, repository.ReportWindowFilter) ([]*models.AggregateReport, error) {
	return r.reports, nil
}

type stubDebugRepo struct {
	repository.DebugReportRepository
	reports []*models.DebugReport
}

func (r *stubDebugRepo) ByID(_ context.Context, id string) (*models.DebugReport, error) {
	for _, report := range r.reports {
		if report.ID == id {
			return report, nil
		}
	}
	return nil, nil
}

func (r *stubDebugRepo) List(context.Context, repository.ReportWindowFilter) ([]*models.DebugReport, error) {
	return r.reports, nil
}

// stubJob answers deliveries with a fixed status
type stubJob struct {
	lane      string
	status    scheduler.ReportingStatusCode
	delivered []string
}

func (j *stubJob) Lane() string { return j.lane }

func (j *stubJob) Run(context.Context, time.Time, time.Time) scheduler.RunSummary {
	return scheduler.RunSummary{Lane: j.lane}
}

func (j *stubJob) DeliverReport(_ context.Context, id string) scheduler.ReportingStatusCode {
	j.delivered = append(j.delivered, id)
	return j.status
}

type ReportingAdminFlowTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	runner   *mocks.MockReportingRunner
	events   *stubEventRepo
	aggs     *stubAggregateRepo
	debugs   *stubDebugRepo
	eventJob *stubJob
	flow     *ReportingAdminFlowImpl
	ctx      context.Context
	metadata *ClientMetadata
}

func TestReportingAdminFlowSuite(t *testing.T) {
	suite.Run(t, new(ReportingAdminFlowTestSuite))
}

func (s *ReportingAdminFlowTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.runner = mocks.NewMockReportingRunner(s.ctrl)
	s.ctx = context.Background()
	s.metadata = NewClientMetadata("127.0.0.1", "test")
	s.events = &stubEventRepo{reports: []*models.EventReport{
		{
			ID:                      "event-1",
			EnrollmentID:            "enrollment-1",
			RegistrationOrigin:      "https://adtech.example.com",
			AttributionDestinations: pq.StringArray{"https://shop.example.com"},
			ReportTime:              flowNow.Add(-time.Hour),
			SourceType:              models.SourceTypeEvent,
			Status:                  models.ReportStatusPending,
			DebugReportStatus:       models.DebugReportStatusNone,
		},
		{
			ID:                      "event-2",
			EnrollmentID:            "enrollment-1",
			RegistrationOrigin:      "https://adtech.example.com",
			AttributionDestinations: pq.StringArray{"https://shop.example.com"},
			ReportTime:              flowNow.Add(-2 * time.Hour),
			SourceType:              models.SourceTypeNavigation,
			Status:                  models.ReportStatusDelivered,
			DebugReportStatus:       models.DebugReportStatusPending,
		},
	}}
	s.aggs = &stubAggregateRepo{reports: []*models.AggregateReport{{
		ID:                  "aggregate-1",
		EnrollmentID:        "enrollment-2",
		RegistrationOrigin:  "https://adtech.example.com",
		ScheduledReportTime: flowNow.Add(-time.Hour),
		APIVersion:          "0.1",
		Status:              models.ReportStatusPending,
		DebugReportStatus:   models.DebugReportStatusNone,
	}}}
	s.debugs = &stubDebugRepo{reports: []*models.DebugReport{{
		ID:                 "debug-1",
		Type:               models.DebugReportTypeSourceNoised,
		EnrollmentID:       "enrollment-3",
		RegistrationOrigin: "https://adtech.example.com",
		InsertionTime:      flowNow.Add(-time.Minute),
	}}}
	s.eventJob = &stubJob{lane: scheduler.LaneEvent, status: scheduler.ReportingStatusSuccess}

	flow := NewReportingAdminFlow(s.runner, s.events, s.aggs, s.debugs, 24*time.Hour, log.New(io.Discard, "", 0))
	s.flow = flow.(*ReportingAdminFlowImpl)
	s.flow.now = func() time.Time { return flowNow }
}

func (s *ReportingAdminFlowTestSuite) registry() scheduler.Registry {
	return scheduler.NewRegistry(
		s.eventJob,
		&stubJob{lane: scheduler.LaneAggregate},
		&stubJob{lane: scheduler.LaneDebugEvent},
		&stubJob{lane: scheduler.LaneDebugAggregate},
		&stubJob{lane: scheduler.LaneVerboseDebug},
	)
}

func (s *ReportingAdminFlowTestSuite) TestRunJob_DefaultWindow() {
	s.runner.EXPECT().
		Run(gomock.Any(), services.JobKindEventReporting, flowNow.Add(-24*time.Hour), flowNow).
		Return([]scheduler.RunSummary{{Lane: scheduler.LaneEvent, Candidates: 2, Succeeded: 1, Failed: 1}}, nil)

	resp, err := s.flow.RunJob(s.ctx, &dto.RunReportingJobRequest{Kind: "event-reporting"}, s.metadata)

	s.Require().NoError(err)
	s.Equal("event-reporting", resp.Kind)
	s.Require().Len(resp.Lanes, 1)
	s.Equal(dto.LaneRunSummary{Lane: "event", Candidates: 2, Succeeded: 1, Failed: 1}, resp.Lanes[0])
}

func (s *ReportingAdminFlowTestSuite) TestRunJob_ExplicitWindow() {
	start := flowNow.Add(-3 * time.Hour)
	end := flowNow.Add(-time.Hour)
	s.runner.EXPECT().
		Run(gomock.Any(), services.JobKindDebugReporting, start, end).
		Return(nil, nil)

	resp, err := s.flow.RunJob(s.ctx, &dto.RunReportingJobRequest{Kind: "debug-reporting", Start: &start, End: &end}, s.metadata)

	s.Require().NoError(err)
	s.Equal(start, resp.Start)
	s.Equal(end, resp.End)
	s.Empty(resp.Lanes)
}

func (s *ReportingAdminFlowTestSuite) TestRunJob_Errors() {
	start := flowNow
	end := flowNow.Add(-time.Hour)

	_, err := s.flow.RunJob(s.ctx, &dto.RunReportingJobRequest{Kind: "event-reporting", Start: &start, End: &end}, s.metadata)
	s.ErrorIs(err, ErrInvalidWindow)

	_, err = s.flow.RunJob(s.ctx, &dto.RunReportingJobRequest{Kind: "nope"}, s.metadata)
	s.ErrorIs(err, ErrUnknownJobKind)

	s.runner.EXPECT().Run(gomock.Any(), services.JobKindAggregateReporting, gomock.Any(), gomock.Any()).
		Return(nil, scheduler.ErrRunInProgress)
	_, err = s.flow.RunJob(s.ctx, &dto.RunReportingJobRequest{Kind: "aggregate-reporting"}, s.metadata)
	s.True(IsRunInProgress(err))

	var businessErr *BusinessError
	s.Require().ErrorAs(err, &businessErr)
	s.Equal("RUN_IN_PROGRESS", businessErr.Code)
}

func (s *ReportingAdminFlowTestSuite) TestRequestRun() {
	s.runner.EXPECT().RequestRun(gomock.Any(), services.JobKindDebugReporting, true).Return(nil)
	s.NoError(s.flow.RequestRun(s.ctx, &dto.RequestReportingRunRequest{Kind: "debug-reporting", Force: true}, s.metadata))

	s.runner.EXPECT().RequestRun(gomock.Any(), services.JobKindEventReporting, false).Return(errors.New("redis down"))
	err := s.flow.RequestRun(s.ctx, &dto.RequestReportingRunRequest{Kind: "event-reporting"}, s.metadata)
	var businessErr *BusinessError
	s.Require().ErrorAs(err, &businessErr)
	s.Equal("REQUEST_RUN_FAILED", businessErr.Code)
}

func (s *ReportingAdminFlowTestSuite) TestDeliverReport() {
	s.runner.EXPECT().Registry().Return(s.registry()).AnyTimes()

	resp, err := s.flow.DeliverReport(s.ctx, &dto.DeliverReportRequest{Lane: "event", ID: "event-1"}, s.metadata)
	s.Require().NoError(err)
	s.Equal(&dto.DeliverReportResponse{Lane: "event", ID: "event-1", Status: "SUCCESS", Delivered: true}, resp)
	s.Equal([]string{"event-1"}, s.eventJob.delivered)

	s.eventJob.status = scheduler.ReportingStatusIOError
	resp, err = s.flow.DeliverReport(s.ctx, &dto.DeliverReportRequest{Lane: "event", ID: "event-1"}, s.metadata)
	s.Require().NoError(err)
	s.Equal("IO_ERROR", resp.Status)
	s.False(resp.Delivered)

	s.eventJob.status = scheduler.ReportingStatusInvalidArgument
	_, err = s.flow.DeliverReport(s.ctx, &dto.DeliverReportRequest{Lane: "event", ID: "event-2"}, s.metadata)
	s.ErrorIs(err, ErrReportNotPending)

	_, err = s.flow.DeliverReport(s.ctx, &dto.DeliverReportRequest{Lane: "event", ID: "missing"}, s.metadata)
	s.True(IsReportNotFound(err))

	_, err = s.flow.DeliverReport(s.ctx, &dto.DeliverReportRequest{Lane: "nope", ID: "event-1"}, s.metadata)
	s.ErrorIs(err, ErrUnknownReportLane)
	s.Len(s.eventJob.delivered, 3)
}

func (s *ReportingAdminFlowTestSuite) TestListPendingReports() {
	tests := []struct {
		name string
		lane string
		ids  []string
	}{
		{name: "event lane", lane: scheduler.LaneEvent, ids: []string{"event-1"}},
		{name: "debug event lane", lane: scheduler.LaneDebugEvent, ids: []string{"event-2"}},
		{name: "aggregate lane", lane: scheduler.LaneAggregate, ids: []string{"aggregate-1"}},
		{name: "debug aggregate lane", lane: scheduler.LaneDebugAggregate, ids: []string{}},
		{name: "verbose debug lane", lane: scheduler.LaneVerboseDebug, ids: []string{"debug-1"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.flow.ListPendingReports(s.ctx, &dto.ListPendingReportsRequest{Lane: tt.lane})
			s.Require().NoError(err)
			ids := make([]string, 0, len(resp.Reports))
			for _, r := range resp.Reports {
				ids = append(ids, r.ID)
			}
			s.Equal(tt.ids, ids)
			s.Equal(len(tt.ids), resp.Count)
		})
	}

	s.Equal(defaultPendingListLimit, s.events.filters[0].Limit)
}

func (s *ReportingAdminFlowTestSuite) TestListPendingReports_DebugLanesIgnoreWindow() {
	// event-2 is two hours old and its debug lane is still pending
	start, end := flowNow.Add(-30*time.Minute), flowNow
	resp, err := s.flow.ListPendingReports(s.ctx, &dto.ListPendingReportsRequest{
		Lane:  scheduler.LaneDebugEvent,
		Start: &start,
		End:   &end,
	})
	s.Require().NoError(err)
	s.Require().Len(resp.Reports, 1)
	s.Equal("event-2", resp.Reports[0].ID)
	s.Empty(s.events.filters)
}

func (s *ReportingAdminFlowTestSuite) TestListPendingReports_Errors() {
	_, err := s.flow.ListPendingReports(s.ctx, &dto.ListPendingReportsRequest{Lane: "nope"})
	s.ErrorIs(err, ErrUnknownReportLane)

	start, end := flowNow, flowNow.Add(-time.Minute)
	_, err = s.flow.ListPendingReports(s.ctx, &dto.ListPendingReportsRequest{Lane: "event", Start: &start, End: &end})
	s.ErrorIs(err, ErrInvalidWindow)

	s.events.err = errors.New("db down")
	_, err = s.flow.ListPendingReports(s.ctx, &dto.ListPendingReportsRequest{Lane: "event"})
	var businessErr *BusinessError
	s.Require().ErrorAs(err, &businessErr)
	s.Equal("LIST_PENDING_FAILED", businessErr.Code)
}

func (s *ReportingAdminFlowTestSuite) TestExportDeliveryState() {
	filename, data, err := s.flow.ExportDeliveryState(s.ctx, &dto.ExportDeliveryStateRequest{})
	s.Require().NoError(err)
	s.Equal("delivery_state_20260503T120000Z_20260504T120000Z.xlsx", filename)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	s.Require().NoError(err)
	defer func() { _ = xl.Close() }()

	s.Equal([]string{"event_reports", "aggregate_reports", "debug_reports"}, xl.GetSheetList())

	rows, err := xl.GetRows("event_reports")
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("id", rows[0][0])
	s.Equal([]string{"event-2", "enrollment-1", "https://adtech.example.com", "https://shop.example.com", "navigation", "2026-05-04T10:00:00Z", "delivered", "pending"}, rows[2])

	rows, err = xl.GetRows("debug_reports")
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("source-noised", rows[1][1])
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeSheetName("a/b:c"))
	assert.Equal(t, "Sheet", sanitizeSheetName("  "))
	assert.Len(t, sanitizeSheetName("a very long sheet name that exceeds the limit"), 31)
}

func TestClientMetadataString(t *testing.T) {
	md := NewClientMetadata("10.0.0.1", "curl")
	md.AdminID = 7
	md.SetRequestID("req-1")
	require.Equal(t, "admin=7 ip=10.0.0.1 request_id=req-1", md.String())

	var empty *ClientMetadata
	assert.Equal(t, "-", empty.String())
}
