package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/app/services/mocks"
	"github.com/amirphl/measurement-reporting/config"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/utils"
)

type DebugReportAPISuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	reports   *mocks.MockDebugReportSaver
	scheduler *mocks.MockJobScheduler
	cfg       config.MeasurementConfig
	eventTime time.Time
}

func TestDebugReportAPISuite(t *testing.T) {
	suite.Run(t, new(DebugReportAPISuite))
}

func (s *DebugReportAPISuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.reports = mocks.NewMockDebugReportSaver(s.ctrl)
	s.scheduler = mocks.NewMockJobScheduler(s.ctrl)
	s.cfg = config.DefaultMeasurementConfig()
	s.eventTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
}

func (s *DebugReportAPISuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DebugReportAPISuite) api() services.DebugReportAPI {
	matcher := services.NewDebugKeyMatcher(s.cfg, nil, nil)
	return services.NewDebugReportAPI(
		s.cfg,
		s.reports,
		matcher,
		services.NewEventReportWindowCalculator(s.cfg),
		services.NewSourceNoiseHandler(s.cfg),
		s.scheduler,
		log.New(io.Discard, "", 0),
	)
}

func (s *DebugReportAPISuite) appSource() *models.Source {
	eventID, _ := models.ParseUnsignedLong("18446744073709551615")
	return &models.Source{
		ID:                 "source-1",
		EventID:            eventID,
		SourceType:         models.SourceTypeEvent,
		Publisher:          "android-app://com.example.publisher",
		PublisherType:      models.EventSurfaceTypeApp,
		AppDestinations:    []string{"android-app://com.example.app"},
		WebDestinations:    []string{"https://shop.example.co.uk/path"},
		EnrollmentID:       "enrollment-source",
		RegistrationOrigin: "https://adtech.example.com",
		Registrant:         "android-app://com.example.publisher",
		EventTime:          s.eventTime,
		ExpiryTime:         s.eventTime.Add(30 * 24 * time.Hour),
		EventReportWindow:  s.eventTime.Add(10 * 24 * time.Hour),
		DebugKey:           models.UnsignedLongPtr(111),
		AdIDPermission:     true,
		IsDebugReporting:   true,
	}
}

func (s *DebugReportAPISuite) webSource() *models.Source {
	return &models.Source{
		ID:                 "source-2",
		EventID:            models.UnsignedLong(123),
		SourceType:         models.SourceTypeNavigation,
		Publisher:          "https://news.publisher.com/article",
		PublisherType:      models.EventSurfaceTypeWeb,
		WebDestinations:    []string{"https://shop.example.com"},
		EnrollmentID:       "enrollment-source",
		RegistrationOrigin: "https://adtech.example.com",
		Registrant:         "https://registrant.example.com",
		EventTime:          s.eventTime,
		ExpiryTime:         s.eventTime.Add(30 * 24 * time.Hour),
		EventReportWindow:  s.eventTime.Add(30 * 24 * time.Hour),
		DebugKey:           models.UnsignedLongPtr(111),
		ArDebugPermission:  true,
		IsDebugReporting:   true,
	}
}

func (s *DebugReportAPISuite) webTrigger() *models.Trigger {
	return &models.Trigger{
		ID:                     "trigger-1",
		AttributionDestination: "https://shop.example.com/checkout?step=2",
		DestinationType:        models.EventSurfaceTypeWeb,
		EnrollmentID:           "enrollment-trigger",
		RegistrationOrigin:     "https://adtech.example.com",
		Registrant:             "https://registrant.example.com",
		TriggerTime:            s.eventTime.Add(24 * time.Hour),
		DebugKey:               models.UnsignedLongPtr(222),
		ArDebugPermission:      true,
		IsDebugReporting:       true,
	}
}

// expectReport captures the saved report and expects the debug job to be requested
func (s *DebugReportAPISuite) expectReport() *models.DebugReport {
	saved := &models.DebugReport{}
	s.reports.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, report *models.DebugReport) error {
			*saved = *report
			return nil
		})
	s.scheduler.EXPECT().
		RequestRun(gomock.Any(), services.JobKindDebugReporting, true).
		Return(nil)
	return saved
}

func (s *DebugReportAPISuite) assertBody(expected map[string]any, body string) {
	want, err := json.Marshal(expected)
	s.Require().NoError(err)
	s.JSONEq(string(want), body)
}

func (s *DebugReportAPISuite) TestSourceSuccess() {
	saved := s.expectReport()

	err := s.api().ScheduleSourceSuccessDebugReport(context.Background(), s.appSource())

	s.NoError(err)
	s.NotEmpty(saved.ID)
	s.Equal(models.DebugReportTypeSourceSuccess, saved.Type)
	s.Equal("enrollment-source", saved.EnrollmentID)
	s.Equal("https://adtech.example.com", saved.RegistrationOrigin)
	s.assertBody(map[string]any{
		"attribution_destination": []string{"android-app://com.example.app", "https://example.co.uk"},
		"source_debug_key":        "111",
		"source_event_id":         "18446744073709551615",
		"source_site":             "android-app://com.example.publisher",
	}, saved.Body)
}

func (s *DebugReportAPISuite) TestSourceStorageLimitCarriesLimit() {
	saved := s.expectReport()

	err := s.api().ScheduleSourceStorageLimitDebugReport(context.Background(), s.webSource(), "100")

	s.NoError(err)
	s.Equal(models.DebugReportTypeSourceStorageLimit, saved.Type)
	s.assertBody(map[string]any{
		"attribution_destination": "https://example.com",
		"limit":                   "100",
		"source_debug_key":        "111",
		"source_event_id":         "123",
		"source_site":             "https://publisher.com",
	}, saved.Body)
}

func (s *DebugReportAPISuite) TestSourceReportsSkipped() {
	tests := []struct {
		name   string
		mutate func(cfg *config.MeasurementConfig, source *models.Source)
	}{
		{
			name:   "debug reports disabled",
			mutate: func(cfg *config.MeasurementConfig, _ *models.Source) { cfg.DebugReportingEnabled = false },
		},
		{
			name:   "source debug reports disabled",
			mutate: func(cfg *config.MeasurementConfig, _ *models.Source) { cfg.SourceDebugReportingEnabled = false },
		},
		{
			name:   "ad tech not opted in",
			mutate: func(_ *config.MeasurementConfig, source *models.Source) { source.IsDebugReporting = false },
		},
		{
			name:   "app source without ad id permission",
			mutate: func(_ *config.MeasurementConfig, source *models.Source) { source.AdIDPermission = false },
		},
		{
			name:   "empty enrollment",
			mutate: func(_ *config.MeasurementConfig, source *models.Source) { source.EnrollmentID = "" },
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			source := s.appSource()
			tt.mutate(&s.cfg, source)

			s.NoError(s.api().ScheduleSourceNoisedDebugReport(context.Background(), source))
		})
	}
}

func (s *DebugReportAPISuite) TestSourceDestinationLimitWithoutPermission() {
	saved := s.expectReport()
	source := s.webSource()
	source.ArDebugPermission = false

	err := s.api().ScheduleSourceDestinationLimitDebugReport(context.Background(), source, "3")

	s.NoError(err)
	s.Equal(models.DebugReportTypeSourceDestinationLimit, saved.Type)
	s.assertBody(map[string]any{
		"attribution_destination": "https://example.com",
		"limit":                   "3",
		"source_event_id":         "123",
		"source_site":             "https://publisher.com",
	}, saved.Body)
}

func (s *DebugReportAPISuite) TestTriggerNoMatchingSourceUsesTriggerEnrollment() {
	saved := s.expectReport()

	err := s.api().ScheduleTriggerNoMatchingSourceDebugReport(context.Background(), s.webTrigger(), models.DebugReportTypeTriggerNoMatchingSource)

	s.NoError(err)
	s.Equal("enrollment-trigger", saved.EnrollmentID)
	s.assertBody(map[string]any{
		"attribution_destination": "https://shop.example.com",
		"trigger_debug_key":       "222",
	}, saved.Body)
}

func (s *DebugReportAPISuite) TestTriggerDebugReportUsesSourceEnrollment() {
	saved := s.expectReport()
	limit := "10"

	err := s.api().ScheduleTriggerDebugReport(context.Background(), s.webSource(), s.webTrigger(), &limit, models.DebugReportTypeTriggerEventStorageLimit)

	s.NoError(err)
	s.Equal(models.DebugReportTypeTriggerEventStorageLimit, saved.Type)
	s.Equal("enrollment-source", saved.EnrollmentID)
	s.assertBody(map[string]any{
		"attribution_destination": "https://shop.example.com",
		"limit":                   "10",
		"source_debug_key":        "111",
		"source_event_id":         "123",
		"source_site":             "https://publisher.com",
		"trigger_debug_key":       "222",
	}, saved.Body)
}

func (s *DebugReportAPISuite) TestTriggerDebugReportWithAllFields() {
	saved := s.expectReport()
	source := s.webSource()
	source.SourceType = models.SourceTypeEvent
	source.EventReportWindow = s.eventTime.Add(10 * 24 * time.Hour)
	triggerData := models.UnsignedLong(5)

	err := s.api().ScheduleTriggerDebugReportWithAllFields(context.Background(), source, s.webTrigger(), &triggerData, models.DebugReportTypeTriggerEventLowPriority)

	s.NoError(err)
	reportTime := s.eventTime.Add(10*24*time.Hour + time.Hour)
	s.assertBody(map[string]any{
		"attribution_destination": "https://shop.example.com",
		"randomized_trigger_rate": config.DefaultEventNoiseProbability,
		"scheduled_report_time":   utils.UnixSecondsString(reportTime),
		"source_debug_key":        "111",
		"source_event_id":         "123",
		"source_type":             "event",
		"trigger_data":            "5",
		"trigger_debug_key":       "222",
	}, saved.Body)
}

func (s *DebugReportAPISuite) TestTriggerReportSkippedWithoutPermission() {
	trigger := s.webTrigger()
	trigger.ArDebugPermission = false

	err := s.api().ScheduleTriggerDebugReport(context.Background(), s.webSource(), trigger, nil, models.DebugReportTypeTriggerNoMatchingFilterData)

	s.NoError(err)
}

func (s *DebugReportAPISuite) TestTriggerReportsWithoutSourceAreSkipped() {
	limit := "10"
	triggerData := models.UnsignedLong(5)

	s.NotPanics(func() {
		err := s.api().ScheduleTriggerDebugReport(context.Background(), nil, s.webTrigger(), &limit, models.DebugReportTypeTriggerEventStorageLimit)
		s.NoError(err)
	})
	s.NotPanics(func() {
		err := s.api().ScheduleTriggerDebugReportWithAllFields(context.Background(), nil, s.webTrigger(), &triggerData, models.DebugReportTypeTriggerEventLowPriority)
		s.NoError(err)
	})
}

func (s *DebugReportAPISuite) TestTriggerReportsDisabled() {
	s.cfg.TriggerDebugReportingEnabled = false

	err := s.api().ScheduleTriggerNoMatchingSourceDebugReport(context.Background(), s.webTrigger(), models.DebugReportTypeTriggerNoMatchingSource)

	s.NoError(err)
}

func (s *DebugReportAPISuite) TestStoreFailureIsReturned() {
	s.reports.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("connection refused"))

	err := s.api().ScheduleSourceSuccessDebugReport(context.Background(), s.appSource())

	s.Error(err)
	s.Contains(err.Error(), "connection refused")
}

func (s *DebugReportAPISuite) TestSchedulerFailureIsNotReturned() {
	s.reports.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.scheduler.EXPECT().
		RequestRun(gomock.Any(), services.JobKindDebugReporting, true).
		Return(errors.New("redis unavailable"))

	err := s.api().ScheduleSourceSuccessDebugReport(context.Background(), s.appSource())

	s.NoError(err)
}
