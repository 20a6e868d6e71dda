//go:build integration

package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateEventReport inserts a pending event report at reportTime
func (tf *TestFixtures) CreateEventReport(reportTime time.Time, debugStatus models.DebugReportStatus) (*models.EventReport, error) {
	report := &models.EventReport{
		ID:                      uuid.NewString(),
		SourceEventID:           models.UnsignedLong(42),
		EnrollmentID:            "enrollment-1",
		RegistrationOrigin:      "https://adtech.example",
		AttributionDestinations: pq.StringArray{"android-app://com.example.shop"},
		ReportTime:              reportTime.UTC(),
		TriggerTime:             reportTime.Add(-time.Hour).UTC(),
		TriggerData:             models.UnsignedLongPtr(1),
		SourceType:              models.SourceTypeNavigation,
		RandomizedTriggerRate:   0.0024,
		Status:                  models.ReportStatusPending,
		DebugReportStatus:       debugStatus,
	}
	if err := tf.DB.DB.Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to insert event report: %w", err)
	}
	return report, nil
}

// CreateAggregateReport inserts a pending aggregate report scheduled at reportTime
func (tf *TestFixtures) CreateAggregateReport(reportTime time.Time, debugStatus models.DebugReportStatus) (*models.AggregateReport, error) {
	report := &models.AggregateReport{
		ID:                     uuid.NewString(),
		PublisherSite:          "android-app://com.example.news",
		AttributionDestination: "https://shop.example",
		SourceRegistrationTime: reportTime.Add(-48 * time.Hour).UTC(),
		ScheduledReportTime:    reportTime.UTC(),
		EnrollmentID:           "enrollment-1",
		RegistrationOrigin:     "https://adtech.example",
		Contributions:          `[{"key":"1369","value":32768}]`,
		APIVersion:             "0.1",
		Status:                 models.ReportStatusPending,
		DebugReportStatus:      debugStatus,
	}
	if err := tf.DB.DB.Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to insert aggregate report: %w", err)
	}
	return report, nil
}

// CreateDebugReport inserts a verbose debug report
func (tf *TestFixtures) CreateDebugReport(reportType string, insertionTime time.Time) (*models.DebugReport, error) {
	report := &models.DebugReport{
		ID:                 uuid.NewString(),
		Type:               reportType,
		Body:               `{"source_event_id":"42","attribution_destination":"https://shop.example"}`,
		EnrollmentID:       "enrollment-1",
		RegistrationOrigin: "https://adtech.example",
		InsertionTime:      insertionTime.UTC(),
	}
	if err := tf.DB.DB.Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to insert debug report: %w", err)
	}
	return report, nil
}

// CreateWebSource inserts a web source carrying debugAdID
func (tf *TestFixtures) CreateWebSource(enrollmentID string, debugAdID *string) (*models.Source, error) {
	now := time.Now().UTC()
	source := &models.Source{
		ID:                 uuid.NewString(),
		EventID:            models.UnsignedLong(7),
		SourceType:         models.SourceTypeEvent,
		Publisher:          "https://news.example",
		PublisherType:      models.EventSurfaceTypeWeb,
		WebDestinations:    pq.StringArray{"https://shop.example"},
		EnrollmentID:       enrollmentID,
		RegistrationOrigin: "https://adtech.example",
		Registrant:         "https://news.example",
		EventTime:          now,
		ExpiryTime:         now.Add(30 * 24 * time.Hour),
		EventReportWindow:  now.Add(30 * 24 * time.Hour),
		DebugAdID:          debugAdID,
	}
	if err := repository.NewSourceRepository(tf.DB.DB).Save(context.Background(), source); err != nil {
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}
	return source, nil
}

// CreateTrigger inserts a trigger on destinationType carrying debugAdID
func (tf *TestFixtures) CreateTrigger(enrollmentID string, destinationType models.EventSurfaceType, debugAdID *string) (*models.Trigger, error) {
	trigger := &models.Trigger{
		ID:                     uuid.NewString(),
		AttributionDestination: "https://shop.example",
		DestinationType:        destinationType,
		EnrollmentID:           enrollmentID,
		RegistrationOrigin:     "https://adtech.example",
		Registrant:             "https://shop.example",
		TriggerTime:            time.Now().UTC(),
		DebugAdID:              debugAdID,
	}
	if err := repository.NewTriggerRepository(tf.DB.DB).Save(context.Background(), trigger); err != nil {
		return nil, fmt.Errorf("failed to insert trigger: %w", err)
	}
	return trigger, nil
}
