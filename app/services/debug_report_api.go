package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/amirphl/measurement-reporting/config"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/utils"
	"github.com/google/uuid"
)

// JobKind names a family of delivery jobs
type JobKind string

const (
	JobKindEventReporting     JobKind = "event-reporting"
	JobKindAggregateReporting JobKind = "aggregate-reporting"
	JobKindDebugReporting     JobKind = "debug-reporting"
)

// JobKinds lists every job kind in scheduling order
var JobKinds = []JobKind{JobKindEventReporting, JobKindAggregateReporting, JobKindDebugReporting}

// ParseJobKind validates a job kind name
func ParseJobKind(raw string) (JobKind, bool) {
	for _, kind := range JobKinds {
		if string(kind) == raw {
			return kind, true
		}
	}
	return "", false
}

// JobScheduler records the intent that a job kind should run soon
//
//go:generate mockgen -destination=mocks/mock_job_scheduler.go -package=mocks github.com/amirphl/measurement-reporting/app/services JobScheduler,DebugReportSaver
type JobScheduler interface {
	RequestRun(ctx context.Context, kind JobKind, force bool) error
}

// DebugReportSaver persists verbose debug reports
type DebugReportSaver interface {
	Save(ctx context.Context, report *models.DebugReport) error
}

// Verbose debug report body fields
const (
	bodyAttributionDestination = "attribution_destination"
	bodyLimit                  = "limit"
	bodyRandomizedTriggerRate  = "randomized_trigger_rate"
	bodyScheduledReportTime    = "scheduled_report_time"
	bodySourceDebugKey         = "source_debug_key"
	bodySourceEventID          = "source_event_id"
	bodySourceSite             = "source_site"
	bodySourceType             = "source_type"
	bodyTriggerData            = "trigger_data"
	bodyTriggerDebugKey        = "trigger_debug_key"
)

// DebugReportAPI decides whether verbose debug reports may be filed and files them
type DebugReportAPI interface {
	ScheduleSourceSuccessDebugReport(ctx context.Context, source *models.Source) error
	ScheduleSourceNoisedDebugReport(ctx context.Context, source *models.Source) error
	ScheduleSourceStorageLimitDebugReport(ctx context.Context, source *models.Source, limit string) error
	ScheduleSourceDestinationLimitDebugReport(ctx context.Context, source *models.Source, limit string) error
	ScheduleSourceUnknownErrorDebugReport(ctx context.Context, source *models.Source) error
	ScheduleTriggerNoMatchingSourceDebugReport(ctx context.Context, trigger *models.Trigger, reportType string) error
	ScheduleTriggerDebugReport(ctx context.Context, source *models.Source, trigger *models.Trigger, limit *string, reportType string) error
	ScheduleTriggerDebugReportWithAllFields(ctx context.Context, source *models.Source, trigger *models.Trigger, triggerData *models.UnsignedLong, reportType string) error
}

// DebugReportAPIImpl implements DebugReportAPI
type DebugReportAPIImpl struct {
	cfg     config.MeasurementConfig
	reports DebugReportSaver
	matcher DebugKeyMatcher
	windows EventReportWindowCalculator
	noise   SourceNoiseHandler
	jobs    JobScheduler
	logger  *log.Logger
}

// NewDebugReportAPI creates a DebugReportAPI; a nil logger uses log.Default()
func NewDebugReportAPI(
	cfg config.MeasurementConfig,
	reports DebugReportSaver,
	matcher DebugKeyMatcher,
	windows EventReportWindowCalculator,
	noise SourceNoiseHandler,
	jobs JobScheduler,
	logger *log.Logger,
) DebugReportAPI {
	if logger == nil {
		logger = log.Default()
	}
	return &DebugReportAPIImpl{
		cfg:     cfg,
		reports: reports,
		matcher: matcher,
		windows: windows,
		noise:   noise,
		jobs:    jobs,
		logger:  logger,
	}
}

func (a *DebugReportAPIImpl) ScheduleSourceSuccessDebugReport(ctx context.Context, source *models.Source) error {
	return a.scheduleSourceReport(ctx, models.DebugReportTypeSourceSuccess, source, nil)
}

func (a *DebugReportAPIImpl) ScheduleSourceNoisedDebugReport(ctx context.Context, source *models.Source) error {
	return a.scheduleSourceReport(ctx, models.DebugReportTypeSourceNoised, source, nil)
}

func (a *DebugReportAPIImpl) ScheduleSourceStorageLimitDebugReport(ctx context.Context, source *models.Source, limit string) error {
	return a.scheduleSourceReport(ctx, models.DebugReportTypeSourceStorageLimit, source, &limit)
}

func (a *DebugReportAPIImpl) ScheduleSourceUnknownErrorDebugReport(ctx context.Context, source *models.Source) error {
	return a.scheduleSourceReport(ctx, models.DebugReportTypeSourceUnknownError, source, nil)
}

// ScheduleSourceDestinationLimitDebugReport files the report regardless of the source's
// permissions; without a granted permission only the source debug key is withheld
func (a *DebugReportAPIImpl) ScheduleSourceDestinationLimitDebugReport(ctx context.Context, source *models.Source, limit string) error {
	reportType := models.DebugReportTypeSourceDestinationLimit
	if !a.sourceReportsEnabled(reportType) || !a.optedIn(source.IsDebugReporting, reportType) {
		return nil
	}
	body := a.sourceBody(source, &limit)
	if !sourcePermissionGranted(source) {
		delete(body, bodySourceDebugKey)
	}
	return a.scheduleReport(ctx, reportType, body, source.EnrollmentID, source.RegistrationOrigin)
}

// ScheduleTriggerNoMatchingSourceDebugReport files a trigger report under the trigger's own
// enrollment for a trigger no source was attributed to
func (a *DebugReportAPIImpl) ScheduleTriggerNoMatchingSourceDebugReport(ctx context.Context, trigger *models.Trigger, reportType string) error {
	if !a.triggerReportAllowed(trigger, reportType) {
		return nil
	}
	keys, err := a.matcher.MatchForVerboseTriggerReport(ctx, nil, trigger)
	if err != nil {
		return fmt.Errorf("failed to match debug keys for %s: %w", reportType, err)
	}
	body := map[string]any{
		bodyAttributionDestination: triggerDestination(trigger),
	}
	putDebugKey(body, bodyTriggerDebugKey, keys.TriggerDebugKey)
	return a.scheduleReport(ctx, reportType, body, trigger.EnrollmentID, trigger.RegistrationOrigin)
}

// ScheduleTriggerDebugReport files a trigger report with an optional limit
func (a *DebugReportAPIImpl) ScheduleTriggerDebugReport(ctx context.Context, source *models.Source, trigger *models.Trigger, limit *string, reportType string) error {
	if !a.triggerReportAllowed(trigger, reportType) {
		return nil
	}
	if source == nil {
		a.logger.Printf("reporting: skipping debug report %s: no attributed source", reportType)
		return nil
	}
	keys, err := a.matcher.MatchForVerboseTriggerReport(ctx, source, trigger)
	if err != nil {
		return fmt.Errorf("failed to match debug keys for %s: %w", reportType, err)
	}
	body := map[string]any{
		bodyAttributionDestination: triggerDestination(trigger),
		bodySourceEventID:          source.EventID.String(),
	}
	if limit != nil {
		body[bodyLimit] = *limit
	}
	if site := sourceSite(source); site != "" {
		body[bodySourceSite] = site
	}
	putDebugKey(body, bodySourceDebugKey, keys.SourceDebugKey)
	putDebugKey(body, bodyTriggerDebugKey, keys.TriggerDebugKey)
	return a.scheduleReport(ctx, reportType, body, source.EnrollmentID, trigger.RegistrationOrigin)
}

// ScheduleTriggerDebugReportWithAllFields files a trigger report carrying every field of the
// event report the trigger would have produced
func (a *DebugReportAPIImpl) ScheduleTriggerDebugReportWithAllFields(ctx context.Context, source *models.Source, trigger *models.Trigger, triggerData *models.UnsignedLong, reportType string) error {
	if !a.triggerReportAllowed(trigger, reportType) {
		return nil
	}
	if source == nil {
		a.logger.Printf("reporting: skipping debug report %s: no attributed source", reportType)
		return nil
	}
	keys, err := a.matcher.MatchForVerboseTriggerReport(ctx, source, trigger)
	if err != nil {
		return fmt.Errorf("failed to match debug keys for %s: %w", reportType, err)
	}
	reportTime := a.windows.GetReportingTime(source, trigger.TriggerTime, trigger.DestinationType)
	body := map[string]any{
		bodyAttributionDestination: triggerDestination(trigger),
		bodyScheduledReportTime:    utils.UnixSecondsString(reportTime),
		bodySourceEventID:          source.EventID.String(),
		bodySourceType:             string(source.SourceType),
		bodyRandomizedTriggerRate:  a.noise.RandomizedTriggerRate(source),
	}
	if triggerData != nil {
		body[bodyTriggerData] = triggerData.String()
	}
	putDebugKey(body, bodySourceDebugKey, keys.SourceDebugKey)
	putDebugKey(body, bodyTriggerDebugKey, keys.TriggerDebugKey)
	return a.scheduleReport(ctx, reportType, body, source.EnrollmentID, trigger.RegistrationOrigin)
}

func (a *DebugReportAPIImpl) scheduleSourceReport(ctx context.Context, reportType string, source *models.Source, limit *string) error {
	if !a.sourceReportsEnabled(reportType) || !a.optedIn(source.IsDebugReporting, reportType) {
		return nil
	}
	if !sourcePermissionGranted(source) {
		a.logger.Printf("reporting: skipping debug report %s: source permission denied", reportType)
		return nil
	}
	return a.scheduleReport(ctx, reportType, a.sourceBody(source, limit), source.EnrollmentID, source.RegistrationOrigin)
}

func (a *DebugReportAPIImpl) sourceBody(source *models.Source, limit *string) map[string]any {
	body := map[string]any{
		bodySourceEventID: source.EventID.String(),
	}
	if destinations := sourceDestinations(source); destinations != nil {
		body[bodyAttributionDestination] = destinations
	}
	if site := sourceSite(source); site != "" {
		body[bodySourceSite] = site
	}
	if limit != nil {
		body[bodyLimit] = *limit
	}
	putDebugKey(body, bodySourceDebugKey, source.DebugKey)
	return body
}

func (a *DebugReportAPIImpl) scheduleReport(ctx context.Context, reportType string, body map[string]any, enrollmentID, registrationOrigin string) error {
	if reportType == "" || len(body) == 0 {
		a.logger.Printf("reporting: empty debug report %q", reportType)
		return nil
	}
	if enrollmentID == "" {
		a.logger.Printf("reporting: skipping debug report %s: empty enrollment", reportType)
		return nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode debug report %s: %w", reportType, err)
	}
	report := &models.DebugReport{
		ID:                 uuid.NewString(),
		Type:               reportType,
		Body:               string(encoded),
		EnrollmentID:       enrollmentID,
		RegistrationOrigin: registrationOrigin,
		InsertionTime:      utils.UTCNow(),
	}
	if err := a.reports.Save(ctx, report); err != nil {
		return fmt.Errorf("failed to insert debug report %s: %w", reportType, err)
	}

	if a.jobs != nil {
		if err := a.jobs.RequestRun(ctx, JobKindDebugReporting, true); err != nil {
			a.logger.Printf("reporting: failed to request %s run: %v", JobKindDebugReporting, err)
		}
	}
	return nil
}

func (a *DebugReportAPIImpl) sourceReportsEnabled(reportType string) bool {
	if !a.cfg.DebugReportingEnabled || !a.cfg.SourceDebugReportingEnabled {
		a.logger.Printf("reporting: source debug reports disabled, skipping %s", reportType)
		return false
	}
	return true
}

func (a *DebugReportAPIImpl) triggerReportAllowed(trigger *models.Trigger, reportType string) bool {
	if !a.cfg.DebugReportingEnabled || !a.cfg.TriggerDebugReportingEnabled {
		a.logger.Printf("reporting: trigger debug reports disabled, skipping %s", reportType)
		return false
	}
	if !a.optedIn(trigger.IsDebugReporting, reportType) {
		return false
	}
	if !triggerHasSurfacePermission(trigger) {
		a.logger.Printf("reporting: skipping debug report %s: trigger permission denied", reportType)
		return false
	}
	return true
}

func (a *DebugReportAPIImpl) optedIn(optIn bool, reportType string) bool {
	if !optIn {
		a.logger.Printf("reporting: ad tech not opted in, skipping %s", reportType)
	}
	return optIn
}

// sourcePermissionGranted checks ad id permission for app publishers and ar debug
// permission for web publishers
func sourcePermissionGranted(source *models.Source) bool {
	if source.PublisherType == models.EventSurfaceTypeApp {
		return source.AdIDPermission
	}
	return source.ArDebugPermission
}

func putDebugKey(body map[string]any, field string, key *models.UnsignedLong) {
	if key != nil {
		body[field] = key.String()
	}
}

// sourceDestinations lists app destinations as registered and web destinations reduced to
// their site
func sourceDestinations(source *models.Source) any {
	destinations := make([]string, 0, len(source.AppDestinations)+len(source.WebDestinations))
	destinations = append(destinations, source.AppDestinations...)
	for _, destination := range source.WebDestinations {
		site, err := utils.TopPrivateDomainAndScheme(destination)
		if err != nil {
			continue
		}
		destinations = append(destinations, site)
	}
	return SerializeAttributionDestinations(destinations)
}

func sourceSite(source *models.Source) string {
	if source.PublisherType == models.EventSurfaceTypeApp {
		return source.Publisher
	}
	site, err := utils.TopPrivateDomainAndScheme(source.Publisher)
	if err != nil {
		return ""
	}
	return site
}

func triggerDestination(trigger *models.Trigger) string {
	base, err := utils.BaseURI(trigger.AttributionDestination)
	if err != nil {
		return trigger.AttributionDestination
	}
	return base
}

// SerializeAttributionDestinations renders a single destination as a string and several as a
// sorted array. It returns nil when there is no destination.
func SerializeAttributionDestinations(destinations []string) any {
	switch len(destinations) {
	case 0:
		return nil
	case 1:
		return destinations[0]
	}
	sorted := make([]string, len(destinations))
	copy(sorted, destinations)
	sort.Strings(sorted)
	return sorted
}
