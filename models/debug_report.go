package models

import "time"

// Verbose debug report types
const (
	DebugReportTypeSourceDestinationLimit                = "source-destination-limit"
	DebugReportTypeSourceNoised                          = "source-noised"
	DebugReportTypeSourceStorageLimit                    = "source-storage-limit"
	DebugReportTypeSourceSuccess                         = "source-success"
	DebugReportTypeSourceUnknownError                    = "source-unknown-error"
	DebugReportTypeTriggerAggregateDeduplicated          = "trigger-aggregate-deduplicated"
	DebugReportTypeTriggerAggregateInsufficientBudget    = "trigger-aggregate-insufficient-budget"
	DebugReportTypeTriggerAggregateNoContributions       = "trigger-aggregate-no-contributions"
	DebugReportTypeTriggerAggregateReportWindowPassed    = "trigger-aggregate-report-window-passed"
	DebugReportTypeTriggerAggregateStorageLimit          = "trigger-aggregate-storage-limit"
	DebugReportTypeTriggerAttributionsPerSourceDestLimit = "trigger-attributions-per-source-destination-limit"
	DebugReportTypeTriggerEventDeduplicated              = "trigger-event-deduplicated"
	DebugReportTypeTriggerEventExcessiveReports          = "trigger-event-excessive-reports"
	DebugReportTypeTriggerEventLowPriority               = "trigger-event-low-priority"
	DebugReportTypeTriggerEventNoMatchingConfigurations  = "trigger-event-no-matching-configurations"
	DebugReportTypeTriggerEventNoise                     = "trigger-event-noise"
	DebugReportTypeTriggerEventReportWindowPassed        = "trigger-event-report-window-passed"
	DebugReportTypeTriggerEventStorageLimit              = "trigger-event-storage-limit"
	DebugReportTypeTriggerNoMatchingFilterData           = "trigger-no-matching-filter-data"
	DebugReportTypeTriggerNoMatchingSource               = "trigger-no-matching-source"
	DebugReportTypeTriggerReportingOriginLimit           = "trigger-reporting-origin-limit"
	DebugReportTypeTriggerUnknownError                   = "trigger-unknown-error"
)

// DebugReport is a verbose debug report. It is deleted once delivered.
type DebugReport struct {
	ID                 string    `gorm:"primaryKey;size:64" json:"id"`
	Type               string    `gorm:"size:64;not null" json:"type"`
	Body               string    `gorm:"type:jsonb;not null" json:"body"`
	EnrollmentID       string    `gorm:"size:128;not null;index:idx_msmt_debug_report_enrollment_id" json:"enrollment_id"`
	RegistrationOrigin string    `gorm:"size:512;not null" json:"registration_origin"`
	InsertionTime      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"insertion_time"`
}

func (DebugReport) TableName() string { return "msmt_debug_report" }
