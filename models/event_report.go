package models

import (
	"time"

	"github.com/lib/pq"
)

// EventReport is an event-level attribution report awaiting or past delivery
type EventReport struct {
	ID                      string            `gorm:"primaryKey;size:64" json:"id"`
	SourceEventID           UnsignedLong      `gorm:"type:bigint;not null" json:"source_event_id"`
	EnrollmentID            string            `gorm:"size:128;not null" json:"enrollment_id"`
	RegistrationOrigin      string            `gorm:"size:512;not null" json:"registration_origin"`
	AttributionDestinations pq.StringArray    `gorm:"type:text[];not null" json:"attribution_destinations"`
	ReportTime              time.Time         `gorm:"not null;index:idx_msmt_event_report_status_time,priority:2" json:"report_time"`
	TriggerTime             time.Time         `gorm:"not null" json:"trigger_time"`
	TriggerData             *UnsignedLong     `gorm:"type:bigint" json:"trigger_data,omitempty"`
	TriggerPriority         int64             `gorm:"not null;default:0" json:"trigger_priority"`
	TriggerDedupKey         *UnsignedLong     `gorm:"type:bigint" json:"trigger_dedup_key,omitempty"`
	SourceType              SourceType        `gorm:"size:16;not null" json:"source_type"`
	RandomizedTriggerRate   float64           `gorm:"not null;default:0" json:"randomized_trigger_rate"`
	Status                  ReportStatus      `gorm:"size:20;not null;default:'pending';index:idx_msmt_event_report_status_time,priority:1" json:"status"`
	DebugReportStatus       DebugReportStatus `gorm:"size:20;not null;default:'none';index:idx_msmt_event_report_debug_status" json:"debug_report_status"`
	SourceDebugKey          *UnsignedLong     `gorm:"type:bigint" json:"source_debug_key,omitempty"`
	TriggerDebugKey         *UnsignedLong     `gorm:"type:bigint" json:"trigger_debug_key,omitempty"`
	SourceID                string            `gorm:"size:64" json:"source_id"`
	TriggerID               string            `gorm:"size:64" json:"trigger_id"`
	CreatedAt               time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt               time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (EventReport) TableName() string { return "msmt_event_report" }
