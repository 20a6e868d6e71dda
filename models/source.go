package models

import (
	"time"

	"github.com/lib/pq"
)

// Source is a registered ad exposure (impression or click) that later triggers can be attributed to
type Source struct {
	ID                    string           `gorm:"primaryKey;size:64" json:"id"`
	EventID               UnsignedLong     `gorm:"type:bigint;not null" json:"event_id"`
	SourceType            SourceType       `gorm:"size:16;not null" json:"source_type"`
	Publisher             string           `gorm:"size:512;not null" json:"publisher"`
	PublisherType         EventSurfaceType `gorm:"size:8;not null" json:"publisher_type"`
	AppDestinations       pq.StringArray   `gorm:"type:text[]" json:"app_destinations"`
	WebDestinations       pq.StringArray   `gorm:"type:text[]" json:"web_destinations"`
	EnrollmentID          string           `gorm:"size:128;not null;index:idx_msmt_source_enrollment_id" json:"enrollment_id"`
	RegistrationOrigin    string           `gorm:"size:512;not null" json:"registration_origin"`
	Registrant            string           `gorm:"size:512;not null" json:"registrant"`
	EventTime             time.Time        `gorm:"not null" json:"event_time"`
	ExpiryTime            time.Time        `gorm:"not null" json:"expiry_time"`
	EventReportWindow     time.Time        `gorm:"not null" json:"event_report_window"`
	InstallAttributed     bool             `gorm:"not null;default:false" json:"install_attributed"`
	InstallCooldownWindow time.Duration    `gorm:"not null;default:0" json:"install_cooldown_window"`
	DebugKey              *UnsignedLong    `gorm:"type:bigint" json:"debug_key,omitempty"`
	AdIDPermission        bool             `gorm:"not null;default:false" json:"ad_id_permission"`
	ArDebugPermission     bool             `gorm:"not null;default:false" json:"ar_debug_permission"`
	DebugJoinKey          *string          `gorm:"size:512" json:"debug_join_key,omitempty"`
	PlatformAdID          *string          `gorm:"size:512" json:"platform_ad_id,omitempty"`
	DebugAdID             *string          `gorm:"size:512;index:idx_msmt_source_debug_ad_id" json:"debug_ad_id,omitempty"`
	IsDebugReporting      bool             `gorm:"not null;default:false" json:"is_debug_reporting"`
	CreatedAt             time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
}

func (Source) TableName() string { return "msmt_source" }

// ReportWindowLength is the span between the source event and the end of its event report window
func (s *Source) ReportWindowLength() time.Duration {
	return s.EventReportWindow.Sub(s.EventTime)
}

// HasAppDestination reports whether any app destination was registered
func (s *Source) HasAppDestination() bool {
	return len(s.AppDestinations) > 0
}

// InstallDetectionEnabled reports whether the source can be install-attributed at all
func (s *Source) InstallDetectionEnabled() bool {
	return s.InstallCooldownWindow > 0 && s.HasAppDestination()
}
