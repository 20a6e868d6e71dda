package models

import "time"

// Trigger is a registered conversion event
type Trigger struct {
	ID                     string           `gorm:"primaryKey;size:64" json:"id"`
	AttributionDestination string           `gorm:"size:512;not null" json:"attribution_destination"`
	DestinationType        EventSurfaceType `gorm:"size:8;not null" json:"destination_type"`
	EnrollmentID           string           `gorm:"size:128;not null;index:idx_msmt_trigger_enrollment_id" json:"enrollment_id"`
	RegistrationOrigin     string           `gorm:"size:512;not null" json:"registration_origin"`
	Registrant             string           `gorm:"size:512;not null" json:"registrant"`
	TriggerTime            time.Time        `gorm:"not null" json:"trigger_time"`
	DebugKey               *UnsignedLong    `gorm:"type:bigint" json:"debug_key,omitempty"`
	AdIDPermission         bool             `gorm:"not null;default:false" json:"ad_id_permission"`
	ArDebugPermission      bool             `gorm:"not null;default:false" json:"ar_debug_permission"`
	DebugJoinKey           *string          `gorm:"size:512" json:"debug_join_key,omitempty"`
	PlatformAdID           *string          `gorm:"size:512" json:"platform_ad_id,omitempty"`
	DebugAdID              *string          `gorm:"size:512;index:idx_msmt_trigger_debug_ad_id" json:"debug_ad_id,omitempty"`
	IsDebugReporting       bool             `gorm:"not null;default:false" json:"is_debug_reporting"`
	CreatedAt              time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
}

func (Trigger) TableName() string { return "msmt_trigger" }
