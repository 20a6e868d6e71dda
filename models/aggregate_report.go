package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// AggregateReport is a summary report whose histogram contributions travel encrypted
type AggregateReport struct {
	ID                     string            `gorm:"primaryKey;size:64" json:"id"`
	PublisherSite          string            `gorm:"size:512;not null" json:"publisher_site"`
	AttributionDestination string            `gorm:"size:512;not null" json:"attribution_destination"`
	SourceRegistrationTime time.Time         `gorm:"not null" json:"source_registration_time"`
	ScheduledReportTime    time.Time         `gorm:"not null;index:idx_msmt_aggregate_report_status_time,priority:2" json:"scheduled_report_time"`
	EnrollmentID           string            `gorm:"size:128;not null" json:"enrollment_id"`
	RegistrationOrigin     string            `gorm:"size:512;not null" json:"registration_origin"`
	Contributions          string            `gorm:"type:text;not null" json:"contributions"`
	APIVersion             string            `gorm:"size:16;not null" json:"api_version"`
	Status                 ReportStatus      `gorm:"size:20;not null;default:'pending';index:idx_msmt_aggregate_report_status_time,priority:1" json:"status"`
	DebugReportStatus      DebugReportStatus `gorm:"size:20;not null;default:'none';index:idx_msmt_aggregate_report_debug_status" json:"debug_report_status"`
	SourceDebugKey         *UnsignedLong     `gorm:"type:bigint" json:"source_debug_key,omitempty"`
	TriggerDebugKey        *UnsignedLong     `gorm:"type:bigint" json:"trigger_debug_key,omitempty"`
	SourceID               string            `gorm:"size:64" json:"source_id"`
	TriggerID              string            `gorm:"size:64" json:"trigger_id"`
	CreatedAt              time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt              time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (AggregateReport) TableName() string { return "msmt_aggregate_report" }

// AggregateHistogramContribution is one bucket/value pair; buckets are 128-bit unsigned
type AggregateHistogramContribution struct {
	Key   *big.Int
	Value uint32
}

type contributionJSON struct {
	Key   string `json:"key"`
	Value uint32 `json:"value"`
}

// MarshalJSON encodes the bucket as a decimal string
func (c AggregateHistogramContribution) MarshalJSON() ([]byte, error) {
	key := "0"
	if c.Key != nil {
		key = c.Key.String()
	}
	return json.Marshal(contributionJSON{Key: key, Value: c.Value})
}

// UnmarshalJSON decodes a decimal-string bucket
func (c *AggregateHistogramContribution) UnmarshalJSON(data []byte) error {
	var raw contributionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	key, ok := new(big.Int).SetString(raw.Key, 10)
	if !ok || key.Sign() < 0 || key.BitLen() > 128 {
		return fmt.Errorf("invalid histogram bucket %q", raw.Key)
	}
	c.Key = key
	c.Value = raw.Value
	return nil
}

// ParseContributions decodes the stored contributions column
func (r *AggregateReport) ParseContributions() ([]AggregateHistogramContribution, error) {
	if r.Contributions == "" {
		return nil, nil
	}
	var contributions []AggregateHistogramContribution
	if err := json.Unmarshal([]byte(r.Contributions), &contributions); err != nil {
		return nil, fmt.Errorf("failed to parse contributions of aggregate report %s: %w", r.ID, err)
	}
	return contributions, nil
}

// SetContributions encodes contributions into the stored column
func (r *AggregateReport) SetContributions(contributions []AggregateHistogramContribution) error {
	data, err := json.Marshal(contributions)
	if err != nil {
		return err
	}
	r.Contributions = string(data)
	return nil
}
