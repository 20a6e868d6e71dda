package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/amirphl/measurement-reporting/app/services"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/utils"
)

const defaultAggregateAPIVersion = "0.1"

// EventReportPayload is the body posted for an event-level report
type EventReportPayload struct {
	AttributionDestination any     `json:"attribution_destination"`
	ScheduledReportTime    string  `json:"scheduled_report_time"`
	SourceEventID          string  `json:"source_event_id"`
	TriggerData            string  `json:"trigger_data"`
	ReportID               string  `json:"report_id"`
	SourceType             string  `json:"source_type"`
	RandomizedTriggerRate  float64 `json:"randomized_trigger_rate"`
	SourceDebugKey         string  `json:"source_debug_key,omitempty"`
	TriggerDebugKey        string  `json:"trigger_debug_key,omitempty"`
}

// NewEventReportPayload builds the wire body of an event report
func NewEventReportPayload(report *models.EventReport) *EventReportPayload {
	triggerData := "0"
	if report.TriggerData != nil {
		triggerData = report.TriggerData.String()
	}
	return &EventReportPayload{
		AttributionDestination: services.SerializeAttributionDestinations(report.AttributionDestinations),
		ScheduledReportTime:    utils.UnixSecondsString(report.ReportTime),
		SourceEventID:          report.SourceEventID.String(),
		TriggerData:            triggerData,
		ReportID:               report.ID,
		SourceType:             string(report.SourceType),
		RandomizedTriggerRate:  report.RandomizedTriggerRate,
		SourceDebugKey:         debugKeyString(report.SourceDebugKey),
		TriggerDebugKey:        debugKeyString(report.TriggerDebugKey),
	}
}

// AggregateSharedInfo is the unencrypted context bound into the aggregate payload encryption.
// Fields are declared in key order so the encoding is stable.
type AggregateSharedInfo struct {
	AttributionDestination string `json:"attribution_destination"`
	ReportID               string `json:"report_id"`
	ReportingOrigin        string `json:"reporting_origin"`
	ScheduledReportTime    string `json:"scheduled_report_time"`
	SourceRegistrationTime string `json:"source_registration_time"`
	Version                string `json:"version"`
}

// AggregationServicePayload is one encrypted histogram for the aggregation service
type AggregationServicePayload struct {
	Payload               string `json:"payload"`
	KeyID                 string `json:"key_id"`
	DebugCleartextPayload string `json:"debug_cleartext_payload,omitempty"`
}

// AggregateReportPayload is the body posted for an aggregate report
type AggregateReportPayload struct {
	SharedInfo                 string                      `json:"shared_info"`
	AggregationServicePayloads []AggregationServicePayload `json:"aggregation_service_payloads"`
	SourceDebugKey             string                      `json:"source_debug_key,omitempty"`
	TriggerDebugKey            string                      `json:"trigger_debug_key,omitempty"`
}

// NewAggregateSharedInfo renders the shared info JSON of an aggregate report
func NewAggregateSharedInfo(report *models.AggregateReport) (string, error) {
	version := report.APIVersion
	if version == "" {
		version = defaultAggregateAPIVersion
	}
	info := AggregateSharedInfo{
		AttributionDestination: report.AttributionDestination,
		ReportID:               report.ID,
		ReportingOrigin:        report.RegistrationOrigin,
		ScheduledReportTime:    utils.UnixSecondsString(report.ScheduledReportTime),
		SourceRegistrationTime: utils.UnixSecondsString(utils.StartOfUTCDay(report.SourceRegistrationTime)),
		Version:                version,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NewAggregateReportPayload encrypts the report's contributions with key. The cleartext
// histogram is attached only when both debug keys are present.
func NewAggregateReportPayload(report *models.AggregateReport, key *models.AggregateEncryptionKey, encrypter services.AggregateEncrypter) (*AggregateReportPayload, error) {
	contributions, err := report.ParseContributions()
	if err != nil {
		return nil, err
	}
	sharedInfo, err := NewAggregateSharedInfo(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shared info of aggregate report %s: %w", report.ID, err)
	}
	sealed, err := encrypter.Encrypt(key.PublicKey, contributions, sharedInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt aggregate report %s with key %s: %w", report.ID, key.KeyID, err)
	}

	servicePayload := AggregationServicePayload{Payload: sealed, KeyID: key.KeyID}
	if report.SourceDebugKey != nil && report.TriggerDebugKey != nil {
		servicePayload.DebugCleartextPayload, err = encrypter.EncodeDebugPayload(contributions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode debug payload of aggregate report %s: %w", report.ID, err)
		}
	}

	return &AggregateReportPayload{
		SharedInfo:                 sharedInfo,
		AggregationServicePayloads: []AggregationServicePayload{servicePayload},
		SourceDebugKey:             debugKeyString(report.SourceDebugKey),
		TriggerDebugKey:            debugKeyString(report.TriggerDebugKey),
	}, nil
}

// DebugReportPayload is one element of the verbose debug report array
type DebugReportPayload struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// NewDebugReportPayload wraps a stored verbose debug report in the posted array
func NewDebugReportPayload(report *models.DebugReport) ([]DebugReportPayload, error) {
	body := json.RawMessage(report.Body)
	if !json.Valid(body) {
		return nil, fmt.Errorf("debug report %s has an invalid body", report.ID)
	}
	return []DebugReportPayload{{Type: report.Type, Body: body}}, nil
}

func debugKeyString(key *models.UnsignedLong) string {
	if key == nil {
		return ""
	}
	return key.String()
}
