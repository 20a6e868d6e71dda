// Package businessflow contains the business logic for the application.
package businessflow

import (
	"strconv"

	"github.com/amirphl/measurement-reporting/app/dto"
	"github.com/amirphl/measurement-reporting/app/scheduler"
	"github.com/amirphl/measurement-reporting/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client information recorded with operator actions
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	AdminID    uint              `json:"admin_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) String() string {
	if cm == nil {
		return "-"
	}
	return "admin=" + uintString(cm.AdminID) + " ip=" + cm.IPAddress + " request_id=" + cm.RequestID
}

func ToLaneRunSummaries(summaries []scheduler.RunSummary) []dto.LaneRunSummary {
	out := make([]dto.LaneRunSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, dto.LaneRunSummary{
			Lane:       s.Lane,
			Candidates: s.Candidates,
			Succeeded:  s.Succeeded,
			Failed:     s.Failed,
			Skipped:    s.Skipped,
			NoKeys:     s.NoKeys,
			Error:      s.Error,
		})
	}
	return out
}

func ToEventPendingItem(r *models.EventReport) dto.PendingReportItem {
	return dto.PendingReportItem{
		ID:                 r.ID,
		Type:               string(r.SourceType),
		EnrollmentID:       r.EnrollmentID,
		RegistrationOrigin: r.RegistrationOrigin,
		ReportTime:         r.ReportTime,
		Status:             string(r.Status),
		DebugReportStatus:  string(r.DebugReportStatus),
	}
}

func ToAggregatePendingItem(r *models.AggregateReport) dto.PendingReportItem {
	return dto.PendingReportItem{
		ID:                 r.ID,
		EnrollmentID:       r.EnrollmentID,
		RegistrationOrigin: r.RegistrationOrigin,
		ReportTime:         r.ScheduledReportTime,
		Status:             string(r.Status),
		DebugReportStatus:  string(r.DebugReportStatus),
	}
}

func ToDebugPendingItem(r *models.DebugReport) dto.PendingReportItem {
	return dto.PendingReportItem{
		ID:                 r.ID,
		Type:               r.Type,
		EnrollmentID:       r.EnrollmentID,
		RegistrationOrigin: r.RegistrationOrigin,
		ReportTime:         r.InsertionTime,
		Status:             string(models.ReportStatusPending),
	}
}

func uintString(v uint) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatUint(uint64(v), 10)
}
