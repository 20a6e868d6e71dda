package dto

import "time"

// RunReportingJobRequest runs every lane of a job kind over a report-time window.
// A missing start defaults to end minus the upload retry window; a missing end defaults to now.
type RunReportingJobRequest struct {
	Kind  string     `json:"kind" validate:"required,oneof=event-reporting aggregate-reporting debug-reporting"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// LaneRunSummary reports the outcomes of one lane run
type LaneRunSummary struct {
	Lane       string `json:"lane"`
	Candidates int    `json:"candidates"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	NoKeys     bool   `json:"no_keys"`
	Error      string `json:"error,omitempty"`
}

// RunReportingJobResponse lists the lane summaries of a finished run
type RunReportingJobResponse struct {
	Kind  string           `json:"kind"`
	Start time.Time        `json:"start"`
	End   time.Time        `json:"end"`
	Lanes []LaneRunSummary `json:"lanes"`
}

// RequestReportingRunRequest asks the scheduler loop to run a job kind soon
type RequestReportingRunRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=event-reporting aggregate-reporting debug-reporting"`
	Force bool   `json:"force"`
}

// DeliverReportRequest delivers one report of one lane immediately
type DeliverReportRequest struct {
	Lane string `json:"lane" validate:"required,oneof=event debug-event aggregate debug-aggregate verbose-debug"`
	ID   string `json:"id" validate:"required,max=64"`
}

// DeliverReportResponse carries the delivery status code of the report
type DeliverReportResponse struct {
	Lane      string `json:"lane"`
	ID        string `json:"id"`
	Status    string `json:"status"`
	Delivered bool   `json:"delivered"`
}

// ListPendingReportsRequest lists reports still pending on a lane
type ListPendingReportsRequest struct {
	Lane  string     `json:"lane" validate:"required,oneof=event debug-event aggregate debug-aggregate verbose-debug"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Limit int        `json:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
}

// PendingReportItem is a single pending report
type PendingReportItem struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type,omitempty"`
	EnrollmentID       string    `json:"enrollment_id"`
	RegistrationOrigin string    `json:"registration_origin"`
	ReportTime         time.Time `json:"report_time"`
	Status             string    `json:"status"`
	DebugReportStatus  string    `json:"debug_report_status,omitempty"`
}

// ListPendingReportsResponse lists pending reports of a lane
type ListPendingReportsResponse struct {
	Lane    string              `json:"lane"`
	Count   int                 `json:"count"`
	Reports []PendingReportItem `json:"reports"`
}

// ExportDeliveryStateRequest exports every report in a window as an Excel workbook
type ExportDeliveryStateRequest struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// HealthResponse reports dependency health
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Time     time.Time         `json:"time"`
	Version  string            `json:"version"`
	Hostname string            `json:"hostname,omitempty"`
}
