package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amirphl/measurement-reporting/utils"
)

// Well-known reporting paths on the ad tech's reporting origin
const (
	EventReportPath          = "/.well-known/attribution-reporting/report-event-attribution"
	DebugEventReportPath     = "/.well-known/attribution-reporting/debug/report-event-attribution"
	AggregateReportPath      = "/.well-known/attribution-reporting/report-aggregate-attribution"
	DebugAggregateReportPath = "/.well-known/attribution-reporting/debug/report-aggregate-attribution"
	VerboseDebugReportPath   = "/.well-known/attribution-reporting/debug/verbose"
)

const defaultReportSendTimeout = 30 * time.Second

// ReportSender posts report payloads to reporting origins
type ReportSender interface {
	// SendReport returns the response status code. Non-2xx responses are not errors.
	SendReport(ctx context.Context, reportingOrigin, path string, payload any) (int, error)
}

type httpReportSender struct {
	client *http.Client
}

// NewReportSender creates a ReportSender; a non-positive timeout uses the default
func NewReportSender(timeout time.Duration) ReportSender {
	if timeout <= 0 {
		timeout = defaultReportSendTimeout
	}
	return &httpReportSender{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (s *httpReportSender) SendReport(ctx context.Context, reportingOrigin, path string, payload any) (int, error) {
	url, err := utils.JoinOriginPath(reportingOrigin, path)
	if err != nil {
		return 0, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode report payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// IsSuccessStatus reports whether a reporting origin accepted the report
func IsSuccessStatus(code int) bool {
	return code >= 200 && code <= 299
}
