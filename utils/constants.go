package utils

import (
	"time"
)

// Token time constants
const (
	// AccessTokenTTL is the time-to-live for admin access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Reporting constants
const (
	// MaxUploadRetryWindow bounds how far back scheduled runs look for undelivered reports
	MaxUploadRetryWindow = 28 * 24 * time.Hour

	// ReportingSkew is added to every reporting window end
	ReportingSkew = time.Hour

	// DefaultReportingJobInterval is how often each reporting kind is run when nothing is configured
	DefaultReportingJobInterval = time.Hour
)
