// Package utils provides utility functions for the application.
package utils

import (
	"strconv"
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// StartOfUTCDay truncates t to midnight UTC
func StartOfUTCDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// UnixSecondsString renders t as decimal seconds since the epoch
func UnixSecondsString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
