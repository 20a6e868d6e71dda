// Package utils provides utility functions for the application.
package utils

func ToPtr[T any](v T) *T {
	return &v
}

type contextKey string

// Request-scoped context keys set by HTTP handlers
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	AdminIDKey    contextKey = "admin_id"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
)

