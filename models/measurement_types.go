package models

// EventSurfaceType identifies where a source was registered or where a trigger converted
type EventSurfaceType string

const (
	EventSurfaceTypeApp EventSurfaceType = "app"
	EventSurfaceTypeWeb EventSurfaceType = "web"
)

// SourceType distinguishes view-through (event) from click-through (navigation) sources
type SourceType string

const (
	SourceTypeEvent      SourceType = "event"
	SourceTypeNavigation SourceType = "navigation"
)

// AttributionType is the (source surface, trigger surface) combination of an attribution
type AttributionType string

const (
	AttributionTypeUnknown AttributionType = "unknown"
	AttributionTypeAppApp  AttributionType = "app_app"
	AttributionTypeAppWeb  AttributionType = "app_web"
	AttributionTypeWebApp  AttributionType = "web_app"
	AttributionTypeWebWeb  AttributionType = "web_web"
)

// AttributionTypeOf derives the attribution type from the source publisher surface and
// the trigger destination surface
func AttributionTypeOf(source *Source, trigger *Trigger) AttributionType {
	if source == nil || trigger == nil {
		return AttributionTypeUnknown
	}
	sourceIsApp := source.PublisherType == EventSurfaceTypeApp
	if trigger.DestinationType == EventSurfaceTypeWeb {
		if sourceIsApp {
			return AttributionTypeAppWeb
		}
		return AttributionTypeWebWeb
	}
	if sourceIsApp {
		return AttributionTypeAppApp
	}
	return AttributionTypeWebApp
}

// ReportStatus is the primary delivery lane of event and aggregate reports
type ReportStatus string

const (
	ReportStatusPending        ReportStatus = "pending"
	ReportStatusDelivered      ReportStatus = "delivered"
	ReportStatusMarkedToDelete ReportStatus = "marked_to_delete"
)

// DebugReportStatus is the independent debug delivery lane of event and aggregate reports
type DebugReportStatus string

const (
	DebugReportStatusNone      DebugReportStatus = "none"
	DebugReportStatusPending   DebugReportStatus = "pending"
	DebugReportStatusDelivered DebugReportStatus = "delivered"
)

// DebugKeysMatchStats describes one attempt to match debug join keys. It is handed to the
// stats logger and never persisted.
type DebugKeysMatchStats struct {
	AdTechEnrollmentID      string          `json:"ad_tech_enrollment_id"`
	AttributionType         AttributionType `json:"attribution_type"`
	Matched                 bool            `json:"matched"`
	DebugJoinKeyHashedValue int64           `json:"debug_join_key_hashed_value"`
	DebugJoinKeyHashLimit   int64           `json:"debug_join_key_hash_limit"`
}
