package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MeasurementConfig is the immutable flag set handed to the matching, windowing and
// reporting components
type MeasurementConfig struct {
	DebugReportingEnabled        bool `json:"debug_reporting_enabled"`
	SourceDebugReportingEnabled  bool `json:"source_debug_reporting_enabled"`
	TriggerDebugReportingEnabled bool `json:"trigger_debug_reporting_enabled"`

	DebugJoinKeyEnrollmentAllowlist    []string `json:"debug_join_key_enrollment_allowlist"`
	DebugJoinKeyHashLimit              int64    `json:"debug_join_key_hash_limit"`
	PlatformDebugAdIDMatchingBlocklist []string `json:"platform_debug_ad_id_matching_blocklist"`
	PlatformDebugAdIDMatchingLimit     int64    `json:"platform_debug_ad_id_matching_limit"`

	EnableConfigurableEventReportingWindows bool `json:"enable_configurable_event_reporting_windows"`
	// nil means unset and falls back to the fixed tables; "" means no early windows
	EventReportsVTCEarlyReportingWindows *string `json:"event_reports_vtc_early_reporting_windows"`
	EventReportsCTCEarlyReportingWindows *string `json:"event_reports_ctc_early_reporting_windows"`

	EnableVTCConfigurableMaxEventReports bool `json:"enable_vtc_configurable_max_event_reports"`
	VTCConfigurableMaxEventReportsCount  int  `json:"vtc_configurable_max_event_reports_count"`

	EventNoiseProbability                 float64 `json:"event_noise_probability"`
	NavigationNoiseProbability            float64 `json:"navigation_noise_probability"`
	InstallAttrEventNoiseProbability      float64 `json:"install_attr_event_noise_probability"`
	InstallAttrNavigationNoiseProbability float64 `json:"install_attr_navigation_noise_probability"`

	AggregateAPIVersion string `json:"aggregate_api_version"`
}

// Wildcard entry of enrollment lists
const AllEnrollments = "*"

// Default noise probabilities per source flavour
const (
	DefaultEventNoiseProbability                 = 0.0000025
	DefaultNavigationNoiseProbability            = 0.0024263
	DefaultInstallAttrEventNoiseProbability      = 0.0000125
	DefaultInstallAttrNavigationNoiseProbability = 0.0024263
)

// DefaultMeasurementConfig returns the flag values used when nothing is configured
func DefaultMeasurementConfig() MeasurementConfig {
	return MeasurementConfig{
		DebugReportingEnabled:                 true,
		SourceDebugReportingEnabled:           true,
		TriggerDebugReportingEnabled:          true,
		DebugJoinKeyHashLimit:                 100,
		PlatformDebugAdIDMatchingLimit:        5,
		VTCConfigurableMaxEventReportsCount:   1,
		EventNoiseProbability:                 DefaultEventNoiseProbability,
		NavigationNoiseProbability:            DefaultNavigationNoiseProbability,
		InstallAttrEventNoiseProbability:      DefaultInstallAttrEventNoiseProbability,
		InstallAttrNavigationNoiseProbability: DefaultInstallAttrNavigationNoiseProbability,
		AggregateAPIVersion:                   "0.1",
	}
}

func loadMeasurementConfig() MeasurementConfig {
	d := DefaultMeasurementConfig()
	return MeasurementConfig{
		DebugReportingEnabled:                   getEnvBool("MEASUREMENT_DEBUG_REPORTING_ENABLED", d.DebugReportingEnabled),
		SourceDebugReportingEnabled:             getEnvBool("MEASUREMENT_SOURCE_DEBUG_REPORTING_ENABLED", d.SourceDebugReportingEnabled),
		TriggerDebugReportingEnabled:            getEnvBool("MEASUREMENT_TRIGGER_DEBUG_REPORTING_ENABLED", d.TriggerDebugReportingEnabled),
		DebugJoinKeyEnrollmentAllowlist:         getEnvStringSlice("MEASUREMENT_DEBUG_JOIN_KEY_ENROLLMENT_ALLOWLIST", nil),
		DebugJoinKeyHashLimit:                   getEnvInt64("MEASUREMENT_DEBUG_JOIN_KEY_HASH_LIMIT", d.DebugJoinKeyHashLimit),
		PlatformDebugAdIDMatchingBlocklist:      getEnvStringSlice("MEASUREMENT_PLATFORM_DEBUG_AD_ID_MATCHING_BLOCKLIST", nil),
		PlatformDebugAdIDMatchingLimit:          getEnvInt64("MEASUREMENT_PLATFORM_DEBUG_AD_ID_MATCHING_LIMIT", d.PlatformDebugAdIDMatchingLimit),
		EnableConfigurableEventReportingWindows: getEnvBool("MEASUREMENT_ENABLE_CONFIGURABLE_EVENT_REPORTING_WINDOWS", false),
		EventReportsVTCEarlyReportingWindows:    getEnvOptionalString("MEASUREMENT_EVENT_REPORTS_VTC_EARLY_REPORTING_WINDOWS"),
		EventReportsCTCEarlyReportingWindows:    getEnvOptionalString("MEASUREMENT_EVENT_REPORTS_CTC_EARLY_REPORTING_WINDOWS"),
		EnableVTCConfigurableMaxEventReports:    getEnvBool("MEASUREMENT_ENABLE_VTC_CONFIGURABLE_MAX_EVENT_REPORTS", false),
		VTCConfigurableMaxEventReportsCount:     getEnvInt("MEASUREMENT_VTC_CONFIGURABLE_MAX_EVENT_REPORTS_COUNT", d.VTCConfigurableMaxEventReportsCount),
		EventNoiseProbability:                   getEnvFloat("MEASUREMENT_EVENT_NOISE_PROBABILITY", d.EventNoiseProbability),
		NavigationNoiseProbability:              getEnvFloat("MEASUREMENT_NAVIGATION_NOISE_PROBABILITY", d.NavigationNoiseProbability),
		InstallAttrEventNoiseProbability:        getEnvFloat("MEASUREMENT_INSTALL_ATTR_EVENT_NOISE_PROBABILITY", d.InstallAttrEventNoiseProbability),
		InstallAttrNavigationNoiseProbability:   getEnvFloat("MEASUREMENT_INSTALL_ATTR_NAVIGATION_NOISE_PROBABILITY", d.InstallAttrNavigationNoiseProbability),
		AggregateAPIVersion:                     getEnvString("MEASUREMENT_AGGREGATE_API_VERSION", d.AggregateAPIVersion),
	}
}

// measurementFlagsFile mirrors MeasurementConfig with optional fields so that only the
// keys present in the file override env-derived values
type measurementFlagsFile struct {
	DebugReportingEnabled                   *bool     `yaml:"debug_reporting_enabled"`
	SourceDebugReportingEnabled             *bool     `yaml:"source_debug_reporting_enabled"`
	TriggerDebugReportingEnabled            *bool     `yaml:"trigger_debug_reporting_enabled"`
	DebugJoinKeyEnrollmentAllowlist         *[]string `yaml:"debug_join_key_enrollment_allowlist"`
	DebugJoinKeyHashLimit                   *int64    `yaml:"debug_join_key_hash_limit"`
	PlatformDebugAdIDMatchingBlocklist      *[]string `yaml:"platform_debug_ad_id_matching_blocklist"`
	PlatformDebugAdIDMatchingLimit          *int64    `yaml:"platform_debug_ad_id_matching_limit"`
	EnableConfigurableEventReportingWindows *bool     `yaml:"enable_configurable_event_reporting_windows"`
	EventReportsVTCEarlyReportingWindows    *string   `yaml:"event_reports_vtc_early_reporting_windows"`
	EventReportsCTCEarlyReportingWindows    *string   `yaml:"event_reports_ctc_early_reporting_windows"`
	EnableVTCConfigurableMaxEventReports    *bool     `yaml:"enable_vtc_configurable_max_event_reports"`
	VTCConfigurableMaxEventReportsCount     *int      `yaml:"vtc_configurable_max_event_reports_count"`
	EventNoiseProbability                   *float64  `yaml:"event_noise_probability"`
	NavigationNoiseProbability              *float64  `yaml:"navigation_noise_probability"`
	InstallAttrEventNoiseProbability        *float64  `yaml:"install_attr_event_noise_probability"`
	InstallAttrNavigationNoiseProbability   *float64  `yaml:"install_attr_navigation_noise_probability"`
	AggregateAPIVersion                     *string   `yaml:"aggregate_api_version"`
}

// ApplyMeasurementFlagsFile overlays the YAML flag file at path onto cfg
func ApplyMeasurementFlagsFile(cfg *MeasurementConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read measurement flags file: %w", err)
	}
	return ApplyMeasurementFlags(cfg, data)
}

// ApplyMeasurementFlags overlays YAML-encoded flags onto cfg
func ApplyMeasurementFlags(cfg *MeasurementConfig, data []byte) error {
	var f measurementFlagsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse measurement flags: %w", err)
	}

	setIfPresent(&cfg.DebugReportingEnabled, f.DebugReportingEnabled)
	setIfPresent(&cfg.SourceDebugReportingEnabled, f.SourceDebugReportingEnabled)
	setIfPresent(&cfg.TriggerDebugReportingEnabled, f.TriggerDebugReportingEnabled)
	setIfPresent(&cfg.DebugJoinKeyEnrollmentAllowlist, f.DebugJoinKeyEnrollmentAllowlist)
	setIfPresent(&cfg.DebugJoinKeyHashLimit, f.DebugJoinKeyHashLimit)
	setIfPresent(&cfg.PlatformDebugAdIDMatchingBlocklist, f.PlatformDebugAdIDMatchingBlocklist)
	setIfPresent(&cfg.PlatformDebugAdIDMatchingLimit, f.PlatformDebugAdIDMatchingLimit)
	setIfPresent(&cfg.EnableConfigurableEventReportingWindows, f.EnableConfigurableEventReportingWindows)
	setIfPresent(&cfg.EnableVTCConfigurableMaxEventReports, f.EnableVTCConfigurableMaxEventReports)
	setIfPresent(&cfg.VTCConfigurableMaxEventReportsCount, f.VTCConfigurableMaxEventReportsCount)
	setIfPresent(&cfg.EventNoiseProbability, f.EventNoiseProbability)
	setIfPresent(&cfg.NavigationNoiseProbability, f.NavigationNoiseProbability)
	setIfPresent(&cfg.InstallAttrEventNoiseProbability, f.InstallAttrEventNoiseProbability)
	setIfPresent(&cfg.InstallAttrNavigationNoiseProbability, f.InstallAttrNavigationNoiseProbability)
	setIfPresent(&cfg.AggregateAPIVersion, f.AggregateAPIVersion)

	if f.EventReportsVTCEarlyReportingWindows != nil {
		cfg.EventReportsVTCEarlyReportingWindows = f.EventReportsVTCEarlyReportingWindows
	}
	if f.EventReportsCTCEarlyReportingWindows != nil {
		cfg.EventReportsCTCEarlyReportingWindows = f.EventReportsCTCEarlyReportingWindows
	}

	return nil
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// ContainsEnrollment reports whether list names enrollmentID exactly
func ContainsEnrollment(list []string, enrollmentID string) bool {
	for _, entry := range list {
		if strings.TrimSpace(entry) == enrollmentID {
			return true
		}
	}
	return false
}

func validateMeasurementConfig(cfg *MeasurementConfig) []string {
	var errors []string

	if cfg.DebugJoinKeyHashLimit < 0 {
		errors = append(errors, "MEASUREMENT_DEBUG_JOIN_KEY_HASH_LIMIT must not be negative")
	}
	if cfg.PlatformDebugAdIDMatchingLimit < 0 {
		errors = append(errors, "MEASUREMENT_PLATFORM_DEBUG_AD_ID_MATCHING_LIMIT must not be negative")
	}
	if cfg.EnableVTCConfigurableMaxEventReports && cfg.VTCConfigurableMaxEventReportsCount < 1 {
		errors = append(errors, "MEASUREMENT_VTC_CONFIGURABLE_MAX_EVENT_REPORTS_COUNT must be at least 1")
	}
	for name, p := range map[string]float64{
		"MEASUREMENT_EVENT_NOISE_PROBABILITY":                   cfg.EventNoiseProbability,
		"MEASUREMENT_NAVIGATION_NOISE_PROBABILITY":              cfg.NavigationNoiseProbability,
		"MEASUREMENT_INSTALL_ATTR_EVENT_NOISE_PROBABILITY":      cfg.InstallAttrEventNoiseProbability,
		"MEASUREMENT_INSTALL_ATTR_NAVIGATION_NOISE_PROBABILITY": cfg.InstallAttrNavigationNoiseProbability,
	} {
		if p < 0 || p > 1 {
			errors = append(errors, fmt.Sprintf("%s must be between 0 and 1", name))
		}
	}
	if cfg.AggregateAPIVersion == "" {
		errors = append(errors, "MEASUREMENT_AGGREGATE_API_VERSION is required")
	}

	return errors
}
