package services

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/measurement-reporting/config"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/amirphl/measurement-reporting/utils"
)

// Fixed reporting tables used when configurable windows are off or misconfigured
var (
	navigationEarlyReportingWindows         = []time.Duration{2 * 24 * time.Hour, 7 * 24 * time.Hour}
	installAttrEventEarlyReportingWindows   = []time.Duration{2 * 24 * time.Hour}
	maxConfiguredEarlyReportingWindowsCount = 2
)

// Largest offset that still fits in a time.Duration
const maxEarlyReportingWindowSeconds = math.MaxInt64 / int64(time.Second)

// Maximum event reports per source
const (
	EventSourceMaxReports            = 1
	InstallAttrEventSourceMaxReports = 2
	NavigationSourceMaxReports       = 3
)

// EventReportWindowCalculator turns a source's reporting windows into delivery times
type EventReportWindowCalculator interface {
	GetReportingTime(source *models.Source, triggerTime time.Time, destinationType models.EventSurfaceType) time.Time
	GetMaxReportCount(source *models.Source, isInstallCase bool) int
	GetReportingTimeForNoising(source *models.Source, windowIndex int, isInstallCase bool) time.Time
	ReportingWindowsForSource(source *models.Source, isInstallCase bool) []time.Time
}

// EventReportWindowCalculatorImpl implements EventReportWindowCalculator
type EventReportWindowCalculatorImpl struct {
	cfg config.MeasurementConfig
}

// NewEventReportWindowCalculator creates a calculator over the given flags
func NewEventReportWindowCalculator(cfg config.MeasurementConfig) EventReportWindowCalculator {
	return &EventReportWindowCalculatorImpl{cfg: cfg}
}

// GetReportingTime returns when a report for a trigger at triggerTime is delivered: the end
// of the first window that closes after the trigger, plus the reporting skew
func (c *EventReportWindowCalculatorImpl) GetReportingTime(source *models.Source, triggerTime time.Time, destinationType models.EventSurfaceType) time.Time {
	isInstallCase := destinationType == models.EventSurfaceTypeApp && source.InstallAttributed
	for _, offset := range c.earlyReportingWindows(source, isInstallCase) {
		windowEnd := source.EventTime.Add(offset)
		if triggerTime.Before(windowEnd) {
			return windowEnd.Add(utils.ReportingSkew)
		}
	}
	return source.EventReportWindow.Add(utils.ReportingSkew)
}

// GetMaxReportCount returns how many event reports the source may produce
func (c *EventReportWindowCalculatorImpl) GetMaxReportCount(source *models.Source, isInstallCase bool) int {
	if source.SourceType == models.SourceTypeEvent && c.cfg.EnableVTCConfigurableMaxEventReports {
		count := c.cfg.VTCConfigurableMaxEventReportsCount
		if isInstallCase && count == 1 {
			// install attribution always gets a second report
			return count + 1
		}
		return count
	}
	if isInstallCase {
		if source.SourceType == models.SourceTypeEvent {
			return InstallAttrEventSourceMaxReports
		}
		return NavigationSourceMaxReports
	}
	if source.SourceType == models.SourceTypeEvent {
		return EventSourceMaxReports
	}
	return NavigationSourceMaxReports
}

// GetReportingTimeForNoising returns the delivery time of the window at windowIndex.
// Indexes past the last early window resolve to the final window.
func (c *EventReportWindowCalculatorImpl) GetReportingTimeForNoising(source *models.Source, windowIndex int, isInstallCase bool) time.Time {
	windows := c.earlyReportingWindows(source, isInstallCase)
	if windowIndex >= 0 && windowIndex < len(windows) {
		return source.EventTime.Add(windows[windowIndex]).Add(utils.ReportingSkew)
	}
	return source.EventReportWindow.Add(utils.ReportingSkew)
}

// ReportingWindowsForSource returns the end of every reporting window, final window last
func (c *EventReportWindowCalculatorImpl) ReportingWindowsForSource(source *models.Source, isInstallCase bool) []time.Time {
	windows := c.earlyReportingWindows(source, isInstallCase)
	ends := make([]time.Time, 0, len(windows)+1)
	for _, offset := range windows {
		ends = append(ends, source.EventTime.Add(offset))
	}
	return append(ends, source.EventReportWindow)
}

// earlyReportingWindows returns the offsets from the source event time of the windows that
// close before the source's final window
func (c *EventReportWindowCalculatorImpl) earlyReportingWindows(source *models.Source, isInstallCase bool) []time.Duration {
	var candidates []time.Duration
	configured, ok := c.configuredEarlyReportingWindows(source.SourceType)
	switch {
	case ok && len(configured) == 0 && source.SourceType == models.SourceTypeEvent && isInstallCase:
		candidates = installAttrEventEarlyReportingWindows
	case ok:
		candidates = configured
	default:
		candidates = defaultEarlyReportingWindows(source.SourceType, isInstallCase)
	}

	windowLength := source.ReportWindowLength()
	windows := make([]time.Duration, 0, len(candidates))
	for _, offset := range candidates {
		if offset < windowLength {
			windows = append(windows, offset)
		}
	}
	return windows
}

func defaultEarlyReportingWindows(sourceType models.SourceType, isInstallCase bool) []time.Duration {
	if sourceType == models.SourceTypeNavigation {
		return navigationEarlyReportingWindows
	}
	if isInstallCase {
		return installAttrEventEarlyReportingWindows
	}
	return nil
}

// configuredEarlyReportingWindows returns the flag-configured windows for the source type.
// ok is false when configurable windows are off or the flag is unset or malformed.
func (c *EventReportWindowCalculatorImpl) configuredEarlyReportingWindows(sourceType models.SourceType) ([]time.Duration, bool) {
	if !c.cfg.EnableConfigurableEventReportingWindows {
		return nil, false
	}
	raw := c.cfg.EventReportsVTCEarlyReportingWindows
	if sourceType == models.SourceTypeNavigation {
		raw = c.cfg.EventReportsCTCEarlyReportingWindows
	}
	if raw == nil {
		return nil, false
	}
	return ParseEarlyReportingWindows(*raw)
}

// ParseEarlyReportingWindows parses a comma separated list of ascending, positive second
// offsets. An empty string is a valid empty list.
func ParseEarlyReportingWindows(raw string) ([]time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []time.Duration{}, true
	}
	tokens := strings.Split(raw, ",")
	if len(tokens) > maxConfiguredEarlyReportingWindowsCount {
		return nil, false
	}
	windows := make([]time.Duration, 0, len(tokens))
	var previous int64
	for _, token := range tokens {
		seconds, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
		if err != nil || seconds <= 0 || seconds <= previous || seconds > maxEarlyReportingWindowSeconds {
			return nil, false
		}
		previous = seconds
		windows = append(windows, time.Duration(seconds)*time.Second)
	}
	return windows, true
}
