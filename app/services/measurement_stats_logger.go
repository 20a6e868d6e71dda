package services

import (
	"log"
	"strconv"

	"github.com/amirphl/measurement-reporting/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var debugKeysMatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "measurement_debug_keys_match_total",
		Help: "Debug join key comparisons partitioned by attribution type and outcome",
	},
	[]string{"attribution_type", "matched"},
)

// MeasurementStatsLogger receives measurement telemetry that is never persisted
type MeasurementStatsLogger interface {
	LogDebugKeysMatch(stats models.DebugKeysMatchStats)
}

// MeasurementStatsLoggerImpl writes stats to a logger and Prometheus
type MeasurementStatsLoggerImpl struct {
	logger *log.Logger
}

// NewMeasurementStatsLogger creates a stats logger; a nil logger uses log.Default()
func NewMeasurementStatsLogger(logger *log.Logger) MeasurementStatsLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &MeasurementStatsLoggerImpl{logger: logger}
}

func (l *MeasurementStatsLoggerImpl) LogDebugKeysMatch(stats models.DebugKeysMatchStats) {
	debugKeysMatchTotal.WithLabelValues(string(stats.AttributionType), strconv.FormatBool(stats.Matched)).Inc()
	l.logger.Printf("measurement: debug keys match enrollment=%s attribution_type=%s matched=%t hashed_value=%d hash_limit=%d",
		stats.AdTechEnrollmentID,
		stats.AttributionType,
		stats.Matched,
		stats.DebugJoinKeyHashedValue,
		stats.DebugJoinKeyHashLimit,
	)
}
