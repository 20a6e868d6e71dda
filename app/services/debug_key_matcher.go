package services

import (
	"context"
	"fmt"

	"github.com/amirphl/measurement-reporting/config"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/cespare/xxhash/v2"
)

// DebugAdIDCounter counts the distinct debug ad ids an enrollment has used on the web
type DebugAdIDCounter interface {
	CountDistinctDebugAdIDsUsedByEnrollment(ctx context.Context, enrollmentID string) (int64, error)
}

// DebugKeyPair holds the debug keys that may be attached to a report. Either may be nil.
type DebugKeyPair struct {
	SourceDebugKey  *models.UnsignedLong
	TriggerDebugKey *models.UnsignedLong
}

// DebugKeyMatcher decides which debug keys of a source/trigger pair may be disclosed
type DebugKeyMatcher interface {
	Match(ctx context.Context, source *models.Source, trigger *models.Trigger) (DebugKeyPair, error)
	MatchForVerboseTriggerReport(ctx context.Context, source *models.Source, trigger *models.Trigger) (DebugKeyPair, error)
}

// DebugKeyMatcherImpl implements DebugKeyMatcher
type DebugKeyMatcherImpl struct {
	cfg      config.MeasurementConfig
	adIDs    DebugAdIDCounter
	stats    MeasurementStatsLogger
	allowed  map[string]struct{}
	blocked  map[string]struct{}
	blockAll bool
}

// NewDebugKeyMatcher creates a matcher over the given flags
func NewDebugKeyMatcher(cfg config.MeasurementConfig, adIDs DebugAdIDCounter, stats MeasurementStatsLogger) DebugKeyMatcher {
	m := &DebugKeyMatcherImpl{
		cfg:     cfg,
		adIDs:   adIDs,
		stats:   stats,
		allowed: make(map[string]struct{}),
		blocked: make(map[string]struct{}),
	}
	for _, id := range cfg.DebugJoinKeyEnrollmentAllowlist {
		m.allowed[id] = struct{}{}
	}
	for _, id := range cfg.PlatformDebugAdIDMatchingBlocklist {
		if id == config.AllEnrollments {
			m.blockAll = true
		}
		m.blocked[id] = struct{}{}
	}
	return m
}

// joinKeyAttempt records the outcome of a join key comparison
type joinKeyAttempt struct {
	attempted bool
	matched   bool
	hash      int64
}

// Match returns the debug keys for an attributed report
func (m *DebugKeyMatcherImpl) Match(ctx context.Context, source *models.Source, trigger *models.Trigger) (DebugKeyPair, error) {
	var pair DebugKeyPair
	var attempt joinKeyAttempt

	attributionType := models.AttributionTypeOf(source, trigger)
	switch attributionType {
	case models.AttributionTypeAppApp:
		if source.AdIDPermission {
			pair.SourceDebugKey = source.DebugKey
		}
		if trigger.AdIDPermission {
			pair.TriggerDebugKey = trigger.DebugKey
		}
		if !source.AdIDPermission && !trigger.AdIDPermission {
			attempt = m.matchJoinKeys(source, trigger)
			if attempt.matched {
				pair = DebugKeyPair{SourceDebugKey: source.DebugKey, TriggerDebugKey: trigger.DebugKey}
			}
		}

	case models.AttributionTypeWebWeb:
		if source.Registrant == trigger.Registrant {
			if source.ArDebugPermission {
				pair.SourceDebugKey = source.DebugKey
			}
			if trigger.ArDebugPermission {
				pair.TriggerDebugKey = trigger.DebugKey
			}
			break
		}
		attempt = m.matchJoinKeys(source, trigger)
		if attempt.matched {
			pair = DebugKeyPair{SourceDebugKey: source.DebugKey, TriggerDebugKey: trigger.DebugKey}
		}

	case models.AttributionTypeAppWeb, models.AttributionTypeWebApp:
		if m.canMatchAdIDs(attributionType, source, trigger) {
			// An ad id comparison, successful or not, never falls back to join keys.
			matched, err := m.adIDsMatch(ctx, attributionType, source, trigger)
			if err != nil {
				return DebugKeyPair{}, err
			}
			if matched {
				pair = DebugKeyPair{SourceDebugKey: source.DebugKey, TriggerDebugKey: trigger.DebugKey}
			}
			break
		}
		attempt = m.matchJoinKeys(source, trigger)
		if attempt.matched {
			pair = DebugKeyPair{SourceDebugKey: source.DebugKey, TriggerDebugKey: trigger.DebugKey}
		}
	}

	m.logDebugKeysMatch(trigger, attributionType, attempt)
	return pair, nil
}

// MatchForVerboseTriggerReport returns the debug keys for a verbose trigger debug report.
// source may be nil when no source matched the trigger. The trigger key is gated on the
// trigger's own permission and is returned even when the source key is withheld.
func (m *DebugKeyMatcherImpl) MatchForVerboseTriggerReport(ctx context.Context, source *models.Source, trigger *models.Trigger) (DebugKeyPair, error) {
	if source == nil {
		if triggerHasSurfacePermission(trigger) {
			return DebugKeyPair{TriggerDebugKey: trigger.DebugKey}, nil
		}
		return DebugKeyPair{}, nil
	}

	var pair DebugKeyPair
	var attempt joinKeyAttempt

	attributionType := models.AttributionTypeOf(source, trigger)
	if !triggerHasSurfacePermission(trigger) {
		return pair, nil
	}
	pair.TriggerDebugKey = trigger.DebugKey

	switch attributionType {
	case models.AttributionTypeAppApp:
		if source.AdIDPermission {
			pair.SourceDebugKey = source.DebugKey
		}

	case models.AttributionTypeWebWeb:
		if source.Registrant == trigger.Registrant {
			if source.ArDebugPermission {
				pair.SourceDebugKey = source.DebugKey
			}
			break
		}
		attempt = m.matchJoinKeys(source, trigger)
		if attempt.matched {
			pair.SourceDebugKey = source.DebugKey
		}

	case models.AttributionTypeAppWeb, models.AttributionTypeWebApp:
		if m.canMatchAdIDs(attributionType, source, trigger) {
			matched, err := m.adIDsMatch(ctx, attributionType, source, trigger)
			if err != nil {
				return DebugKeyPair{}, err
			}
			if matched {
				pair.SourceDebugKey = source.DebugKey
			}
			break
		}
		attempt = m.matchJoinKeys(source, trigger)
		if attempt.matched {
			pair.SourceDebugKey = source.DebugKey
		}
	}

	m.logDebugKeysMatch(trigger, attributionType, attempt)
	return pair, nil
}

func triggerHasSurfacePermission(trigger *models.Trigger) bool {
	if trigger.DestinationType == models.EventSurfaceTypeWeb {
		return trigger.ArDebugPermission
	}
	return trigger.AdIDPermission
}

func (m *DebugKeyMatcherImpl) matchJoinKeys(source *models.Source, trigger *models.Trigger) joinKeyAttempt {
	if !m.canMatchJoinKeys(source, trigger) {
		return joinKeyAttempt{}
	}
	attempt := joinKeyAttempt{attempted: true}
	if *source.DebugJoinKey == *trigger.DebugJoinKey {
		attempt.matched = true
		attempt.hash = m.hashJoinKey(*source.DebugJoinKey)
	}
	return attempt
}

func (m *DebugKeyMatcherImpl) canMatchJoinKeys(source *models.Source, trigger *models.Trigger) bool {
	_, sourceAllowed := m.allowed[source.EnrollmentID]
	_, triggerAllowed := m.allowed[trigger.EnrollmentID]
	return sourceAllowed && triggerAllowed &&
		source.DebugJoinKey != nil && trigger.DebugJoinKey != nil
}

// hashJoinKey bounds the join key hash to [1, limit]; 0 is reserved for "not matched"
func (m *DebugKeyMatcherImpl) hashJoinKey(joinKey string) int64 {
	limit := m.cfg.DebugJoinKeyHashLimit
	if limit <= 0 {
		return 0
	}
	h := int64(xxhash.Sum64String(joinKey) % uint64(limit))
	if h == 0 {
		return limit
	}
	return h
}

func (m *DebugKeyMatcherImpl) canMatchAdIDs(attributionType models.AttributionType, source *models.Source, trigger *models.Trigger) bool {
	if m.blockAll {
		return false
	}
	if _, ok := m.blocked[source.EnrollmentID]; ok {
		return false
	}
	if _, ok := m.blocked[trigger.EnrollmentID]; ok {
		return false
	}
	switch attributionType {
	case models.AttributionTypeAppWeb:
		return trigger.ArDebugPermission && source.PlatformAdID != nil && trigger.DebugAdID != nil
	case models.AttributionTypeWebApp:
		return source.ArDebugPermission && source.DebugAdID != nil && trigger.PlatformAdID != nil
	default:
		return false
	}
}

// adIDsMatch compares the app side platform ad id with the web side debug ad id and checks
// that the web side enrollment is still under its distinct ad id limit
func (m *DebugKeyMatcherImpl) adIDsMatch(ctx context.Context, attributionType models.AttributionType, source *models.Source, trigger *models.Trigger) (bool, error) {
	var platformAdID, debugAdID, webEnrollmentID string
	if attributionType == models.AttributionTypeAppWeb {
		platformAdID, debugAdID, webEnrollmentID = *source.PlatformAdID, *trigger.DebugAdID, trigger.EnrollmentID
	} else {
		platformAdID, debugAdID, webEnrollmentID = *trigger.PlatformAdID, *source.DebugAdID, source.EnrollmentID
	}
	if platformAdID != debugAdID {
		return false, nil
	}
	count, err := m.adIDs.CountDistinctDebugAdIDsUsedByEnrollment(ctx, webEnrollmentID)
	if err != nil {
		return false, fmt.Errorf("failed to check debug ad id limit: %w", err)
	}
	return count < m.cfg.PlatformDebugAdIDMatchingLimit, nil
}

func (m *DebugKeyMatcherImpl) logDebugKeysMatch(trigger *models.Trigger, attributionType models.AttributionType, attempt joinKeyAttempt) {
	limit := m.cfg.DebugJoinKeyHashLimit
	if limit <= 0 || !attempt.attempted || m.stats == nil {
		return
	}
	m.stats.LogDebugKeysMatch(models.DebugKeysMatchStats{
		AdTechEnrollmentID:      trigger.EnrollmentID,
		AttributionType:         attributionType,
		Matched:                 attempt.matched,
		DebugJoinKeyHashedValue: attempt.hash,
		DebugJoinKeyHashLimit:   limit,
	})
}
