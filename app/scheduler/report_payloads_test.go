package scheduler

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/measurement-reporting/models"
)

var payloadReportTime = time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC)

// stubEncrypter makes encrypted payloads deterministic
type stubEncrypter struct {
	sharedInfo []string
}

func (e *stubEncrypter) Encrypt(publicKey string, _ []models.AggregateHistogramContribution, sharedInfo string) (string, error) {
	e.sharedInfo = append(e.sharedInfo, sharedInfo)
	return "sealed-for-" + publicKey, nil
}

func (e *stubEncrypter) EncodeDebugPayload(contributions []models.AggregateHistogramContribution) (string, error) {
	return fmt.Sprintf("cleartext-%d", len(contributions)), nil
}

func assertGoldenJSON(t *testing.T, name string, payload any) {
	t.Helper()
	data, err := json.MarshalIndent(payload, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func goldenEventReport() *models.EventReport {
	return &models.EventReport{
		ID:                      "event-1",
		SourceEventID:           models.UnsignedLong(18446744073709551615),
		RegistrationOrigin:      "https://adtech.example.com",
		AttributionDestinations: pq.StringArray{"https://shop.example.com", "android-app://com.example.app"},
		ReportTime:              payloadReportTime,
		TriggerData:             models.UnsignedLongPtr(2),
		SourceType:              models.SourceTypeNavigation,
		RandomizedTriggerRate:   0.0024263,
		SourceDebugKey:          models.UnsignedLongPtr(111),
		TriggerDebugKey:         models.UnsignedLongPtr(222),
		Status:                  models.ReportStatusPending,
	}
}

func goldenAggregateReport(t *testing.T) *models.AggregateReport {
	t.Helper()
	report := &models.AggregateReport{
		ID:                     "aggregate-1",
		PublisherSite:          "https://publisher.example.com",
		AttributionDestination: "https://shop.example.com",
		SourceRegistrationTime: time.Date(2026, 5, 1, 17, 45, 12, 0, time.UTC),
		ScheduledReportTime:    payloadReportTime,
		RegistrationOrigin:     "https://adtech.example.com",
		SourceDebugKey:         models.UnsignedLongPtr(111),
		TriggerDebugKey:        models.UnsignedLongPtr(222),
		Status:                 models.ReportStatusPending,
	}
	require.NoError(t, report.SetContributions([]models.AggregateHistogramContribution{
		{Key: big.NewInt(1369), Value: 32768},
		{Key: new(big.Int).Lsh(big.NewInt(1), 127), Value: 1664},
	}))
	return report
}

func TestEventReportPayload(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		assertGoldenJSON(t, "event_report_payload", NewEventReportPayload(goldenEventReport()))
	})

	t.Run("defaults and omitted debug keys", func(t *testing.T) {
		report := &models.EventReport{
			ID:                      "event-2",
			SourceEventID:           models.UnsignedLong(7),
			AttributionDestinations: pq.StringArray{"https://shop.example.com"},
			ReportTime:              payloadReportTime,
			SourceType:              models.SourceTypeEvent,
		}
		assertGoldenJSON(t, "event_report_payload_minimal", NewEventReportPayload(report))
	})
}

func TestAggregateReportPayload(t *testing.T) {
	key := &models.AggregateEncryptionKey{KeyID: "key-1", PublicKey: "public-1"}

	t.Run("debug cleartext with both debug keys", func(t *testing.T) {
		encrypter := &stubEncrypter{}
		payload, err := NewAggregateReportPayload(goldenAggregateReport(t), key, encrypter)

		require.NoError(t, err)
		assertGoldenJSON(t, "aggregate_report_payload", payload)
		require.Len(t, encrypter.sharedInfo, 1)
		assert.Equal(t, payload.SharedInfo, encrypter.sharedInfo[0])
	})

	t.Run("no cleartext with one debug key", func(t *testing.T) {
		report := goldenAggregateReport(t)
		report.TriggerDebugKey = nil

		payload, err := NewAggregateReportPayload(report, key, &stubEncrypter{})

		require.NoError(t, err)
		assertGoldenJSON(t, "aggregate_report_payload_without_debug_keys", payload)
	})

	t.Run("invalid contributions", func(t *testing.T) {
		report := goldenAggregateReport(t)
		report.Contributions = `[{"key":"-1","value":1}]`

		_, err := NewAggregateReportPayload(report, key, &stubEncrypter{})

		assert.Error(t, err)
	})
}

func TestAggregateSharedInfo_TruncatesRegistrationTimeToDay(t *testing.T) {
	report := goldenAggregateReport(t)
	report.APIVersion = "1.0"

	info, err := NewAggregateSharedInfo(report)
	require.NoError(t, err)

	var decoded AggregateSharedInfo
	require.NoError(t, json.Unmarshal([]byte(info), &decoded))
	assert.Equal(t, "1777593600", decoded.SourceRegistrationTime)
	assert.Equal(t, "1.0", decoded.Version)
}

func TestDebugReportPayload(t *testing.T) {
	t.Run("wraps body in an array", func(t *testing.T) {
		report := &models.DebugReport{
			ID:   "debug-1",
			Type: models.DebugReportTypeTriggerEventStorageLimit,
			Body: `{"attribution_destination":"https://shop.example.com","limit":"10","source_event_id":"123"}`,
		}

		payload, err := NewDebugReportPayload(report)

		require.NoError(t, err)
		assertGoldenJSON(t, "debug_report_payload", payload)
	})

	t.Run("invalid body", func(t *testing.T) {
		_, err := NewDebugReportPayload(&models.DebugReport{ID: "debug-2", Body: "{"})
		assert.Error(t, err)
	})
}
