package services

import (
	"testing"
	"time"

	"github.com/amirphl/measurement-reporting/config"
	"github.com/amirphl/measurement-reporting/models"
	"github.com/stretchr/testify/assert"
)

func TestSourceNoiseHandler_RandomizedTriggerRate(t *testing.T) {
	tests := []struct {
		name            string
		sourceType      models.SourceType
		cooldown        time.Duration
		appDestinations []string
		want            float64
	}{
		{"event", models.SourceTypeEvent, 0, []string{"android-app://com.example"}, config.DefaultEventNoiseProbability},
		{"navigation", models.SourceTypeNavigation, 0, nil, config.DefaultNavigationNoiseProbability},
		{"install event", models.SourceTypeEvent, time.Hour, []string{"android-app://com.example"}, config.DefaultInstallAttrEventNoiseProbability},
		{"install navigation", models.SourceTypeNavigation, time.Hour, []string{"android-app://com.example"}, config.DefaultInstallAttrNavigationNoiseProbability},
		{"cooldown without app destination", models.SourceTypeEvent, time.Hour, nil, config.DefaultEventNoiseProbability},
	}

	handler := NewSourceNoiseHandler(config.DefaultMeasurementConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &models.Source{
				SourceType:            tt.sourceType,
				InstallCooldownWindow: tt.cooldown,
				AppDestinations:       tt.appDestinations,
			}
			assert.Equal(t, tt.want, handler.RandomizedTriggerRate(source))
		})
	}
}

func TestSourceNoiseHandler_UsesConfiguredProbabilities(t *testing.T) {
	cfg := config.DefaultMeasurementConfig()
	cfg.EventNoiseProbability = 0.5

	handler := NewSourceNoiseHandler(cfg)

	assert.Equal(t, 0.5, handler.RandomizedTriggerRate(&models.Source{SourceType: models.SourceTypeEvent}))
}
