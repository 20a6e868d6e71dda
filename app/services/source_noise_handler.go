package services

import (
	"github.com/amirphl/measurement-reporting/config"
	"github.com/amirphl/measurement-reporting/models"
)

// SourceNoiseHandler exposes the randomized response parameters of a source
type SourceNoiseHandler interface {
	RandomizedTriggerRate(source *models.Source) float64
}

// SourceNoiseHandlerImpl implements SourceNoiseHandler
type SourceNoiseHandlerImpl struct {
	cfg config.MeasurementConfig
}

// NewSourceNoiseHandler creates a noise handler over the given flags
func NewSourceNoiseHandler(cfg config.MeasurementConfig) SourceNoiseHandler {
	return &SourceNoiseHandlerImpl{cfg: cfg}
}

// RandomizedTriggerRate returns the probability that the source's reports were replaced
// with fake ones
func (h *SourceNoiseHandlerImpl) RandomizedTriggerRate(source *models.Source) float64 {
	installCase := source.InstallDetectionEnabled()
	if source.SourceType == models.SourceTypeNavigation {
		if installCase {
			return h.cfg.InstallAttrNavigationNoiseProbability
		}
		return h.cfg.NavigationNoiseProbability
	}
	if installCase {
		return h.cfg.InstallAttrEventNoiseProbability
	}
	return h.cfg.EventNoiseProbability
}
