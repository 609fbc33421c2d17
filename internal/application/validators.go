package application

import (
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-vigil/infrastructure/telemetry"
	"github.com/ahrav/go-vigil/internal/domain"
)

// RegisterValidators adds the cross-field rules that struct tags cannot
// express: the ordering of the risk thresholds and of the emitter backoff
// bounds.
func RegisterValidators(v *validator.Validate) {
	v.RegisterStructValidation(validateThresholds, domain.RiskThresholds{})
	v.RegisterStructValidation(validateEmitterBackoff, telemetry.EmitterConfig{})
}

// validateThresholds enforces 0 <= Low <= High <= 1.
func validateThresholds(sl validator.StructLevel) {
	t := sl.Current().Interface().(domain.RiskThresholds)
	if t.Validate() != nil {
		sl.ReportError(t.High, "High", "High", "thresholds", "")
	}
}

// validateEmitterBackoff rejects a MaxDelay below BaseDelay when both are set.
func validateEmitterBackoff(sl validator.StructLevel) {
	c := sl.Current().Interface().(telemetry.EmitterConfig)
	if c.BaseDelay > 0 && c.MaxDelay > 0 && c.MaxDelay < c.BaseDelay {
		sl.ReportError(c.MaxDelay, "MaxDelay", "MaxDelay", "backoff", "")
	}
}
