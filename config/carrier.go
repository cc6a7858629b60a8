package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	carrierEnvPrefix = "DELHIVERY_"

	DefaultCarrierBaseURL = "https://staging-express.delhivery.com"
)

// ErrNotConfigured is returned when the carrier token is absent from the environment.
var ErrNotConfigured = errors.New("carrier not configured")

// CarrierConfig is read from DELHIVERY_BASE and DELHIVERY_TOKEN.
type CarrierConfig struct {
	BaseURL string `koanf:"base"`
	Token   string `koanf:"token" validate:"required"`
}

var carrierValidate = validator.New()

// LoadCarrierConfig reads the carrier settings from the process environment.
// It is called per request, so a rotated token is picked up without a restart.
func LoadCarrierConfig() (CarrierConfig, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(carrierEnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, carrierEnvPrefix))
	}), nil)
	if err != nil {
		return CarrierConfig{}, errors.Wrap(err, "load carrier env")
	}

	var cfg CarrierConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return CarrierConfig{}, errors.Wrap(err, "unmarshal carrier env")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCarrierBaseURL
	}

	if err := carrierValidate.Struct(cfg); err != nil {
		return CarrierConfig{}, errors.WithStack(ErrNotConfigured)
	}
	return cfg, nil
}
