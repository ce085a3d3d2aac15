package config

import (
	"time"

	"imgapi/internal/model"
)

const (
	// DefaultAPITimeout bounds the main API call
	DefaultAPITimeout = 60 * time.Second
	// DefaultImageTimeout bounds the preliminary image byte fetch
	DefaultImageTimeout = 10 * time.Second
	// DefaultUserAgent is sent with every outbound request
	DefaultUserAgent = "imgapi/1.0"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Method:       "POST",
		Variant:      string(model.VariantGeneric),
		Encoding:     string(model.EncodingForm),
		Timeout:      DefaultAPITimeout.String(),
		ImageTimeout: DefaultImageTimeout.String(),
		ExportDir:    ".",
		UserAgent:    DefaultUserAgent,
		NoColor:      BoolPtr(false),
		Params: []model.Parameter{
			{Key: "correct", Value: "true"},
		},
	}
}
