package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_LogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", " JSON ")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidate_RejectsUnknownLogFormat(t *testing.T) {
	cfg := &Config{
		Estimator: EstimatorConfig{WindowMode: "trailing", WindowDays: 7, DemandSource: "files"},
		LogFormat: "xml",
	}

	err := cfg.Validate()

	assert.ErrorContains(t, err, "LOG_FORMAT")
}
