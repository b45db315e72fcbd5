package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/payments/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.IncentivePercentage.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 50, cfg.MaxRemarkLength)
	assert.Equal(t, 50, cfg.MaxFees)
	assert.Equal(t, 10, cfg.MaxDiscounts)
	assert.Equal(t, types.BlockNumber(14400), cfg.CancelBufferBlocks)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.EnableMetrics)
}

func TestLoadFrom(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PAYMENTS_INCENTIVE_PERCENTAGE": "12.5",
		"PAYMENTS_CANCEL_BUFFER_BLOCKS": "10",
		"PAYMENTS_LOG_LEVEL":            "debug",
		"PAYMENTS_ENABLE_METRICS":       "true",
		"PAYMENTS_STORAGE_PATH":         "/tmp/payments.db",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IncentivePercentage.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, types.BlockNumber(10), cfg.CancelBufferBlocks)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, "/tmp/payments.db", cfg.StoragePath)
}

func TestLoad(t *testing.T) {
	t.Setenv("PAYMENTS_MAX_FEES", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxFees)
}

func TestLoadFrom_Rejects(t *testing.T) {
	tests := map[string]map[string]string{
		"incentive above 100":  {"PAYMENTS_INCENTIVE_PERCENTAGE": "101"},
		"negative incentive":   {"PAYMENTS_INCENTIVE_PERCENTAGE": "-1"},
		"malformed incentive":  {"PAYMENTS_INCENTIVE_PERCENTAGE": "ten"},
		"zero cancel buffer":   {"PAYMENTS_CANCEL_BUFFER_BLOCKS": "0"},
		"zero remark length":   {"PAYMENTS_MAX_REMARK_LENGTH": "0"},
		"unknown log level":    {"PAYMENTS_LOG_LEVEL": "chatty"},
		"non-numeric max fees": {"PAYMENTS_MAX_FEES": "many"},
	}
	for name, environ := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			require.Error(t, err)
		})
	}
}
