// Copyright 2025 ICN Federation
//
package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icn-federation/icn-core/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ICN_BIDDING_WINDOW_MS", "")
	t.Setenv("ICN_MIN_BIDS", "")
	t.Setenv("ICN_BACKEND_KIND", "")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, int64(10000), cfg.BiddingWindowMs)
	assert.Equal(t, 1, cfg.MinBids)
	assert.Equal(t, 64, cfg.MaxBids)
	assert.Equal(t, "memory", cfg.BackendKind)
	assert.False(t, cfg.AllowSelfBid)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ICN_MIN_BIDS", "3")
	t.Setenv("ICN_MAX_BIDS", "10")
	t.Setenv("ICN_ALLOW_SELF_BID", "true")
	t.Setenv("ICN_BACKEND_KIND", "sql")
	t.Setenv("ICN_DATABASE_URL", "postgres://localhost/icn")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MinBids)
	assert.Equal(t, 10, cfg.MaxBids)
	assert.True(t, cfg.AllowSelfBid)
	assert.Equal(t, "sql", cfg.BackendKind)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsInconsistentBidBounds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MinBids = 10
	cfg.MaxBids = 5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSQLBackendWithoutDatabaseURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BackendKind = "sql"
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())
}

func TestDurationHelpersConvertMillisecondFields(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, 10.0, cfg.BiddingWindow().Seconds())
	assert.Equal(t, 60.0, cfg.ExecutionDeadline().Seconds())
	assert.Equal(t, 5.0, cfg.GraceAfterDeadline().Seconds())
}
