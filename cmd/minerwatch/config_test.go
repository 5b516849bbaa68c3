package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "-100123")
	t.Setenv("BTC_ADDRESS", "bc1qfleet")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "https://public-pool.io:40557/api", cfg.APIBaseURL)
	assert.Equal(t, "minerwatch.db", cfg.DBPath)
	assert.Equal(t, 5*time.Minute, cfg.OfflineTimeout)
	assert.Equal(t, 45*time.Hour, cfg.MessageEditLimit)
	assert.Equal(t, 30.0, cfg.HashrateDropPercent)
	assert.Equal(t, 90, cfg.DataRetentionDays)
	assert.Equal(t, "warning", cfg.LogLevel)
}

func TestLoadConfigRequiresCredentials(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "-100123")
	t.Setenv("BTC_ADDRESS", "")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BTC_ADDRESS")
}

func TestSubstitutionsFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NAME_SUBSTITUTIONS", "worker_2=Office NerdMiner, bitaxe=BitAxe Ultra")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Substitutions{
		"worker_2": "Office NerdMiner",
		"bitaxe":   "BitAxe Ultra",
	}, cfg.NameSubstitutions)

	mc := cfg.Monitor()
	assert.Equal(t, "Office NerdMiner", mc.NameSubstitutions["worker_2"])
}

func TestSubstitutionsRejectMalformedPairs(t *testing.T) {
	var s Substitutions
	assert.Error(t, s.SetValue("no-separator"))
}
