package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := FromLookup(env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromLookup(env(map[string]string{
		"SHARDBOOK_SYMBOLS":            "16",
		"SHARDBOOK_QUEUE_MODE":         "mpsc",
		"SHARDBOOK_IDLE_BACKOFF":       "250us",
		"SHARDBOOK_ENFORCE_FOK":        "true",
		"SHARDBOOK_OUTBOX_DIR":         "/tmp/outbox",
		"SHARDBOOK_BROKER":             "sarama",
		"SHARDBOOK_BROKERS":            "k1:9092, k2:9092,",
		"SHARDBOOK_ADMIN_ADDR":         ":8080",
		"SHARDBOOK_PRICE_SCALE":        "4",
		"SHARDBOOK_BROADCAST_INTERVAL": "1s",
	}))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Symbols)
	assert.Equal(t, "mpsc", cfg.QueueMode)
	assert.Equal(t, 250*time.Microsecond, cfg.IdleBackoff)
	assert.True(t, cfg.EnforceFillOrKill)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.Equal(t, int32(4), cfg.PriceScale)
	assert.Equal(t, time.Second, cfg.BroadcastInterval)
}

func TestInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad int":           {"SHARDBOOK_SYMBOLS": "many"},
		"zero symbols":      {"SHARDBOOK_SYMBOLS": "0"},
		"bad mode":          {"SHARDBOOK_QUEUE_MODE": "lifo"},
		"bad duration":      {"SHARDBOOK_IDLE_BACKOFF": "soon"},
		"bad bool":          {"SHARDBOOK_DEMO": "yes please"},
		"broker no brokers": {"SHARDBOOK_BROKER": "kafka-go", "SHARDBOOK_OUTBOX_DIR": "x"},
		"broker no outbox":  {"SHARDBOOK_BROKER": "sarama", "SHARDBOOK_BROKERS": "k:1"},
		"bad level":         {"SHARDBOOK_LOG_LEVEL": "loud"},
		"single-slot log":   {"SHARDBOOK_LOG_QUEUE_CAPACITY": "1"},
		"single-slot mpsc":  {"SHARDBOOK_QUEUE_MODE": "mpsc", "SHARDBOOK_QUEUE_CAPACITY": "1"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromLookup(env(vars))
			assert.Error(t, err)
		})
	}
}

func TestSingleSlotShardQueueAllowedForSPSC(t *testing.T) {
	cfg, err := FromLookup(env(map[string]string{
		"SHARDBOOK_QUEUE_MODE":     "spsc",
		"SHARDBOOK_QUEUE_CAPACITY": "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.QueueCapacity)

	_, err = FromLookup(env(map[string]string{
		"SHARDBOOK_QUEUE_MODE":     "mpsc",
		"SHARDBOOK_QUEUE_CAPACITY": "1",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QueueCapacity")
}
