package coord

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero queue capacity", func(c *Config) { c.EventQueueCapacity = 0 }},
		{"zero registry capacity", func(c *Config) { c.RegistryCapacity = 0 }},
		{"zero broadcast timeout", func(c *Config) { c.BroadcastWriteTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			assert.Error(t, UpdateConfig(cfg), "invalid config must not be installed")
		})
	}
}

func TestUpdateConfig(t *testing.T) {
	original := GetConfig()
	defer func() {
		require.NoError(t, UpdateConfig(original))
	}()

	cfg := DefaultConfig()
	cfg.EventQueueCapacity = 128
	cfg.BroadcastWriteTimeout = 10 * time.Second
	require.NoError(t, UpdateConfig(cfg))

	assert.Equal(t, 128, GetConfig().EventQueueCapacity)
	assert.Equal(t, 10*time.Second, GetConfig().BroadcastWriteTimeout)
}
