package coord

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Config centralizes the tunables used across the coordinator components.
// The synchronous connection capacity is not among them: the controller
// supports exactly one SCO/eSCO link, so SyncSlotArbiter carries a single
// structural grant token rather than a configurable count. The registry is
// single-peer because a one-SCO-slot controller cannot serve two phones.
type Config struct {
	// EventQueueCapacity bounds the coordinator's inbound event queue.
	// Events beyond this depth are dropped with ErrQueueFull rather than
	// blocking the stack callback that produced them.
	EventQueueCapacity int

	// RegistryCapacity is the number of remote devices that may be
	// registered at once.
	RegistryCapacity int

	// BroadcastWriteTimeout bounds a single WebSocket state push so one
	// stalled subscriber cannot back up the broadcaster.
	BroadcastWriteTimeout time.Duration

	// RejectSecondIncomingCall makes the coordinator actively reject an
	// incoming call signalled while another call already owns the sync
	// slot, instead of leaving it ringing.
	RejectSecondIncomingCall bool
}

// DefaultConfig returns the configuration matching the target hardware.
func DefaultConfig() Config {
	return Config{
		EventQueueCapacity:       64,
		RegistryCapacity:         1,
		BroadcastWriteTimeout:    5 * time.Second,
		RejectSecondIncomingCall: true,
	}
}

var activeConfig atomic.Pointer[Config]

func init() {
	cfg := DefaultConfig()
	activeConfig.Store(&cfg)
}

// GetConfig returns the active configuration.
func GetConfig() Config {
	return *activeConfig.Load()
}

// UpdateConfig validates and installs a new configuration. Components read
// the configuration at use time, so the update takes effect on the next
// operation.
func UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	activeConfig.Store(&cfg)
	return nil
}

// Validate checks the configuration for values the hardware cannot honor.
func (c Config) Validate() error {
	if c.EventQueueCapacity < 1 {
		return fmt.Errorf("event queue capacity must be at least 1, got %d", c.EventQueueCapacity)
	}
	if c.RegistryCapacity < 1 {
		return fmt.Errorf("registry capacity must be at least 1, got %d", c.RegistryCapacity)
	}
	if c.BroadcastWriteTimeout <= 0 {
		return fmt.Errorf("broadcast write timeout must be positive, got %v", c.BroadcastWriteTimeout)
	}
	return nil
}
