package coord

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// GrantResult reports the outcome of a sync-slot request.
type GrantResult struct {
	Granted bool
	// Reason is ErrSlotBusy when the request was denied.
	Reason error
	// Seq is the sequence number of the grant, for tracing SCO setups
	// against controller logs. Zero when denied.
	Seq int64
}

// SyncSlotArbiter serializes access to the controller's one synchronous
// (SCO/eSCO) connection. There is a single grant token: a request is
// granted only when no grant is outstanding, and a concurrent second
// request is denied, never queued — SCO setup cannot be backlogged across
// devices under this controller's single-connection limit.
//
// A2DP never takes the slot (its audio rides L2CAP), so in practice the
// arbiter's job is refusing a second HFP audio connection, e.g. a
// call-waiting SCO attempt.
type SyncSlotArbiter struct {
	mu       sync.Mutex
	holder   string
	grantSeq atomic.Int64
	denials  atomic.Int64
	logger   *zerolog.Logger
}

// NewSyncSlotArbiter creates an arbiter with the slot free.
func NewSyncSlotArbiter(logger *zerolog.Logger) *SyncSlotArbiter {
	l := logger.With().Str("component", "sync-slot-arbiter").Logger()
	return &SyncSlotArbiter{logger: &l}
}

// RequestGrant claims the sync slot for sessionID. While any grant is
// outstanding — including one held by the same session — the request is
// denied with ErrSlotBusy; re-granting to the current holder would hide a
// double SCO setup attempt.
func (a *SyncSlotArbiter) RequestGrant(sessionID string) GrantResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != "" {
		a.denials.Add(1)
		a.logger.Warn().
			Str("requester", sessionID).
			Str("holder", a.holder).
			Msg("sync slot request denied")
		return GrantResult{Reason: ErrSlotBusy}
	}

	a.holder = sessionID
	seq := a.grantSeq.Add(1)
	a.logger.Info().Str("holder", sessionID).Int64("seq", seq).Msg("sync slot granted")
	return GrantResult{Granted: true, Seq: seq}
}

// Release returns the slot held by sessionID. Releasing a grant that is
// not held — already released, or held by another session — is a no-op,
// not an error.
func (a *SyncSlotArbiter) Release(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder != sessionID {
		return
	}
	a.holder = ""
	a.logger.Info().Str("holder", sessionID).Msg("sync slot released")
}

// Held reports whether a grant is outstanding.
func (a *SyncSlotArbiter) Held() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder != ""
}

// Holder returns the session holding the slot, or "" when free.
func (a *SyncSlotArbiter) Holder() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}

// GrantCount returns the total number of grants issued.
func (a *SyncSlotArbiter) GrantCount() int64 {
	return a.grantSeq.Load()
}

// DenialCount returns the total number of denied requests.
func (a *SyncSlotArbiter) DenialCount() int64 {
	return a.denials.Load()
}

// Reset force-frees the slot. Used when the holding device disconnects
// without a clean release.
func (a *SyncSlotArbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder != "" {
		a.logger.Warn().Str("holder", a.holder).Msg("sync slot force-released")
	}
	a.holder = ""
}
