package coord

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
)

// StateEventType labels the messages pushed to WebSocket subscribers.
type StateEventType string

const (
	StateEventSnapshot StateEventType = "coordinator-snapshot"
)

// StateEvent is one WebSocket message.
type StateEvent struct {
	Type StateEventType `json:"type"`
	Data Snapshot       `json:"data"`
}

// subscriberQueueDepth bounds the per-subscriber backlog. A subscriber
// that falls further behind loses its oldest snapshots, never its newest.
const subscriberQueueDepth = 16

type stateSubscriber struct {
	conn   *websocket.Conn
	ctx    context.Context
	logger *zerolog.Logger
	queue  chan StateEvent
}

// StateBroadcaster fans coordinator snapshots out to WebSocket
// subscribers. New subscribers immediately receive the latest snapshot so
// a UI never starts blank. Each subscriber has a single writer goroutine
// draining a bounded queue, so snapshots reach every client in publish
// order and a stalled client never blocks the coordinator's notify hook.
type StateBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*stateSubscriber
	last        Snapshot
	haveLast    bool
	logger      *zerolog.Logger
}

// NewStateBroadcaster creates a broadcaster with no subscribers.
func NewStateBroadcaster(logger *zerolog.Logger) *StateBroadcaster {
	l := logger.With().Str("component", "state-broadcaster").Logger()
	return &StateBroadcaster{
		subscribers: make(map[string]*stateSubscriber),
		logger:      &l,
	}
}

// Subscribe adds a WebSocket connection under the given ID, replacing any
// previous subscription with the same ID. The connection is not closed on
// replacement: it may be shared with other traffic.
func (b *StateBroadcaster) Subscribe(connectionID string, conn *websocket.Conn, ctx context.Context, logger *zerolog.Logger) {
	b.mu.Lock()
	if old, exists := b.subscribers[connectionID]; exists {
		b.logger.Debug().Str("connectionID", connectionID).Msg("duplicate subscription, replacing")
		delete(b.subscribers, connectionID)
		close(old.queue)
	}
	sub := &stateSubscriber{
		conn:   conn,
		ctx:    ctx,
		logger: logger,
		queue:  make(chan StateEvent, subscriberQueueDepth),
	}
	b.subscribers[connectionID] = sub
	// Enqueued under the lock, so the initial snapshot always precedes any
	// snapshot Broadcast pushes afterwards.
	if b.haveLast {
		sub.queue <- StateEvent{Type: StateEventSnapshot, Data: b.last}
	}
	b.mu.Unlock()

	go b.writeLoop(sub)
	b.logger.Debug().Str("connectionID", connectionID).Msg("subscription added")
}

// Unsubscribe removes the subscription for the given ID and stops its
// writer.
func (b *StateBroadcaster) Unsubscribe(connectionID string) {
	b.mu.Lock()
	sub, exists := b.subscribers[connectionID]
	if exists {
		delete(b.subscribers, connectionID)
		close(sub.queue)
	}
	b.mu.Unlock()
	if exists {
		b.logger.Debug().Str("connectionID", connectionID).Msg("subscription removed")
	}
}

// Broadcast enqueues a snapshot for every subscriber. When a subscriber's
// queue is full its oldest pending snapshot is dropped to make room, so a
// slow client converges on the current state instead of an ever-staler
// one.
func (b *StateBroadcaster) Broadcast(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last = snap
	b.haveLast = true

	event := StateEvent{Type: StateEventSnapshot, Data: snap}
	for _, sub := range b.subscribers {
		select {
		case sub.queue <- event:
		default:
			select {
			case <-sub.queue:
				sub.logger.Debug().Msg("subscriber lagging, dropping oldest state event")
			default:
			}
			select {
			case sub.queue <- event:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *StateBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// writeLoop is the single writer for one subscriber; it preserves enqueue
// order and exits when the subscription is removed.
func (b *StateBroadcaster) writeLoop(sub *stateSubscriber) {
	for event := range sub.queue {
		ctx, cancel := context.WithTimeout(sub.ctx, GetConfig().BroadcastWriteTimeout)
		err := wsjson.Write(ctx, sub.conn, event)
		cancel()
		if err != nil {
			sub.logger.Debug().Err(err).Msg("failed to push state event")
		}
	}
}
