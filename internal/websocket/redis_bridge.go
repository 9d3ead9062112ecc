package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JoelGresham/teamPoll/internal/events"
)

const (
	mirrorTimeout   = 2 * time.Second
	mirrorQueueSize = 1024
)

// RedisBridge forwards delivered events to the Redis mirror from a single
// goroutine, in delivery order. A failed publish is logged and never affects
// local delivery; a full queue drops the event.
type RedisBridge struct {
	publisher events.Publisher
	logger    *Logger
	queue     chan events.Event
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
}

func NewRedisBridge(publisher events.Publisher, logger *Logger) *RedisBridge {
	b := &RedisBridge{
		publisher: publisher,
		logger:    logger,
		queue:     make(chan events.Event, mirrorQueueSize),
		done:      make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *RedisBridge) run() {
	defer close(b.done)
	for e := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		if err := b.publisher.Publish(ctx, e); err != nil {
			b.logger.Error("mirror publish failed", e.SessionID, "", err, zap.String("type", e.Type))
		}
		cancel()
	}
}

// Forward queues the shared events of evts without blocking.
func (b *RedisBridge) Forward(_ context.Context, evts []events.Event) {
	if b == nil || b.publisher == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, e := range evts {
		if events.IsPrivate(e) {
			continue
		}
		select {
		case b.queue <- e:
		default:
			b.logger.Warn("mirror queue full", e.SessionID, "", zap.String("type", e.Type))
		}
	}
}

// Close stops accepting events and waits until the queue is drained.
func (b *RedisBridge) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	<-b.done
}
