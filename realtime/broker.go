// Package realtime fans board events out to connected clients. Events
// travel through a Redis pub/sub channel per board so every instance
// sees mutations made on any other, then each instance forwards to its
// local SSE subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

const boardChannelPrefix = "board:"

// BoardChannel names the pub/sub channel for a board.
func BoardChannel(boardID domain.ID) string {
	return boardChannelPrefix + boardID.String()
}

// Broker bridges the Redis board channels and in-process subscribers.
type Broker struct {
	redis  *redis.Client
	logger *log.Logger

	mu   sync.RWMutex
	subs map[domain.ID]map[chan domain.BoardEvent]struct{}
}

// NewBroker creates a broker. A nil Redis client keeps delivery
// in-process, which is enough for a single instance and for tests.
func NewBroker(client *redis.Client, logger *log.Logger) *Broker {
	return &Broker{
		redis:  client,
		logger: logger,
		subs:   make(map[domain.ID]map[chan domain.BoardEvent]struct{}),
	}
}

// Subscribe registers a local subscriber for one board. The returned
// cancel must be called when the consumer goes away.
func (b *Broker) Subscribe(boardID domain.ID) (<-chan domain.BoardEvent, func()) {
	ch := make(chan domain.BoardEvent, 16)
	b.mu.Lock()
	if b.subs[boardID] == nil {
		b.subs[boardID] = make(map[chan domain.BoardEvent]struct{})
	}
	b.subs[boardID][ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		if subs, ok := b.subs[boardID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, boardID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}
}

// Publish sends the event to the board channel. With Redis attached the
// local delivery happens when the bridge receives its own publication,
// so events reach every instance exactly the same way.
func (b *Broker) Publish(ctx context.Context, ev domain.BoardEvent) {
	if b.redis == nil {
		b.deliver(ev)
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.WithError(err).Error("marshal board event")
		return
	}
	if err := b.redis.Publish(ctx, BoardChannel(ev.BoardID), data).Err(); err != nil {
		b.logger.WithError(err).WithField("board", ev.BoardID).Error("publish board event")
	}
}

func (b *Broker) deliver(ev domain.BoardEvent) {
	b.mu.RLock()
	for ch := range b.subs[ev.BoardID] {
		select {
		case ch <- ev:
		default:
			// Slow consumers lose events; a reconnect resyncs them.
		}
	}
	b.mu.RUnlock()
}

// Run consumes the board channels and forwards to local subscribers.
// It blocks until ctx is cancelled and survives dropped pub/sub
// connections by resubscribing.
func (b *Broker) Run(ctx context.Context) {
	if b.redis == nil {
		<-ctx.Done()
		return
	}
	for {
		sub := b.redis.PSubscribe(ctx, boardChannelPrefix+"*")
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev domain.BoardEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.WithError(err).Error("unable to parse board event")
					continue
				}
				if !strings.HasPrefix(msg.Channel, boardChannelPrefix) {
					continue
				}
				b.deliver(ev)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}
