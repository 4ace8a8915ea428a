package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/havenmind/coach-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event types published by the session services.
const (
	EventParticipantJoined = "participant_joined"
	EventMemberRemoved     = "member_removed"
	EventReadyChanged      = "ready_changed"
	EventSessionStarted    = "session_started"
	EventSessionEnded      = "session_ended"
	EventSessionLocked     = "session_locked"
	EventSessionRestarted  = "session_restarted"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	SessionID string
	Events    chan Event
	Done      chan struct{}
}

// hub groups the clients of one session with the stop channel of the redis
// goroutine reading that session's pub/sub channel. The goroutine and the hub
// share a lifetime: the hub is dropped and `stop` closed when the last client
// leaves, so a later Subscribe starts a fresh hub and exactly one reader.
type hub struct {
	clients map[*Client]bool
	stop    chan struct{}
}

// Broker fans session events out to connected SSE clients. Events travel
// through Redis pub/sub so every server instance sees them.
type Broker struct {
	redis  *redisclient.Client
	hubs   map[string]*hub // keyed by sessionID
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		hubs:   make(map[string]*hub),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Events:    make(chan Event, 100),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	h, ok := b.hubs[sessionID]
	if !ok {
		h = &hub{
			clients: make(map[*Client]bool),
			stop:    make(chan struct{}),
		}
		b.hubs[sessionID] = h
		go b.subscribeToRedis(sessionID, h.stop)
	}
	h.clients[client] = true
	clientCount := len(h.clients)
	b.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.hubs[client.SessionID]
	if !ok {
		return
	}

	delete(h.clients, client)
	close(client.Done)

	if len(h.clients) == 0 {
		close(h.stop)
		delete(b.hubs, client.SessionID)
	}

	log.Info().
		Str("sessionId", client.SessionID).
		Int("clientCount", len(h.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, sessionID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.SessionChannel(sessionID)
	return b.redis.Publish(ctx, channel, data).Err()
}

// PublishJSON marshals payload and publishes it as an event of the given type.
func (b *Broker) PublishJSON(ctx context.Context, sessionID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(ctx, sessionID, Event{Type: eventType, Data: data})
}

func (b *Broker) subscribeToRedis(sessionID string, stop <-chan struct{}) {
	channel := redisclient.SessionChannel(sessionID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("sessionId", sessionID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case <-stop:
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(sessionID, event)
		}
	}
}

func (b *Broker) broadcast(sessionID string, event Event) {
	b.mu.RLock()
	var clients []*Client
	if h, ok := b.hubs[sessionID]; ok {
		for client := range h.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("sessionId", sessionID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.hubs {
		for client := range h.clients {
			close(client.Done)
		}
	}
	b.hubs = make(map[string]*hub)
}

func (b *Broker) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if h, ok := b.hubs[sessionID]; ok {
		return len(h.clients)
	}
	return 0
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, h := range b.hubs {
		total += len(h.clients)
	}
	return total
}
