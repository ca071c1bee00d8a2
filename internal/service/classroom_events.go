package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
)

const streamBufferSize = 16

// classroomEvent carries a stored notification to the other API nodes so their SSE clients see it.
// Task and submission ids are lifted out of the metadata for logging on the receiving side.
type classroomEvent struct {
	Origin       string                   `json:"origin"`
	Kind         string                   `json:"kind"`
	TaskID       uint                     `json:"task_id,omitempty"`
	SubmissionID uint                     `json:"submission_id,omitempty"`
	Notification dto.NotificationResponse `json:"notification"`
	EmittedAt    time.Time                `json:"emitted_at"`
}

func newClassroomEvent(origin string, notification dto.NotificationResponse, emittedAt time.Time) classroomEvent {
	return classroomEvent{
		Origin:       origin,
		Kind:         notification.Type,
		TaskID:       metadataID(notification.Metadata, "task_id"),
		SubmissionID: metadataID(notification.Metadata, "submission_id"),
		Notification: notification,
		EmittedAt:    emittedAt,
	}
}

// metadataID reads a positive id from notification metadata. Ids decoded from JSON arrive as float64.
func metadataID(metadata map[string]interface{}, key string) uint {
	switch v := metadata[key].(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case int64:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return uint(n)
		}
	}
	return 0
}

// eventTransport moves encoded classroom events between nodes.
type eventTransport interface {
	name() string
	send(ctx context.Context, payload []byte) error
	listen(ctx context.Context, deliver func([]byte)) error
}

type natsTransport struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

func (t natsTransport) name() string { return "nats" }

func (t natsTransport) send(_ context.Context, payload []byte) error {
	return t.conn.Publish(t.subject, payload)
}

// listen uses a plain subscription: every node has to see every event to reach its own streams.
func (t natsTransport) listen(ctx context.Context, deliver func([]byte)) error {
	sub, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		deliver(msg.Data)
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			t.logger.Warn().Err(err).Msg("failed to drain classroom event subscription")
		}
	}()
	return nil
}

type redisTransport struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func (t redisTransport) name() string { return "redis" }

func (t redisTransport) send(ctx context.Context, payload []byte) error {
	return t.client.Publish(ctx, t.channel, payload).Err()
}

func (t redisTransport) listen(ctx context.Context, deliver func([]byte)) error {
	pubsub := t.client.Subscribe(ctx, t.channel)

	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					t.logger.Error().Err(err).Msg("classroom event subscription closed")
				}
				return
			}
			deliver([]byte(msg.Payload))
		}
	}()
	return nil
}

// classroomFanout delivers notifications to local SSE streams and relays them to peer nodes.
// Events are sent on the first transport only; every transport is listened on, so a node without
// NATS still receives what a redis-only peer emits.
type classroomFanout struct {
	origin     string
	transports []eventTransport
	streams    *streamHub
	logger     zerolog.Logger
	now        func() time.Time
}

func newClassroomFanout(origin string, logger zerolog.Logger, transports ...eventTransport) *classroomFanout {
	return &classroomFanout{
		origin:     origin,
		transports: transports,
		streams:    newStreamHub(),
		logger:     logger,
		now:        time.Now,
	}
}

func (f *classroomFanout) start(ctx context.Context) {
	for _, transport := range f.transports {
		if err := transport.listen(ctx, f.receive); err != nil {
			f.logger.Error().Err(err).Str("transport", transport.name()).Msg("failed to listen for classroom events")
		}
	}
}

func (f *classroomFanout) emit(ctx context.Context, notification dto.NotificationResponse) error {
	event := newClassroomEvent(f.origin, notification, f.now().UTC())
	f.deliverLocal(event)

	if len(f.transports) == 0 {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.transports[0].send(ctx, payload)
}

func (f *classroomFanout) receive(payload []byte) {
	var event classroomEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		f.logger.Warn().Err(err).Msg("invalid classroom event payload")
		return
	}
	if event.Origin == f.origin {
		return
	}
	f.deliverLocal(event)
}

func (f *classroomFanout) deliverLocal(event classroomEvent) {
	if dropped := f.streams.deliver(event.Notification); dropped > 0 {
		f.logger.Warn().
			Str("kind", event.Kind).
			Uint("task_id", event.TaskID).
			Uint("submission_id", event.SubmissionID).
			Int("dropped", dropped).
			Msg("stream buffer full, classroom event skipped")
	}
}

// streamHub tracks the open SSE streams per user.
type streamHub struct {
	mu      sync.RWMutex
	streams map[string]map[chan dto.NotificationResponse]struct{}
}

func newStreamHub() *streamHub {
	return &streamHub{streams: make(map[string]map[chan dto.NotificationResponse]struct{})}
}

func (h *streamHub) open(userID string) chan dto.NotificationResponse {
	ch := make(chan dto.NotificationResponse, streamBufferSize)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.streams[userID]; !ok {
		h.streams[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	h.streams[userID][ch] = struct{}{}
	return ch
}

func (h *streamHub) close(userID string, ch chan dto.NotificationResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	streams, ok := h.streams[userID]
	if !ok {
		return
	}
	if _, ok := streams[ch]; !ok {
		return
	}
	delete(streams, ch)
	close(ch)
	if len(streams) == 0 {
		delete(h.streams, userID)
	}
}

// deliver hands the notification to every stream of its recipient and returns how many were full.
func (h *streamHub) deliver(notification dto.NotificationResponse) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for ch := range h.streams[notification.UserID] {
		select {
		case ch <- notification:
		default:
			dropped++
		}
	}
	return dropped
}
