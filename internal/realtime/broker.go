package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TopicThreads is signalled whenever any thread changes.
const TopicThreads = "threads"

// ThreadTopic returns the topic carrying changes to a single thread feed.
func ThreadTopic(threadID string) string {
	return "thread:" + threadID
}

// UserTopic is signalled when the role or the session validity of a user changes.
func UserTopic(userID string) string {
	return "user:" + userID
}

type event struct {
	Source string    `json:"source"`
	Topics []string  `json:"topics"`
	SentAt time.Time `json:"sent_at"`
}

// Broker fans change signals out to in-process listeners and, when configured,
// to other API nodes over Redis pub/sub and NATS. Signals carry no payload;
// listeners reload the state they watch.
type Broker struct {
	mu        sync.RWMutex
	listeners map[string]map[*Listener]struct{}

	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// Listener receives coalesced change signals for one topic.
type Listener struct {
	topic  string
	signal chan struct{}
	broker *Broker
	once   sync.Once
}

// NewBroker constructs a broker. Nil clients disable the matching transport.
func NewBroker(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Broker {
	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":chat:events"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat.events"
	}

	return &Broker{
		listeners:    make(map[string]map[*Listener]struct{}),
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "realtime_broker").Logger(),
	}
}

// NodeID identifies this broker on the shared transports.
func (b *Broker) NodeID() string {
	return b.nodeID
}

// Listen registers a listener for topic. Close it when done.
func (b *Broker) Listen(topic string) *Listener {
	listener := &Listener{
		topic:  topic,
		signal: make(chan struct{}, 1),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[topic]; !ok {
		b.listeners[topic] = make(map[*Listener]struct{})
	}
	b.listeners[topic][listener] = struct{}{}
	return listener
}

// C is signalled after changes to the topic. Bursts collapse into one signal.
// The channel is closed when the listener is closed.
func (l *Listener) C() <-chan struct{} {
	return l.signal
}

// Close unregisters the listener. It is safe to call more than once.
func (l *Listener) Close() {
	l.once.Do(func() {
		l.broker.mu.Lock()
		if listeners, ok := l.broker.listeners[l.topic]; ok {
			delete(listeners, l)
			if len(listeners) == 0 {
				delete(l.broker.listeners, l.topic)
			}
		}
		l.broker.mu.Unlock()
		close(l.signal)
	})
}

// Publish signals local listeners of topics and forwards the event to other nodes.
func (b *Broker) Publish(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	b.notify(topics)

	if (b.redis == nil || b.redisChannel == "") && (b.nats == nil || b.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(event{Source: b.nodeID, Topics: topics, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start subscribes to the configured transports and forwards remote events until ctx is done.
func (b *Broker) Start(ctx context.Context) error {
	if b.redis != nil && b.redisChannel != "" {
		pubsub := b.redis.Subscribe(ctx, b.redisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return err
		}
		go b.consumeRedis(ctx, pubsub)
	}

	if b.nats != nil && b.natsSubject != "" {
		sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
			b.handleEvent(msg.Data)
		})
		if err != nil {
			return err
		}
		if err := b.nats.Flush(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to flush nats subscription")
		}
		go func() {
			<-ctx.Done()
			if err := sub.Drain(); err != nil {
				b.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
			}
		}()
	}

	return nil
}

func (b *Broker) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		b.handleEvent([]byte(msg.Payload))
	}
}

func (b *Broker) handleEvent(data []byte) {
	var evt event
	if err := json.Unmarshal(data, &evt); err != nil {
		b.logger.Warn().Err(err).Msg("invalid realtime event")
		return
	}
	if evt.Source == b.nodeID {
		return
	}
	b.notify(evt.Topics)
}

func (b *Broker) notify(topics []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, topic := range topics {
		for listener := range b.listeners[topic] {
			select {
			case listener.signal <- struct{}{}:
			default:
			}
		}
	}
}
