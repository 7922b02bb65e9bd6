// Package events carries domain events between services over watermill.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/pkg/config"
	"github.com/noah-isme/sims-api/pkg/logger"
	"github.com/noah-isme/sims-api/pkg/middleware/requestid"
)

// Topics published by the application.
const (
	TopicResultsPublished   = "results.published"
	TopicNoticePublished    = "notice.published"
	TopicFeePaymentRecorded = "fee.payment_recorded"
	TopicWaiverDecided      = "waiver.decided"
	TopicLessonPlanReviewed = "lesson_plan.reviewed"
)

const (
	metadataOccurredAt = "occurred_at"
	metadataRequestID  = "request_id"
	handlerRetries     = 3
)

// HandlerFunc consumes a raw event payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Bus publishes events and routes them to registered handlers.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	shared     bool
	logger     *zap.Logger
}

// NewBus builds a bus on the configured transport: in-process gochannel or Kafka.
func NewBus(cfg config.EventsConfig, l *zap.Logger) (*Bus, error) {
	if l == nil {
		l = zap.NewNop()
	}
	wmLogger := logger.NewWatermillAdapter(l)

	var (
		pub    message.Publisher
		sub    message.Subscriber
		shared bool
	)
	switch cfg.Driver {
	case config.EventsKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka driver requires brokers")
		}
		kpub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		ksub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:       cfg.KafkaBrokers,
			Unmarshaler:   kafka.DefaultMarshaler{},
			ConsumerGroup: cfg.ConsumerGroup,
		}, wmLogger)
		if err != nil {
			_ = kpub.Close()
			return nil, fmt.Errorf("kafka subscriber: %w", err)
		}
		pub, sub = kpub, ksub
	case "", config.EventsGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		pub, sub, shared = ch, ch, true
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}

	return newBus(pub, sub, shared, wmLogger, l)
}

func newBus(pub message.Publisher, sub message.Subscriber, shared bool, wmLogger watermill.LoggerAdapter, l *zap.Logger) (*Bus, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("event router: %w", err)
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      handlerRetries,
			InitialInterval: 200 * time.Millisecond,
			Logger:          wmLogger,
		}.Middleware,
	)
	return &Bus{publisher: pub, subscriber: sub, router: router, shared: shared, logger: l.Named("events")}, nil
}

// Publish marshals payload to JSON and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(metadataOccurredAt, time.Now().UTC().Format(time.RFC3339))
	if id := requestid.FromContext(ctx); id != "" {
		msg.Metadata.Set(metadataRequestID, id)
	}
	msg.SetContext(ctx)
	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Handle registers fn for topic. Must be called before Run. The handler context carries the request
// ID of the HTTP request that published the event.
func (b *Bus) Handle(name, topic string, fn HandlerFunc) {
	b.router.AddNoPublisherHandler(name, topic, b.subscriber, func(msg *message.Message) error {
		ctx := requestid.NewContext(msg.Context(), msg.Metadata.Get(metadataRequestID))
		return fn(ctx, msg.Payload)
	})
}

// Run blocks routing messages until ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once the router has started all handlers.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router and releases transports.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		b.logger.Warn("close event router", zap.Error(err))
	}
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if !b.shared {
		return b.subscriber.Close()
	}
	return nil
}
