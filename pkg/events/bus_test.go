package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sims-api/pkg/config"
	"github.com/noah-isme/sims-api/pkg/middleware/requestid"
)

func TestBusDeliversPublishedEvents(t *testing.T) {
	bus, err := NewBus(config.EventsConfig{Driver: config.EventsGoChannel}, zap.NewNop())
	require.NoError(t, err)

	received := make(chan NoticePublished, 1)
	requestIDs := make(chan string, 1)
	bus.Handle("test-notice", TopicNoticePublished, func(ctx context.Context, payload []byte) error {
		var evt NoticePublished
		if err := json.Unmarshal(payload, &evt); err != nil {
			return err
		}
		requestIDs <- requestid.FromContext(ctx)
		received <- evt
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()
	defer bus.Close() //nolint:errcheck

	select {
	case <-bus.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("router did not start")
	}

	pubCtx := requestid.NewContext(context.Background(), "req-42")
	require.NoError(t, bus.Publish(pubCtx, TopicNoticePublished, NoticePublished{NoticeID: "n-1", Title: "Holiday", Audience: "all"}))

	select {
	case evt := <-received:
		assert.Equal(t, "n-1", evt.NoticeID)
		assert.Equal(t, "Holiday", evt.Title)
		assert.Equal(t, "req-42", <-requestIDs)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNewBusRejectsUnknownDriver(t *testing.T) {
	_, err := NewBus(config.EventsConfig{Driver: "nats"}, nil)
	assert.Error(t, err)

	_, err = NewBus(config.EventsConfig{Driver: config.EventsKafka}, nil)
	assert.Error(t, err)
}
