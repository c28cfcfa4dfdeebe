package messaging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/serroba/page-votes/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	messages   []*message.Message
	topic      string
	publishErr error
	closeErr   error
}

func (m *mockPublisher) Publish(topic string, msgs ...*message.Message) error {
	if m.publishErr != nil {
		return m.publishErr
	}

	m.topic = topic
	m.messages = append(m.messages, msgs...)

	return nil
}

func (m *mockPublisher) Close() error {
	return m.closeErr
}

type testEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type correlatedEvent struct {
	RequestID string `json:"requestId"`
}

func (e *correlatedEvent) CorrelationID() string {
	return e.RequestID
}

func TestNewPublishFunc(t *testing.T) {
	t.Run("publishes json payload to topic", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[testEvent](mock, "test.topic")

		err := publish(context.Background(), &testEvent{ID: "123", Name: "test"})

		require.NoError(t, err)
		assert.Equal(t, "test.topic", mock.topic)
		require.Len(t, mock.messages, 1)
		assert.JSONEq(t, `{"id":"123","name":"test"}`, string(mock.messages[0].Payload))
		assert.NotEmpty(t, mock.messages[0].UUID)
	})

	t.Run("copies correlation id into metadata", func(t *testing.T) {
		mock := &mockPublisher{}
		publish := messaging.NewPublishFunc[correlatedEvent](mock, "test.topic")

		err := publish(context.Background(), &correlatedEvent{RequestID: "req-1"})

		require.NoError(t, err)
		require.Len(t, mock.messages, 1)
		assert.Equal(t, "req-1", middleware.MessageCorrelationID(mock.messages[0]))
	})

	t.Run("wraps publish errors with the topic", func(t *testing.T) {
		mock := &mockPublisher{publishErr: errors.New("broker down")}
		publish := messaging.NewPublishFunc[testEvent](mock, "test.topic")

		err := publish(context.Background(), &testEvent{ID: "123"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "publish test.topic")
	})
}

func TestPublisherGroup(t *testing.T) {
	t.Run("returns underlying publisher", func(t *testing.T) {
		mock := &mockPublisher{}
		group := messaging.NewPublisherGroup(mock)

		assert.Equal(t, mock, group.Publisher())
	})

	t.Run("returns close error on shutdown", func(t *testing.T) {
		group := messaging.NewPublisherGroup(&mockPublisher{closeErr: errors.New("close error")})

		assert.Error(t, group.Shutdown())
	})
}
