package reconciler

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/shared"
	"github.com/scrapyard-ledger/internal/platform/messaging/consumers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConsumer struct {
	mock.Mock
}

func (m *MockConsumer) Subscribe(ctx context.Context, topic string, groupID string, handler consumers.MessageHandler) error {
	args := m.Called(ctx, topic, groupID, handler)
	return args.Error(0)
}

func (m *MockConsumer) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	args := m.Called(ctx, key, originalMessageValue, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestReconciler(consumer *MockConsumer, dlq *MockDeadLetterPublisher) (*Reconciler, *Cache) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := &config.KafkaConfig{
		ChangeEventTopic: "change-events",
		ConsumerGroup:    "session-cache",
	}
	cache := NewCache()
	return NewReconciler(logger, cfg, cache, consumer, dlq), cache
}

func TestReconciler_Start(t *testing.T) {
	consumer := new(MockConsumer)
	dlq := new(MockDeadLetterPublisher)
	r, _ := newTestReconciler(consumer, dlq)

	consumer.On("Subscribe", mock.Anything, "change-events", "session-cache", mock.Anything).Return(nil)

	err := r.Start(context.Background())
	require.NoError(t, err)
	consumer.AssertExpectations(t)
}

func TestReconciler_HandleMessage(t *testing.T) {
	tenantID := uuid.New()
	entityID := uuid.New()

	t.Run("valid event lands in the cache", func(t *testing.T) {
		consumer := new(MockConsumer)
		dlq := new(MockDeadLetterPublisher)
		r, cache := newTestReconciler(consumer, dlq)

		event := shared.ChangeEvent{
			TenantID:   tenantID,
			Entity:     shared.EntityTransaction,
			EntityID:   entityID,
			Version:    2,
			OccurredAt: time.Now().UTC(),
		}
		value, err := json.Marshal(event)
		require.NoError(t, err)

		err = r.handleMessage(context.Background(), []byte(tenantID.String()), value)
		require.NoError(t, err)

		rec, ok := cache.Get(tenantID, entityID)
		require.True(t, ok)
		assert.Equal(t, int64(2), rec.Version)
		dlq.AssertNotCalled(t, "PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("undecodable event goes to the DLQ and commits", func(t *testing.T) {
		consumer := new(MockConsumer)
		dlq := new(MockDeadLetterPublisher)
		r, _ := newTestReconciler(consumer, dlq)

		raw := []byte(`{not json`)
		dlq.On("PublishToDLQ", mock.Anything, "bad-key", raw, mock.Anything).Return(nil)

		err := r.handleMessage(context.Background(), []byte("bad-key"), raw)
		require.NoError(t, err)
		dlq.AssertExpectations(t)
	})

	t.Run("DLQ failure leaves the offset uncommitted", func(t *testing.T) {
		consumer := new(MockConsumer)
		dlq := new(MockDeadLetterPublisher)
		r, _ := newTestReconciler(consumer, dlq)

		raw := []byte(`{not json`)
		dlq.On("PublishToDLQ", mock.Anything, "bad-key", raw, mock.Anything).Return(assert.AnError)

		err := r.handleMessage(context.Background(), []byte("bad-key"), raw)
		assert.Error(t, err)
	})
}
