package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes to configured stream", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		publisher := NewPublisher(mockRedis, "stream:test", slog.Default())

		var payload CatalogAggregated
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values, ok := args.Values.(map[string]interface{})
			if !ok || args.Stream != "stream:test" {
				return false
			}
			raw, ok := values["payload"].(string)
			if !ok || json.Unmarshal([]byte(raw), &payload) != nil {
				return false
			}
			return values["event_type"] == "CATALOG_AGGREGATED" &&
				values["category"] == "Widgets" &&
				values["event_id"] == payload.EventID
		})).Return(nil)

		err := publisher.Publish(ctx, CatalogAggregated{
			Category:   "Widgets",
			Discovered: 5,
			Aggregated: 4,
			Dropped:    1,
			Returned:   2,
			DurationMS: 120,
		})
		require.NoError(t, err)

		mockRedis.AssertExpectations(t)
		assert.NotEmpty(t, payload.EventID)
		assert.False(t, payload.Timestamp.IsZero())
		assert.Equal(t, 4, payload.Aggregated)
		assert.Equal(t, 1, payload.Dropped)
	})

	t.Run("redis failure is returned", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		publisher := NewPublisher(mockRedis, "", slog.Default())

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Stream == DefaultStream
		})).Return(errors.New("redis connection failed"))

		err := publisher.Publish(ctx, CatalogAggregated{Category: "Widgets"})
		assert.EqualError(t, err, "failed to publish to redis: redis connection failed")
	})

	t.Run("notifier swallows failures", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		publisher := NewPublisher(mockRedis, "", slog.Default())
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))

		var n Notifier = publisher
		assert.NotPanics(t, func() {
			n.CatalogAggregated(ctx, CatalogAggregated{Category: "Widgets"})
		})
		mockRedis.AssertNumberOfCalls(t, "XAdd", 1)
	})

	t.Run("keeps supplied metadata", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		publisher := NewPublisher(mockRedis, "", slog.Default())
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values := args.Values.(map[string]interface{})
			return values["event_id"] == "fixed-id"
		})).Return(nil)

		require.NoError(t, publisher.Publish(ctx, CatalogAggregated{EventID: "fixed-id"}))
		mockRedis.AssertExpectations(t)
	})
}

func TestClose(t *testing.T) {
	mockRedis := new(MockRedisClient)
	mockRedis.On("Close").Return(nil)

	require.NoError(t, NewPublisher(mockRedis, "", slog.Default()).Close())
	mockRedis.AssertExpectations(t)
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	assert.NotPanics(t, func() {
		n.CatalogAggregated(context.Background(), CatalogAggregated{})
	})
}
