package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	rediscommon "owl-haccp/common/redis"
	"owl-haccp/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamNotifier 发布偏差事件到 Redis Stream，引用 ID 为消息 ID
type StreamNotifier struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewStreamNotifier 创建 Redis Stream 出口
func NewStreamNotifier(redisClient *redis.Client, stream string, logger *zap.Logger) *StreamNotifier {
	return &StreamNotifier{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

func (n *StreamNotifier) OnDeviation(ctx context.Context, event models.DeviationEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal deviation event: %w", err)
	}

	id, err := rediscommon.PublishToStream(ctx, n.redisClient, n.stream, map[string]interface{}{
		"event_id":    event.EventID,
		"source_type": string(event.SourceType),
		"kind":        string(event.Kind),
		"source_id":   event.SourceID,
		"data":        payload,
		"timestamp":   event.Timestamp.Unix(),
	})
	if err != nil {
		return "", &DeliveryError{Target: "stream", EventID: event.EventID, Err: err}
	}

	n.logger.Debug("Published deviation event to stream",
		zap.String("stream", n.stream),
		zap.String("event_id", event.EventID),
		zap.String("message_id", id),
	)

	return id, nil
}
