package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"owl-haccp/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier 发布偏差事件到 MQTT（topic: <prefix>/<ccp|pest>），引用 ID 为事件 ID
type MQTTNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTNotifier 创建 MQTT 出口
func NewMQTTNotifier(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:         qos,
		logger:      logger,
	}
}

// Topic 返回事件对应的 topic
func (n *MQTTNotifier) Topic(event models.DeviationEvent) string {
	return fmt.Sprintf("%s/%s", n.topicPrefix, strings.ToLower(string(event.SourceType)))
}

func (n *MQTTNotifier) OnDeviation(ctx context.Context, event models.DeviationEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &DeliveryError{Target: "mqtt", EventID: event.EventID, Err: err}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal deviation event: %w", err)
	}

	topic := n.Topic(event)
	if err := n.publisher.Publish(topic, n.qos, false, payload); err != nil {
		return "", &DeliveryError{Target: "mqtt", EventID: event.EventID, Err: err}
	}

	n.logger.Debug("Published deviation event to MQTT",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
	)

	return event.EventID, nil
}
