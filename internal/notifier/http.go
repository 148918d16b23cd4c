package notifier

import (
	"context"
	"fmt"
	"time"

	"owl-haccp/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// correctiveActionResponse 纠正措施系统响应
type correctiveActionResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   struct {
		ReferenceID string `json:"reference_id"`
	} `json:"data"`
}

// HTTPNotifier 通过 HTTP 把偏差事件提交给纠正措施系统
// 每个请求带 Idempotency-Key（事件 ID），超时重试不会在对方重复创建纠正措施
type HTTPNotifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPNotifier 创建 HTTP 出口
func NewHTTPNotifier(baseURL, token string, timeout time.Duration, logger *zap.Logger) *HTTPNotifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if token != "" {
		client.SetAuthToken(token)
	}

	return &HTTPNotifier{
		httpClient: client,
		logger:     logger,
	}
}

func (n *HTTPNotifier) OnDeviation(ctx context.Context, event models.DeviationEvent) (string, error) {
	var response correctiveActionResponse
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", event.EventID).
		SetBody(event).
		SetResult(&response).
		Post("/corrective-actions")

	if err != nil {
		return "", &DeliveryError{Target: "http", EventID: event.EventID, Err: err}
	}
	if resp.IsError() {
		return "", &DeliveryError{
			Target:  "http",
			EventID: event.EventID,
			Err:     fmt.Errorf("unexpected status code %d", resp.StatusCode()),
		}
	}
	if response.Status != 0 {
		return "", &DeliveryError{
			Target:  "http",
			EventID: event.EventID,
			Err:     fmt.Errorf("corrective action API error: %s (status: %d)", response.Msg, response.Status),
		}
	}
	if response.Data.ReferenceID == "" {
		return "", &DeliveryError{Target: "http", EventID: event.EventID, Err: fmt.Errorf("empty reference id")}
	}

	n.logger.Info("Deviation submitted to corrective action system",
		zap.String("event_id", event.EventID),
		zap.String("reference_id", response.Data.ReferenceID),
	)

	return response.Data.ReferenceID, nil
}
