package notifier

import (
	"context"
	"fmt"

	"owl-haccp/internal/models"
)

// DeviationNotifier 偏差事件出口：把不合格判定交给外部纠正措施系统
// 返回外部系统给出的引用 ID；本服务不维护纠正措施流程状态
// 出错时引用 ID 通常为空，MultiNotifier 部分出口成功时两者同时返回
type DeviationNotifier interface {
	OnDeviation(ctx context.Context, event models.DeviationEvent) (string, error)
}

// DeliveryError 某个出口投递失败
type DeliveryError struct {
	Target  string
	EventID string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver deviation %s via %s: %v", e.EventID, e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NopNotifier 未配置任何出口时使用
type NopNotifier struct{}

func (NopNotifier) OnDeviation(ctx context.Context, event models.DeviationEvent) (string, error) {
	return "", nil
}
