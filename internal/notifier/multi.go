package notifier

import (
	"context"
	"errors"

	"owl-haccp/internal/models"

	"go.uber.org/zap"
)

// Target 命名的出口
type Target struct {
	Name     string
	Notifier DeviationNotifier
}

// MultiNotifier 依次投递到所有出口
// 返回第一个成功出口的引用 ID；任一出口失败都返回错误（errors.Join 各出口的 *DeliveryError），
// 部分失败时引用 ID 与错误同时返回
type MultiNotifier struct {
	targets []Target
	logger  *zap.Logger
}

// NewMultiNotifier 创建多出口通知器
func NewMultiNotifier(logger *zap.Logger, targets ...Target) *MultiNotifier {
	return &MultiNotifier{targets: targets, logger: logger}
}

func (m *MultiNotifier) OnDeviation(ctx context.Context, event models.DeviationEvent) (string, error) {
	if len(m.targets) == 0 {
		return "", nil
	}

	var reference string
	var errs []error
	for _, t := range m.targets {
		ref, err := t.Notifier.OnDeviation(ctx, event)
		if err != nil {
			m.logger.Warn("Deviation delivery failed",
				zap.String("target", t.Name),
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if reference == "" {
			reference = ref
		}
	}

	if len(errs) > 0 {
		return reference, errors.Join(errs...)
	}
	return reference, nil
}
