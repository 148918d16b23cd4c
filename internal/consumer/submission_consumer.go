package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	rediscommon "owl-haccp/common/redis"
	"owl-haccp/internal/config"
	"owl-haccp/internal/evaluator"
	"owl-haccp/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Recorder 处理提交内容（由 ComplianceService 实现）
type Recorder interface {
	RecordCCP(ctx context.Context, ccpID string, input models.CCPRecordInput) (*models.CCPRecord, error)
	RecordPestCheck(ctx context.Context, input models.PestCheckInput) (*models.PestControlCheck, error)
}

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// SubmissionConsumer 消费 CCP 监控记录和防虫检查提交流
// 处理成功或内容无效（永久错误）时 ACK；临时错误不 ACK，留在 pending 中，
// 启动时以及运行中每隔 pendingRetry 重新处理
type SubmissionConsumer struct {
	redisClient  *redis.Client
	recorder     Recorder
	ccpStream    string
	pestStream   string
	group        string
	consumer     string
	batchSize    int64
	block        time.Duration
	pendingRetry time.Duration
	logger       *zap.Logger
}

// NewSubmissionConsumer 创建提交流消费者
func NewSubmissionConsumer(cfg *config.Config, redisClient *redis.Client, recorder Recorder, logger *zap.Logger) *SubmissionConsumer {
	return &SubmissionConsumer{
		redisClient:  redisClient,
		recorder:     recorder,
		ccpStream:    cfg.HACCP.Streams.CCPSubmissions,
		pestStream:   cfg.HACCP.Streams.PestSubmissions,
		group:        cfg.HACCP.Streams.ConsumerGroup,
		consumer:     cfg.HACCP.Streams.ConsumerName,
		batchSize:    int64(cfg.HACCP.Streams.BatchSize),
		block:        time.Duration(cfg.HACCP.Streams.BlockMillis) * time.Millisecond,
		pendingRetry: time.Duration(cfg.HACCP.Streams.PendingRetryMillis) * time.Millisecond,
		logger:       logger,
	}
}

// Start 启动消费者（每个流一个 goroutine），ctx 取消后返回
func (c *SubmissionConsumer) Start(ctx context.Context) error {
	for _, stream := range []string{c.ccpStream, c.pestStream} {
		if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.group); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}

	c.logger.Info("Submission consumer started",
		zap.String("ccp_stream", c.ccpStream),
		zap.String("pest_stream", c.pestStream),
		zap.String("consumer_group", c.group),
		zap.String("consumer_name", c.consumer),
	)

	var wg sync.WaitGroup
	for _, stream := range []string{c.ccpStream, c.pestStream} {
		wg.Add(1)
		go func(stream string) {
			defer wg.Done()
			c.run(ctx, stream)
		}(stream)
	}
	wg.Wait()

	c.logger.Info("Submission consumer stopped")
	return nil
}

func (c *SubmissionConsumer) run(ctx context.Context, stream string) {
	// 先处理上次未确认的消息
	c.retryPending(ctx, stream)
	nextRetry := time.Now().Add(c.pendingRetry)

	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !time.Now().Before(nextRetry) {
			c.retryPending(ctx, stream)
			nextRetry = time.Now().Add(c.pendingRetry)
		}

		if _, err := c.ProcessOnce(ctx, stream); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Failed to read submissions",
				zap.String("stream", stream),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff
	}
}

// ProcessOnce 读取并处理一批新消息，返回读取到的消息数
func (c *SubmissionConsumer) ProcessOnce(ctx context.Context, stream string) (int, error) {
	messages, err := rediscommon.ReadFromStream(ctx, c.redisClient, stream, c.group, c.consumer, c.batchSize, c.block)
	if err != nil {
		return 0, err
	}
	c.handleMessages(ctx, stream, messages)
	return len(messages), nil
}

// RetryPending 重新处理本消费者所有未确认的消息（按批分页直到取完），返回重新处理的消息数
func (c *SubmissionConsumer) RetryPending(ctx context.Context, stream string) (int, error) {
	start := "0"
	total := 0
	for {
		pending, err := rediscommon.ReadPending(ctx, c.redisClient, stream, c.group, c.consumer, start, c.batchSize)
		if err != nil {
			return total, err
		}
		if len(pending) == 0 {
			return total, nil
		}
		c.handleMessages(ctx, stream, pending)
		total += len(pending)
		start = pending[len(pending)-1].ID

		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func (c *SubmissionConsumer) retryPending(ctx context.Context, stream string) {
	n, err := c.RetryPending(ctx, stream)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("Failed to retry pending submissions", zap.String("stream", stream), zap.Error(err))
		}
		return
	}
	if n > 0 {
		c.logger.Info("Retried pending submissions",
			zap.String("stream", stream),
			zap.Int("count", n),
		)
	}
}

func (c *SubmissionConsumer) handleMessages(ctx context.Context, stream string, messages []rediscommon.StreamMessage) {
	for _, msg := range messages {
		err := c.handle(ctx, stream, msg)
		if err != nil && !isPermanent(err) {
			// 临时错误：不 ACK，保留在 pending 中
			c.logger.Warn("Submission left pending for retry",
				zap.String("stream", stream),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			c.logger.Error("Rejected submission",
				zap.String("stream", stream),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
		if ackErr := rediscommon.Ack(ctx, c.redisClient, stream, c.group, msg.ID); ackErr != nil {
			c.logger.Error("Failed to ack submission",
				zap.String("stream", stream),
				zap.String("message_id", msg.ID),
				zap.Error(ackErr),
			)
		}
	}
}

// errMalformedMessage 消息无法解析，重试无意义
var errMalformedMessage = errors.New("malformed submission message")

func (c *SubmissionConsumer) handle(ctx context.Context, stream string, msg rediscommon.StreamMessage) error {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("%w: missing data field", errMalformedMessage)
	}

	switch stream {
	case c.ccpStream:
		var submission models.CCPSubmission
		if err := json.Unmarshal([]byte(raw), &submission); err != nil {
			return fmt.Errorf("%w: %v", errMalformedMessage, err)
		}
		record, err := c.recorder.RecordCCP(ctx, submission.CCPID, submission.Record)
		if record != nil {
			// 记录已保存：通知失败只记录日志，避免重复写入
			if err != nil {
				c.logger.Warn("CCP record saved but deviation hand-off failed",
					zap.String("record_id", record.ID),
					zap.Error(err),
				)
			}
			return nil
		}
		return err

	case c.pestStream:
		var input models.PestCheckInput
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return fmt.Errorf("%w: %v", errMalformedMessage, err)
		}
		check, err := c.recorder.RecordPestCheck(ctx, input)
		if check != nil {
			if err != nil {
				c.logger.Warn("Pest check saved but deviation hand-off failed",
					zap.String("check_id", check.ID),
					zap.Error(err),
				)
			}
			return nil
		}
		return err
	}

	return fmt.Errorf("%w: unknown stream %s", errMalformedMessage, stream)
}

func isPermanent(err error) bool {
	return errors.Is(err, errMalformedMessage) ||
		evaluator.IsValidationError(err) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrCCPInactive) ||
		errors.Is(err, evaluator.ErrInvalidLimit) ||
		errors.Is(err, evaluator.ErrInconsistentStandards)
}
