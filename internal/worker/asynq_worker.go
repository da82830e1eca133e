package worker

import (
	"context"
	"encoding/json"

	"github.com/csform-next/internal/logger"
	"github.com/csform-next/internal/provider"
	"github.com/csform-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskConversionDeliver, c.handleConversionDeliver)
}

// handleConversionDeliver 补发出站失败的服务端转化事件
// 再次失败返回错误，交给队列按退避策略重试
func (c *Consumer) handleConversionDeliver(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_conversion_deliver_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ConversionDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_conversion_deliver_unmarshal_failed", "error", err)
		return err
	}
	if payload.EventName == "" {
		logger.Debugw("worker_conversion_deliver_skip_invalid_payload")
		return nil
	}
	if c.Gateway == nil {
		logger.Warnw("worker_conversion_deliver_skip_gateway_nil", "event", payload.EventName)
		return nil
	}
	if _, err := c.Gateway.ReportConversion(ctx, payload.Envelope); err != nil {
		logger.Warnw("worker_conversion_deliver_failed", "event", payload.EventName, "error", err)
		return err
	}
	logger.Infow("worker_conversion_delivered", "event", payload.EventName)
	return nil
}
