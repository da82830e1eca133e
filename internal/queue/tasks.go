package queue

import (
	"encoding/json"

	"github.com/csform-next/internal/constants"
	"github.com/csform-next/internal/gateway/mmio"

	"github.com/hibiken/asynq"
)

const (
	// TaskConversionDeliver 服务端转化事件补发任务
	TaskConversionDeliver = constants.TaskConversionDeliver
)

// ConversionDeliverPayload 转化事件补发任务载荷
type ConversionDeliverPayload struct {
	Envelope  mmio.ConversionEnvelope `json:"envelope"`
	EventName string                  `json:"event_name"`
}

// NewConversionDeliverTask 构建转化事件补发任务
func NewConversionDeliverTask(payload ConversionDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversionDeliver, data), nil
}
