package tasks

import (
	"encoding/json"

	"pixel-guess/internal/domain"
)

// 定义任务类型常量
const (
	TypeGameArchive = "game:archive" // 对局结果归档任务类型
)

// 队列名称，与 WorkerServer 的 Queues 配置一致
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// GameArchivePayload 定义了归档任务的数据结构
type GameArchivePayload struct {
	Record domain.GameRecord `json:"record"`
}

// NewGameArchiveTask 序列化归档任务的 payload
func NewGameArchiveTask(record domain.GameRecord) ([]byte, error) {
	payloadBytes, err := json.Marshal(GameArchivePayload{Record: record})
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}
