package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"pixel-guess/internal/repository"
	"pixel-guess/internal/tasks"
)

// GameArchiveHandler 处理对局归档任务
type GameArchiveHandler struct {
	recordRepo repository.GameRecordRepository
	log        *logrus.Entry
}

// NewGameArchiveHandler 创建 Handler 实例
func NewGameArchiveHandler(recordRepo repository.GameRecordRepository, log *logrus.Entry) *GameArchiveHandler {
	if recordRepo == nil {
		panic("GameRecordRepository cannot be nil for GameArchiveHandler")
	}
	if log == nil {
		log = logrus.WithField("component", "worker")
	}
	return &GameArchiveHandler{recordRepo: recordRepo, log: log}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *GameArchiveHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	logCtx := h.log.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.GameArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	rec := payload.Record
	rec.ID = 0 // 由数据库分配
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": rec.RoomID, "session_id": rec.SessionID})

	if err := h.recordRepo.Save(ctx, &rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 重试时记录可能已经写入
			logCtx.Info("Game record already archived, skipping")
			return nil
		}
		logCtx.WithError(err).Error("Failed to save game record")
		return fmt.Errorf("failed to save game record for room %s: %w", rec.RoomID, err)
	}

	logCtx.WithField("record_id", rec.ID).Info("Game archive task processed successfully")
	return nil
}
