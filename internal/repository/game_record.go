package repository

import (
	"context"

	"pixel-guess/internal/domain"
)

// GameRecordRepository 定义了已结束对局结果的存档。
type GameRecordRepository interface {
	// Save 保存一条对局记录。同一 SessionID 与 FinishedAt 重复保存返回 ErrDuplicateEntry。
	Save(ctx context.Context, record *domain.GameRecord) error

	// ListByRoom 按结束时间倒序返回房间最近的对局记录。
	ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.GameRecord, error)
}
