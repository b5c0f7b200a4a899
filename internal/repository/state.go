package repository

import (
	"context"

	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
)

// StateRepository 定义了房间实时状态的读模型，通常由 Redis 实现。
// 读模型只镜像本地会话看到的状态，供其他进程查询；它从不反向驱动会话。
type StateRepository interface {
	// === Board State ===

	// ApplyPlaced 把一组格子写成同一颜色 (HSet)。
	ApplyPlaced(ctx context.Context, roomID string, cells []domain.Cell, color domain.Color) error

	// ApplyErased 删除一组格子 (HDel)。
	ApplyErased(ctx context.Context, roomID string, cells []domain.Cell) error

	// ClearBoard 删除整张画布。
	ClearBoard(ctx context.Context, roomID string) error

	// === Game State ===

	// SaveGameState 覆盖保存最新的游戏状态快照。
	SaveGameState(ctx context.Context, roomID string, state game.State) error

	// 清理房间相关的 Redis key
	CleanupRoomState(ctx context.Context, roomID string) error

	// === PubSub ===

	// PublishEvent 把一条变化事件发布到房间频道。
	PublishEvent(ctx context.Context, roomID string, eventType string, payload any) error
}
