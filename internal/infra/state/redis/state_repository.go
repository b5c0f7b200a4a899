package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"pixel-guess/internal/domain"
	"pixel-guess/internal/game"
	"pixel-guess/internal/repository"
)

// 读模型 key 的默认过期时间，会话结束后残留的 key 自动清理
const defaultStateTTL = 24 * time.Hour

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// 编译期检查接口实现
var _ repository.StateRepository = (*RedisStateRepository)(nil)

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "pg:" // 默认前缀 "pg:" (pixel guess)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       defaultStateTTL,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) roomBoardKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:board", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomGameKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:game", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomPubSubChannel(roomID string) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, roomID)
}

// --- StateRepository Interface Implementation ---

// ApplyPlaced 用一个 pipeline 写入所有格子并刷新过期时间。
func (r *RedisStateRepository) ApplyPlaced(ctx context.Context, roomID string, cells []domain.Cell, color domain.Color) error {
	if len(cells) == 0 {
		return nil
	}
	key := r.roomBoardKey(roomID)
	values := make(map[string]interface{}, len(cells))
	for _, c := range cells {
		values[c.Key()] = color.String()
	}
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to place %d cells for room %s on key %s: %w", len(cells), roomID, key, err)
	}
	return nil
}

// ApplyErased 删除格子对应的 field。
func (r *RedisStateRepository) ApplyErased(ctx context.Context, roomID string, cells []domain.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	key := r.roomBoardKey(roomID)
	fields := make([]string, len(cells))
	for i, c := range cells {
		fields[i] = c.Key()
	}
	if err := r.client.HDel(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("redis: failed to erase %d cells for room %s on key %s: %w", len(cells), roomID, key, err)
	}
	return nil
}

// ClearBoard 删除整张画布的 Hash。
func (r *RedisStateRepository) ClearBoard(ctx context.Context, roomID string) error {
	key := r.roomBoardKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to clear board for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// SaveGameState 以 JSON 覆盖保存游戏状态。
func (r *RedisStateRepository) SaveGameState(ctx context.Context, roomID string, state game.State) error {
	key := r.roomGameKey(roomID)
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal game state for room %s: %w", roomID, err)
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to save game state for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

// CleanupRoomState 删除房间的全部读模型 key。
func (r *RedisStateRepository) CleanupRoomState(ctx context.Context, roomID string) error {
	keys := []string{r.roomBoardKey(roomID), r.roomGameKey(roomID)}
	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to cleanup state for room %s: %w", roomID, err)
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "deleted_keys": deleted}).Debug("Room read model cleaned up")
	return nil
}

// eventMessage 是发布到房间频道的消息格式
type eventMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// PublishEvent 将变化事件发布到房间频道。
func (r *RedisStateRepository) PublishEvent(ctx context.Context, roomID string, eventType string, payload any) error {
	channel := r.roomPubSubChannel(roomID)
	msg, err := json.Marshal(eventMessage{Type: eventType, Data: payload, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("redis: failed to marshal event %s for publish: %w", eventType, err)
	}
	if err := r.client.Publish(ctx, channel, msg).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(msg),
			"event":        eventType,
			"room_id":      roomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}
