package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"pixel-guess/internal/domain"
	"pixel-guess/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// GormGameRecordRepository 是 GameRecordRepository 接口的 GORM 实现
type GormGameRecordRepository struct {
	db *gorm.DB
}

var _ repository.GameRecordRepository = (*GormGameRecordRepository)(nil)

// NewGormGameRecordRepository 创建 GormGameRecordRepository 实例
func NewGormGameRecordRepository(db *gorm.DB) *GormGameRecordRepository {
	if db == nil {
		panic("database connection cannot be nil for GormGameRecordRepository")
	}
	return &GormGameRecordRepository{db: db}
}

// Save 插入一条对局记录，唯一约束冲突映射为 ErrDuplicateEntry (任务重试时可能发生)
func (r *GormGameRecordRepository) Save(ctx context.Context, record *domain.GameRecord) error {
	if record == nil {
		return fmt.Errorf("gorm: save game record: nil record")
	}
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save game record (session: %s, room: %s): %w", record.SessionID, record.RoomID, err)
	}
	return nil
}

// ListByRoom 按结束时间倒序查询
func (r *GormGameRecordRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]domain.GameRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}
	var records []domain.GameRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("finished_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list game records for room '%s': %w", roomID, err)
	}
	return records, nil
}
