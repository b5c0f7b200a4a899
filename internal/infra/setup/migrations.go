package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pixel-guess/internal/domain"
)

// MigrateDB 迁移对局存档表，返回错误以便调用者知道迁移是否成功。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	// GameRecord 的字符串列都带 size，唯一索引不会遇到 TEXT 索引长度问题
	if err := db.AutoMigrate(&domain.GameRecord{}); err != nil {
		logrus.Errorf("Failed to auto-migrate game_records table: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
