package database

import (
	"errors"
	"strings"

	"github.com/koepon-app/koepon-backend/internal/platform/config"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 是全局的GORM实例，作为系统记录库
var DB *gorm.DB

// InitDB 根据配置选择驱动并建立数据库连接
func InitDB(cfg config.DatabaseConfig) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.New(postgres.Config{DSN: cfg.Postgres.DSN})
	default:
		dialector = sqlite.Open(cfg.Sqlite.Path)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logger.S.Fatalf("连接数据库失败: %v", err)
	}

	DB = db
	logger.S.Infof("数据库连接成功 (driver=%s)", cfg.Driver)
}

// IsDuplicateKeyError 判断一个错误是否由唯一约束冲突引起
func IsDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsRetryableError 判断一个数据库错误是否值得短间隔重试（例如SQLite的busy/locked）
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
