package metadata

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetValue 从metadata表读取一个键的值，键不存在时返回空字符串。
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue 以upsert的方式写入一个键值对。
func SetValue(db *gorm.DB, key, value string) error {
	meta := Metadata{Key: key, Value: value}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
}

// GetLastCreditedResultID 读取并解析奖励处理器的持久化检查点。
func GetLastCreditedResultID(db *gorm.DB) (uint, error) {
	valueStr, err := GetValue(db, LastCreditedResultIDKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastCreditedResultIDKey, err)
	}
	return uint(id), nil
}

// SetLastCreditedResultID 持久化奖励处理器的检查点。
func SetLastCreditedResultID(db *gorm.DB, resultID uint) error {
	return SetValue(db, LastCreditedResultIDKey, strconv.FormatUint(uint64(resultID), 10))
}

// PrimeDB 负责初始化metadata模块的数据库部分
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&Metadata{}); err != nil {
		return fmt.Errorf("无法迁移metadata表: %w", err)
	}
	return nil
}
