package user

import (
	"fmt"

	"gorm.io/gorm"
)

// PrimeDB 迁移用户模块的表结构
func PrimeDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("无法迁移用户表: %w", err)
	}
	return nil
}
