package payment

import (
	"fmt"

	"gorm.io/gorm"
)

// PrimeDB 迁移支付模块的表结构
func PrimeDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Payment{}); err != nil {
		return fmt.Errorf("无法迁移支付模块表: %w", err)
	}
	return nil
}
