package exchange

import (
	"fmt"

	"gorm.io/gorm"
)

// PrimeDB 迁移兑换模块的表结构
func PrimeDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&ExchangeItem{}, &Redemption{}); err != nil {
		return fmt.Errorf("无法迁移兑换模块表: %w", err)
	}
	return nil
}
