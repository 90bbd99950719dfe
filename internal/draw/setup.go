package draw

import (
	"fmt"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/metadata"
	"github.com/koepon-app/koepon-backend/pkg/lifecycle"
)

// PrimeDB 迁移抽选模块的表结构
func PrimeDB() error {
	err := database.DB.AutoMigrate(&DrawSession{}, &DrawResult{}, &DrawResultItem{}, &UsedTicket{})
	if err != nil {
		return fmt.Errorf("无法迁移抽选模块表: %w", err)
	}
	return nil
}

// StartCreditProcessor 初始化并启动全局的勋章入账处理器。
// 它接收两个handle来管理两阶段停机。
func StartCreditProcessor(gracefulHandle, forcefulHandle *lifecycle.Handle) error {
	startID, err := metadata.GetLastCreditedResultID(database.DB)
	if err != nil {
		return fmt.Errorf("无法获取入账检查点: %w", err)
	}

	initializeProcessor(startID)
	go startProcessor(gracefulHandle, forcefulHandle)

	return nil
}
