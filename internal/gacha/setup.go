package gacha

import (
	"fmt"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

// PrimeCachedDB 负责初始化gacha模块：迁移表结构并构建内存仓库。
func PrimeCachedDB() error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := InitializeRepository(); err != nil {
		return err
	}
	logger.S.Infof("抽选机仓库初始化成功，加载了 %d 台抽选机", len(globalRepository.machines))
	return nil
}

func migrateDB() error {
	if err := database.DB.AutoMigrate(&Gacha{}, &Item{}); err != nil {
		return fmt.Errorf("无法迁移gacha表: %w", err)
	}
	return nil
}
