package medal

import (
	"fmt"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"gorm.io/gorm"
)

// PrimeDB 迁移勋章模块的全部表结构
func PrimeDB(db *gorm.DB) error {
	err := db.AutoMigrate(
		&MedalBalance{},
		&VTuberMedalBalance{},
		&MedalTransaction{},
		&MedalReservation{},
	)
	if err != nil {
		return fmt.Errorf("无法迁移勋章模块表: %w", err)
	}
	return nil
}

// FlushCache 清空Redis余额缓存。
// Redis重建时调用：缓存是可再生的，之后按需回填即可。
func FlushCache() error {
	return database.RDB.Del(database.Ctx, BalanceCacheKey).Err()
}
