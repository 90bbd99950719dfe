package startup

import (
	"github.com/koepon-app/koepon-backend/internal/draw"
	"github.com/koepon-app/koepon-backend/internal/exchange"
	"github.com/koepon-app/koepon-backend/internal/gacha"
	"github.com/koepon-app/koepon-backend/internal/medal"
	"github.com/koepon-app/koepon-backend/internal/payment"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/internal/platform/metadata"
	"github.com/koepon-app/koepon-backend/internal/user"
	"github.com/koepon-app/koepon-backend/internal/vtuber"
)

// InitializeApplication 是应用启动时执行的总入口。
// 依次迁移各模块表结构、加载内存仓库、从SQLite恢复Redis侧的派生数据。
func InitializeApplication() error {
	logger.S.Info("开始应用初始化...")

	if err := metadata.PrimeDB(); err != nil {
		return err
	}
	if err := user.PrimeDB(database.DB); err != nil {
		return err
	}
	if err := vtuber.PrimeDB(); err != nil {
		return err
	}
	if err := gacha.PrimeCachedDB(); err != nil {
		return err
	}
	if err := medal.PrimeDB(database.DB); err != nil {
		return err
	}
	if err := payment.PrimeDB(database.DB); err != nil {
		return err
	}
	if err := exchange.PrimeDB(database.DB); err != nil {
		return err
	}
	if err := draw.PrimeDB(); err != nil {
		return err
	}

	// Redis上的防重放缓存和入账检查点从SQLite恢复
	if err := draw.RecoverReplayDefense(); err != nil {
		return err
	}
	if err := restoreCreditCheckpoint(); err != nil {
		return err
	}

	logger.S.Info("应用初始化完成。")
	return nil
}

// RebuildCache 在Redis重启后热重建全部派生数据。
// 余额缓存是cache-aside的，清空后按需回填；防重放缓存和
// 入账检查点从SQLite权威数据重建。
func RebuildCache() error {
	logger.S.Info("开始缓存热重建...")

	if err := medal.FlushCache(); err != nil {
		return err
	}
	if err := draw.RecoverReplayDefense(); err != nil {
		return err
	}
	if err := restoreCreditCheckpoint(); err != nil {
		return err
	}

	logger.S.Info("缓存热重建完成。")
	return nil
}

// restoreCreditCheckpoint 把数据库中的入账检查点同步到Redis
func restoreCreditCheckpoint() error {
	checkpoint, err := metadata.GetLastCreditedResultID(database.DB)
	if err != nil {
		return err
	}
	return database.RDB.Set(database.Ctx, metadata.RedisLastCreditedResultIDKey, checkpoint, 0).Err()
}
