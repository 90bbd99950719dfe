package user

import (
	"fmt"
	"time"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

const dauKeyPrefix = "dau:"

// dauTTL 保留当天和前一天的集合，便于做环比
const dauTTL = 48 * time.Hour

func dauKey(day time.Time) string {
	return dauKeyPrefix + day.Format("2006-01-02")
}

// TrackDailyActive 把用户计入当天的活跃集合，尽力而为
func TrackDailyActive(userID string) {
	if !database.IsRedisHealthy() {
		return
	}
	key := dauKey(time.Now())
	pipe := database.RDB.TxPipeline()
	pipe.SAdd(database.Ctx, key, userID)
	pipe.Expire(database.Ctx, key, dauTTL)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		logger.S.Debugf("DAU记录失败 user=%s: %v", userID, err)
	}
}

// CountDailyActive 返回指定日期的活跃用户数
func CountDailyActive(day time.Time) (int64, error) {
	count, err := database.RDB.SCard(database.Ctx, dauKey(day)).Result()
	if err != nil {
		return 0, fmt.Errorf("无法统计活跃用户: %w", err)
	}
	return count, nil
}
