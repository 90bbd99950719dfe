package user

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// 登录爆破防护参数
const (
	failKeyPrefix = "login:fail:"
	lockKeyPrefix = "login:lock:"

	failureWindow    = 15 * time.Minute
	failureThreshold = 5
	lockoutDuration  = 30 * time.Minute

	// 记录的TTL比窗口稍长以作缓冲
	failureTTL = 20 * time.Minute
)

var ErrAccountLocked = errors.New("ログインの失敗が続いたため、一時的にロックされています。しばらくしてからお試しください")

// generateAttemptID 生成抗冲突的失败记录成员ID。
// 结构: [ 8字节纳秒时间戳 (Big Endian) | 8字节随机数 ]
func generateAttemptID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func normalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLockedOut 检查一个账号是否处于锁定期
func IsLockedOut(email string) (bool, error) {
	exists, err := database.RDB.Exists(database.Ctx, lockKeyPrefix+normalizeIdentity(email)).Result()
	if err != nil {
		return false, fmt.Errorf("无法查询锁定状态: %w", err)
	}
	return exists > 0, nil
}

// RecordLoginFailure 在滑动窗口内记录一次登录失败。
// 窗口内失败次数达到阈值时设置锁定键并返回true。
func RecordLoginFailure(email string) (lockedOut bool, err error) {
	identity := normalizeIdentity(email)
	key := failKeyPrefix + identity

	now := time.Now()
	minScore := float64(now.Add(-failureWindow).UnixMicro())
	attemptID, err := generateAttemptID(now)
	if err != nil {
		return false, fmt.Errorf("生成失败记录ID失败: %w", err)
	}

	pipe := database.RDB.TxPipeline()
	pipe.ZRemRangeByScore(database.Ctx, key, "-inf", fmt.Sprintf("(%f", minScore))
	pipe.ZAdd(database.Ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: attemptID})
	pipe.Expire(database.Ctx, key, failureTTL)
	countCmd := pipe.ZCard(database.Ctx, key)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return false, fmt.Errorf("记录登录失败时出错: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, fmt.Errorf("获取失败计数出错: %w", err)
	}

	if count >= failureThreshold {
		if err := database.RDB.Set(database.Ctx, lockKeyPrefix+identity, now.Unix(), lockoutDuration).Err(); err != nil {
			return false, fmt.Errorf("设置账号锁定出错: %w", err)
		}
		logger.S.Warnf("账号因连续登录失败被锁定 identity=%s count=%d", identity, count)
		return true, nil
	}
	return false, nil
}

// ClearLoginFailures 在登录成功后清空失败记录
func ClearLoginFailures(email string) {
	identity := normalizeIdentity(email)
	pipe := database.RDB.TxPipeline()
	pipe.Del(database.Ctx, failKeyPrefix+identity)
	pipe.Del(database.Ctx, lockKeyPrefix+identity)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		logger.S.Warnf("清空登录失败记录出错 identity=%s: %v", identity, err)
	}
}
