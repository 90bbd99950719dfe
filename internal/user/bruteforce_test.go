package user

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

// setupRedis 用miniredis替换全局Redis客户端
func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	logger.Init("debug")

	mr := miniredis.RunT(t)
	database.RDB = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = database.RDB.Close()
	})
	return mr
}

func TestRecordLoginFailureLocksAtThreshold(t *testing.T) {
	setupRedis(t)

	email := "Alice@Example.com"
	for i := 1; i < failureThreshold; i++ {
		locked, err := RecordLoginFailure(email)
		if err != nil {
			t.Fatalf("RecordLoginFailure #%d error: %v", i, err)
		}
		if locked {
			t.Fatalf("第%d次失败不应触发锁定", i)
		}
	}

	locked, err := RecordLoginFailure(email)
	if err != nil {
		t.Fatalf("RecordLoginFailure error: %v", err)
	}
	if !locked {
		t.Fatalf("第%d次失败应当触发锁定", failureThreshold)
	}

	// 锁定检查对大小写和空白不敏感
	isLocked, err := IsLockedOut("  alice@example.com ")
	if err != nil {
		t.Fatalf("IsLockedOut error: %v", err)
	}
	if !isLocked {
		t.Fatal("锁定后IsLockedOut应返回true")
	}
}

func TestIsLockedOutDefaultsFalse(t *testing.T) {
	setupRedis(t)

	locked, err := IsLockedOut("nobody@example.com")
	if err != nil {
		t.Fatalf("IsLockedOut error: %v", err)
	}
	if locked {
		t.Fatal("无记录的账号不应被锁定")
	}
}

func TestClearLoginFailuresResetsCounter(t *testing.T) {
	setupRedis(t)

	email := "bob@example.com"
	for i := 0; i < failureThreshold-1; i++ {
		if _, err := RecordLoginFailure(email); err != nil {
			t.Fatalf("RecordLoginFailure error: %v", err)
		}
	}

	ClearLoginFailures(email)

	// 清空后重新计数，单次失败不触发锁定
	locked, err := RecordLoginFailure(email)
	if err != nil {
		t.Fatalf("RecordLoginFailure error: %v", err)
	}
	if locked {
		t.Fatal("清空记录后单次失败不应触发锁定")
	}
	isLocked, err := IsLockedOut(email)
	if err != nil {
		t.Fatalf("IsLockedOut error: %v", err)
	}
	if isLocked {
		t.Fatal("未达阈值不应处于锁定状态")
	}
}

func TestLockoutExpires(t *testing.T) {
	mr := setupRedis(t)

	email := "carol@example.com"
	for i := 0; i < failureThreshold; i++ {
		if _, err := RecordLoginFailure(email); err != nil {
			t.Fatalf("RecordLoginFailure error: %v", err)
		}
	}

	isLocked, err := IsLockedOut(email)
	if err != nil {
		t.Fatalf("IsLockedOut error: %v", err)
	}
	if !isLocked {
		t.Fatal("达到阈值后应处于锁定状态")
	}

	mr.FastForward(lockoutDuration + time.Minute)

	isLocked, err = IsLockedOut(email)
	if err != nil {
		t.Fatalf("IsLockedOut error: %v", err)
	}
	if isLocked {
		t.Fatal("锁定期结束后应自动解锁")
	}
}
