package user

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/security"
)

const (
	testIP = "203.0.113.10"
	testUA = "Mozilla/5.0 (test)"
)

func TestSessionLifecycle(t *testing.T) {
	setupRedis(t)
	ConfigureSessionCrypto(nil)

	sessionID, err := CreateSession("user-1", RoleUser, testIP, testUA)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	if err := ValidateSession(sessionID, "user-1", testIP, testUA); err != nil {
		t.Fatalf("新会话校验应通过: %v", err)
	}

	DestroySession(sessionID, "user-1")
	if err := ValidateSession(sessionID, "user-1", testIP, testUA); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("删除后的会话应无效, got %v", err)
	}
}

func TestValidateSessionBindings(t *testing.T) {
	setupRedis(t)
	ConfigureSessionCrypto(nil)

	sessionID, err := CreateSession("user-1", RoleUser, testIP, testUA)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	// 归属不匹配
	if err := ValidateSession(sessionID, "user-2", testIP, testUA); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("他人的会话应无效, got %v", err)
	}
	// IP不匹配
	if err := ValidateSession(sessionID, "user-1", "198.51.100.1", testUA); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("IP变化应使会话无效, got %v", err)
	}
	// User-Agent不匹配
	if err := ValidateSession(sessionID, "user-1", testIP, "curl/8.0"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("User-Agent变化应使会话无效, got %v", err)
	}
	// 不存在的会话
	if err := ValidateSession("no-such-session", "user-1", testIP, testUA); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("不存在的会话应无效, got %v", err)
	}
}

func TestSessionInactivityTimeout(t *testing.T) {
	mr := setupRedis(t)
	ConfigureSessionCrypto(nil)

	sessionID, err := CreateSession("user-1", RoleUser, testIP, testUA)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	mr.FastForward(inactivityTimeout + time.Minute)
	if err := ValidateSession(sessionID, "user-1", testIP, testUA); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("不活跃超时后会话应失效, got %v", err)
	}
}

func TestSessionSlidingRenewal(t *testing.T) {
	mr := setupRedis(t)
	ConfigureSessionCrypto(nil)

	sessionID, err := CreateSession("user-1", RoleUser, testIP, testUA)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	// 每次成功校验都会续期不活跃计时
	for i := 0; i < 3; i++ {
		mr.FastForward(inactivityTimeout - time.Minute)
		if err := ValidateSession(sessionID, "user-1", testIP, testUA); err != nil {
			t.Fatalf("活跃中的会话应保持有效 (round %d): %v", i+1, err)
		}
	}
}

func TestSessionEvictionAtLimit(t *testing.T) {
	setupRedis(t)
	ConfigureSessionCrypto(nil)

	sessions := make([]string, 0, maxSessionsPerUser+1)
	for i := 0; i <= maxSessionsPerUser; i++ {
		sid, err := CreateSession("user-1", RoleUser, testIP, fmt.Sprintf("%s #%d", testUA, i))
		if err != nil {
			t.Fatalf("CreateSession #%d error: %v", i, err)
		}
		sessions = append(sessions, sid)
	}

	// 最旧的会话被淘汰
	oldest := sessions[0]
	if err := ValidateSession(oldest, "user-1", testIP, testUA+" #0"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("超限后最旧会话应被淘汰, got %v", err)
	}
	// 最新的仍然有效
	newest := sessions[len(sessions)-1]
	if err := ValidateSession(newest, "user-1", testIP, fmt.Sprintf("%s #%d", testUA, maxSessionsPerUser)); err != nil {
		t.Fatalf("最新会话应仍然有效: %v", err)
	}
}

func TestDestroyAllSessions(t *testing.T) {
	setupRedis(t)
	ConfigureSessionCrypto(nil)

	var sessions []string
	for i := 0; i < 3; i++ {
		sid, err := CreateSession("user-1", RoleUser, testIP, testUA)
		if err != nil {
			t.Fatalf("CreateSession error: %v", err)
		}
		sessions = append(sessions, sid)
	}

	DestroyAllSessions("user-1")
	for _, sid := range sessions {
		if err := ValidateSession(sid, "user-1", testIP, testUA); !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("全部会话应已失效, got %v", err)
		}
	}
}

func TestSessionEncryptionAtRest(t *testing.T) {
	setupRedis(t)

	enc, err := security.NewEncryptor(bytes.Repeat([]byte("s"), 32))
	if err != nil {
		t.Fatalf("NewEncryptor error: %v", err)
	}
	ConfigureSessionCrypto(enc)
	t.Cleanup(func() { ConfigureSessionCrypto(nil) })

	sessionID, err := CreateSession("user-1", RoleUser, testIP, testUA)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	// Redis中的会话数据不可直读
	stored, err := database.RDB.Get(database.Ctx, sessionDataKey(sessionID)).Result()
	if err != nil {
		t.Fatalf("读取会话数据失败: %v", err)
	}
	if bytes.Contains([]byte(stored), []byte("user-1")) {
		t.Fatal("加密存储的会话数据不应包含明文用户ID")
	}

	if err := ValidateSession(sessionID, "user-1", testIP, testUA); err != nil {
		t.Fatalf("加密会话校验应通过: %v", err)
	}
}
