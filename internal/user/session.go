package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/internal/security"
	"github.com/redis/go-redis/v9"
)

// 会话安全参数
const (
	maxSessionsPerUser = 5
	inactivityTimeout  = 30 * time.Minute
	absoluteTimeout    = 8 * time.Hour
)

var ErrSessionInvalid = errors.New("セッションが無効です。再度ログインしてください")

// sessionEncryptor 非nil时，会话数据加密后再写入Redis
var sessionEncryptor *security.Encryptor

// ConfigureSessionCrypto 注入会话数据加密器，传nil则明文存储
func ConfigureSessionCrypto(enc *security.Encryptor) {
	sessionEncryptor = enc
}

func sessionDataKey(sessionID string) string {
	return "session:data:" + sessionID
}

func sessionUserKey(userID string) string {
	return "session:user:" + userID
}

// sessionRecord 是存储在Redis中的会话数据
type sessionRecord struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"createdAt"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
}

// CreateSession 创建新会话并登记到用户的会话集合。
// 超过每用户上限时淘汰最旧的会话。
func CreateSession(userID, role, ip, userAgent string) (string, error) {
	sessionUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成会话ID: %w", err)
	}
	sessionID := sessionUUID.String()

	now := time.Now()
	record := sessionRecord{
		UserID:    userID,
		Role:      role,
		CreatedAt: now.Unix(),
		IP:        ip,
		UserAgent: userAgent,
	}
	payload, err := encodeSession(record)
	if err != nil {
		return "", err
	}

	userKey := sessionUserKey(userID)
	pipe := database.RDB.TxPipeline()
	pipe.Set(database.Ctx, sessionDataKey(sessionID), payload, inactivityTimeout)
	pipe.ZAdd(database.Ctx, userKey, redis.Z{Score: float64(now.Unix()), Member: sessionID})
	pipe.Expire(database.Ctx, userKey, absoluteTimeout)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return "", fmt.Errorf("无法创建会话: %w", err)
	}

	evictExcessSessions(userID)
	return sessionID, nil
}

// evictExcessSessions 按创建时间淘汰超出上限的旧会话
func evictExcessSessions(userID string) {
	userKey := sessionUserKey(userID)
	count, err := database.RDB.ZCard(database.Ctx, userKey).Result()
	if err != nil || count <= maxSessionsPerUser {
		return
	}

	evictees, err := database.RDB.ZRange(database.Ctx, userKey, 0, count-maxSessionsPerUser-1).Result()
	if err != nil || len(evictees) == 0 {
		return
	}

	pipe := database.RDB.TxPipeline()
	for _, sid := range evictees {
		pipe.Del(database.Ctx, sessionDataKey(sid))
	}
	evicteeMembers := make([]interface{}, len(evictees))
	for i, sid := range evictees {
		evicteeMembers[i] = sid
	}
	pipe.ZRem(database.Ctx, userKey, evicteeMembers...)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		logger.S.Warnf("淘汰旧会话失败 user=%s: %v", userID, err)
	}
}

// ValidateSession 校验会话有效性并刷新不活跃计时。
// 检查顺序：存在性、归属、绝对有效期、设备与IP绑定。
func ValidateSession(sessionID, userID, ip, userAgent string) error {
	payload, err := database.RDB.Get(database.Ctx, sessionDataKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalid
		}
		return fmt.Errorf("无法读取会话: %w", err)
	}

	record, err := decodeSession(payload)
	if err != nil {
		return ErrSessionInvalid
	}
	if record.UserID != userID {
		return ErrSessionInvalid
	}
	if time.Since(time.Unix(record.CreatedAt, 0)) > absoluteTimeout {
		DestroySession(sessionID, userID)
		return ErrSessionInvalid
	}
	if record.UserAgent != userAgent || record.IP != ip {
		logger.S.Warnf("会话绑定不匹配 session=%s user=%s", sessionID, userID)
		return ErrSessionInvalid
	}

	// 活跃会话滑动续期
	database.RDB.Expire(database.Ctx, sessionDataKey(sessionID), inactivityTimeout)
	return nil
}

// DestroySession 删除单个会话
func DestroySession(sessionID, userID string) {
	pipe := database.RDB.TxPipeline()
	pipe.Del(database.Ctx, sessionDataKey(sessionID))
	pipe.ZRem(database.Ctx, sessionUserKey(userID), sessionID)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		logger.S.Warnf("删除会话失败 session=%s: %v", sessionID, err)
	}
}

// DestroyAllSessions 删除一个用户的全部会话（改密、封禁等场景）
func DestroyAllSessions(userID string) {
	userKey := sessionUserKey(userID)
	sessionIDs, err := database.RDB.ZRange(database.Ctx, userKey, 0, -1).Result()
	if err != nil {
		logger.S.Warnf("读取用户会话集合失败 user=%s: %v", userID, err)
		return
	}

	pipe := database.RDB.TxPipeline()
	for _, sid := range sessionIDs {
		pipe.Del(database.Ctx, sessionDataKey(sid))
	}
	pipe.Del(database.Ctx, userKey)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		logger.S.Warnf("删除用户会话失败 user=%s: %v", userID, err)
	}
}

func encodeSession(record sessionRecord) (string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("无法序列化会话: %w", err)
	}
	if sessionEncryptor == nil {
		return string(raw), nil
	}
	return sessionEncryptor.Encrypt(raw)
}

func decodeSession(payload string) (*sessionRecord, error) {
	raw := []byte(payload)
	if sessionEncryptor != nil {
		decrypted, err := sessionEncryptor.Decrypt(payload)
		if err != nil {
			return nil, err
		}
		raw = decrypted
	}
	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
