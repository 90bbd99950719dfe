package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/koepon-app/koepon-backend/internal/platform/config"
)

// 令牌校验的错误种类。过期与篡改/格式错误严格区分，
// 上层据此决定是引导刷新还是直接拒绝。
var (
	ErrTokenExpired   = errors.New("トークンの有効期限が切れています")
	ErrTokenInvalid   = errors.New("トークンが無効です")
	ErrTokenMalformed = errors.New("トークンの形式が正しくありません")
)

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims 是本服务签发的JWT负载
type Claims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ"` // access | refresh
	jwt.RegisteredClaims
}

// IssueTokenPair 为一个会话签发access/refresh令牌对
func IssueTokenPair(userID, role, sessionID string) (accessToken, refreshToken string, err error) {
	accessToken, err = issueToken(userID, role, sessionID, TokenTypeAccess, config.Cfg.Auth.AccessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = issueToken(userID, role, sessionID, TokenTypeRefresh, config.Cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func issueToken(userID, role, sessionID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.Cfg.Auth.Issuer,
			Audience:  jwt.ClaimStrings{config.Cfg.Auth.Audience},
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.Cfg.Auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("无法签发令牌: %w", err)
	}
	return signed, nil
}

// VerifyToken 校验令牌并返回Claims。
// 返回的错误恒为ErrTokenExpired、ErrTokenMalformed或ErrTokenInvalid之一。
func VerifyToken(tokenString, expectedType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(config.Cfg.Auth.JWTSecret), nil
	},
		jwt.WithIssuer(config.Cfg.Auth.Issuer),
		jwt.WithAudience(config.Cfg.Auth.Audience),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenInvalid
		}
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != expectedType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
