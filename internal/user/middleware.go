package user

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireAuth 校验Bearer access令牌和其绑定的会话。
// 通过后把userID、userRole、sessionID写入请求上下文。
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
			return
		}

		claims, err := VerifyToken(tokenString, TokenTypeAccess)
		if err != nil {
			status := http.StatusUnauthorized
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}

		err = ValidateSession(claims.SessionID, claims.UserID, c.ClientIP(), c.GetHeader("User-Agent"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrSessionInvalid.Error()})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userRole", claims.Role)
		c.Set("sessionID", claims.SessionID)
		c.Next()
	}
}

// RequireAdmin 在RequireAuth之后使用，仅放行admin角色
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("userRole") != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "管理者権限が必要です"})
			return
		}
		c.Next()
	}
}
