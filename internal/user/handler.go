package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"displayName" binding:"max=64"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
}

func formatUser(u *User) userResponse {
	return userResponse{
		ID:          u.UUID,
		Email:       u.Email,
		Role:        u.Role,
		DisplayName: u.DisplayName,
	}
}

// RegisterHandler 处理 POST /api/v1/auth/register
func RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "入力内容が正しくありません"})
		return
	}

	account, err := Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		logger.S.Errorf("注册失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "登録に失敗しました"})
		return
	}

	issueSessionResponse(c, account, http.StatusCreated)
}

// LoginHandler 处理 POST /api/v1/auth/login。
// 锁定检查在密码校验之前，失败记录在校验之后。
func LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "入力内容が正しくありません"})
		return
	}

	locked, err := IsLockedOut(req.Email)
	if err != nil {
		logger.S.Errorf("锁定状态查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
		return
	}
	if locked {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": ErrAccountLocked.Error()})
		return
	}

	account, err := Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			if lockedNow, recordErr := RecordLoginFailure(req.Email); recordErr == nil && lockedNow {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": ErrAccountLocked.Error()})
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		logger.S.Errorf("登录失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
		return
	}

	ClearLoginFailures(req.Email)
	issueSessionResponse(c, account, http.StatusOK)
}

// RefreshHandler 处理 POST /api/v1/auth/refresh。
// 旧会话被轮换销毁，签发绑定新会话的令牌对。
func RefreshHandler(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "入力内容が正しくありません"})
		return
	}

	claims, err := VerifyToken(req.RefreshToken, TokenTypeRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	if err := ValidateSession(claims.SessionID, claims.UserID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrSessionInvalid.Error()})
		return
	}

	account, err := GetByUUID(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrSessionInvalid.Error()})
		return
	}

	DestroySession(claims.SessionID, claims.UserID)
	issueSessionResponse(c, account, http.StatusOK)
}

// LogoutHandler 处理 POST /api/v1/auth/logout（需认证）
func LogoutHandler(c *gin.Context) {
	sessionID := c.GetString("sessionID")
	userID := c.GetString("userID")
	if sessionID != "" {
		DestroySession(sessionID, userID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "ログアウトしました"})
}

func issueSessionResponse(c *gin.Context, account *User, status int) {
	sessionID, err := CreateSession(account.UUID, account.Role, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		logger.S.Errorf("会话创建失败 user=%s: %v", account.UUID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
		return
	}

	accessToken, refreshToken, err := IssueTokenPair(account.UUID, account.Role, sessionID)
	if err != nil {
		logger.S.Errorf("令牌签发失败 user=%s: %v", account.UUID, err)
		DestroySession(sessionID, account.UUID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
		return
	}

	TrackDailyActive(account.UUID)

	c.JSON(status, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         formatUser(account),
	})
}
