package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("このメールアドレスは既に登録されています")
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが間違っています")
	ErrUserNotFound       = errors.New("ユーザーが見つかりません")
)

// Register 创建新账号。邮箱冲突返回ErrEmailTaken。
func Register(email, password, displayName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	userUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成用户ID: %w", err)
	}

	newUser := User{
		UUID:         userUUID.String(),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		DisplayName:  displayName,
	}
	if err := database.DB.Create(&newUser).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("无法创建用户: %w", err)
	}
	return &newUser, nil
}

// Authenticate 校验邮箱与密码。
// 账号不存在和密码错误返回同一个错误，不向外泄露账号是否存在。
func Authenticate(email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var account User
	err := database.DB.Where("email = ?", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 仍然执行一次散列比较，拉平响应时间
			VerifyPassword("$2a$12$RrkQasfy7PcuoSDO9wMZF.CV4PpUJcGJ2llCbybYVOaAsmiSQbyAa", password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("无法读取用户: %w", err)
	}

	if !VerifyPassword(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &account, nil
}

// GetByUUID 按UUID查找用户
func GetByUUID(userUUID string) (*User, error) {
	var account User
	err := database.DB.Where("uuid = ?", userUUID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("无法读取用户: %w", err)
	}
	return &account, nil
}

// CountAll 返回注册用户总数
func CountAll() (int64, error) {
	var count int64
	if err := database.DB.Model(&User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("无法统计用户: %w", err)
	}
	return count, nil
}

// ListAll 返回全部用户，按注册时间倒序（管理端用）
func ListAll(page, pageSize int) ([]User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := database.DB.Model(&User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("无法统计用户: %w", err)
	}

	var users []User
	err := database.DB.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error
	if err != nil {
		return nil, 0, fmt.Errorf("无法读取用户列表: %w", err)
	}
	return users, total, nil
}
