package user

import "gorm.io/gorm"

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 是账号实体。密码只保存bcrypt散列。
type User struct {
	gorm.Model

	UUID         string `gorm:"uniqueIndex;type:varchar(36);not null"`
	Email        string `gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash string `gorm:"type:varchar(60);not null"`

	// Role: user | admin
	Role        string `gorm:"size:8;not null;default:user"`
	DisplayName string `gorm:"size:64"`
}
