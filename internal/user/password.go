package user

import (
	"errors"

	"github.com/koepon-app/koepon-backend/internal/platform/config"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordBytes = 72 // bcrypt的输入上限

// HashPassword 用配置的成本因子生成bcrypt散列
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("密码不能为空")
	}
	if len(password) > maxPasswordBytes {
		return "", errors.New("密码超过长度上限")
	}

	cost := bcrypt.DefaultCost
	if config.Cfg != nil && config.Cfg.Auth.BcryptCost > 0 {
		cost = config.Cfg.Auth.BcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 校验明文密码与散列是否匹配
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
