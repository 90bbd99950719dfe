package database

import (
	"context"

	"github.com/koepon-app/koepon-backend/internal/platform/config"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// RDB 是全局的Redis客户端实例
var RDB *redis.Client

// Ctx 是Redis操作使用的全局上下文
var Ctx = context.Background()

// InitRedis 建立与Redis的连接并验证连通性
func InitRedis(cfg config.RedisConfig) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := RDB.Ping(Ctx).Result(); err != nil {
		logger.S.Fatalf("无法连接到Redis: %v", err)
	}

	logger.S.Info("Redis 连接成功")
}
