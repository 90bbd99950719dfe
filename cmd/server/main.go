package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/koepon-app/koepon-backend/api"
	"github.com/koepon-app/koepon-backend/internal/draw"
	"github.com/koepon-app/koepon-backend/internal/payment"
	"github.com/koepon-app/koepon-backend/internal/platform/config"
	"github.com/koepon-app/koepon-backend/internal/platform/database"
	"github.com/koepon-app/koepon-backend/internal/platform/health"
	"github.com/koepon-app/koepon-backend/internal/platform/logger"
	"github.com/koepon-app/koepon-backend/internal/platform/shutdown"
	"github.com/koepon-app/koepon-backend/internal/platform/startup"
	"github.com/koepon-app/koepon-backend/internal/security"
	"github.com/koepon-app/koepon-backend/internal/user"
	"github.com/koepon-app/koepon-backend/pkg/lifecycle"
	"github.com/koepon-app/koepon-backend/pkg/ticket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("配置加载失败: %v", err))
	}

	logger.Init(cfg.Server.Mode)
	defer logger.Sync()

	database.InitDB(cfg.Database)
	database.InitRedis(cfg.Database.Redis)

	// 抽选券签名密钥和会话加密器。
	// 抽选券密钥从JWT主密钥派生，两种签名互不通用。
	if cfg.Auth.JWTSecret == "" {
		logger.S.Fatal("JWT_SECRET 未配置，拒绝启动")
	}
	ticketKey, err := ticket.DeriveKey([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		logger.S.Fatalf("抽选券签名密钥派生失败: %v", err)
	}
	if err := ticket.Configure(ticketKey); err != nil {
		logger.S.Fatalf("抽选券签名器初始化失败: %v", err)
	}
	if cfg.Auth.EncryptionKey != "" {
		encryptor, err := security.NewEncryptor(decodeEncryptionKey(cfg.Auth.EncryptionKey))
		if err != nil {
			logger.S.Fatalf("会话加密器初始化失败: %v", err)
		}
		user.ConfigureSessionCrypto(encryptor)
	}

	payment.ConfigureProvider(payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret))

	// 阻塞式获取初始Run ID，随后执行初始化
	health.InitializeRunID()
	if err := startup.InitializeApplication(); err != nil {
		logger.S.Fatalf("应用初始化失败，无法启动: %v", err)
	}

	// 两阶段停机：第一个管理器负责优雅排空，第二个负责强制中断
	gracefulManager := lifecycle.NewManager()
	forcefulManager := lifecycle.NewManager()

	healthHandle, err := gracefulManager.Register("redis-health-checker")
	if err != nil {
		logger.S.Fatalf("注册健康检查器失败: %v", err)
	}
	go health.StartRedisHealthCheck(healthHandle)

	creditGraceful, err := gracefulManager.Register("credit-processor")
	if err != nil {
		logger.S.Fatalf("注册入账处理器失败: %v", err)
	}
	creditForceful, err := forcefulManager.Register("credit-processor")
	if err != nil {
		logger.S.Fatalf("注册入账处理器失败: %v", err)
	}
	if err := draw.StartCreditProcessor(creditGraceful, creditForceful); err != nil {
		logger.S.Fatalf("启动入账处理器失败: %v", err)
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	r := gin.New()
	r.Use(gin.Recovery())

	allowedOrigins := cfg.Server.Cors.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		logger.S.Infof("服务器已准备就绪，开始监听 %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.S.Fatalf("HTTP服务器启动失败: %v", err)
		}
	}()

	coordinator := shutdown.NewCoordinator(gracefulManager, forcefulManager)
	coordinator.ListenForSignalsAndShutdown(server)
}

func ginMode(mode string) string {
	if mode == "release" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

// decodeEncryptionKey 接受Base64编码或32字节原文的密钥
func decodeEncryptionKey(raw string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == 32 {
		return decoded
	}
	return []byte(raw)
}
