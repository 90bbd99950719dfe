package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cfg 是全局配置实例，在LoadConfig成功后可用
var Cfg *Config

// Config 与 config/config.yaml 的结构一一对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Medal    MedalConfig    `mapstructure:"medal"`
}

// ServerConfig 定义了HTTP服务相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"` // debug | release
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了持久化与缓存的配置
type DatabaseConfig struct {
	// Driver 选择系统记录库: sqlite | postgres
	Driver   string         `mapstructure:"driver"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StripeConfig 定义了支付网关的密钥配置。
// 所有密钥都应通过环境变量注入，yaml中只保留占位。
type StripeConfig struct {
	SecretKey      string `mapstructure:"secretKey"`
	PublishableKey string `mapstructure:"publishableKey"`
	WebhookSecret  string `mapstructure:"webhookSecret"`
}

// AuthConfig 定义了认证与会话安全的参数
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwtSecret"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
	BcryptCost      int           `mapstructure:"bcryptCost"`

	// EncryptionKey 是32字节的会话数据加密密钥（Base64或原文），为空时会话数据不加密
	EncryptionKey string `mapstructure:"encryptionKey"`
}

// MedalConfig 定义了勋章账本的行为开关
type MedalConfig struct {
	// FallbackBalanceOnError 为true时，余额查询失败会退回最近一次的已知余额；
	// 默认为false，查询失败将作为错误返回给调用方。
	FallbackBalanceOnError bool `mapstructure:"fallbackBalanceOnError"`
}

// LoadConfig 查找并解析配置文件，随后应用环境变量覆盖。
// .env 文件（如果存在）会先被加载进程环境。
func LoadConfig() (*Config, error) {
	// .env 缺失不是错误，线上环境直接注入环境变量
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 密钥类配置只接受环境变量
	_ = v.BindEnv("stripe.secretKey", "STRIPE_SECRET_KEY")
	_ = v.BindEnv("stripe.publishableKey", "STRIPE_PUBLISHABLE_KEY")
	_ = v.BindEnv("stripe.webhookSecret", "STRIPE_WEBHOOK_SECRET")
	_ = v.BindEnv("auth.jwtSecret", "JWT_SECRET")
	_ = v.BindEnv("auth.encryptionKey", "ENCRYPTION_KEY")
	_ = v.BindEnv("database.postgres.dsn", "POSTGRES_DSN")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	Cfg = &cfg
	return Cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Sqlite.Path == "" {
		cfg.Database.Sqlite.Path = "koepon.db"
	}
	if cfg.Auth.AccessTokenTTL == 0 {
		cfg.Auth.AccessTokenTTL = time.Hour
	}
	if cfg.Auth.RefreshTokenTTL == 0 {
		cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 12
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "koepon-backend"
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "koepon-app"
	}
}
