package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// AccountsConfig 定义账户子系统的核心业务配置
type AccountsConfig struct {
	OpenSignup           bool          // 是否开放注册；关闭时注册必须携带有效邀请码
	ConfirmationExpiry   time.Duration // 邮箱确认密钥有效期，默认 5 天
	SignupCodeExpiry     time.Duration // 新邀请码的默认有效期，默认 24 小时
	NotifyPasswordChange bool          // 改密后是否给主邮箱发通知
	ConfirmURL           string        // 确认链接前缀，密钥追加在后面
	ResendWindow         time.Duration // 确认邮件重发限流窗口
	MaxSendsPerWindow    int64         // 窗口内同一邮箱最多发送次数，0 表示不限流
}

// SMTPConfig 定义外发邮件服务配置
type SMTPConfig struct {
	Host          string  // SMTP 服务器地址，留空时退化为日志投递
	Port          int     // SMTP 端口，默认 587
	Username      string  // SMTP 认证用户名
	Password      string  // SMTP 认证密码
	From          string  // 发件人地址
	RatePerSecond float64 // 外发速率限制（封/秒）
}

// GeoIPConfig 定义地理定位服务配置
type GeoIPConfig struct {
	Enabled  bool          // 是否启用 GeoIP 会话默认值推断
	Endpoint string        // 定位服务 HTTP 端点
	CacheTTL time.Duration // 查询结果的缓存时长
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只打到标准输出
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis（会话默认值缓存和重发限流）
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "accounthub"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Accounts AccountsConfig // 账户子系统配置
	SMTP     SMTPConfig     // 外发邮件配置
	GeoIP    GeoIPConfig    // 地理定位配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ACCOUNTHUB_
// 例如: ACCOUNTHUB_SERVER_HOST, ACCOUNTHUB_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("accounthub")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("accounts.open_signup", true)
	viper.SetDefault("accounts.confirmation_expire_days", 5)
	viper.SetDefault("accounts.signup_code_expire_hours", 24)
	viper.SetDefault("accounts.notify_password_change", true)
	viper.SetDefault("accounts.confirm_url", "http://localhost:8080/api/v1/emails/confirm/")
	viper.SetDefault("accounts.resend_window", "1h")
	viper.SetDefault("accounts.max_sends_per_window", 5)
	viper.SetDefault("smtp.host", "")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.username", "")
	viper.SetDefault("smtp.password", "")
	viper.SetDefault("smtp.from", "noreply@localhost")
	viper.SetDefault("smtp.rate_per_second", 1.0)
	viper.SetDefault("geoip.enabled", false)
	viper.SetDefault("geoip.endpoint", "")
	viper.SetDefault("geoip.cache_ttl", "24h")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "accounthub")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")

	confirmDays := viper.GetInt("accounts.confirmation_expire_days")
	if confirmDays <= 0 {
		confirmDays = 5
	}
	codeHours := viper.GetInt("accounts.signup_code_expire_hours")
	if codeHours <= 0 {
		codeHours = 24
	}

	resendWindow, err := time.ParseDuration(viper.GetString("accounts.resend_window"))
	if err != nil {
		resendWindow = time.Hour
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	geoCacheTTL, err := time.ParseDuration(viper.GetString("geoip.cache_ttl"))
	if err != nil {
		geoCacheTTL = 24 * time.Hour
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}
	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set ACCOUNTHUB_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	if viper.GetBool("geoip.enabled") && viper.GetString("geoip.endpoint") == "" {
		return nil, fmt.Errorf("geoip.endpoint must be set when geoip is enabled")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Accounts: AccountsConfig{
			OpenSignup:           viper.GetBool("accounts.open_signup"),
			ConfirmationExpiry:   time.Duration(confirmDays) * 24 * time.Hour,
			SignupCodeExpiry:     time.Duration(codeHours) * time.Hour,
			NotifyPasswordChange: viper.GetBool("accounts.notify_password_change"),
			ConfirmURL:           viper.GetString("accounts.confirm_url"),
			ResendWindow:         resendWindow,
			MaxSendsPerWindow:    viper.GetInt64("accounts.max_sends_per_window"),
		},
		SMTP: SMTPConfig{
			Host:          viper.GetString("smtp.host"),
			Port:          viper.GetInt("smtp.port"),
			Username:      viper.GetString("smtp.username"),
			Password:      viper.GetString("smtp.password"),
			From:          viper.GetString("smtp.from"),
			RatePerSecond: viper.GetFloat64("smtp.rate_per_second"),
		},
		GeoIP: GeoIPConfig{
			Enabled:  viper.GetBool("geoip.enabled"),
			Endpoint: viper.GetString("geoip.endpoint"),
			CacheTTL: geoCacheTTL,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 先看当前目录，再看父目录（从 backend/ 子目录运行的情况）。
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
