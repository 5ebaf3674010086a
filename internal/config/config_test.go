package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"ACCOUNTHUB_JWT_SECRET",
		"ACCOUNTHUB_SERVER_HOST",
		"ACCOUNTHUB_SERVER_PORT",
		"ACCOUNTHUB_ACCOUNTS_OPEN_SIGNUP",
		"ACCOUNTHUB_ACCOUNTS_CONFIRMATION_EXPIRE_DAYS",
		"ACCOUNTHUB_ACCOUNTS_SIGNUP_CODE_EXPIRE_HOURS",
		"ACCOUNTHUB_ACCOUNTS_NOTIFY_PASSWORD_CHANGE",
		"ACCOUNTHUB_SMTP_HOST",
		"ACCOUNTHUB_GEOIP_ENABLED",
		"ACCOUNTHUB_GEOIP_ENDPOINT",
		"ACCOUNTHUB_LOG_LEVEL",
		"ACCOUNTHUB_LOG_DEVELOPMENT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	t.Run("加载默认配置成功", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("ACCOUNTHUB_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.True(t, cfg.Accounts.OpenSignup)
		assert.Equal(t, 5*24*time.Hour, cfg.Accounts.ConfirmationExpiry)
		assert.Equal(t, 24*time.Hour, cfg.Accounts.SignupCodeExpiry)
		assert.True(t, cfg.Accounts.NotifyPasswordChange)
		assert.Equal(t, int64(5), cfg.Accounts.MaxSendsPerWindow)
		assert.Equal(t, 587, cfg.SMTP.Port)
		assert.False(t, cfg.GeoIP.Enabled)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, "accounthub", cfg.JWT.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiry)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		os.Setenv("ACCOUNTHUB_JWT_SECRET", "custom-jwt-secret-key-32-chars-long-minimum")
		os.Setenv("ACCOUNTHUB_SERVER_HOST", "127.0.0.1")
		os.Setenv("ACCOUNTHUB_SERVER_PORT", "9090")
		os.Setenv("ACCOUNTHUB_ACCOUNTS_OPEN_SIGNUP", "false")
		os.Setenv("ACCOUNTHUB_ACCOUNTS_CONFIRMATION_EXPIRE_DAYS", "3")
		os.Setenv("ACCOUNTHUB_ACCOUNTS_SIGNUP_CODE_EXPIRE_HOURS", "48")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.False(t, cfg.Accounts.OpenSignup)
		assert.Equal(t, 3*24*time.Hour, cfg.Accounts.ConfirmationExpiry)
		assert.Equal(t, 48*time.Hour, cfg.Accounts.SignupCodeExpiry)
	})

	t.Run("缺少JWT密钥时报错", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("JWT密钥太短时报错", func(t *testing.T) {
		os.Setenv("ACCOUNTHUB_JWT_SECRET", "too-short")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("启用GeoIP但缺少端点时报错", func(t *testing.T) {
		os.Setenv("ACCOUNTHUB_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("ACCOUNTHUB_GEOIP_ENABLED", "true")
		os.Unsetenv("ACCOUNTHUB_GEOIP_ENDPOINT")

		_, err := Load()
		assert.Error(t, err)
	})
}
