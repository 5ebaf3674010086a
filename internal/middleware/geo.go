package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounthub/backend/internal/service"
)

// GeoDefaults 会话默认值中间件
//
// 为每个请求计算应生效的时区与位置默认值并放进上下文，
// 由需要渲染本地时间的处理器消费。推断失败时静默跳过，
// 定位服务不可用不能影响请求本身。
type GeoDefaults struct {
	settings *service.SettingsService
	log      *zap.Logger
}

// NewGeoDefaults 创建会话默认值中间件
func NewGeoDefaults(settings *service.SettingsService, log *zap.Logger) *GeoDefaults {
	return &GeoDefaults{settings: settings, log: log}
}

// Seed 把会话默认值写进请求上下文
func (g *GeoDefaults) Seed() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		sessionID, _ := c.Cookie("session_id")

		defaults, err := g.settings.SessionDefaults(c.Request.Context(), userID, sessionID, c.ClientIP())
		if err != nil {
			g.log.Debug("session defaults lookup failed",
				zap.Error(err), zap.String("ip", c.ClientIP()))
		} else if defaults != nil {
			c.Set("sessionDefaults", defaults)
		}

		c.Next()
	}
}
