package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "accounthub/backend/internal/auth/jwt"
	"accounthub/backend/internal/config"
	"accounthub/backend/internal/health"
	"accounthub/backend/internal/middleware"
	"accounthub/backend/internal/monitoring"
	"accounthub/backend/internal/service"
	"accounthub/backend/internal/ws"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	AccountService  *service.AccountService
	EmailService    *service.EmailAddressService
	ConfirmService  *service.ConfirmationService
	SettingsService *service.SettingsService
	CodeService     *service.SignupCodeService
	JWTManager      *jwtpkg.Manager
	WebSocketHub    *ws.Hub
	Metrics         *monitoring.Metrics
	HealthChecker   *health.Checker
	Logger          *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitoringMW := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitoringMW.PanicRecovery())
	router.Use(monitoringMW.HTTPMetrics())

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 允许所有来源时需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	accountHandler := NewAccountHandler(deps.AccountService, deps.EmailService, deps.SettingsService, deps.JWTManager, deps.Logger)
	emailHandler := NewEmailHandler(deps.EmailService, deps.ConfirmService, deps.Logger)
	settingsHandler := NewSettingsHandler(deps.SettingsService, deps.Logger)
	codeHandler := NewSignupCodeHandler(deps.CodeService, deps.Logger)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	geoDefaults := middleware.NewGeoDefaults(deps.SettingsService, deps.Logger)

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.HealthChecker != nil {
		hc := deps.HealthChecker.Handler()
		router.GET("/live", gin.WrapH(hc))
		router.GET("/ready", gin.WrapH(hc))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", accountHandler.Register)
			authRoutes.POST("/login", accountHandler.Login)
			authRoutes.POST("/refresh", accountHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), accountHandler.Me)
			authRoutes.POST("/password", jwtAuth.RequireAuth(), accountHandler.ChangePassword)
		}

		// ========== Email Routes ==========
		emailRoutes := v1.Group("/emails")
		{
			// 确认链接从邮件点进来，不要求登录态
			emailRoutes.GET("/confirm/:key", emailHandler.Confirm)

			emailRoutes.GET("", jwtAuth.RequireAuth(), emailHandler.List)
			emailRoutes.POST("", jwtAuth.RequireAuth(), emailHandler.Add)
			emailRoutes.POST("/resend", jwtAuth.RequireAuth(), emailHandler.Resend)
			emailRoutes.PUT("/primary", jwtAuth.RequireAuth(), emailHandler.SetPrimary)
			emailRoutes.DELETE("/:email", jwtAuth.RequireAuth(), emailHandler.Remove)
		}

		// ========== Settings Routes ==========
		settingsRoutes := v1.Group("/settings")
		settingsRoutes.Use(jwtAuth.RequireAuth())
		{
			settingsRoutes.GET("", settingsHandler.Get)
			settingsRoutes.PATCH("", settingsHandler.Update)
		}

		// 会话默认值：匿名请求也可用（GeoIP 推断）
		v1.GET("/session/defaults", jwtAuth.OptionalAuth(), geoDefaults.Seed(), settingsHandler.SessionDefaults)

		// ========== Signup Code Routes ==========
		codeRoutes := v1.Group("/signup-codes")
		codeRoutes.Use(jwtAuth.RequireAuth())
		{
			codeRoutes.POST("", codeHandler.Create)
			codeRoutes.GET("/:code", codeHandler.Get)
			codeRoutes.GET("/:code/results", codeHandler.Results)
			codeRoutes.POST("/:code/send", codeHandler.Send)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", ws.Handler(deps.WebSocketHub))
		}
	}

	return router
}
