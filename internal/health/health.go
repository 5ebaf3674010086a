package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"accounthub/backend/internal/storage"
	"accounthub/backend/internal/storage/redis"
)

// Checker 健康检查器
//
// liveness 只看存储可达性；readiness 额外看 Redis（启用时）。
type Checker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewChecker 创建健康检查器
func NewChecker(store storage.Store, cache *redis.Cache, logger *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	c.health.AddLivenessCheck("store", store.Health)
	if cache != nil {
		c.health.AddReadinessCheck("redis", cache.Health)
	}
	return c
}

// Handler 返回健康检查处理器（/live 和 /ready）
func (c *Checker) Handler() http.Handler {
	return c.health
}
