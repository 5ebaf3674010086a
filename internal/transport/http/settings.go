package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/service"
	"accounthub/backend/internal/storage/redis"
)

// SettingsHandler 处理用户偏好设置的 HTTP 请求
type SettingsHandler struct {
	settings *service.SettingsService
	log      *zap.Logger
}

// NewSettingsHandler 创建设置处理器
func NewSettingsHandler(settings *service.SettingsService, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, log: log}
}

type updateSettingsRequest struct {
	BirthDate         *string  `json:"birthDate"` // "2006-01-02"
	Timezone          *string  `json:"timezone"`
	LocationName      *string  `json:"locationName"`
	LocationLatitude  *float64 `json:"locationLatitude"`
	LocationLongitude *float64 `json:"locationLongitude"`
	ProfileImage      *string  `json:"profileImage"`
	PreferredLanguage *string  `json:"preferredLanguage"`
}

// Get 返回当前账户的设置，不存在则创建空行
func (h *SettingsHandler) Get(c *gin.Context) {
	userID := c.GetString("userID")

	settings, err := h.settings.GetOrCreate(userID)
	if err != nil {
		h.log.Error("failed to load user settings", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, settings)
}

// Update 部分更新当前账户的设置
func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.UpdateSettingsInput{
		Timezone:          req.Timezone,
		LocationName:      req.LocationName,
		LocationLatitude:  req.LocationLatitude,
		LocationLongitude: req.LocationLongitude,
		ProfileImage:      req.ProfileImage,
		PreferredLanguage: req.PreferredLanguage,
	}
	if req.BirthDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			BadRequest(c, "出生日期格式无效，应为 YYYY-MM-DD")
			return
		}
		input.BirthDate = &parsed
	}

	userID := c.GetString("userID")
	settings, err := h.settings.Update(userID, input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTimezone) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to update user settings", zap.Error(err))
		InternalError(c, "更新设置失败")
		return
	}
	Success(c, settings)
}

// SessionDefaults 返回当前请求生效的时区与位置默认值
//
// 中间件已把结果放进上下文；没有任何来源能给出默认值时返回空对象。
func (h *SettingsHandler) SessionDefaults(c *gin.Context) {
	if defaults, ok := c.Get("sessionDefaults"); ok {
		Success(c, defaults.(*redis.SessionDefaults))
		return
	}
	Success(c, gin.H{})
}
