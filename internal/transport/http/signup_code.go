package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/service"
)

// SignupCodeHandler 处理邀请码台账的 HTTP 请求
//
// 签发和查询是运营操作，挂在认证路由下。
type SignupCodeHandler struct {
	codes *service.SignupCodeService
	log   *zap.Logger
}

// NewSignupCodeHandler 创建邀请码处理器
func NewSignupCodeHandler(codes *service.SignupCodeService, log *zap.Logger) *SignupCodeHandler {
	return &SignupCodeHandler{codes: codes, log: log}
}

type createSignupCodeRequest struct {
	Code         string `json:"code"`
	Email        string `json:"email"`
	MaxUses      int    `json:"maxUses"`
	ExpiresIn    string `json:"expiresIn"` // time.Duration 格式，如 "72h"
	NeverExpires bool   `json:"neverExpires"`
	Notes        string `json:"notes"`
	Send         bool   `json:"send"` // 创建后立即投递到绑定邮箱
}

type signupCodeResponse struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Email     string     `json:"email,omitempty"`
	MaxUses   int        `json:"maxUses"`
	UseCount  int        `json:"useCount"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toSignupCodeResponse(sc *domain.SignupCode) signupCodeResponse {
	return signupCodeResponse{
		ID:        sc.ID,
		Code:      sc.Code,
		Email:     sc.Email,
		MaxUses:   sc.MaxUses,
		UseCount:  sc.UseCount,
		ExpiresAt: sc.ExpiresAt,
		SentAt:    sc.SentAt,
		Notes:     sc.Notes,
		CreatedAt: sc.CreatedAt,
	}
}

// Create 签发一个新邀请码
func (h *SignupCodeHandler) Create(c *gin.Context) {
	var req createSignupCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.CreateSignupCodeInput{
		Code:         req.Code,
		Email:        req.Email,
		MaxUses:      req.MaxUses,
		NeverExpires: req.NeverExpires,
		Notes:        req.Notes,
	}
	if req.ExpiresIn != "" {
		expiresIn, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			BadRequest(c, "过期时间格式无效")
			return
		}
		input.ExpiresIn = expiresIn
	}
	if issuer := c.GetString("userID"); issuer != "" {
		input.InvitedBy = &issuer
	}

	code, err := h.codes.Create(input)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			Conflict(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to create signup code", zap.Error(err))
		InternalError(c, "创建邀请码失败")
		return
	}
	if err := h.codes.Save(code); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			Conflict(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to save signup code", zap.Error(err))
		InternalError(c, "创建邀请码失败")
		return
	}

	if req.Send && code.Email != "" {
		if err := h.codes.Send(code, ""); err != nil {
			// 码已落库，投递失败单独报告
			h.log.Error("failed to send signup code", zap.Error(err))
		}
	}

	h.log.Info("signup code created",
		zap.String("code_id", code.ID),
		zap.Int("max_uses", code.MaxUses),
	)

	Created(c, toSignupCodeResponse(code))
}

// Get 查询邀请码详情
func (h *SignupCodeHandler) Get(c *gin.Context) {
	code, err := h.codes.Get(c.Param("code"))
	if err != nil {
		if errors.Is(err, domain.ErrSignupCodeNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to get signup code", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, toSignupCodeResponse(code))
}

// Results 查询邀请码的兑换记录
func (h *SignupCodeHandler) Results(c *gin.Context) {
	code, err := h.codes.Get(c.Param("code"))
	if err != nil {
		if errors.Is(err, domain.ErrSignupCodeNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to get signup code", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	results, err := h.codes.Results(code.ID)
	if err != nil {
		h.log.Error("failed to list signup code results", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, results)
}

// Send 把邀请码投递到绑定邮箱（或显式收件人）
func (h *SignupCodeHandler) Send(c *gin.Context) {
	var req struct {
		Recipient string `json:"recipient"`
	}
	// 请求体可为空，缺省投递到绑定邮箱
	_ = c.ShouldBindJSON(&req)

	code, err := h.codes.Get(c.Param("code"))
	if err != nil {
		if errors.Is(err, domain.ErrSignupCodeNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	if err := h.codes.Send(code, req.Recipient); err != nil {
		h.log.Error("failed to send signup code", zap.Error(err))
		InternalError(c, "投递邀请码失败")
		return
	}
	Success(c, nil)
}
