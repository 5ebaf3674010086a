package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/service"
)

// EmailHandler 处理邮箱归属与确认流程的 HTTP 请求
type EmailHandler struct {
	addresses     *service.EmailAddressService
	confirmations *service.ConfirmationService
	log           *zap.Logger
}

// NewEmailHandler 创建邮箱处理器
func NewEmailHandler(
	addresses *service.EmailAddressService,
	confirmations *service.ConfirmationService,
	log *zap.Logger,
) *EmailHandler {
	return &EmailHandler{
		addresses:     addresses,
		confirmations: confirmations,
		log:           log,
	}
}

type addEmailRequest struct {
	Email     string `json:"email" binding:"required"`
	IsPrimary bool   `json:"isPrimary"`
}

type resendRequest struct {
	Email string `json:"email" binding:"required"`
}

type setPrimaryRequest struct {
	Email string `json:"email" binding:"required"`
}

type emailAddressResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	IsPrimary          bool       `json:"isPrimary"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	VerificationMethod string     `json:"verificationMethod,omitempty"`
}

func toEmailAddressResponse(a *domain.EmailAddress) emailAddressResponse {
	return emailAddressResponse{
		ID:                 a.ID,
		Email:              a.Email,
		IsPrimary:          a.IsPrimary,
		VerifiedAt:         a.VerifiedAt,
		VerificationMethod: a.VerificationMethod,
	}
}

// List 返回当前账户名下的全部已验证邮箱
func (h *EmailHandler) List(c *gin.Context) {
	userID := c.GetString("userID")

	addresses, err := h.addresses.GetForUser(userID)
	if err != nil {
		h.log.Error("failed to list email addresses", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	out := make([]emailAddressResponse, 0, len(addresses))
	for i := range addresses {
		out = append(out, toEmailAddressResponse(&addresses[i]))
	}
	Success(c, out)
}

// Add 为当前账户发起一个新邮箱的确认流程
//
// 邮箱此时不进归属存储，确认完成后才算数。
func (h *EmailHandler) Add(c *gin.Context) {
	var req addEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	confirmation, err := h.confirmations.Request(userID, req.Email, req.IsPrimary, true)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrEmailTooLong):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrResendLimited):
			TooManyRequests(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to request email confirmation", zap.Error(err))
			InternalError(c, "发送确认邮件失败")
		}
		return
	}

	h.log.Info("email confirmation requested",
		zap.String("user_id", userID),
		zap.String("email", confirmation.Email),
	)

	Created(c, gin.H{"email": confirmation.Email, "sentAt": confirmation.SentAt})
}

// Confirm 兑换确认密钥，把邮箱收进归属存储
//
// 链接从确认邮件点进来，所以不要求登录态。
func (h *EmailHandler) Confirm(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	address, err := h.confirmations.Confirm(key, service.ConfirmInput{
		VerificationMethod: "email_confirmation",
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConfirmationNotFound):
			NotFound(c, GetErrorMessage(err))
		case errors.Is(err, domain.ErrVerificationKeyExpired):
			Gone(c, GetErrorMessage(err))
		case errors.Is(err, domain.ErrEmailAlreadyVerified):
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to confirm email", zap.Error(err))
			InternalError(c, "确认失败，请稍后重试")
		}
		return
	}

	h.log.Info("email confirmed",
		zap.String("user_id", address.UserID),
		zap.String("email", address.Email),
	)

	Success(c, toEmailAddressResponse(address))
}

// Resend 重发某个待确认邮箱的确认邮件
func (h *EmailHandler) Resend(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	_, err := h.confirmations.Request(userID, req.Email, false, true)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrEmailTooLong):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrResendLimited):
			TooManyRequests(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to resend confirmation", zap.Error(err))
			InternalError(c, "发送确认邮件失败")
		}
		return
	}

	Success(c, nil)
}

// SetPrimary 把账户名下某个已验证邮箱设为主邮箱
func (h *EmailHandler) SetPrimary(c *gin.Context) {
	var req setPrimaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	address, err := h.findOwnAddress(userID, req.Email)
	if err != nil {
		NotFound(c, GetErrorMessage(err))
		return
	}

	if err := h.addresses.SetAsPrimary(address); err != nil {
		h.log.Error("failed to set primary email", zap.Error(err))
		InternalError(c, "设置主邮箱失败")
		return
	}

	Success(c, nil)
}

// Remove 删除账户名下的一个非主邮箱
func (h *EmailHandler) Remove(c *gin.Context) {
	email := c.Param("email")
	userID := c.GetString("userID")

	address, err := h.findOwnAddress(userID, email)
	if err != nil {
		NotFound(c, GetErrorMessage(err))
		return
	}
	if address.IsPrimary {
		Conflict(c, "不能删除主邮箱，请先切换主邮箱")
		return
	}

	if err := h.addresses.Remove(address.ID); err != nil {
		h.log.Error("failed to remove email address", zap.Error(err))
		InternalError(c, "删除邮箱失败")
		return
	}

	NoContent(c)
}

// findOwnAddress 查找归属于当前账户的邮箱记录
func (h *EmailHandler) findOwnAddress(userID, email string) (*domain.EmailAddress, error) {
	addresses, err := h.addresses.GetForUser(userID)
	if err != nil {
		return nil, err
	}
	normalized := domain.NormalizeEmail(email)
	for i := range addresses {
		if addresses[i].Email == normalized {
			return &addresses[i], nil
		}
	}
	return nil, domain.ErrEmailAddressNotFound
}
