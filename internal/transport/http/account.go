package httptransport

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "accounthub/backend/internal/auth/jwt"
	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/service"
)

// AccountHandler 处理注册、登录和账户相关的 HTTP 请求
type AccountHandler struct {
	accounts   *service.AccountService
	addresses  *service.EmailAddressService
	settings   *service.SettingsService
	jwtManager *jwtpkg.Manager
	log        *zap.Logger
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(
	accounts *service.AccountService,
	addresses *service.EmailAddressService,
	settings *service.SettingsService,
	jwtManager *jwtpkg.Manager,
	log *zap.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:   accounts,
		addresses:  addresses,
		settings:   settings,
		jwtManager: jwtManager,
		log:        log,
	}
}

type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	SignupCode string `json:"signupCode"`
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 用户名或邮箱
	Password   string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type userResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	IsActive      bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

// Register 处理用户注册请求
//
// 注册成功后立即发放令牌；注册邮箱的确认邮件已在业务层发出，
// 邮箱在确认完成前不计入归属存储。
func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.accounts.Register(service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		SignupCode: req.SignupCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail),
			errors.Is(err, domain.ErrEmailTooLong),
			errors.Is(err, domain.ErrPasswordTooShort),
			errors.Is(err, domain.ErrPasswordTooLong):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrSignupClosed), errors.Is(err, domain.ErrInvalidCode):
			Forbidden(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrUsernameExists), errors.Is(err, domain.ErrEmailAlreadyVerified):
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to register user", zap.Error(err))
			InternalError(c, "注册失败，请稍后重试")
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	Created(c, authResponse{
		User:         toUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Login 处理用户登录请求
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.accounts.Login(strings.TrimSpace(req.Identifier), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			Unauthorized(c, MsgInvalidCredentials)
		case errors.Is(err, service.ErrUserInactive):
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to login", zap.Error(err))
			InternalError(c, "登录失败，请稍后重试")
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user logged in", zap.String("user_id", user.ID))

	// 账户存了时区的话，登录后立即生效到会话默认值
	if sessionID, err := c.Cookie("session_id"); err == nil && sessionID != "" {
		if err := h.settings.ActivateTimezone(c.Request.Context(), user.ID, sessionID); err != nil {
			h.log.Debug("failed to activate timezone for session", zap.Error(err))
		}
	}

	Success(c, authResponse{
		User:         toUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Refresh 用刷新令牌换发新令牌对
func (h *AccountHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	tokens, err := h.jwtManager.RefreshTokenPair(req.RefreshToken)
	if err != nil {
		Unauthorized(c, "刷新令牌无效或已过期")
		return
	}

	Success(c, tokens)
}

// Me 返回当前登录账户信息
func (h *AccountHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := h.accounts.GetUser(userID)
	if err != nil {
		NotFound(c, GetErrorMessage(err))
		return
	}

	verified, err := h.addresses.HasVerifiedEmail(userID)
	if err != nil {
		h.log.Error("failed to check verified email", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	resp := toUserResponse(user)
	resp.EmailVerified = verified
	Success(c, resp)
}

// ChangePassword 修改当前账户密码
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	err := h.accounts.ChangePassword(userID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			Unauthorized(c, "原密码错误")
		case errors.Is(err, domain.ErrPasswordTooShort), errors.Is(err, domain.ErrPasswordTooLong):
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to change password", zap.Error(err))
			InternalError(c, "修改密码失败")
		}
		return
	}

	Success(c, nil)
}
