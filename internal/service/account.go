package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"accounthub/backend/internal/auth"
	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/event"
	"accounthub/backend/internal/notify"
	"accounthub/backend/internal/storage"
)

var (
	// ErrSignupClosed 未开放注册且没有提供邀请码
	ErrSignupClosed = errors.New("signup is closed")
	// ErrUsernameExists 用户名已被占用
	ErrUsernameExists = errors.New("username already exists")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 用户已被禁用
	ErrUserInactive = errors.New("user is inactive")
)

// AccountService 账户注册与登录
//
// 注册入口受邀请码台账把关：开放注册时邀请码可选，
// 关闭注册时没有有效邀请码一律拒绝。
type AccountService struct {
	users         storage.UserRepository
	codes         *SignupCodeService
	confirmations *ConfirmationService
	bus           *event.Bus
	notifier      notify.Notifier

	openSignup           bool
	notifyPasswordChange bool
}

// NewAccountService 创建账户服务
func NewAccountService(
	users storage.UserRepository,
	codes *SignupCodeService,
	confirmations *ConfirmationService,
	bus *event.Bus,
	notifier notify.Notifier,
	openSignup bool,
	notifyPasswordChange bool,
) *AccountService {
	return &AccountService{
		users:                users,
		codes:                codes,
		confirmations:        confirmations,
		bus:                  bus,
		notifier:             notifier,
		openSignup:           openSignup,
		notifyPasswordChange: notifyPasswordChange,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	SignupCode string // 可选；关闭注册时必填
}

// Register 用户注册
//
// 校验顺序：输入格式 → 邀请码有效性 → 唯一性。兑换记账发生在
// 用户创建成功之后，失败的注册不消耗邀请码名额。
func (s *AccountService) Register(input RegisterInput) (*domain.User, error) {
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)
	if username == "" {
		username = email
	}

	code := strings.TrimSpace(input.SignupCode)
	if code != "" {
		sc, err := s.codes.Get(code)
		if err != nil {
			if err == domain.ErrSignupCodeNotFound {
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCode, code)
			}
			return nil, err
		}
		if !sc.IsValid(time.Now().UTC()) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidCode, code)
		}
		// 绑定了邮箱的邀请码只能被该邮箱兑换
		if sc.Email != "" && sc.Email != email {
			return nil, fmt.Errorf("%w: code is bound to another email", domain.ErrInvalidCode)
		}
	} else if !s.openSignup {
		return nil, ErrSignupClosed
	}

	if _, err := s.users.GetUserByUsername(username); err == nil {
		return nil, ErrUsernameExists
	} else if err != domain.ErrUserNotFound {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if code != "" {
		if _, err := s.codes.Redeem(code, user.ID); err != nil {
			return nil, err
		}
	}

	s.bus.Publish(domain.NewEvent(domain.EventUserSignedUp, user))

	// 注册邮箱走完整确认流程后才进入归属存储
	if _, err := s.confirmations.Request(user.ID, email, true, true); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 用户登录
//
// 标识符先按邮箱再按用户名匹配；失败统一返回凭证无效，
// 不区分"用户不存在"和"密码错误"。
func (s *AccountService) Login(identifier, password string) (*domain.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	user, err := s.users.GetUserByEmail(identifier)
	if err != nil {
		user, err = s.users.GetUserByUsername(identifier)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	_ = s.users.UpdateLastLogin(user.ID)
	s.bus.Publish(domain.NewEvent(domain.EventUserLoggedIn, user))
	return user, nil
}

// GetUser 根据 ID 获取用户
func (s *AccountService) GetUser(userID string) (*domain.User, error) {
	return s.users.GetUserByID(userID)
}

// ChangePassword 修改密码
func (s *AccountService) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = newHash
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdateUser(user); err != nil {
		return err
	}

	s.bus.Publish(domain.NewEvent(domain.EventPasswordChanged, user))
	if s.notifyPasswordChange && user.HasEmail() {
		// 通知失败不回滚改密
		_ = s.notifier.SendPasswordChangeNotice(user)
	}
	return nil
}
