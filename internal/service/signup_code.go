package service

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/event"
	"accounthub/backend/internal/notify"
	"accounthub/backend/internal/storage"
	"accounthub/backend/internal/token"
)

// shortCodeLength 无邮箱绑定时生成的短邀请码长度
const shortCodeLength = 12

// SignupCodeService 邀请码台账
type SignupCodeService struct {
	repo     storage.SignupCodeRepository
	bus      *event.Bus
	notifier notify.Notifier

	defaultExpiry time.Duration // 新邀请码的默认有效期
}

// NewSignupCodeService 创建邀请码服务
func NewSignupCodeService(repo storage.SignupCodeRepository, bus *event.Bus, notifier notify.Notifier, defaultExpiry time.Duration) *SignupCodeService {
	return &SignupCodeService{
		repo:          repo,
		bus:           bus,
		notifier:      notifier,
		defaultExpiry: defaultExpiry,
	}
}

// CreateSignupCodeInput 定义创建邀请码所需的输入。
type CreateSignupCodeInput struct {
	Email        string        // 可选：绑定邮箱，限制兑换人
	Code         string        // 可选：显式指定 code 值，缺省自动生成
	MaxUses      int           // 0 表示不限次数
	ExpiresIn    time.Duration // 0 使用默认有效期
	NeverExpires bool          // 显式不过期
	InvitedBy    *string       // 可选：签发者账户ID
	Notes        string
	// SkipExistsCheck 跳过创建前的冲突预检（唯一约束仍然兜底）
	SkipExistsCheck bool
}

// Exists 查询是否已有匹配 code 或 email 的邀请码。
func (s *SignupCodeService) Exists(code, email string) (bool, error) {
	return s.repo.SignupCodeExists(code, domain.NormalizeEmail(email))
}

// Create 构造一个新邀请码，但不落库
//
// 构造与提交分离：调用方可以在 Save 之前做进一步校验。
// 绑定了邮箱且未显式给 code 时，用邮箱作盐生成长令牌；
// 无绑定时生成可口头传播的短码。
func (s *SignupCodeService) Create(input CreateSignupCodeInput) (*domain.SignupCode, error) {
	email := domain.NormalizeEmail(input.Email)

	code := input.Code
	if code == "" {
		if email != "" {
			code = token.Generate(email)
		} else {
			short, err := gonanoid.New(shortCodeLength)
			if err != nil {
				return nil, fmt.Errorf("failed to generate code: %w", err)
			}
			code = short
		}
	}

	if !input.SkipExistsCheck {
		exists, err := s.repo.SignupCodeExists(code, email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrAlreadyExists
		}
	}

	sc := &domain.SignupCode{
		Code:      code,
		MaxUses:   input.MaxUses,
		Email:     email,
		InvitedBy: input.InvitedBy,
		Notes:     input.Notes,
		CreatedAt: time.Now().UTC(),
	}
	if !input.NeverExpires {
		expiresIn := input.ExpiresIn
		if expiresIn == 0 {
			expiresIn = s.defaultExpiry
		}
		expiresAt := time.Now().UTC().Add(expiresIn)
		sc.ExpiresAt = &expiresAt
	}
	return sc, nil
}

// Save 持久化邀请码。
func (s *SignupCodeService) Save(code *domain.SignupCode) error {
	return s.repo.SaveSignupCode(code)
}

// Get 根据 code 值获取邀请码。
func (s *SignupCodeService) Get(code string) (*domain.SignupCode, error) {
	return s.repo.GetSignupCode(code)
}

// IsValid 判断邀请码当前是否可兑换
//
// 未知的 code 返回 false 而不是错误。
func (s *SignupCodeService) IsValid(code string) (bool, error) {
	sc, err := s.repo.GetSignupCode(code)
	if err != nil {
		if err == domain.ErrSignupCodeNotFound {
			return false, nil
		}
		return false, err
	}
	return sc.IsValid(time.Now().UTC()), nil
}

// Redeem 为 (code, user) 追加一条兑换记录
//
// 不做有效性复查：调用方必须先调 IsValid，兑换已耗尽或过期的码
// 是否放行属于策略决定，台账不拦。插入后父码的 UseCount 被全量重算。
func (s *SignupCodeService) Redeem(code string, userID string) (*domain.SignupCodeResult, error) {
	sc, err := s.repo.GetSignupCode(code)
	if err != nil {
		return nil, err
	}

	result := &domain.SignupCodeResult{
		SignupCodeID: sc.ID,
		UserID:       userID,
		Timestamp:    time.Now().UTC(),
	}
	if _, err := s.repo.CreateSignupCodeResult(result); err != nil {
		return nil, err
	}

	s.bus.Publish(domain.NewEvent(domain.EventSignupCodeUsed, result))
	return result, nil
}

// Results 返回某个邀请码的全部兑换记录。
func (s *SignupCodeService) Results(signupCodeID string) ([]domain.SignupCodeResult, error) {
	return s.repo.ListSignupCodeResults(signupCodeID)
}

// Send 把邀请码投递给收件人并记录发送时间
//
// 投递失败原样上抛，不发事件、不写 SentAt。
func (s *SignupCodeService) Send(code *domain.SignupCode, recipient string) error {
	if err := s.notifier.SendSignupCode(code, recipient); err != nil {
		return err
	}

	now := time.Now().UTC()
	code.SentAt = &now
	if err := s.repo.SaveSignupCode(code); err != nil {
		return err
	}

	s.bus.Publish(domain.NewEvent(domain.EventSignupCodeSent, code))
	return nil
}
