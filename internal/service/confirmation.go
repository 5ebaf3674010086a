package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/event"
	"accounthub/backend/internal/notify"
	"accounthub/backend/internal/storage"
	"accounthub/backend/internal/storage/redis"
	"accounthub/backend/internal/token"
)

var (
	// ErrResendLimited 同一邮箱在限流窗口内的确认邮件发送次数超限
	ErrResendLimited = errors.New("too many confirmation emails sent")
)

// ConfirmationService 邮箱确认工作流
//
// 每条确认记录的状态机：created →(Send)→ pending →(Confirm)→
// 提升进归属存储，或因过期 / 已被占用而失败。
type ConfirmationService struct {
	repo      storage.EmailConfirmationRepository
	addresses *EmailAddressService
	users     storage.UserRepository
	bus       *event.Bus
	notifier  notify.Notifier

	ttl        time.Duration // 确认密钥有效期
	confirmURL string        // 确认链接前缀，key 追加在后面

	// 可选的重发限流
	cache       *redis.Cache
	sendWindow  time.Duration
	maxPerEmail int64
}

// NewConfirmationService 创建确认工作流服务
func NewConfirmationService(
	repo storage.EmailConfirmationRepository,
	addresses *EmailAddressService,
	users storage.UserRepository,
	bus *event.Bus,
	notifier notify.Notifier,
	ttl time.Duration,
	confirmURL string,
) *ConfirmationService {
	return &ConfirmationService{
		repo:       repo,
		addresses:  addresses,
		users:      users,
		bus:        bus,
		notifier:   notifier,
		ttl:        ttl,
		confirmURL: confirmURL,
	}
}

// SetSendLimiter 启用基于 Redis 的重发限流
func (s *ConfirmationService) SetSendLimiter(cache *redis.Cache, window time.Duration, maxPerEmail int64) {
	s.cache = cache
	s.sendWindow = window
	s.maxPerEmail = maxPerEmail
}

// Request 为 (user, email) 创建一条确认记录
//
// 密钥用目标邮箱作盐。同一邮箱允许多条待确认记录并存，
// 冲突推迟到 Confirm 时裁决。账户还没有冗余主邮箱时顺手回填。
func (s *ConfirmationService) Request(userID, email string, isPrimary, send bool) (*domain.EmailConfirmation, error) {
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	email = domain.NormalizeEmail(email)

	confirmation := &domain.EmailConfirmation{
		UserID:    userID,
		Email:     email,
		IsPrimary: isPrimary,
		Key:       token.Generate(email),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.SaveEmailConfirmation(confirmation); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.HasEmail() {
		user.Email = email
		if err := s.users.UpdateUser(user); err != nil {
			return nil, err
		}
	}

	if send {
		if err := s.Send(confirmation); err != nil {
			return nil, err
		}
	}
	return confirmation, nil
}

// Send 投递确认邮件并把记录推进到 pending
//
// 投递失败原样上抛，记录停留在 created 状态。
func (s *ConfirmationService) Send(confirmation *domain.EmailConfirmation) error {
	if s.cache != nil && s.maxPerEmail > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		count, err := s.cache.IncrementSendCount(ctx, confirmation.Email, s.sendWindow)
		if err == nil && count > s.maxPerEmail {
			return ErrResendLimited
		}
		// 限流器故障时放行：限流是保护措施，不是正确性前提
	}

	if err := s.notifier.SendEmailVerification(confirmation, s.confirmURL+confirmation.Key); err != nil {
		return err
	}

	now := time.Now().UTC()
	confirmation.SentAt = &now
	if err := s.repo.SaveEmailConfirmation(confirmation); err != nil {
		return err
	}

	s.bus.Publish(domain.NewEvent(domain.EventEmailConfirmationSent, confirmation))
	return nil
}

// ConfirmInput Confirm 的可选参数
type ConfirmInput struct {
	VerificationMethod string
	// KeepRecords 为 true 时保留该邮箱的确认记录（默认全部清除）
	KeepRecords bool
}

// Confirm 兑换确认密钥
//
// 成功时把邮箱提升进归属存储并返回结果记录；
// 过期（含从未发送）返回 ErrVerificationKeyExpired，
// 邮箱已被任何账户占用返回 ErrEmailAlreadyVerified，
// 两种失败都保留记录原地不动，由调用方决定后续。
// 记录已消失（清理与确认并发）时返回 not found，不报过期。
func (s *ConfirmationService) Confirm(key string, input ConfirmInput) (*domain.EmailAddress, error) {
	confirmation, err := s.repo.GetEmailConfirmationByKey(key)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !confirmation.IsPending(s.ttl, now) {
		return nil, fmt.Errorf("%w: key %s for %s", domain.ErrVerificationKeyExpired, confirmation.Key, confirmation.Email)
	}

	// 应用层预检；并发窗口由存储层唯一约束收口
	if _, err := s.addresses.repo.GetEmailAddress(confirmation.Email); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmailAlreadyVerified, confirmation.Email)
	} else if err != domain.ErrEmailAddressNotFound {
		return nil, err
	}

	method := input.VerificationMethod
	if method == "" {
		method = "unknown"
	}
	address, err := s.addresses.AddEmail(confirmation.UserID, confirmation.Email, confirmation.IsPrimary, AddEmailInput{
		VerifiedAt:         &now,
		VerificationMethod: method,
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(domain.NewEvent(domain.EventEmailConfirmed, address))

	if !input.KeepRecords {
		// 清除是收尾不是正确性条件：归属已落库、事件已发出，
		// 失败的残留记录交给过期清理任务兜底
		_ = s.repo.DeleteEmailConfirmationsByEmail(confirmation.Email)
	}
	return address, nil
}

// DeleteExpiredConfirmations 清理所有已发送且过期的确认记录
//
// 幂等：第二次调用是空操作。从未发送的记录不会被清理。
func (s *ConfirmationService) DeleteExpiredConfirmations() (int, error) {
	return s.repo.DeleteExpiredEmailConfirmations(s.ttl, time.Now().UTC())
}
