package service

import (
	"time"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/storage"
)

// EmailAddressService 已验证邮箱的归属存储
//
// 维护三个不变量：邮箱全局唯一、每账户至多一个主邮箱、
// 账户冗余 Email 字段与主邮箱同步。
type EmailAddressService struct {
	repo  storage.EmailAddressRepository
	users storage.UserRepository
}

// NewEmailAddressService 创建邮箱归属服务
func NewEmailAddressService(repo storage.EmailAddressRepository, users storage.UserRepository) *EmailAddressService {
	return &EmailAddressService{repo: repo, users: users}
}

// AddEmailInput AddEmail 的可选字段
type AddEmailInput struct {
	VerifiedAt         *time.Time
	VerificationMethod string
}

// AddEmail 幂等 upsert，键为 (user, email)
//
// 不存在则创建；已存在则用给定字段原地覆盖。账户的第一个邮箱
// 无条件设为主邮箱，之后由 makePrimary 决定。规范化先于唯一性检查。
func (s *EmailAddressService) AddEmail(userID, email string, makePrimary bool, input AddEmailInput) (*domain.EmailAddress, error) {
	email = domain.NormalizeEmail(email)

	existing, err := s.repo.GetEmailAddressesByUserID(userID)
	if err != nil {
		return nil, err
	}
	isFirstEmail := len(existing) == 0

	var address *domain.EmailAddress
	for i := range existing {
		if existing[i].Email == email {
			address = &existing[i]
			break
		}
	}

	if address == nil {
		address = &domain.EmailAddress{
			UserID: userID,
			Email:  email,
		}
	}
	if input.VerifiedAt != nil {
		address.VerifiedAt = input.VerifiedAt
	}
	if input.VerificationMethod != "" {
		address.VerificationMethod = input.VerificationMethod
	}
	if address.VerificationMethod == "" {
		address.VerificationMethod = "unknown"
	}

	if err := s.repo.SaveEmailAddress(address); err != nil {
		return nil, err
	}

	if isFirstEmail || makePrimary {
		if err := s.repo.SetPrimaryEmailAddress(address.ID); err != nil {
			return nil, err
		}
		address.IsPrimary = true
	}
	return address, nil
}

// GetPrimary 返回账户的主邮箱，没有时返回 nil。
func (s *EmailAddressService) GetPrimary(userID string) (*domain.EmailAddress, error) {
	address, err := s.repo.GetPrimaryEmailAddress(userID)
	if err != nil {
		if err == domain.ErrEmailAddressNotFound {
			return nil, nil
		}
		return nil, err
	}
	return address, nil
}

// GetForUser 返回账户名下的全部已验证邮箱。
func (s *EmailAddressService) GetForUser(userID string) ([]domain.EmailAddress, error) {
	return s.repo.GetEmailAddressesByUserID(userID)
}

// GetUserFor 根据邮箱值反查归属账户。
func (s *EmailAddressService) GetUserFor(email string) (*domain.User, error) {
	address, err := s.repo.GetEmailAddress(domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return s.users.GetUserByID(address.UserID)
}

// HasVerifiedEmail 判断账户是否至少有一个已验证邮箱。
func (s *EmailAddressService) HasVerifiedEmail(userID string) (bool, error) {
	addresses, err := s.repo.GetEmailAddressesByUserID(userID)
	if err != nil {
		return false, err
	}
	return len(addresses) > 0, nil
}

// SetAsPrimary 把给定记录设为其账户的主邮箱
//
// 旧主降级、目标升级、账户冗余字段同步三处变更由存储层
// 在一个事务里完成。
func (s *EmailAddressService) SetAsPrimary(address *domain.EmailAddress) error {
	return s.repo.SetPrimaryEmailAddress(address.ID)
}

// Remove 删除一条非主邮箱记录
//
// 主邮箱的删除由上层策略禁止；这里按存储语义直接删除。
func (s *EmailAddressService) Remove(addressID string) error {
	return s.repo.DeleteEmailAddress(addressID)
}
