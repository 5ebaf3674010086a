package storage

import (
	"time"

	"accounthub/backend/internal/domain"
)

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// SignupCodeRepository 定义邀请码台账的数据存取操作。
type SignupCodeRepository interface {
	SaveSignupCode(code *domain.SignupCode) error
	GetSignupCode(code string) (*domain.SignupCode, error)
	// SignupCodeExists 按 code 或 email 做 OR 匹配（空串忽略对应条件）
	SignupCodeExists(code, email string) (bool, error)
	// CreateSignupCodeResult 原子插入兑换记录并重算父码 UseCount
	CreateSignupCodeResult(result *domain.SignupCodeResult) (int, error)
	ListSignupCodeResults(signupCodeID string) ([]domain.SignupCodeResult, error)
}

// EmailAddressRepository 定义已验证邮箱的数据存取操作。
type EmailAddressRepository interface {
	SaveEmailAddress(address *domain.EmailAddress) error
	GetEmailAddress(email string) (*domain.EmailAddress, error)
	GetEmailAddressesByUserID(userID string) ([]domain.EmailAddress, error)
	GetPrimaryEmailAddress(userID string) (*domain.EmailAddress, error)
	SetPrimaryEmailAddress(addressID string) error
	DeleteEmailAddress(id string) error
}

// EmailConfirmationRepository 定义确认记录的数据存取操作。
type EmailConfirmationRepository interface {
	SaveEmailConfirmation(confirmation *domain.EmailConfirmation) error
	GetEmailConfirmationByKey(key string) (*domain.EmailConfirmation, error)
	ListEmailConfirmationsByUserID(userID string) ([]domain.EmailConfirmation, error)
	DeleteEmailConfirmation(id string) error
	DeleteEmailConfirmationsByEmail(email string) error
	DeleteExpiredEmailConfirmations(ttl time.Duration, now time.Time) (int, error)
}

// UserSettingsRepository 定义用户偏好设置的数据存取操作。
type UserSettingsRepository interface {
	GetUserSettings(userID string) (*domain.UserSettings, error)
	SaveUserSettings(settings *domain.UserSettings) error
}

// Store 聚合接口，等同于 domain.Store，供组装层选择具体实现。
type Store = domain.Store
