package domain

import "time"

// Store 聚合所有存储接口
//
// memory 和 postgres 两个实现都满足它；服务层依赖
// internal/storage 里的窄接口，Store 供组装层使用。
type Store interface {
	// ========== User Repository ==========
	CreateUser(user *User) error
	GetUserByID(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	UpdateUser(user *User) error
	UpdateLastLogin(userID string) error

	// ========== Signup Code Repository ==========
	SaveSignupCode(code *SignupCode) error
	GetSignupCode(code string) (*SignupCode, error)
	SignupCodeExists(code, email string) (bool, error)
	// CreateSignupCodeResult 原子插入兑换记录并全量重算父码的 UseCount，
	// 返回刷新后的计数
	CreateSignupCodeResult(result *SignupCodeResult) (int, error)
	ListSignupCodeResults(signupCodeID string) ([]SignupCodeResult, error)

	// ========== Email Address Repository ==========
	SaveEmailAddress(address *EmailAddress) error
	GetEmailAddress(email string) (*EmailAddress, error)
	GetEmailAddressesByUserID(userID string) ([]EmailAddress, error)
	GetPrimaryEmailAddress(userID string) (*EmailAddress, error)
	// SetPrimaryEmailAddress 在单个事务里完成三处变更：
	// 旧主邮箱降级、目标升级、账户冗余 Email 字段同步
	SetPrimaryEmailAddress(addressID string) error
	DeleteEmailAddress(id string) error

	// ========== Email Confirmation Repository ==========
	SaveEmailConfirmation(confirmation *EmailConfirmation) error
	GetEmailConfirmationByKey(key string) (*EmailConfirmation, error)
	ListEmailConfirmationsByUserID(userID string) ([]EmailConfirmation, error)
	DeleteEmailConfirmation(id string) error
	DeleteEmailConfirmationsByEmail(email string) error
	// DeleteExpiredEmailConfirmations 清理 sentAt 非空且已过期的记录，
	// 返回删除数量
	DeleteExpiredEmailConfirmations(ttl time.Duration, now time.Time) (int, error)

	// ========== User Settings Repository ==========
	GetUserSettings(userID string) (*UserSettings, error)
	SaveUserSettings(settings *UserSettings) error

	Close() error
	Health() error
}
