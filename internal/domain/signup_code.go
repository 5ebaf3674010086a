package domain

import "time"

// SignupCode 邀请码实体
//
// UseCount 是派生值：每次兑换后通过全量 COUNT 重新计算，不做增量累加。
type SignupCode struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code      string     `json:"code" gorm:"uniqueIndex;type:varchar(64);not null"`
	MaxUses   int        `json:"maxUses" gorm:"default:0"` // 0 表示不限次数
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	InvitedBy *string    `json:"invitedBy,omitempty" gorm:"type:varchar(36)"` // 签发者账户ID
	Email     string     `json:"email,omitempty" gorm:"type:varchar(255);index"`
	Notes     string     `json:"notes,omitempty" gorm:"type:text"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UseCount  int        `json:"useCount" gorm:"default:0"` // 派生缓存值
}

// IsValid 判断邀请码在 now 时刻是否可用
//
// 两个条件：未达到使用上限，且未过期。不检查 Email 绑定，
// 绑定校验属于注册流程的策略。
func (c *SignupCode) IsValid(now time.Time) bool {
	if c.MaxUses > 0 && c.UseCount >= c.MaxUses {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// SignupCodeResult 邀请码兑换记录
//
// 只追加，创建后不再修改。它的插入是触发父邀请码 UseCount 重算的副作用。
type SignupCodeResult struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SignupCodeID string    `json:"signupCodeId" gorm:"type:varchar(36);index;not null"`
	UserID       string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	Timestamp    time.Time `json:"timestamp"`
}
