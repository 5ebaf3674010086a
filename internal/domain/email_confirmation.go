package domain

import "time"

// EmailConfirmation 待验证的邮箱确认记录
//
// 概念上的两个状态：pending（SentAt 已写且 Key 未过期）和
// expired（SentAt + TTL 已过）。成功 confirm 后记录被删除（终态）。
// 同一邮箱允许存在多条待确认记录，冲突在 confirm 时才裁决。
type EmailConfirmation struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	Email     string     `json:"email" gorm:"type:varchar(255);index;not null"` // 已规范化
	IsPrimary bool       `json:"isPrimary" gorm:"default:true"`                 // 确认成功后是否设为主邮箱
	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	// 列名避开 SQL 保留字 KEY，MySQL 方言下裸列名会解析失败
	Key       string     `json:"-" gorm:"column:confirmation_key;uniqueIndex;type:varchar(64);not null"`
}

// KeyExpired 判断确认密钥在 now 时刻是否已过期
//
// 未发送（SentAt 为 nil）的记录不参与过期判定，调用方需先检查。
func (c *EmailConfirmation) KeyExpired(ttl time.Duration, now time.Time) bool {
	if c.SentAt == nil {
		return false
	}
	return !c.SentAt.Add(ttl).After(now)
}

// IsPending 判断记录是否处于可确认状态
func (c *EmailConfirmation) IsPending(ttl time.Duration, now time.Time) bool {
	return c.SentAt != nil && !c.KeyExpired(ttl, now)
}
