package domain

import (
	"strings"
	"time"
)

// EmailAddress 已验证的邮箱地址
//
// 只有通过验证的邮箱才会出现在这张表里。Email 全局唯一：
// 同一个地址不可能同时属于两个账户（由存储层唯一约束兜底）。
// 每个账户最多有一条 IsPrimary 记录。
type EmailAddress struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID             string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	Email              string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	VerificationMethod string     `json:"verificationMethod" gorm:"type:varchar(255);default:'unknown'"`
	IsPrimary          bool       `json:"isPrimary" gorm:"default:false;index"`
}

// NormalizeEmail 规范化邮箱值：去空白并转小写
//
// 必须在任何唯一性检查和入库之前调用，否则大小写变体会绕过全局唯一约束。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
