package domain

import "time"

// User 表示平台注册账户的业务实体
//
// Email 字段是冗余的"主邮箱"快照，始终与该账户标记为 primary 的
// EmailAddress 保持同步（见 EmailAddress.SetAsPrimary 的约定）。
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string     `json:"username,omitempty" gorm:"type:varchar(100);index"`
	Email        string     `json:"email" gorm:"type:varchar(255);index"` // 冗余主邮箱
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"`           // 不返回给前端
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// HasEmail 判断账户是否已有主邮箱快照
func (u *User) HasEmail() bool {
	return u.Email != ""
}
