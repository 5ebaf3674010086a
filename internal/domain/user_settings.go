package domain

import "time"

// UserSettings 每个账户一条的个人偏好记录
//
// 与账户 1:1，通过显式 get-or-create 在首次访问时创建。
// 除 1:1 基数外没有跨实体不变量。
type UserSettings struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string     `json:"userId" gorm:"uniqueIndex;type:varchar(36);not null"`
	BirthDate         *time.Time `json:"birthDate,omitempty"`
	Timezone          string     `json:"timezone,omitempty" gorm:"type:varchar(64)"` // IANA 时区名
	LocationName      string     `json:"locationName,omitempty" gorm:"type:varchar(255)"`
	LocationLatitude  *float64   `json:"locationLatitude,omitempty"`
	LocationLongitude *float64   `json:"locationLongitude,omitempty"`
	ProfileImage      string     `json:"profileImage,omitempty" gorm:"type:varchar(255)"` // 对象存储引用
	PreferredLanguage string     `json:"preferredLanguage,omitempty" gorm:"type:varchar(32)"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
