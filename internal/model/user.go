package model

import "time"

// User 表示系统用户。
type User struct {
	ID                  uint       `gorm:"primaryKey"`                       // 用户 ID
	Name                string     `gorm:"type:varchar(100);not null"`       // 显示名
	Username            string     `gorm:"type:varchar(100);uniqueIndex"`    // 用户名（唯一）
	Email               string     `gorm:"type:varchar(191);uniqueIndex"`    // 邮箱（唯一）
	Password            string     `gorm:"not null"`                         // bcrypt 哈希
	Avatar              string     `gorm:"type:varchar(500)"`                // 头像链接
	Role                string     `gorm:"type:varchar(16);default:regular"` // 角色: regular / admin
	EmailVerifiedAt     *time.Time // 邮箱验证通过时间（nil 表示未验证）
	VerifyCode          string     `gorm:"type:varchar(16)"` // 邮箱验证码
	VerifyCodeExpiresAt *time.Time // 验证码过期时间
	VerifyCodeSentAt    *time.Time // 验证码发送时间
	CreatedAt           time.Time  // 创建时间

	Events []Event     `gorm:"foreignKey:CreatorID"`
	Posts  []EventPost `gorm:"foreignKey:CreatorID"`
	Likes  []PostLike  `gorm:"foreignKey:UserID"`
}

// IsVerified 返回用户邮箱是否已验证。
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}
