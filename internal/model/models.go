package model

import (
	"time"
)

// Event 表示一个用户（或匿名用户）提交的本地活动。
//
// 活动可以带经纬度（在地图上显示图钉），也可以不带（Latitude/Longitude
// 为 nil 表示无地图位置）。活动与分类是多对多关系（通过 event_categories
// 表关联），与图片是一对多关系，删除活动时级联删除其图片。
type Event struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"` // 活动唯一标识 (UUID)
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	Title        string `gorm:"type:varchar(255);not null"` // 活动标题
	Description  string `gorm:"type:text;not null"`         // 活动描述
	LocationName string `gorm:"type:varchar(255)"`          // 位置的自由文本描述

	// 坐标用 double 存储：定点 decimal 会在小数位上取整，读回的坐标
	// 就不再等于提交的值
	Latitude  *float64 `gorm:"type:double"` // 纬度（nil 表示无地图位置）
	Longitude *float64 `gorm:"type:double"` // 经度（nil 表示无地图位置）

	EventDate time.Time `gorm:"not null"` // 活动举办时间

	CreatorID     *uint  // 创建者用户 ID（nil 表示匿名提交）
	Creator       *User  `gorm:"foreignKey:CreatorID"` // 创建者
	AnonymousName string `gorm:"type:varchar(100)"`    // 匿名提交时的显示名

	IsApproved bool `gorm:"default:false"` // 审核通过后才对外可见

	Categories []Category   `gorm:"many2many:event_categories"`                     // 关联的分类
	Images     []EventImage `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"` // 关联的图片
	Posts      []EventPost  `gorm:"foreignKey:EventID"`                             // 活动下的帖子
}

// EventPost 表示挂在某个活动下的评论/帖子。
//
// Content 按作者提交的原文存储，展示层的截断不影响存储。
type EventPost struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"` // 帖子唯一标识 (UUID)
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	EventID string `gorm:"type:varchar(36);not null;index"` // 所属活动 ID
	Event   Event  `gorm:"foreignKey:EventID"`              // 所属活动

	Content string `gorm:"type:text;not null"` // 帖子内容（原文存储）

	CreatorID     *uint  // 作者用户 ID（nil 表示匿名）
	Creator       *User  `gorm:"foreignKey:CreatorID"` // 作者
	AnonymousName string `gorm:"type:varchar(100)"`    // 匿名发帖时的显示名

	Likes []PostLike `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"` // 点赞列表
}

// PostLike 表示用户对帖子的点赞。
//
// (PostID, UserID) 上有唯一索引：同一用户对同一帖子最多点赞一次。
type PostLike struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"` // 点赞记录 ID (UUID)
	CreatedAt time.Time // 点赞时间

	PostID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_post_user"` // 帖子 ID
	UserID uint   `gorm:"not null;uniqueIndex:idx_post_user"`                  // 用户 ID
	User   User   `gorm:"foreignKey:UserID"`                                   // 点赞用户
}

// Category 活动分类，与活动是多对多关系。
type Category struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`            // 分类 ID (UUID)
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null"` // 分类名（唯一）
	CreatedAt time.Time // 创建时间

	Events []Event `gorm:"many2many:event_categories"`
}

// EventImage 活动图片。活动独占其图片，活动删除时级联删除。
type EventImage struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`     // 图片 ID (UUID)
	EventID   string    `gorm:"type:varchar(36);not null;index"` // 所属活动 ID
	URL       string    `gorm:"type:varchar(500);not null"`      // 图片链接
	Position  int       `gorm:"default:0"`                       // 展示顺序
	CreatedAt time.Time // 创建时间
}
