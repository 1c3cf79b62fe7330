package store

import (
	"context"
	"errors"

	"github.com/rahmatsuhadi/kawis-sub001/internal/model"
)

// ErrNotFound 表示查询的实体不存在。
var ErrNotFound = errors.New("record not found")

// EventStore 活动仓储。每个方法都显式声明它加载的关联。
type EventStore interface {
	// Create 在一个事务内写入活动、图片与分类关联。
	// 事务保证活动不会带着写了一半的图片/分类集合对外可见。
	Create(ctx context.Context, event *model.Event) error
	// ListApproved 返回已审核的活动（带 Images/Categories/Creator），新→旧排序。
	ListApproved(ctx context.Context, limit, offset int) ([]model.Event, error)
	// GetApproved 返回一个已审核活动（带 Images/Categories/Creator）。
	GetApproved(ctx context.Context, id string) (*model.Event, error)
	// Get 返回任意活动（不带关联），供管理端使用。
	Get(ctx context.Context, id string) (*model.Event, error)
	// SetApproved 更新活动的审核标记。
	SetApproved(ctx context.Context, id string, approved bool) error
	// CountPosts 返回活动下的帖子数。
	CountPosts(ctx context.Context, eventID string) (int64, error)
}

// PostStore 帖子仓储。
type PostStore interface {
	// Create 写入一条帖子。
	Create(ctx context.Context, post *model.EventPost) error
	// GetDetail 返回帖子详情：帖子本身 + Likes + Creator + 所属活动的标题。
	GetDetail(ctx context.Context, id string) (*model.EventPost, error)
	// Like 为 (postID, userID) 插入点赞；已存在时返回 false（不报错）。
	Like(ctx context.Context, postID string, userID uint) (bool, error)
	// Unlike 删除点赞记录。
	Unlike(ctx context.Context, postID string, userID uint) error
}

// UserStore 用户仓储，服务于管理端列表。
type UserStore interface {
	// List 按创建顺序（id ASC）返回用户，可按角色过滤。
	List(ctx context.Context, role string, limit, offset int) ([]model.User, error)
}

// CategoryStore 分类仓储。
type CategoryStore interface {
	// GetByIDs 返回指定 ID 的分类，忽略不存在的 ID。
	GetByIDs(ctx context.Context, ids []string) ([]model.Category, error)
	// ListAll 返回全部分类，按名称排序。
	ListAll(ctx context.Context) ([]model.Category, error)
}
