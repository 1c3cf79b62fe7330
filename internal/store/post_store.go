package store

import (
	"context"
	"errors"

	"github.com/rahmatsuhadi/kawis-sub001/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPostStore PostStore 的 gorm 实现。
type GormPostStore struct {
	db *gorm.DB
}

// NewPostStore 创建帖子仓储。
func NewPostStore(db *gorm.DB) *GormPostStore {
	return &GormPostStore{db: db}
}

// Create 写入一条帖子。所属活动不存在时返回 ErrNotFound。
func (s *GormPostStore) Create(ctx context.Context, post *model.EventPost) error {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ? AND is_approved = ?", post.EventID, true).
		Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.db.WithContext(ctx).Create(post).Error
}

// GetDetail 返回帖子详情。
//
// 显式加载的关联：Likes（只取点赞者 ID）、Creator、所属活动（只取标题）。
func (s *GormPostStore) GetDetail(ctx context.Context, id string) (*model.EventPost, error) {
	var post model.EventPost
	err := s.db.WithContext(ctx).
		Preload("Likes").
		Preload("Creator").
		Preload("Event", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title")
		}).
		Where("id = ?", id).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Like 为 (postID, userID) 插入点赞。
//
// 依赖 idx_post_user 唯一索引：已点过赞时 DoNothing，返回 false。
// 帖子不存在时返回 ErrNotFound。
func (s *GormPostStore) Like(ctx context.Context, postID string, userID uint) (bool, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.EventPost{}).
		Where("id = ?", postID).
		Count(&exists).Error; err != nil {
		return false, err
	}
	if exists == 0 {
		return false, ErrNotFound
	}

	like := model.PostLike{
		ID:     uuid.NewString(),
		PostID: postID,
		UserID: userID,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Unlike 删除 (postID, userID) 的点赞记录；记录不存在不算错误。
func (s *GormPostStore) Unlike(ctx context.Context, postID string, userID uint) error {
	return s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&model.PostLike{}).Error
}
