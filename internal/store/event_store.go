package store

import (
	"context"
	"errors"

	"github.com/rahmatsuhadi/kawis-sub001/internal/model"

	"gorm.io/gorm"
)

// GormEventStore EventStore 的 gorm 实现。
type GormEventStore struct {
	db *gorm.DB
}

// NewEventStore 创建活动仓储。
func NewEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// Create 在一个事务内写入活动及其图片与分类关联。
//
// gorm 会在同一事务里写 events、event_images 和 event_categories，
// 任何一步失败整体回滚。
func (s *GormEventStore) Create(ctx context.Context, event *model.Event) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
}

// ListApproved 返回已审核活动，带图片、分类与创建者，新→旧排序。
func (s *GormEventStore) ListApproved(ctx context.Context, limit, offset int) ([]model.Event, error) {
	events := []model.Event{}
	err := s.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("event_images.position ASC")
		}).
		Preload("Categories").
		Preload("Creator").
		Where("is_approved = ?", true).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetApproved 返回一个已审核活动，带图片、分类与创建者。
func (s *GormEventStore) GetApproved(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := s.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("event_images.position ASC")
		}).
		Preload("Categories").
		Preload("Creator").
		Where("id = ? AND is_approved = ?", id, true).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Get 返回任意活动（不加载关联）。
func (s *GormEventStore) Get(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// SetApproved 更新审核标记，活动不存在时返回 ErrNotFound。
func (s *GormEventStore) SetApproved(ctx context.Context, id string, approved bool) error {
	res := s.db.WithContext(ctx).Model(&model.Event{}).
		Where("id = ?", id).
		Update("is_approved", approved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPosts 返回活动下的帖子数。
func (s *GormEventStore) CountPosts(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.EventPost{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
