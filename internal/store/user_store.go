package store

import (
	"context"

	"github.com/rahmatsuhadi/kawis-sub001/internal/model"

	"gorm.io/gorm"
)

// GormUserStore UserStore 的 gorm 实现。
type GormUserStore struct {
	db *gorm.DB
}

// NewUserStore 创建用户仓储。
func NewUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

// List 按创建顺序（id ASC）返回用户，role 非空时按角色过滤。
func (s *GormUserStore) List(ctx context.Context, role string, limit, offset int) ([]model.User, error) {
	users := []model.User{}
	query := s.db.WithContext(ctx).Model(&model.User{}).Order("id ASC")
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if err := query.Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// GormCategoryStore CategoryStore 的 gorm 实现。
type GormCategoryStore struct {
	db *gorm.DB
}

// NewCategoryStore 创建分类仓储。
func NewCategoryStore(db *gorm.DB) *GormCategoryStore {
	return &GormCategoryStore{db: db}
}

// GetByIDs 返回指定 ID 的分类，忽略不存在的 ID。
func (s *GormCategoryStore) GetByIDs(ctx context.Context, ids []string) ([]model.Category, error) {
	categories := []model.Category{}
	if len(ids) == 0 {
		return categories, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// ListAll 返回全部分类，按名称排序。
func (s *GormCategoryStore) ListAll(ctx context.Context) ([]model.Category, error) {
	categories := []model.Category{}
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}
