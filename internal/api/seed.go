package api

import (
	"context"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// defaultCategories 初始分类集合。
var defaultCategories = []string{
	"Musik",
	"Olahraga",
	"Kuliner",
	"Komunitas",
	"Seni & Budaya",
	"Pasar & Bazar",
}

// SeedDemoData 初始化默认分类与管理员账号。
//
// 幂等：已存在的分类/账号不会重复创建。
func (s *Server) SeedDemoData(ctx context.Context) error {
	for _, name := range defaultCategories {
		var existing model.Category
		err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		category := model.Category{
			ID:   uuid.NewString(),
			Name: name,
		}
		if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
			return err
		}
	}

	const adminEmail = "admin@kawiskita.local"
	var admin model.User
	err := s.db.WithContext(ctx).Where("email = ?", adminEmail).First(&admin).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == gorm.ErrRecordNotFound {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte("admin-change-me"), bcrypt.DefaultCost)
		if hashErr != nil {
			return hashErr
		}
		now := time.Now()
		admin = model.User{
			Name:            "Administrator",
			Username:        "admin",
			Email:           adminEmail,
			Password:        string(hash),
			Role:            "admin",
			EmailVerifiedAt: &now,
		}
		if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
			return err
		}
	}

	return nil
}
