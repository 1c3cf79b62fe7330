package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/model"
	"github.com/rahmatsuhadi/kawis-sub001/internal/store"

	"github.com/gin-gonic/gin"
)

// adminUserResponse 管理端用户列表的单行数据。
type adminUserResponse struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Avatar     string    `json:"avatar,omitempty"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// handleListUsers 返回管理端用户列表。
//
// GET /admin/users?limit=20&offset=0[&role=regular|admin]
//
// 按创建顺序（id ASC）稳定排序。
func (s *Server) handleListUsers(c *gin.Context) {
	limit := parseQueryInt(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := parseQueryInt(c, "offset", 0)
	role := c.Query("role")
	if role != "" && role != "regular" && role != "admin" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	users, err := s.users.List(c.Request.Context(), role, limit, offset)
	if err != nil {
		s.logger.Error("list users failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]adminUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserResponse{
			ID:         u.ID,
			Name:       u.Name,
			Username:   u.Username,
			Email:      u.Email,
			Avatar:     u.Avatar,
			Role:       u.Role,
			IsVerified: u.IsVerified(),
			CreatedAt:  u.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": out})
}

// handleApproveEvent 审核通过一个活动。
//
// POST /admin/events/:id/approve
//
// 审核通过后活动对外可见；创建者非匿名时异步发邮件通知，
// 通知失败或被丢弃只记日志，不影响审核结果。
func (s *Server) handleApproveEvent(c *gin.Context) {
	id := c.Param("id")

	event, err := s.events.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found"})
		return
	}
	if err != nil {
		s.logger.Error("load event failed", slog.String("event_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approve event failed"})
		return
	}

	if err := s.events.SetApproved(c.Request.Context(), id, true); err != nil {
		s.logger.Error("approve event failed", slog.String("event_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "approve event failed"})
		return
	}

	if event.CreatorID != nil && s.mailer != nil && s.notifyQ != nil {
		creatorID := *event.CreatorID
		title := event.Title
		s.notifyQ.Enqueue(func(ctx context.Context) error {
			var creator model.User
			if err := s.db.WithContext(ctx).Select("email").Where("id = ?", creatorID).First(&creator).Error; err != nil {
				return err
			}
			if creator.Email == "" {
				return nil
			}
			return s.mailer.SendEventApproved(creator.Email, title)
		})
	}

	s.logger.Info("event approved", slog.String("event_id", id))
	c.JSON(http.StatusOK, gin.H{"approved": true})
}
