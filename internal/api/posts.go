package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/api/middleware"
	"github.com/rahmatsuhadi/kawis-sub001/internal/model"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"
	"github.com/rahmatsuhadi/kawis-sub001/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// createPostRequest 在活动下发帖的请求参数。
type createPostRequest struct {
	Content       string `json:"content" binding:"required"`
	AnonymousName string `json:"anonymous_name"`
}

// postDetailResponse 帖子详情。
//
// LikedBy 是点赞用户 ID 的精确列表，唯一索引保证没有重复。
type postDetailResponse struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	EventName string         `json:"event_name"`
	CreatedAt time.Time      `json:"created_at"`
	Author    authorResponse `json:"author"`
	LikedBy   []uint         `json:"liked_by"`
}

// handleGetPostDetail 返回帖子详情。
//
// GET /posts/:postId
//
// 返回帖子本身、点赞用户 ID 列表、所属活动的名称以及作者信息。
// 帖子不存在返回 404；存储层失败返回 500，内部错误细节只记日志，
// 不透出给客户端。
func (s *Server) handleGetPostDetail(c *gin.Context) {
	id := c.Param("postId")

	post, err := s.posts.GetDetail(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	if err != nil {
		s.logger.Error("get post detail failed", slog.String("post_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load post"})
		return
	}

	likedBy := make([]uint, 0, len(post.Likes))
	for _, like := range post.Likes {
		likedBy = append(likedBy, like.UserID)
	}

	c.JSON(http.StatusOK, postDetailResponse{
		ID:        post.ID,
		Content:   post.Content,
		EventName: post.Event.Title,
		CreatedAt: post.CreatedAt,
		Author:    buildAuthor(post.Creator, post.AnonymousName),
		LikedBy:   likedBy,
	})
}

// handleCreatePost 在活动下创建帖子。
//
// POST /events/:id/posts
//
// 已登录用户以自己的身份发帖；匿名调用者必须提供 anonymous_name。
// 内容按提交的原文存储。
func (s *Server) handleCreatePost(c *gin.Context) {
	eventID := c.Param("id")

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := middleware.GetSession(c)
	if session == nil && strings.TrimSpace(req.AnonymousName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "anonymous_name is required for anonymous submissions"})
		return
	}

	post := model.EventPost{
		ID:      uuid.NewString(),
		EventID: eventID,
		Content: req.Content,
	}

	kind := "anonymous"
	if session != nil {
		uid := session.UserID
		post.CreatorID = &uid
		kind = "user"
	} else {
		post.AnonymousName = strings.TrimSpace(req.AnonymousName)
	}

	if err := s.posts.Create(c.Request.Context(), &post); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Event not found"})
			return
		}
		s.logger.Error("create post failed", slog.String("event_id", eventID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create post failed"})
		return
	}

	metrics.PostsCreatedTotal.WithLabelValues(kind).Inc()
	c.JSON(http.StatusCreated, gin.H{"id": post.ID})
}

// handleLikePost 点赞帖子。
//
// POST /posts/:postId/like
//
// 依赖 (post, user) 唯一索引实现幂等：重复点赞返回 200 并标记
// already_liked，不报错。
func (s *Server) handleLikePost(c *gin.Context) {
	id := c.Param("postId")
	session := middleware.GetSession(c)

	created, err := s.posts.Like(c.Request.Context(), id, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	if err != nil {
		s.logger.Error("like post failed", slog.String("post_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like post failed"})
		return
	}

	if created {
		metrics.PostLikesTotal.WithLabelValues("like").Inc()
	} else {
		metrics.PostLikesTotal.WithLabelValues("duplicate").Inc()
	}
	c.JSON(http.StatusOK, gin.H{"liked": true, "already_liked": !created})
}

// handleUnlikePost 取消点赞。
//
// DELETE /posts/:postId/like
func (s *Server) handleUnlikePost(c *gin.Context) {
	id := c.Param("postId")
	session := middleware.GetSession(c)

	if err := s.posts.Unlike(c.Request.Context(), id, session.UserID); err != nil {
		s.logger.Error("unlike post failed", slog.String("post_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlike post failed"})
		return
	}

	metrics.PostLikesTotal.WithLabelValues("unlike").Inc()
	c.JSON(http.StatusOK, gin.H{"liked": false})
}
