package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/api/middleware"
	"github.com/rahmatsuhadi/kawis-sub001/internal/model"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/geo"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"
	"github.com/rahmatsuhadi/kawis-sub001/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// createEventRequest 创建活动的请求参数。
type createEventRequest struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description" binding:"required"`
	LocationName  string   `json:"location_name"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	EventDate     string   `json:"event_date" binding:"required"` // RFC3339
	AnonymousName string   `json:"anonymous_name"`
	CategoryIDs   []string `json:"category_ids"`
	ImageURLs     []string `json:"image_urls"`
}

// authorResponse 作者信息。匿名提交时只有 AnonymousName。
type authorResponse struct {
	ID          *uint  `json:"id,omitempty"`
	Name        string `json:"name"`
	Username    string `json:"username,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	IsVerified  bool   `json:"is_verified"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type eventResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	LocationName string         `json:"location_name,omitempty"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	EventDate    time.Time      `json:"event_date"`
	CreatedAt    time.Time      `json:"created_at"`
	Author       authorResponse `json:"author"`
	Categories   []string       `json:"categories"`
	Images       []string       `json:"images"`
	DistanceKm   *float64       `json:"distance_km,omitempty"`
	PostCount    *int64         `json:"post_count,omitempty"`
}

// buildAuthor 由活动/帖子的创建者信息组装作者响应。
func buildAuthor(creator *model.User, anonymousName string) authorResponse {
	if creator == nil {
		name := anonymousName
		if name == "" {
			name = "Anonim"
		}
		return authorResponse{Name: name, IsAnonymous: true}
	}
	id := creator.ID
	return authorResponse{
		ID:         &id,
		Name:       creator.Name,
		Username:   creator.Username,
		Avatar:     creator.Avatar,
		IsVerified: creator.IsVerified(),
	}
}

func buildEventResponse(event *model.Event) eventResponse {
	categories := make([]string, 0, len(event.Categories))
	for _, cat := range event.Categories {
		categories = append(categories, cat.Name)
	}
	images := make([]string, 0, len(event.Images))
	for _, img := range event.Images {
		images = append(images, img.URL)
	}
	return eventResponse{
		ID:           event.ID,
		Title:        event.Title,
		Description:  event.Description,
		LocationName: event.LocationName,
		Latitude:     event.Latitude,
		Longitude:    event.Longitude,
		EventDate:    event.EventDate,
		CreatedAt:    event.CreatedAt,
		Author:       buildAuthor(event.Creator, event.AnonymousName),
		Categories:   categories,
		Images:       images,
	}
}

// handleCreateEvent 处理创建活动的请求。
//
// POST /events
//
// 已登录用户以自己的身份创建；匿名调用者必须提供 anonymous_name。
// 经纬度要么都给（地图图钉），要么都不给。活动、图片、分类关联
// 在一个事务里落库，新建的活动默认未审核。
func (s *Server) handleCreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := middleware.GetSession(c)
	if session == nil && strings.TrimSpace(req.AnonymousName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "anonymous_name is required for anonymous submissions"})
		return
	}

	if (req.Latitude == nil) != (req.Longitude == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude must be provided together"})
		return
	}
	if req.Latitude != nil {
		if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
			return
		}
	}

	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_date, expected RFC3339"})
		return
	}

	if max := s.cfg.App.MaxImagesPerEvent; max > 0 && len(req.ImageURLs) > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many images"})
		return
	}

	// 重复的分类 ID 只算一次，存在性校验按去重后的集合比对
	categoryIDs := make([]string, 0, len(req.CategoryIDs))
	seen := make(map[string]struct{}, len(req.CategoryIDs))
	for _, id := range req.CategoryIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		categoryIDs = append(categoryIDs, id)
	}

	categories, err := s.categories.GetByIDs(c.Request.Context(), categoryIDs)
	if err != nil {
		s.logger.Error("load categories failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create event failed"})
		return
	}
	if len(categories) != len(categoryIDs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category id"})
		return
	}

	event := model.Event{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		LocationName: strings.TrimSpace(req.LocationName),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		EventDate:    eventDate,
		Categories:   categories,
	}

	kind := "anonymous"
	if session != nil {
		uid := session.UserID
		event.CreatorID = &uid
		kind = "user"
	} else {
		event.AnonymousName = strings.TrimSpace(req.AnonymousName)
	}

	for i, imgURL := range req.ImageURLs {
		event.Images = append(event.Images, model.EventImage{
			ID:       uuid.NewString(),
			EventID:  event.ID,
			URL:      imgURL,
			Position: i,
		})
	}

	if err := s.events.Create(c.Request.Context(), &event); err != nil {
		s.logger.Error("create event failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create event failed"})
		return
	}

	metrics.EventsCreatedTotal.WithLabelValues(kind).Inc()
	if s.logger != nil {
		s.logger.Info("event created", slog.String("event_id", event.ID), slog.String("kind", kind))
	}
	c.JSON(http.StatusCreated, gin.H{"id": event.ID})
}

// handleListEvents 返回已审核的活动列表。
//
// GET /events?limit=20&offset=0[&lat=..&lon=..[&radius_km=..]]
//
// 带坐标时对有图钉的活动计算大圆距离，过滤到半径内并按由近到远
// 排序；不带坐标时按创建时间由新到旧。
func (s *Server) handleListEvents(c *gin.Context) {
	limit := parseQueryInt(c, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := parseQueryInt(c, "offset", 0)

	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	nearby := latStr != "" || lonStr != ""

	var lat, lon, radius float64
	if nearby {
		var err1, err2 error
		lat, err1 = strconv.ParseFloat(latStr, 64)
		lon, err2 = strconv.ParseFloat(lonStr, 64)
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Latitude and Longitude are required"})
			return
		}
		radius = s.cfg.App.NearbyDefaultRadiusKm
		if v := c.Query("radius_km"); v != "" {
			if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
				radius = r
			}
		}
		if max := s.cfg.App.NearbyMaxRadiusKm; max > 0 && radius > max {
			radius = max
		}
	}

	// 附近查询在内存里过滤，所以先取一批再分页，批大小可配
	fetchLimit, fetchOffset := limit, offset
	if nearby {
		fetchLimit, fetchOffset = s.cfg.App.NearbyScanLimit, 0
		if fetchLimit <= 0 {
			fetchLimit = 5000
		}
	}
	events, err := s.events.ListApproved(c.Request.Context(), fetchLimit, fetchOffset)
	if err != nil {
		s.logger.Error("list events failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list events failed"})
		return
	}

	out := make([]eventResponse, 0, len(events))
	for i := range events {
		resp := buildEventResponse(&events[i])
		if nearby {
			if events[i].Latitude == nil || events[i].Longitude == nil {
				continue
			}
			d := geo.DistanceKm(lat, lon, *events[i].Latitude, *events[i].Longitude)
			if d > radius {
				continue
			}
			resp.DistanceKm = &d
		}
		out = append(out, resp)
	}

	if nearby {
		sort.Slice(out, func(i, j int) bool {
			return *out[i].DistanceKm < *out[j].DistanceKm
		})
		if offset >= len(out) {
			out = out[:0]
		} else {
			out = out[offset:]
		}
		if len(out) > limit {
			out = out[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{"events": out})
}

// handleGetEvent 返回活动详情。
//
// GET /events/:id
func (s *Server) handleGetEvent(c *gin.Context) {
	id := c.Param("id")

	event, err := s.events.GetApproved(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found"})
		return
	}
	if err != nil {
		s.logger.Error("get event failed", slog.String("event_id", id), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load event"})
		return
	}

	resp := buildEventResponse(event)
	if count, err := s.events.CountPosts(c.Request.Context(), id); err == nil {
		resp.PostCount = &count
	}

	c.JSON(http.StatusOK, resp)
}
