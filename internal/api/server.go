package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/api/auth"
	"github.com/rahmatsuhadi/kawis-sub001/internal/api/middleware"
	"github.com/rahmatsuhadi/kawis-sub001/internal/config"
	"github.com/rahmatsuhadi/kawis-sub001/internal/geocode"
	"github.com/rahmatsuhadi/kawis-sub001/internal/model"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/apperr"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/notify"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/queue"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/ratelimit"
	"github.com/rahmatsuhadi/kawis-sub001/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Geocoder 反向地理编码网关。
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon string) (*geocode.Result, error)
}

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、各实体仓储以及 Gin 路由引擎。
// 处理器之间不共享任何可变状态，身份信息只来自请求边界解析的会话。
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *gorm.DB
	rdb        *redis.Client
	router     *gin.Engine
	auth       *auth.Handler
	geocoder   Geocoder
	events     store.EventStore
	posts      store.PostStore
	users      store.UserStore
	categories store.CategoryStore
	mailer     *notify.EmailNotifier
	notifyQ    *queue.Queue
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化仓储、地理编码客户端与 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Event{},
		&model.EventImage{},
		&model.EventPost{},
		&model.PostLike{},
	); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	mailer := notify.NewEmailNotifier(&cfg.Email, logger)

	metrics.InitMetrics()

	geocodeCache := geocode.NewRedisCache(rdb, cfg.App.GeocodeCacheTTL, logger)
	// 公共 Nominatim 实例的使用条款要求限速，多实例共享同一个桶
	geocodeLimiter := ratelimit.NewRedisLimiter(rdb, logger, "kawiskita:ratelimit:geocode",
		cfg.App.GeocodeRatePerSec, cfg.App.GeocodeRateBurst)
	geocoder := geocode.NewClient(cfg.App.GeocodeBaseURL, cfg.App.GeocodeTimeout, geocodeCache, geocodeLimiter, logger)

	notifyQ := queue.NewQueue(logger, cfg.App.NotifyWorkers, cfg.App.NotifyQueueSize)
	notifyQ.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		rdb:        rdb,
		router:     r,
		auth:       auth.NewHandler(db, cfg.Security.JWTSecret, mailer, logger),
		geocoder:   geocoder,
		events:     store.NewEventStore(db),
		posts:      store.NewPostStore(db),
		users:      store.NewUserStore(db),
		categories: store.NewCategoryStore(db),
		mailer:     mailer,
		notifyQ:    notifyQ,
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 排空通知队列并关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.notifyQ != nil {
		s.notifyQ.ShutdownWithTimeout(5 * time.Second)
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/register", s.auth.Register)
	s.router.POST("/login", s.auth.Login)
	s.router.POST("/verify", s.auth.VerifyEmail)
	s.router.POST("/resend", s.auth.ResendCode)

	s.router.GET("/location/reverse-geocode", s.handleReverseGeocode)
	s.router.GET("/categories", s.handleListCategories)
	s.router.GET("/posts/:postId", s.handleGetPostDetail)

	// 匿名也能访问，但会话存在时解析出来给匿名路径规则用
	public := s.router.Group("/")
	public.Use(middleware.OptionalAuth(s.cfg.Security.JWTSecret))
	public.Use(middleware.SessionActivityMiddleware(s.rdb, s.cfg.App.SessionIdleTTL))
	public.GET("/events", s.handleListEvents)
	public.GET("/events/:id", s.handleGetEvent)
	public.POST("/events", s.handleCreateEvent)
	public.POST("/events/:id/posts", s.handleCreatePost)

	authed := s.router.Group("/")
	authed.Use(middleware.RequireAuth(s.cfg.Security.JWTSecret))
	authed.Use(middleware.SessionActivityMiddleware(s.rdb, s.cfg.App.SessionIdleTTL))
	authed.POST("/logout", s.auth.Logout)
	authed.POST("/posts/:postId/like", s.handleLikePost)
	authed.DELETE("/posts/:postId/like", s.handleUnlikePost)

	admin := s.router.Group("/admin")
	admin.Use(middleware.RequireAuth(s.cfg.Security.JWTSecret))
	admin.Use(middleware.RequireAdmin())
	admin.GET("/users", s.handleListUsers)
	admin.POST("/events/:id/approve", s.handleApproveEvent)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReverseGeocode 处理反向地理编码请求。
//
// GET /location/reverse-geocode?lat=<decimal>&lon=<decimal>
//
// lat/lon 缺失或非法返回 400，上游失败返回 500，两者的错误体
// 形状固定为 {"error": string}。
func (s *Server) handleReverseGeocode(c *gin.Context) {
	lat := c.Query("lat")
	lon := c.Query("lon")

	res, err := s.geocoder.Reverse(c.Request.Context(), lat, lon)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindInvalidArgument:
			c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err, "Latitude and Longitude are required")})
		default:
			s.logger.Error("reverse geocode failed", slog.String("lat", lat), slog.String("lon", lon), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.Message(err, "Failed to fetch location data")})
		}
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) handleListCategories(c *gin.Context) {
	categories, err := s.categories.ListAll(c.Request.Context())
	if err != nil {
		s.logger.Error("list categories failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list categories failed"})
		return
	}

	type categoryResponse struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, cat := range categories {
		out = append(out, categoryResponse{ID: cat.ID, Name: cat.Name})
	}
	c.JSON(http.StatusOK, out)
}

// parseQueryInt 解析查询参数中的整数值。
//
// 参数:
//
//	c: Gin 上下文
//	key: 参数名
//	def: 默认值
//
// 返回值:
//
//	int: 解析后的整数或默认值
func parseQueryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	iv, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return iv
}
