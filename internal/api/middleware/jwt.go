package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Session 是从 JWT 解析出的调用者身份。
//
// 所有处理器只读取 gin 上下文里的 Session，不读任何全局状态。
type Session struct {
	UserID      uint
	Role        string
	DisplayName string
	AvatarURL   string
}

const sessionKey = "session"

type customClaims struct {
	jwt.RegisteredClaims
	Role   string `json:"role"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// GetSession 返回当前请求的会话；匿名调用者返回 nil。
func GetSession(c *gin.Context) *Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, ok := v.(*Session)
	if !ok {
		return nil
	}
	return s
}

// SetSession 将会话写入上下文（测试用）。
func SetSession(c *gin.Context, s *Session) {
	c.Set(sessionKey, s)
}

// parseToken 解析 Bearer token 并还原为 Session。
func parseToken(c *gin.Context, secret []byte) *Session {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	claims := &customClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil
	}

	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil
	}

	role := strings.TrimSpace(strings.ToLower(claims.Role))
	if role == "" {
		role = "regular"
	}
	return &Session{
		UserID:      uint(uid),
		Role:        role,
		DisplayName: claims.Name,
		AvatarURL:   claims.Avatar,
	}
}

// OptionalAuth 尝试解析 JWT；没有或无效的 token 按匿名调用者放行。
//
// 匿名路径的业务规则（如带显示名的匿名发布）由处理器自己应用。
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		if s := parseToken(c, secret); s != nil {
			c.Set(sessionKey, s)
		}
		c.Next()
	}
}

// RequireAuth 校验 JWT，无有效会话时返回 401。
func RequireAuth(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		s := parseToken(c, secret)
		if s == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization"})
			c.Abort()
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// RequireAdmin 在 RequireAuth 之后使用，校验管理员角色。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := GetSession(c)
		if s == nil || s.Role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
